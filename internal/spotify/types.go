// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package spotify

import (
	"encoding/json"

	"github.com/desertthunder/chorus/internal/library"
)

// SpotifyUser represents the authenticated user's profile.
type SpotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	Name string `json:"name"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	Name string `json:"name"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
	URI        string          `json:"uri"`
}

// SpotifyPlaylistTrack represents a track within a playlist or saved-tracks context.
type SpotifyPlaylistTrack struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

type owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// SpotifySimplePlaylist represents a simplified playlist object (used in lists).
type SpotifySimplePlaylist struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Owner owner  `json:"owner"`
}

// sanitizeTrack projects a raw playlist track item onto the minimal
// library shape. Returns nil for items whose track was removed upstream.
func sanitizeTrack(raw json.RawMessage) (*library.Track, error) {
	var item SpotifyPlaylistTrack
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, err
	}
	if item.Track == nil {
		return nil, nil
	}

	artists := make([]string, 0, len(item.Track.Artists))
	for _, artist := range item.Track.Artists {
		artists = append(artists, artist.Name)
	}

	track := library.Track{
		Name:    item.Track.Name,
		Artists: artists,
	}

	if item.Track.Album.Name != "" {
		album := item.Track.Album.Name
		track.Album = &album
	}
	if item.AddedAt != "" {
		addedAt := item.AddedAt
		track.AddedAt = &addedAt
	}
	if item.Track.URI != "" {
		uri := item.Track.URI
		track.URI = &uri
	}
	if item.Track.DurationMS > 0 {
		duration := item.Track.DurationMS
		track.DurationMS = &duration
	}

	return &track, nil
}

// mapSimplePlaylist decodes a playlist-list item.
func mapSimplePlaylist(raw json.RawMessage) (*SpotifySimplePlaylist, error) {
	var item SpotifySimplePlaylist
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, err
	}
	return &item, nil
}
