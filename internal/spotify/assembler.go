package spotify

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/chorus/internal/library"
	"github.com/desertthunder/chorus/internal/shared"
)

const (
	profilePath     = "/me"
	playlistsPath   = "/me/playlists?limit=50"
	savedTracksPath = "/me/tracks?limit=50"
)

// Assembler orchestrates the fetch of the full library: profile,
// playlists, per-playlist tracks, and the synthesized liked-songs
// pseudo-playlist.
type Assembler struct {
	client *Client
	logger *log.Logger
}

// NewAssembler creates an assembler on top of the given client.
func NewAssembler(client *Client, logger *log.Logger) *Assembler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Assembler{client: client, logger: logger}
}

// FetchAll assembles the complete library.
//
// The profile and the playlist list are independent endpoints and are
// fetched concurrently. Liked songs are best-effort: a failure there is
// logged and the virtual playlist omitted. A failure fetching a named
// playlist's tracks propagates and aborts the remaining playlists.
func (a *Assembler) FetchAll(ctx context.Context) (*library.Collection, error) {
	profileCh := make(chan *SpotifyUser, 1)
	playlistsCh := make(chan []SpotifySimplePlaylist, 1)
	playlistsErrCh := make(chan error, 1)

	go func() {
		var user SpotifyUser
		if err := a.client.AuthorizedRequest(ctx, profilePath, &user); err != nil {
			// A missing profile leaves the record's user null; the
			// playlists are still worth assembling.
			a.logger.Warnf("failed to fetch profile %v", err)
			profileCh <- nil
			return
		}
		profileCh <- &user
	}()

	go func() {
		summaries, err := fetchAllPages(ctx, a.client, playlistsPath, mapSimplePlaylist)
		if err != nil {
			playlistsErrCh <- err
			return
		}
		playlistsCh <- summaries
	}()

	profile := <-profileCh

	var summaries []SpotifySimplePlaylist
	select {
	case err := <-playlistsErrCh:
		return nil, fmt.Errorf("failed to fetch playlists: %w", err)
	case summaries = <-playlistsCh:
	}

	collection := &library.Collection{}
	if profile != nil {
		collection.User = &library.User{ID: profile.ID, DisplayName: profile.DisplayName}
	}

	if liked := a.fetchLikedSongs(ctx, profile); liked != nil {
		collection.Playlists = append(collection.Playlists, *liked)
	}

	for _, summary := range summaries {
		tracksPath := fmt.Sprintf("/playlists/%s/tracks?limit=100", summary.ID)
		tracks, err := fetchAllPages(ctx, a.client, tracksPath, sanitizeTrack)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch tracks for playlist %s: %w", summary.ID, err)
		}

		playlist := library.Playlist{
			ID:     summary.ID,
			Name:   summary.Name,
			Tracks: tracks,
		}
		if summary.Owner.DisplayName != "" {
			ownerName := summary.Owner.DisplayName
			playlist.Owner = &ownerName
		}

		collection.Playlists = append(collection.Playlists, playlist)
	}

	a.logger.Info("library assembled", "playlists", len(collection.Playlists), "tracks", collection.TrackCount())
	return collection, nil
}

// fetchLikedSongs synthesizes the virtual liked-songs playlist from the
// saved-tracks endpoint. Returns nil when the fetch fails: liked songs
// are best-effort and must not abort the assembly.
func (a *Assembler) fetchLikedSongs(ctx context.Context, profile *SpotifyUser) *library.Playlist {
	tracks, err := fetchAllPages(ctx, a.client, savedTracksPath, sanitizeTrack)
	if err != nil {
		a.logger.Warnf("failed to fetch liked songs %v", err)
		return nil
	}

	playlist := &library.Playlist{
		ID:      library.LikedSongsID,
		Name:    "Liked Songs",
		Virtual: true,
		Tracks:  tracks,
	}
	// The liked-songs playlist always belongs to the current user, so
	// fall back to the profile ID when no display name is set.
	if profile != nil {
		ownerName := profile.DisplayName
		if ownerName == "" {
			ownerName = profile.ID
		}
		playlist.Owner = &ownerName
	}

	return playlist
}
