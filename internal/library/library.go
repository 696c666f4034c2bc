// package library defines the sanitized music-library model shared by the
// fetch layer, the tiered cache, and CLI output.
//
// Only the minimal projection of upstream payloads lives here; raw API
// responses never leave the fetch layer.
package library

// LikedSongsID is the reserved sentinel ID for the synthesized
// liked-songs playlist. It is not a real upstream playlist.
const LikedSongsID = "__liked__"

// Track is the minimal sanitized projection of an upstream track.
type Track struct {
	Name       string   `json:"name"`
	Artists    []string `json:"artists"`
	Album      *string  `json:"album"`
	AddedAt    *string  `json:"addedAt"`
	URI        *string  `json:"uri"`
	DurationMS *int     `json:"durationMs"`
}

// Playlist is a named collection of sanitized tracks.
//
// Virtual marks the synthesized liked-songs playlist: it is always owned
// by the current user and cannot be deleted upstream.
type Playlist struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Owner   *string `json:"owner"`
	Virtual bool    `json:"virtual,omitempty"`
	Tracks  []Track `json:"tracks"`
}

// User identifies the library owner.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// Collection is the assembled library: the owner profile plus every
// playlist, including the virtual liked-songs playlist when available.
type Collection struct {
	User      *User      `json:"user"`
	Playlists []Playlist `json:"playlists"`
}

// TrackCount returns the total number of tracks across all playlists.
func (c *Collection) TrackCount() int {
	total := 0
	for _, p := range c.Playlists {
		total += len(p.Tracks)
	}
	return total
}
