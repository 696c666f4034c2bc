// package formatter converts cached library snapshots to export formats (CSV, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/desertthunder/chorus/internal/library"
)

// ExportToCSV converts a playlist to CSV format with columns: Playlist, Title, Artists, Album, DurationMS, AddedAt, URI
func ExportToCSV(playlists []library.Playlist) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Playlist", "Title", "Artists", "Album", "DurationMS", "AddedAt", "URI"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, playlist := range playlists {
		for _, track := range playlist.Tracks {
			record := []string{
				playlist.Name,
				track.Name,
				strings.Join(track.Artists, "; "),
				stringOrEmpty(track.Album),
				durationOrEmpty(track.DurationMS),
				stringOrEmpty(track.AddedAt),
				stringOrEmpty(track.URI),
			}
			if err := writer.Write(record); err != nil {
				return nil, fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToText converts a collection to plain text format
func ExportToText(collection *library.Collection) ([]byte, error) {
	var buf bytes.Buffer

	if collection.User != nil {
		buf.WriteString(fmt.Sprintf("Library of %s\n\n", collection.User.DisplayName))
	}

	for _, playlist := range collection.Playlists {
		name := playlist.Name
		if playlist.Virtual {
			name += " (virtual)"
		}
		buf.WriteString(fmt.Sprintf("Playlist: %s\n", name))
		if playlist.Owner != nil {
			buf.WriteString(fmt.Sprintf("Owner: %s\n", *playlist.Owner))
		}
		buf.WriteString(fmt.Sprintf("Tracks: %d\n\n", len(playlist.Tracks)))

		for i, track := range playlist.Tracks {
			buf.WriteString(fmt.Sprintf("%d. %s - %s\n", i+1, strings.Join(track.Artists, ", "), track.Name))
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func durationOrEmpty(ms *int) string {
	if ms == nil {
		return ""
	}
	return strconv.Itoa(*ms)
}
