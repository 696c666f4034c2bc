package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/desertthunder/chorus/internal/formatter"
	"github.com/desertthunder/chorus/internal/library"
	"github.com/desertthunder/chorus/internal/shared"
	"github.com/desertthunder/chorus/internal/spotify"
	"github.com/urfave/cli/v3"
)

// LibrarySync fetches the full library from Spotify and saves it
// through the tiered cache.
func (r *Runner) LibrarySync(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)
	spotifyCfg := config.Credentials.Spotify

	sessions := r.sessions(config)
	client := spotify.NewClient(sessions, spotifyCfg, r.httpClient, r.logger)
	assembler := spotify.NewAssembler(client, r.logger)

	r.logger.Info("fetching library")

	collection, err := assembler.FetchAll(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	tiered, closeCache, err := r.openCache(config)
	if err != nil {
		return err
	}
	defer closeCache()

	record, err := tiered.Save(collection)
	if err != nil {
		return fmt.Errorf("failed to cache library: %w", err)
	}

	r.writePlain("✓ Library synced\n")
	r.writePlain("  Playlists: %d\n", len(collection.Playlists))
	r.writePlain("  Tracks: %d\n", collection.TrackCount())
	r.writePlain("  Cached at: %s\n", time.UnixMilli(record.CreatedAt).Format(time.RFC1123))

	return nil
}

// LibraryShow prints the cached library without touching the network.
func (r *Runner) LibraryShow(ctx context.Context, cmd *cli.Command) error {
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")

	config := r.loadConfig(cmd)

	tiered, closeCache, err := r.openCache(config)
	if err != nil {
		return err
	}
	defer closeCache()

	record := tiered.Load()
	if record == nil {
		return r.writePlain("No cached library. Run 'chorus library sync' first.\n")
	}

	if useJSON {
		return r.writeJSON(record, pretty)
	}

	collection := &library.Collection{User: record.User, Playlists: record.Data}
	text, err := formatter.ExportToText(collection)
	if err != nil {
		return fmt.Errorf("failed to format library: %w", err)
	}

	r.writePlain("%s", string(text))
	r.writePlain("Cached at: %s\n", time.UnixMilli(record.CreatedAt).Format(time.RFC1123))

	return nil
}

// LibraryExport writes the cached library to a file in the requested format.
func (r *Runner) LibraryExport(ctx context.Context, cmd *cli.Command) error {
	format := cmd.String("format")
	outputFile := cmd.String("output")

	config := r.loadConfig(cmd)

	tiered, closeCache, err := r.openCache(config)
	if err != nil {
		return err
	}
	defer closeCache()

	record := tiered.Load()
	if record == nil {
		return r.writePlain("No cached library. Run 'chorus library sync' first.\n")
	}

	var data []byte
	switch format {
	case "csv":
		if data, err = formatter.ExportToCSV(record.Data); err != nil {
			return fmt.Errorf("CSV export failed: %w", err)
		}
	case "txt":
		collection := &library.Collection{User: record.User, Playlists: record.Data}
		if data, err = formatter.ExportToText(collection); err != nil {
			return fmt.Errorf("text export failed: %w", err)
		}
	case "json":
		fallthrough
	default:
		format = "json"
		if data, err = shared.MarshalJSON(record, true); err != nil {
			return fmt.Errorf("JSON marshal failed: %w", err)
		}
	}

	if outputFile == "" {
		outputFile = fmt.Sprintf("chorus_library_%d.%s", time.Now().Unix(), format)
	}

	if err := os.WriteFile(outputFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	r.logger.Infof("library exported to %v", outputFile)

	r.writePlain("✓ Library exported to %s\n", outputFile)
	r.writePlain("  Playlists: %d\n", len(record.Data))

	return nil
}

// LibraryPurge clears both cache tiers.
func (r *Runner) LibraryPurge(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)

	tiered, closeCache, err := r.openCache(config)
	if err != nil {
		return err
	}
	defer closeCache()

	if err := tiered.Purge(); err != nil {
		return fmt.Errorf("failed to purge cache: %w", err)
	}

	return r.writePlain("✓ Cache cleared\n")
}

// libraryCommand handles fetching, showing, exporting, and purging the library.
func libraryCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "library",
		Usage: "Fetch and browse your music library",
		Commands: []*cli.Command{
			{
				Name:   "sync",
				Usage:  "Fetch the full library and cache it locally",
				Flags:  []cli.Flag{configFlag()},
				Action: r.LibrarySync,
			},
			{
				Name:  "show",
				Usage: "Show the cached library",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{Name: "json", Usage: "Output as JSON"},
					&cli.BoolFlag{Name: "pretty", Usage: "Pretty-print JSON output"},
				},
				Action: r.LibraryShow,
			},
			{
				Name:  "export",
				Usage: "Export the cached library to a file",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format: json, csv, txt",
						Value:   "json",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path",
					},
				},
				Action: r.LibraryExport,
			},
			{
				Name:   "purge",
				Usage:  "Clear the cached library (both tiers)",
				Flags:  []cli.Flag{configFlag()},
				Action: r.LibraryPurge,
			},
		},
	}
}
