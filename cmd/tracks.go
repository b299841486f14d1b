package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/tuttitracks/internal/shared"
)

// TracksShow prints a cached track with its audio features.
func (r *Runner) TracksShow(ctx context.Context, cmd *cli.Command) error {
	c, err := r.build()
	if err != nil {
		return err
	}

	view, err := c.browser.Track(ctx, cmd.Int64("id"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(view, cmd.Bool("pretty"))
	}

	r.writePlainHeader(view.Name)
	r.writePlain("Artist:     %s\n", view.Artist)
	if view.Album != nil {
		r.writePlain("Album:      %s\n", view.Album.Name)
	}
	if view.ReleaseYear != nil {
		r.writePlain("Year:       %d\n", *view.ReleaseYear)
	}
	r.writePlain("Duration:   %s\n", view.Duration)
	r.writePlain("Popularity: %d\n", view.Popularity)
	if len(view.Genres) > 0 {
		r.writePlain("Genres:     %s\n", strings.Join(view.Genres, ", "))
	}
	r.writePlain("URI:        %s\n", view.URI)

	if !view.AudioFeatures.Enriched() {
		return r.writePlain("\nNo audio features cached. Run: tuttitracks tracks enrich --user <name> --id %d\n", view.ID)
	}

	r.writePlainln("Audio features")
	if view.KeyName != "" {
		r.writePlain("Key:          %s %s\n", view.KeyName, view.ModeName)
	}
	if view.Tempo != nil {
		r.writePlain("Tempo:        %.1f BPM\n", *view.Tempo)
	}
	if view.Danceability != nil {
		r.writePlain("Danceability: %.2f\n", *view.Danceability)
	}
	if view.Energy != nil {
		r.writePlain("Energy:       %.2f\n", *view.Energy)
	}
	return nil
}

// TracksEnrich fetches audio features for the cached tracks named by --id.
func (r *Runner) TracksEnrich(ctx context.Context, cmd *cli.Command) error {
	c, userCtx, err := r.userContext(ctx, cmd)
	if err != nil {
		return err
	}

	ids := cmd.Int64Slice("id")
	if len(ids) == 0 {
		return fmt.Errorf("%w: at least one --id is required", shared.ErrMissingArgument)
	}

	n, err := c.library.EnrichAudioFeatures(userCtx, ids)
	if err != nil {
		return err
	}
	return r.writePlain("✓ Stored audio features for %d of %d tracks\n", n, len(ids))
}
