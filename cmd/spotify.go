package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/tuttitracks/internal/models"
	"github.com/desertthunder/tuttitracks/internal/services"
	"github.com/desertthunder/tuttitracks/internal/shared"
)

// Search queries the Spotify catalog with the filter flags and caches every result.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	c, userCtx, err := r.userContext(ctx, cmd)
	if err != nil {
		return err
	}

	query := services.SearchQuery{
		Artist: cmd.String("artist"),
		Track:  cmd.String("track"),
		Album:  cmd.String("album"),
		Genre:  cmd.String("genre"),
		Year:   cmd.String("year"),
	}
	r.logger.Debug("searching", "query", query.String())

	tracks, err := c.browser.Search(userCtx, query, cmd.Int("limit"), cmd.Int("offset"))
	if err != nil {
		return err
	}
	return r.writeTracks(cmd, "Search results", tracks)
}

// Liked lists the user's saved tracks.
func (r *Runner) Liked(ctx context.Context, cmd *cli.Command) error {
	c, userCtx, err := r.userContext(ctx, cmd)
	if err != nil {
		return err
	}

	tracks, err := c.browser.Liked(userCtx, cmd.Int("limit"), cmd.Int("offset"))
	if err != nil {
		return err
	}
	return r.writeTracks(cmd, "Liked tracks", tracks)
}

// Top lists the user's most played tracks for --time-range.
func (r *Runner) Top(ctx context.Context, cmd *cli.Command) error {
	c, userCtx, err := r.userContext(ctx, cmd)
	if err != nil {
		return err
	}

	timeRange := cmd.String("time-range")
	tracks, err := c.browser.Top(userCtx, timeRange, cmd.Int("limit"), cmd.Int("offset"))
	if err != nil {
		return err
	}
	return r.writeTracks(cmd, "Top tracks ("+timeRange+")", tracks)
}

// RemotePlaylists lists the playlists on the user's Spotify account.
func (r *Runner) RemotePlaylists(ctx context.Context, cmd *cli.Command) error {
	c, userCtx, err := r.userContext(ctx, cmd)
	if err != nil {
		return err
	}

	playlists, err := c.browser.RemotePlaylists(userCtx, cmd.Int("limit"), cmd.Int("offset"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlists, cmd.Bool("pretty"))
	}

	r.writePlain("Found %d playlists:\n\n", len(playlists))
	for i, p := range playlists {
		r.writePlain("%d. %s\n", i+1, p.Name)
		if p.Description != "" {
			r.writePlain("   Description: %s\n", p.Description)
		}
		r.writePlain("   ID: %s\n", p.ID)
		r.writePlain("   Tracks: %d\n", p.TrackCount)
		r.writePlain("   Visibility: %s\n", shared.VisibilityString(p.Public))
		r.writePlain("   Owner: %s\n\n", p.Owner)
	}
	return nil
}

// writeTracks prints cached track summaries with the local ids used by the playlist commands.
func (r *Runner) writeTracks(cmd *cli.Command, title string, tracks []models.TrackSummary) error {
	if cmd.Bool("json") {
		return r.writeJSON(tracks, cmd.Bool("pretty"))
	}

	r.writePlainHeader(title)
	if len(tracks) == 0 {
		return r.writePlain("No tracks found\n")
	}
	for i, t := range tracks {
		r.writePlain("%3d. %-40s id=%d spotify=%s\n", i+1, t.Name, t.ID, t.SpotifyTrackID)
	}
	return r.writePlain("\nAdd tracks with: tuttitracks playlists add --id <playlist> --track <id>\n")
}
