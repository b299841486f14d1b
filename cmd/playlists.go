package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/tuttitracks/internal/models"
	"github.com/desertthunder/tuttitracks/internal/shared"
	"github.com/desertthunder/tuttitracks/internal/tasks"
)

// printProgress writes progress messages until the returned channel is closed.
// The returned func closes the channel and waits for the last message to be written.
func (r *Runner) printProgress() (chan<- tasks.ProgressUpdate, func()) {
	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			switch update.Phase {
			case tasks.PushPlaylist, tasks.ExportPlaylist:
				r.writePlain("   %s\n", update.Message)
			default:
				r.writePlain("→ %s\n", update.Message)
			}
		}
	}()
	return progressCh, func() {
		close(progressCh)
		<-done
	}
}

// PlaylistsList prints the playlists of --user.
func (r *Runner) PlaylistsList(ctx context.Context, cmd *cli.Command) error {
	c, err := r.build()
	if err != nil {
		return err
	}

	playlists, err := c.engine.List(ctx, cmd.String("user"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlists, cmd.Bool("pretty"))
	}

	if len(playlists) == 0 {
		return r.writePlain("No playlists yet. Create one with: tuttitracks playlists create --user %s --name <name>\n", cmd.String("user"))
	}

	r.writePlain("Found %d playlists:\n\n", len(playlists))
	for _, p := range playlists {
		r.writePlain("%d. %s\n", p.ID, p.Name)
		r.writePlain("   Tracks: %d, %s\n", p.TrackCount, shared.VisibilityString(p.Public))
		if p.Synced() {
			r.writePlain("   Spotify: %s\n", p.RemoteID())
		}
		r.writePlain("   Edited: %s\n\n", humanize.Time(p.UpdatedAt))
	}
	return nil
}

// PlaylistsShow prints a playlist with its tracks in order.
func (r *Runner) PlaylistsShow(ctx context.Context, cmd *cli.Command) error {
	c, err := r.build()
	if err != nil {
		return err
	}

	id := cmd.Int64("id")
	p, err := c.engine.Get(ctx, id)
	if err != nil {
		return err
	}
	entries, err := c.engine.Entries(ctx, id)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{"playlist": p, "tracks": entries}, cmd.Bool("pretty"))
	}
	return r.writeEntries(p, entries)
}

func (r *Runner) writeEntries(p *models.Playlist, entries []models.PlaylistEntry) error {
	r.writePlainHeader(p.Name)
	if p.Description != "" {
		r.writePlain("%s\n", p.Description)
	}
	visibility := shared.VisibilityString(p.Public)
	if p.Collaborative {
		visibility += ", collaborative"
	}
	r.writePlain("Owner: %s  Visibility: %s\n", p.Username, visibility)
	if p.Synced() {
		r.writePlain("Spotify: %s\n", p.RemoteID())
	}
	r.writePlain("\n")

	for _, e := range entries {
		r.writePlain("%3d. %-40s %6s  id=%d\n", e.Index, e.Name, shared.FormatDuration(e.DurationMS), e.TrackID)
	}
	return r.writePlain("\n%d tracks\n", len(entries))
}

// PlaylistsCreate creates a playlist for --user with the tracks named by --track.
func (r *Runner) PlaylistsCreate(ctx context.Context, cmd *cli.Command) error {
	c, err := r.build()
	if err != nil {
		return err
	}

	in := models.PlaylistInput{Name: cmd.String("name")}
	if cmd.IsSet("description") {
		description := cmd.String("description")
		in.Description = &description
	}
	if cmd.IsSet("private") {
		public := !cmd.Bool("private")
		in.Public = &public
	}
	if cmd.IsSet("collaborative") {
		collaborative := cmd.Bool("collaborative")
		in.Collaborative = &collaborative
	}

	p, err := c.engine.Create(ctx, cmd.String("user"), in, cmd.Int64Slice("track"))
	if err != nil {
		return err
	}
	return r.writePlain("✓ Created playlist %d: %s (%d tracks)\n", p.ID, p.Name, p.TrackCount)
}

// PlaylistsAdd appends tracks, or inserts them in order starting at --index.
func (r *Runner) PlaylistsAdd(ctx context.Context, cmd *cli.Command) error {
	c, err := r.build()
	if err != nil {
		return err
	}

	id := cmd.Int64("id")
	trackIDs := cmd.Int64Slice("track")
	if len(trackIDs) == 0 {
		return fmt.Errorf("%w: at least one --track is required", shared.ErrMissingArgument)
	}

	if index := cmd.Int("index"); index >= 0 {
		if err := c.engine.InsertManyAt(ctx, id, trackIDs, index); err != nil {
			return err
		}
	} else if err := c.engine.Append(ctx, id, trackIDs); err != nil {
		return err
	}

	return r.writePlain("✓ Added %d tracks to playlist %d\n", len(trackIDs), id)
}

// PlaylistsMove moves the entry at --from to --to.
func (r *Runner) PlaylistsMove(ctx context.Context, cmd *cli.Command) error {
	c, err := r.build()
	if err != nil {
		return err
	}

	id, from, to := cmd.Int64("id"), cmd.Int("from"), cmd.Int("to")
	if err := c.engine.Move(ctx, id, from, to); err != nil {
		return err
	}
	return r.writePlain("✓ Moved track %d to %d\n", from, to)
}

// PlaylistsRemove removes the first occurrence of --track or the entry at --index.
func (r *Runner) PlaylistsRemove(ctx context.Context, cmd *cli.Command) error {
	c, err := r.build()
	if err != nil {
		return err
	}

	id := cmd.Int64("id")
	switch {
	case cmd.IsSet("track"):
		if err := c.engine.Delete(ctx, id, cmd.Int64("track")); err != nil {
			return err
		}
	case cmd.Int("index") >= 0:
		if err := c.engine.DeleteAt(ctx, id, cmd.Int("index")); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: --track or --index is required", shared.ErrMissingArgument)
	}
	return r.writePlain("✓ Removed track from playlist %d\n", id)
}

// PlaylistsDelete deletes a local playlist. The Spotify copy is kept.
func (r *Runner) PlaylistsDelete(ctx context.Context, cmd *cli.Command) error {
	c, err := r.build()
	if err != nil {
		return err
	}

	id := cmd.Int64("id")
	if err := c.engine.DeletePlaylist(ctx, id); err != nil {
		return err
	}
	return r.writePlain("✓ Deleted playlist %d\n", id)
}

// PlaylistsPush pushes one playlist with its owner's credentials, or every playlist of --user with --all.
func (r *Runner) PlaylistsPush(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("all") {
		return r.pushAll(ctx, cmd)
	}
	if !cmd.IsSet("id") {
		return fmt.Errorf("%w: --id or --all is required", shared.ErrMissingArgument)
	}

	c, err := r.build()
	if err != nil {
		return err
	}

	p, err := c.engine.Get(ctx, cmd.Int64("id"))
	if err != nil {
		return err
	}
	userCtx, err := c.accounts.WithCredentials(ctx, p.Username)
	if err != nil {
		return fmt.Errorf("cannot push as %s: %w", p.Username, err)
	}

	progressCh, wait := r.printProgress()
	res, err := c.syncer.Push(userCtx, p.ID, tasks.PushOptions{Force: cmd.Bool("force"), Progress: progressCh})
	wait()
	if err != nil {
		if tasks.IsConflict(err) {
			r.writePlain("✗ %s was edited on Spotify since the last push. Re-run with --force to overwrite.\n", p.Name)
		}
		return err
	}

	verb := "Updated"
	if res.Mode == models.SyncModeCreate {
		verb = "Created"
	}
	r.writePlain("✓ %s %s on Spotify (%d tracks)\n", verb, res.PlaylistName, res.TracksPushed)
	return r.writePlain("  Spotify ID: %s\n", res.SpotifyPlaylistID)
}

func (r *Runner) pushAll(ctx context.Context, cmd *cli.Command) error {
	c, userCtx, err := r.userContext(ctx, cmd)
	if err != nil {
		return err
	}

	progressCh, wait := r.printProgress()
	result, err := c.syncer.PushAll(userCtx, cmd.String("user"), progressCh, tasks.PushAllOpts{
		NumWorkers: cmd.Int("workers"),
		Force:      cmd.Bool("force"),
	})
	wait()
	if err != nil && result == nil {
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("Push Complete!")
	r.writePlain("Pushed: %d/%d\n", result.Succeeded, result.Total)
	if result.Failed > 0 {
		conflicts := 0
		for _, res := range result.Results {
			if tasks.IsConflict(res.Error) {
				conflicts++
			}
		}
		r.writePlain("Failed: %d", result.Failed)
		if conflicts > 0 {
			r.writePlain(" (%d edited on Spotify, use --force)", conflicts)
		}
		r.writePlain("\n")
		return errors.Join(err, fmt.Errorf("%d of %d pushes failed", result.Failed, result.Total))
	}
	return err
}

// PlaylistsHistory prints the recorded pushes of a playlist, newest first.
func (r *Runner) PlaylistsHistory(ctx context.Context, cmd *cli.Command) error {
	c, err := r.build()
	if err != nil {
		return err
	}

	jobs, err := c.syncer.History(ctx, cmd.Int64("id"), cmd.Int("limit"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(jobs, cmd.Bool("pretty"))
	}

	if len(jobs) == 0 {
		return r.writePlain("Never pushed\n")
	}
	for _, j := range jobs {
		line := fmt.Sprintf("#%d %-6s %-9s %d/%d tracks  %s", j.ID, j.Mode, j.Status, j.TracksPushed, j.TracksTotal, humanize.Time(j.CreatedAt))
		if d := j.Duration(); d > 0 {
			line += fmt.Sprintf(" (%s)", d.Round(time.Millisecond))
		}
		if j.ErrorMessage != nil {
			line += "\n    " + *j.ErrorMessage
		}
		r.writePlain("%s\n", line)
	}
	return nil
}

// PlaylistsExport writes the playlists named by --id, or every playlist of --user, to files.
func (r *Runner) PlaylistsExport(ctx context.Context, cmd *cli.Command) error {
	c, err := r.build()
	if err != nil {
		return err
	}

	format := strings.ToLower(cmd.String("format"))
	opts := tasks.BulkExportOpts{
		Format:     format,
		OutputDir:  cmd.String("output"),
		NumWorkers: cmd.Int("workers"),
	}
	if format == "markdown" || format == "md" {
		opts.GetCoverImage = tasks.StoredCover
	}

	ids := cmd.Int64Slice("id")
	username := cmd.String("user")

	progressCh, wait := r.printProgress()
	var result *tasks.BulkExportResult
	switch {
	case len(ids) > 0:
		result, err = c.engine.BulkExport(ctx, progressCh, ids, opts)
	case username != "":
		result, err = c.engine.BulkExportUser(ctx, progressCh, username, opts)
	default:
		err = fmt.Errorf("%w: --id or --user is required", shared.ErrMissingArgument)
	}
	wait()
	if err != nil {
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("Export Complete!")
	r.writePlain("Exported: %d/%d\n", result.SuccessfulExports, result.TotalPlaylists)
	r.writePlain("Directory: %s\n", result.OutputDirectory)
	r.writePlain("Manifest: %s\n", result.ManifestPath)
	if result.FailedExports > 0 {
		return fmt.Errorf("%d of %d exports failed", result.FailedExports, result.TotalPlaylists)
	}
	return nil
}
