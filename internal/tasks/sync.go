package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/jmoiron/sqlx"
	"golang.org/x/time/rate"

	"github.com/desertthunder/tuttitracks/internal/models"
	"github.com/desertthunder/tuttitracks/internal/repositories"
	"github.com/desertthunder/tuttitracks/internal/services"
	"github.com/desertthunder/tuttitracks/internal/shared"
)

// PushOptions controls a single push.
type PushOptions struct {
	Force    bool                  // Overwrite the remote playlist even if it changed since the last push
	Progress chan<- ProgressUpdate // Optional progress channel
}

// PushResult is the outcome of pushing one playlist.
type PushResult struct {
	PlaylistID        int64           `json:"playlist_id"`
	PlaylistName      string          `json:"playlist_name"`
	SpotifyPlaylistID string          `json:"spotify_playlist_id,omitempty"`
	SnapshotID        string          `json:"snapshot_id,omitempty"`
	Mode              models.SyncMode `json:"mode"`
	TracksPushed      int             `json:"tracks_pushed"`
	JobID             int64           `json:"job_id"`
	Error             error           `json:"-"`
}

// Syncer mirrors local playlists to the remote service.
//
// Every remote call uses the credentials carried by ctx (see [services.WithCredentials]).
type Syncer struct {
	db     *sqlx.DB
	remote services.Service
	engine *PlaylistEngine
	logger *log.Logger
}

// NewSyncer creates a [Syncer]. Pushes take the engine's playlist lock so the order cannot change mid-push.
func NewSyncer(db *sqlx.DB, remote services.Service, engine *PlaylistEngine, logger *log.Logger) *Syncer {
	return &Syncer{db: db, remote: remote, engine: engine, logger: logger}
}

// Push creates the remote playlist on the first push and replaces its items afterwards.
// Each call records a sync job.
func (s *Syncer) Push(ctx context.Context, playlistID int64, opts PushOptions) (*PushResult, error) {
	unlock := s.engine.locks.Lock(playlistID)
	defer unlock()

	p, err := repositories.NewPlaylistRepository(s.db).Get(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	mode := models.SyncModeCreate
	if p.Synced() {
		mode = models.SyncModeUpdate
	}
	return s.push(ctx, p, mode, opts)
}

// PushUpdate replaces the items of an already pushed playlist.
func (s *Syncer) PushUpdate(ctx context.Context, playlistID int64, opts PushOptions) (*PushResult, error) {
	unlock := s.engine.locks.Lock(playlistID)
	defer unlock()

	p, err := repositories.NewPlaylistRepository(s.db).Get(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	if !p.Synced() {
		return nil, shared.NewValidationError("spotify_playlist_id", "playlist has not been pushed yet")
	}
	return s.push(ctx, p, models.SyncModeUpdate, opts)
}

func (s *Syncer) push(ctx context.Context, p *models.Playlist, mode models.SyncMode, opts PushOptions) (*PushResult, error) {
	logger := shared.WithLogger(s.logger, "playlist", p.ID, "mode", mode)

	uris, err := repositories.NewPlaylistTrackRepository(s.db).URIs(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	jobs := repositories.NewSyncJobRepository(s.db)
	job := &models.SyncJob{PlaylistID: p.ID, Username: p.Username, Mode: mode, TracksTotal: len(uris)}
	if err := jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	result := &PushResult{PlaylistID: p.ID, PlaylistName: p.Name, Mode: mode, JobID: job.ID}

	if mode == models.SyncModeCreate {
		err = s.pushNew(ctx, p, uris, opts, result)
	} else {
		err = s.pushUpdate(ctx, p, uris, opts, result)
	}

	if err != nil {
		result.Error = err
		if ferr := jobs.Fail(context.WithoutCancel(ctx), job, err); ferr != nil {
			logger.Error("failed to record failed push", "job", job.ID, "err", ferr)
		}
		logger.Warn("push failed", "err", err)
		return result, err
	}

	result.TracksPushed = len(uris)
	if err := jobs.Complete(ctx, job, len(uris), result.SnapshotID); err != nil {
		logger.Error("failed to record push", "job", job.ID, "err", err)
	}
	logger.Info("playlist pushed", "remote", result.SpotifyPlaylistID, "tracks", len(uris))
	return result, nil
}

func details(p *models.Playlist) services.PlaylistDetails {
	return services.PlaylistDetails{
		Name:          p.Name,
		Description:   p.Description,
		Public:        p.Public,
		Collaborative: p.Collaborative,
	}
}

// pushNew creates the remote playlist, records its id, then uploads the full order.
func (s *Syncer) pushNew(ctx context.Context, p *models.Playlist, uris []string, opts PushOptions, result *PushResult) error {
	if err := p.Validate(); err != nil {
		return err
	}

	user, err := repositories.NewUserRepository(s.db).Get(ctx, p.Username)
	if err != nil {
		return err
	}
	if user.SpotifyUserID == nil || *user.SpotifyUserID == "" {
		return shared.ErrNotLinked
	}

	sendProgress(opts.Progress, createRemoteUpdate(p))
	created, err := s.remote.CreatePlaylist(ctx, *user.SpotifyUserID, details(p))
	if err != nil {
		return fmt.Errorf("failed to create remote playlist: %w", err)
	}

	playlists := repositories.NewPlaylistRepository(s.db)
	if err := playlists.SetRemote(ctx, p.ID, created.ID, created.SnapshotID, created.Image()); err != nil {
		return err
	}
	result.SpotifyPlaylistID, result.SnapshotID = created.ID, created.SnapshotID

	sendProgress(opts.Progress, replaceItemsUpdate(p, len(uris)))
	snapshot, err := s.remote.ReplaceItems(ctx, created.ID, uris)
	if err != nil {
		return s.keepPartialSnapshot(ctx, p.ID, snapshot, fmt.Errorf("failed to upload tracks: %w", err))
	}

	if err := playlists.SetSnapshot(ctx, p.ID, snapshot); err != nil {
		return err
	}
	result.SnapshotID = snapshot
	return nil
}

// pushUpdate replaces the remote items after checking the remote snapshot still matches the last push.
func (s *Syncer) pushUpdate(ctx context.Context, p *models.Playlist, uris []string, opts PushOptions, result *PushResult) error {
	remoteID := p.RemoteID()
	result.SpotifyPlaylistID = remoteID

	if expected := p.Snapshot(); expected != "" && !opts.Force {
		sendProgress(opts.Progress, checkSnapshotUpdate(p))

		current, err := s.remote.Playlist(ctx, remoteID, "snapshot_id")
		if err != nil {
			return fmt.Errorf("failed to check remote snapshot: %w", err)
		}
		if current.SnapshotID != expected {
			return &shared.ConflictError{Resource: "playlist " + remoteID, Expected: expected, Actual: current.SnapshotID}
		}
	}

	sendProgress(opts.Progress, replaceItemsUpdate(p, len(uris)))
	snapshot, err := s.remote.ReplaceItems(ctx, remoteID, uris)
	if err != nil {
		return s.keepPartialSnapshot(ctx, p.ID, snapshot, fmt.Errorf("failed to replace tracks: %w", err))
	}

	if err := repositories.NewPlaylistRepository(s.db).SetSnapshot(ctx, p.ID, snapshot); err != nil {
		return err
	}
	result.SnapshotID = snapshot
	return nil
}

// keepPartialSnapshot records the snapshot left by a partly applied replace so the retry is not
// mistaken for a remote edit. It returns pushErr, joined with any storage failure.
func (s *Syncer) keepPartialSnapshot(ctx context.Context, playlistID int64, snapshot string, pushErr error) error {
	if snapshot == "" {
		return pushErr
	}
	if err := repositories.NewPlaylistRepository(s.db).SetSnapshot(ctx, playlistID, snapshot); err != nil {
		return errors.Join(pushErr, err)
	}
	return pushErr
}

// UpdateRemoteDetails mirrors the playlist's metadata to its remote counterpart. It reports false
// without calling the remote service when the playlist has not been pushed.
//
// The remote snapshot after the change is stored so the next push does not see a conflict.
func (s *Syncer) UpdateRemoteDetails(ctx context.Context, playlistID int64, prog chan<- ProgressUpdate) (bool, error) {
	unlock := s.engine.locks.Lock(playlistID)
	defer unlock()

	playlists := repositories.NewPlaylistRepository(s.db)
	p, err := playlists.Get(ctx, playlistID)
	if err != nil {
		return false, err
	}
	if !p.Synced() {
		return false, nil
	}

	sendProgress(prog, updateDetailsUpdate(p))
	if err := s.remote.UpdateDetails(ctx, p.RemoteID(), details(p)); err != nil {
		return false, fmt.Errorf("failed to update remote details: %w", err)
	}

	current, err := s.remote.Playlist(ctx, p.RemoteID(), "snapshot_id")
	if err != nil {
		return true, fmt.Errorf("failed to read remote snapshot: %w", err)
	}
	if current.SnapshotID != "" {
		if err := playlists.SetSnapshot(ctx, p.ID, current.SnapshotID); err != nil {
			return true, err
		}
	}
	return true, nil
}

// History returns the most recent pushes of a playlist, newest first.
func (s *Syncer) History(ctx context.Context, playlistID int64, limit int) ([]*models.SyncJob, error) {
	if _, err := repositories.NewPlaylistRepository(s.db).Get(ctx, playlistID); err != nil {
		return nil, err
	}
	return repositories.NewSyncJobRepository(s.db).ListByPlaylist(ctx, playlistID, limit)
}

// PushAllOpts configures [Syncer.PushAll].
type PushAllOpts struct {
	NumWorkers int     // Concurrent workers (default: 3, max: 10)
	RateLimit  float64 // Playlists started per second (default: 2)
	Force      bool    // Passed on to every push
}

// PushAllResult summarizes a bulk push.
type PushAllResult struct {
	Total     int          `json:"total"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Results   []PushResult `json:"results"`
}

// PushAll pushes every playlist of username with a rate-limited worker pool.
//
// A failed playlist does not stop the others; failures are reported in the result.
func (s *Syncer) PushAll(ctx context.Context, username string, prog chan<- ProgressUpdate, opts PushAllOpts) (*PushAllResult, error) {
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 3
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 2
	}

	playlists, err := repositories.NewPlaylistRepository(s.db).ListByUser(ctx, username)
	if err != nil {
		return nil, err
	}

	result := &PushAllResult{Total: len(playlists), Results: make([]PushResult, 0, len(playlists))}
	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan *models.Playlist, len(playlists))
	results := make(chan PushResult, len(playlists))

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go s.pushWorker(ctx, &wg, jobs, results, opts.Force)
	}

	go func() {
		defer close(jobs)
		for _, p := range playlists {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			jobs <- p
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		if res.Error == nil {
			result.Succeeded++
			sendProgress(prog, pushCompletedUpdate(completed, result.Total, res))
		} else {
			result.Failed++
			sendProgress(prog, pushFailedUpdate(completed, result.Total, res))
		}
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func (s *Syncer) pushWorker(ctx context.Context, wg *sync.WaitGroup, jobs <-chan *models.Playlist, results chan<- PushResult, force bool) {
	defer wg.Done()

	for p := range jobs {
		if ctx.Err() != nil {
			return
		}

		res, err := s.Push(ctx, p.ID, PushOptions{Force: force})
		if res == nil {
			res = &PushResult{PlaylistID: p.ID, PlaylistName: p.Name}
		}
		if err != nil && res.Error == nil {
			res.Error = err
		}
		results <- *res
	}
}

// IsConflict reports whether err is a remote snapshot conflict.
func IsConflict(err error) bool {
	var conflict *shared.ConflictError
	return errors.As(err, &conflict)
}
