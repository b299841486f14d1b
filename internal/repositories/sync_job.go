package repositories

import (
	"context"
	"fmt"

	"github.com/desertthunder/tuttitracks/internal/models"
	"github.com/desertthunder/tuttitracks/internal/shared"
)

const syncJobColumns = `
	id, playlist_id, username, mode, status, tracks_total, tracks_pushed, snapshot_id,
	error_message, started_at, completed_at, created_at, updated_at
`

// SyncJobRepository implements [models.Repository] for playlist push history.
type SyncJobRepository struct {
	db Querier
}

var _ models.Repository[*models.SyncJob, int64] = (*SyncJobRepository)(nil)

// NewSyncJobRepository creates a new SyncJobRepository with the given database connection
func NewSyncJobRepository(db Querier) *SyncJobRepository {
	return &SyncJobRepository{db: db}
}

// Create inserts a new sync job, setting its id and timestamps
func (r *SyncJobRepository) Create(ctx context.Context, job *models.SyncJob) error {
	if job.Status == "" {
		job.Status = models.SyncStatusPending
	}

	if err := job.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	ts := now()
	if job.StartedAt == nil {
		job.StartedAt = &ts
	}

	query := `
		INSERT INTO sync_jobs (
			playlist_id, username, mode, status, tracks_total, tracks_pushed, snapshot_id,
			error_message, started_at, completed_at, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`

	id, err := insertReturningID(ctx, r.db, query,
		job.PlaylistID,
		job.Username,
		job.Mode,
		job.Status,
		job.TracksTotal,
		job.TracksPushed,
		job.SnapshotID,
		job.ErrorMessage,
		job.StartedAt,
		job.CompletedAt,
		ts,
		ts,
	)
	if err != nil {
		return fmt.Errorf("failed to insert sync job: %w", err)
	}

	job.ID, job.CreatedAt, job.UpdatedAt = id, ts, ts
	return nil
}

// Get retrieves a sync job by ID
func (r *SyncJobRepository) Get(ctx context.Context, id int64) (*models.SyncJob, error) {
	var job models.SyncJob
	query := "SELECT " + syncJobColumns + " FROM sync_jobs WHERE id = ?"

	err := r.db.GetContext(ctx, &job, r.db.Rebind(query), id)
	if isNoRows(err) {
		return nil, shared.NewNotFoundError("sync job", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query sync job: %w", err)
	}
	return &job, nil
}

// Update modifies the progress and outcome of an existing sync job
func (r *SyncJobRepository) Update(ctx context.Context, job *models.SyncJob) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	job.UpdatedAt = now()

	query := `
		UPDATE sync_jobs
		SET mode = ?, status = ?, tracks_total = ?, tracks_pushed = ?, snapshot_id = ?,
			error_message = ?, started_at = ?, completed_at = ?, updated_at = ?
		WHERE id = ?
	`

	rows, err := exec(ctx, r.db, query,
		job.Mode,
		job.Status,
		job.TracksTotal,
		job.TracksPushed,
		job.SnapshotID,
		job.ErrorMessage,
		job.StartedAt,
		job.CompletedAt,
		job.UpdatedAt,
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update sync job: %w", err)
	}
	if rows == 0 {
		return shared.NewNotFoundError("sync job", job.ID)
	}
	return nil
}

// Complete marks the job completed with the resulting snapshot.
func (r *SyncJobRepository) Complete(ctx context.Context, job *models.SyncJob, pushed int, snapshotID string) error {
	ts := now()
	job.Status = models.SyncStatusCompleted
	job.TracksPushed = pushed
	job.CompletedAt = &ts
	if snapshotID != "" {
		job.SnapshotID = &snapshotID
	}
	return r.Update(ctx, job)
}

// Fail marks the job failed with cause's message.
func (r *SyncJobRepository) Fail(ctx context.Context, job *models.SyncJob, cause error) error {
	ts := now()
	msg := cause.Error()
	job.Status = models.SyncStatusFailed
	job.ErrorMessage = &msg
	job.CompletedAt = &ts
	return r.Update(ctx, job)
}

// ListByPlaylist retrieves the push history of a playlist, newest first
func (r *SyncJobRepository) ListByPlaylist(ctx context.Context, playlistID int64, limit int) ([]*models.SyncJob, error) {
	if limit <= 0 {
		limit = 20
	}

	jobs := []*models.SyncJob{}
	query := "SELECT " + syncJobColumns + " FROM sync_jobs WHERE playlist_id = ? ORDER BY id DESC LIMIT ?"

	if err := r.db.SelectContext(ctx, &jobs, r.db.Rebind(query), playlistID, limit); err != nil {
		return nil, fmt.Errorf("failed to query sync jobs: %w", err)
	}
	return jobs, nil
}

// ListByStatus retrieves a user's sync jobs with the given status, newest first
func (r *SyncJobRepository) ListByStatus(ctx context.Context, username string, status models.SyncStatus) ([]*models.SyncJob, error) {
	jobs := []*models.SyncJob{}
	query := "SELECT " + syncJobColumns + " FROM sync_jobs WHERE username = ? AND status = ? ORDER BY id DESC"

	if err := r.db.SelectContext(ctx, &jobs, r.db.Rebind(query), username, status); err != nil {
		return nil, fmt.Errorf("failed to query sync jobs: %w", err)
	}
	return jobs, nil
}
