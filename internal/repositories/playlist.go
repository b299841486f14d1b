package repositories

import (
	"context"
	"fmt"

	"github.com/desertthunder/tuttitracks/internal/models"
	"github.com/desertthunder/tuttitracks/internal/shared"
)

const playlistColumns = `
	p.id, p.username, p.name, p.description, p.public, p.collaborative, p.spotify_playlist_id,
	p.snapshot_id, p.image, p.created_at, p.updated_at,
	(SELECT COUNT(*) FROM playlist_tracks pt WHERE pt.playlist_id = p.id) AS track_count
`

// PlaylistRepository implements [models.Repository] for local playlists and their remote sync state.
type PlaylistRepository struct {
	db Querier
}

var _ models.Repository[*models.Playlist, int64] = (*PlaylistRepository)(nil)

// NewPlaylistRepository creates a new PlaylistRepository with the given database connection
func NewPlaylistRepository(db Querier) *PlaylistRepository {
	return &PlaylistRepository{db: db}
}

// Create validates and inserts a playlist, setting its id and timestamps.
func (r *PlaylistRepository) Create(ctx context.Context, playlist *models.Playlist) error {
	if playlist.Name == "" {
		playlist.Name = models.DefaultPlaylistName
	}

	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	ts := now()
	query := `
		INSERT INTO playlists (username, name, description, public, collaborative, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`

	id, err := insertReturningID(ctx, r.db, query,
		playlist.Username,
		playlist.Name,
		playlist.Description,
		playlist.Public,
		playlist.Collaborative,
		ts,
		ts,
	)
	if err != nil {
		return fmt.Errorf("failed to insert playlist: %w", err)
	}

	playlist.ID, playlist.CreatedAt, playlist.UpdatedAt = id, ts, ts
	return nil
}

// Get retrieves a playlist by ID together with its track count
func (r *PlaylistRepository) Get(ctx context.Context, id int64) (*models.Playlist, error) {
	var playlist models.Playlist
	query := "SELECT " + playlistColumns + " FROM playlists p WHERE p.id = ?"

	err := r.db.GetContext(ctx, &playlist, r.db.Rebind(query), id)
	if isNoRows(err) {
		return nil, shared.NewNotFoundError("playlist", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query playlist: %w", err)
	}
	return &playlist, nil
}

// Exists reports whether the playlist is stored.
func (r *PlaylistRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	query := r.db.Rebind("SELECT EXISTS(SELECT 1 FROM playlists WHERE id = ?)")
	if err := r.db.QueryRowxContext(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check playlist: %w", err)
	}
	return exists, nil
}

// Update modifies the editable fields of an existing playlist
func (r *PlaylistRepository) Update(ctx context.Context, playlist *models.Playlist) error {
	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	playlist.UpdatedAt = now()

	query := `
		UPDATE playlists
		SET name = ?, description = ?, public = ?, collaborative = ?, updated_at = ?
		WHERE id = ?
	`

	rows, err := exec(ctx, r.db, query,
		playlist.Name,
		playlist.Description,
		playlist.Public,
		playlist.Collaborative,
		playlist.UpdatedAt,
		playlist.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update playlist: %w", err)
	}
	if rows == 0 {
		return shared.NewNotFoundError("playlist", playlist.ID)
	}
	return nil
}

// SetRemote records the remote id, snapshot and cover image after the first push.
func (r *PlaylistRepository) SetRemote(ctx context.Context, id int64, spotifyID, snapshotID, image string) error {
	query := `
		UPDATE playlists
		SET spotify_playlist_id = ?, snapshot_id = NULLIF(?, ''), image = COALESCE(NULLIF(?, ''), image), updated_at = ?
		WHERE id = ?
	`

	rows, err := exec(ctx, r.db, query, spotifyID, snapshotID, image, now(), id)
	if err != nil {
		return fmt.Errorf("failed to set remote playlist: %w", err)
	}
	if rows == 0 {
		return shared.NewNotFoundError("playlist", id)
	}
	return nil
}

// SetSnapshot records the remote snapshot id of the last push.
func (r *PlaylistRepository) SetSnapshot(ctx context.Context, id int64, snapshotID string) error {
	rows, err := exec(ctx, r.db, "UPDATE playlists SET snapshot_id = ?, updated_at = ? WHERE id = ?", snapshotID, now(), id)
	if err != nil {
		return fmt.Errorf("failed to set snapshot: %w", err)
	}
	if rows == 0 {
		return shared.NewNotFoundError("playlist", id)
	}
	return nil
}

// Touch bumps updated_at after an entry change.
func (r *PlaylistRepository) Touch(ctx context.Context, id int64) error {
	if _, err := exec(ctx, r.db, "UPDATE playlists SET updated_at = ? WHERE id = ?", now(), id); err != nil {
		return fmt.Errorf("failed to touch playlist: %w", err)
	}
	return nil
}

// Delete removes a playlist and, through the cascade, its entries and sync history
func (r *PlaylistRepository) Delete(ctx context.Context, id int64) error {
	rows, err := exec(ctx, r.db, "DELETE FROM playlists WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}
	if rows == 0 {
		return shared.NewNotFoundError("playlist", id)
	}
	return nil
}

// ListByUser retrieves the playlists owned by username, oldest first
func (r *PlaylistRepository) ListByUser(ctx context.Context, username string) ([]*models.Playlist, error) {
	playlists := []*models.Playlist{}
	query := "SELECT " + playlistColumns + " FROM playlists p WHERE p.username = ? ORDER BY p.created_at ASC, p.id ASC"

	if err := r.db.SelectContext(ctx, &playlists, r.db.Rebind(query), username); err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	return playlists, nil
}

// PlaylistTrackRepository manages ordered playlist entries.
//
// Indices are 0-based and contiguous per playlist. UNIQUE(playlist_id, idx) holds after every
// statement, so range shifts move rows through negative indices in two passes.
type PlaylistTrackRepository struct {
	db Querier
}

// NewPlaylistTrackRepository creates a new PlaylistTrackRepository with the given database connection
func NewPlaylistTrackRepository(db Querier) *PlaylistTrackRepository {
	return &PlaylistTrackRepository{db: db}
}

// Count returns the number of entries in the playlist.
func (r *PlaylistTrackRepository) Count(ctx context.Context, playlistID int64) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, r.db.Rebind("SELECT COUNT(*) FROM playlist_tracks WHERE playlist_id = ?"), playlistID); err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return n, nil
}

// Entries returns the playlist's entries joined with their tracks, ordered by index.
func (r *PlaylistTrackRepository) Entries(ctx context.Context, playlistID int64) ([]models.PlaylistEntry, error) {
	entries := []models.PlaylistEntry{}
	query := `
		SELECT pt.id, pt.playlist_id, pt.track_id, pt.idx, t.name, t.spotify_track_id, t.uri, t.duration_ms
		FROM playlist_tracks pt
		JOIN tracks t ON t.id = pt.track_id
		WHERE pt.playlist_id = ?
		ORDER BY pt.idx ASC
	`

	if err := r.db.SelectContext(ctx, &entries, r.db.Rebind(query), playlistID); err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	return entries, nil
}

// URIs returns the remote track URIs of the playlist in order.
func (r *PlaylistTrackRepository) URIs(ctx context.Context, playlistID int64) ([]string, error) {
	uris := []string{}
	query := `
		SELECT t.uri
		FROM playlist_tracks pt
		JOIN tracks t ON t.id = pt.track_id
		WHERE pt.playlist_id = ?
		ORDER BY pt.idx ASC
	`

	if err := r.db.SelectContext(ctx, &uris, r.db.Rebind(query), playlistID); err != nil {
		return nil, fmt.Errorf("failed to query uris: %w", err)
	}
	return uris, nil
}

// Insert stores trackID at idx. The caller must have freed the index.
func (r *PlaylistTrackRepository) Insert(ctx context.Context, playlistID, trackID int64, idx int) error {
	query := "INSERT INTO playlist_tracks (playlist_id, track_id, idx) VALUES (?, ?, ?)"
	if _, err := exec(ctx, r.db, query, playlistID, trackID, idx); err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	return nil
}

// EntryAt returns the entry id and track id stored at idx.
func (r *PlaylistTrackRepository) EntryAt(ctx context.Context, playlistID int64, idx int) (entryID, trackID int64, err error) {
	query := r.db.Rebind("SELECT id, track_id FROM playlist_tracks WHERE playlist_id = ? AND idx = ?")

	err = r.db.QueryRowxContext(ctx, query, playlistID, idx).Scan(&entryID, &trackID)
	if isNoRows(err) {
		return 0, 0, shared.NewNotFoundError("index", idx)
	}
	if err != nil {
		return 0, 0, fmt.Errorf("failed to query entry: %w", err)
	}
	return entryID, trackID, nil
}

// FirstIndexOf returns the lowest index holding trackID.
func (r *PlaylistTrackRepository) FirstIndexOf(ctx context.Context, playlistID, trackID int64) (int, bool, error) {
	var idx int
	query := r.db.Rebind("SELECT MIN(idx) FROM playlist_tracks WHERE playlist_id = ? AND track_id = ? HAVING COUNT(*) > 0")

	err := r.db.QueryRowxContext(ctx, query, playlistID, trackID).Scan(&idx)
	if isNoRows(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to query entry: %w", err)
	}
	return idx, true, nil
}

// SetIndex moves a single entry to idx. The caller must have freed the index.
func (r *PlaylistTrackRepository) SetIndex(ctx context.Context, entryID int64, idx int) error {
	if _, err := exec(ctx, r.db, "UPDATE playlist_tracks SET idx = ? WHERE id = ?", idx, entryID); err != nil {
		return fmt.Errorf("failed to set entry index: %w", err)
	}
	return nil
}

// ShiftRange adds delta to the index of every entry with lo <= idx <= hi.
//
// Rows are first parked at -(idx+delta)-1, which is negative and unique for any shift that keeps
// indices non-negative, and then flipped back.
func (r *PlaylistTrackRepository) ShiftRange(ctx context.Context, playlistID int64, lo, hi, delta int) error {
	if lo > hi || delta == 0 {
		return nil
	}
	if lo+delta < 0 {
		return fmt.Errorf("%w: shift would produce a negative index", shared.ErrIndexOutOfRange)
	}

	park := "UPDATE playlist_tracks SET idx = -(idx + ?) - 1 WHERE playlist_id = ? AND idx >= ? AND idx <= ?"
	if _, err := exec(ctx, r.db, park, delta, playlistID, lo, hi); err != nil {
		return fmt.Errorf("failed to park entries: %w", err)
	}

	restore := "UPDATE playlist_tracks SET idx = -idx - 1 WHERE playlist_id = ? AND idx < 0"
	if _, err := exec(ctx, r.db, restore, playlistID); err != nil {
		return fmt.Errorf("failed to restore entries: %w", err)
	}
	return nil
}

// DeleteEntry removes a single entry by id.
func (r *PlaylistTrackRepository) DeleteEntry(ctx context.Context, entryID int64) error {
	if _, err := exec(ctx, r.db, "DELETE FROM playlist_tracks WHERE id = ?", entryID); err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	return nil
}
