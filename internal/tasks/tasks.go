package tasks

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/jmoiron/sqlx"

	"github.com/desertthunder/tuttitracks/internal/models"
	"github.com/desertthunder/tuttitracks/internal/repositories"
	"github.com/desertthunder/tuttitracks/internal/shared"
)

// keyedMutex hands out one mutex per playlist id and forgets it once nobody holds it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[int64]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

// Lock blocks until key is free and returns the matching unlock function.
func (k *keyedMutex) Lock(key int64) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[int64]*keyedLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// PlaylistEngine owns local playlists and the order of their tracks.
//
// Mutations of one playlist are serialized and each runs in a single transaction, so indices stay
// contiguous from 0 after every operation.
type PlaylistEngine struct {
	db     *sqlx.DB
	locks  keyedMutex
	logger *log.Logger
}

// NewPlaylistEngine creates a new [PlaylistEngine] on db.
func NewPlaylistEngine(db *sqlx.DB, logger *log.Logger) *PlaylistEngine {
	return &PlaylistEngine{db: db, logger: logger}
}

// entryTx bundles the repositories used inside one mutation.
type entryTx struct {
	playlists *repositories.PlaylistRepository
	entries   *repositories.PlaylistTrackRepository
	catalog   *repositories.CatalogRepository
}

// mutate runs fn under the playlist's lock in one transaction, after checking the playlist exists.
func (e *PlaylistEngine) mutate(ctx context.Context, playlistID int64, fn func(r entryTx) error) error {
	unlock := e.locks.Lock(playlistID)
	defer unlock()

	return repositories.WithTx(ctx, e.db, func(tx *sqlx.Tx) error {
		r := entryTx{
			playlists: repositories.NewPlaylistRepository(tx),
			entries:   repositories.NewPlaylistTrackRepository(tx),
			catalog:   repositories.NewCatalogRepository(tx),
		}

		exists, err := r.playlists.Exists(ctx, playlistID)
		if err != nil {
			return err
		}
		if !exists {
			return shared.NewNotFoundError("playlist", playlistID)
		}

		if err := fn(r); err != nil {
			return err
		}
		return r.playlists.Touch(ctx, playlistID)
	})
}

// requireTracks fails with a [shared.NotFoundError] for the first id that is not cached.
func requireTracks(ctx context.Context, catalog *repositories.CatalogRepository, ids []int64) error {
	missing, err := catalog.MissingTracks(ctx, ids)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return shared.NewNotFoundError("track", missing[0])
	}
	return nil
}

func appendEntries(ctx context.Context, r entryTx, playlistID int64, trackIDs []int64) error {
	if err := requireTracks(ctx, r.catalog, trackIDs); err != nil {
		return err
	}

	n, err := r.entries.Count(ctx, playlistID)
	if err != nil {
		return err
	}

	for i, id := range trackIDs {
		if err := r.entries.Insert(ctx, playlistID, id, n+i); err != nil {
			return err
		}
	}
	return nil
}

// Append adds trackIDs to the end of the playlist in the given order.
func (e *PlaylistEngine) Append(ctx context.Context, playlistID int64, trackIDs []int64) error {
	if len(trackIDs) == 0 {
		return shared.NewValidationError("id", "at least one track id is required")
	}

	return e.mutate(ctx, playlistID, func(r entryTx) error {
		return appendEntries(ctx, r, playlistID, trackIDs)
	})
}

// InsertAt inserts trackID at index, shifting the entries at and after it by one. index may equal
// the playlist length, which appends.
func (e *PlaylistEngine) InsertAt(ctx context.Context, playlistID, trackID int64, index int) error {
	return e.InsertManyAt(ctx, playlistID, []int64{trackID}, index)
}

// InsertManyAt inserts trackIDs as a contiguous run starting at index. Either every id is
// inserted or none is.
func (e *PlaylistEngine) InsertManyAt(ctx context.Context, playlistID int64, trackIDs []int64, index int) error {
	if len(trackIDs) == 0 {
		return shared.NewValidationError("id", "at least one track id is required")
	}

	return e.mutate(ctx, playlistID, func(r entryTx) error {
		if err := requireTracks(ctx, r.catalog, trackIDs); err != nil {
			return err
		}

		n, err := r.entries.Count(ctx, playlistID)
		if err != nil {
			return err
		}
		if index < 0 || index > n {
			return shared.NewNotFoundError("index", index)
		}

		if err := r.entries.ShiftRange(ctx, playlistID, index, n-1, len(trackIDs)); err != nil {
			return err
		}
		for i, id := range trackIDs {
			if err := r.entries.Insert(ctx, playlistID, id, index+i); err != nil {
				return err
			}
		}
		return nil
	})
}

// Move moves the entry at current to target. Entries in between shift by one toward current.
func (e *PlaylistEngine) Move(ctx context.Context, playlistID int64, current, target int) error {
	return e.mutate(ctx, playlistID, func(r entryTx) error {
		n, err := r.entries.Count(ctx, playlistID)
		if err != nil {
			return err
		}
		if current < 0 || current >= n {
			return shared.NewNotFoundError("index", current)
		}
		if target < 0 || target >= n {
			return shared.NewNotFoundError("index", target)
		}

		entryID, _, err := r.entries.EntryAt(ctx, playlistID, current)
		if err != nil {
			return err
		}
		if current == target {
			return r.entries.SetIndex(ctx, entryID, target)
		}

		// Park the moved entry past the end while the range shifts.
		if err := r.entries.SetIndex(ctx, entryID, n); err != nil {
			return err
		}

		if current < target {
			err = r.entries.ShiftRange(ctx, playlistID, current+1, target, -1)
		} else {
			err = r.entries.ShiftRange(ctx, playlistID, target, current-1, 1)
		}
		if err != nil {
			return err
		}

		return r.entries.SetIndex(ctx, entryID, target)
	})
}

func deleteAt(ctx context.Context, r entryTx, playlistID int64, index, n int) error {
	entryID, _, err := r.entries.EntryAt(ctx, playlistID, index)
	if err != nil {
		return err
	}
	if err := r.entries.DeleteEntry(ctx, entryID); err != nil {
		return err
	}
	return r.entries.ShiftRange(ctx, playlistID, index+1, n-1, -1)
}

// Delete removes the first occurrence of trackID and closes the gap.
func (e *PlaylistEngine) Delete(ctx context.Context, playlistID, trackID int64) error {
	return e.DeleteMany(ctx, playlistID, []int64{trackID})
}

// DeleteMany removes the first occurrence of each id in turn, so a repeated id removes that
// many occurrences. An id with nothing left to remove fails the whole call and nothing is removed.
func (e *PlaylistEngine) DeleteMany(ctx context.Context, playlistID int64, trackIDs []int64) error {
	if len(trackIDs) == 0 {
		return shared.NewValidationError("id", "at least one track id is required")
	}

	return e.mutate(ctx, playlistID, func(r entryTx) error {
		for _, trackID := range trackIDs {
			index, ok, err := r.entries.FirstIndexOf(ctx, playlistID, trackID)
			if err != nil {
				return err
			}
			if !ok {
				return shared.NewNotFoundError("track", trackID)
			}

			n, err := r.entries.Count(ctx, playlistID)
			if err != nil {
				return err
			}
			if err := deleteAt(ctx, r, playlistID, index, n); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteAt removes the entry at index and closes the gap.
func (e *PlaylistEngine) DeleteAt(ctx context.Context, playlistID int64, index int) error {
	return e.mutate(ctx, playlistID, func(r entryTx) error {
		n, err := r.entries.Count(ctx, playlistID)
		if err != nil {
			return err
		}
		if index < 0 || index >= n {
			return shared.NewNotFoundError("index", index)
		}
		return deleteAt(ctx, r, playlistID, index, n)
	})
}

// Entries returns the playlist's entries in order.
func (e *PlaylistEngine) Entries(ctx context.Context, playlistID int64) ([]models.PlaylistEntry, error) {
	if _, err := e.Get(ctx, playlistID); err != nil {
		return nil, err
	}
	return repositories.NewPlaylistTrackRepository(e.db).Entries(ctx, playlistID)
}

// Get retrieves a playlist.
func (e *PlaylistEngine) Get(ctx context.Context, playlistID int64) (*models.Playlist, error) {
	return repositories.NewPlaylistRepository(e.db).Get(ctx, playlistID)
}

// Owned retrieves a playlist and checks that username owns it.
func (e *PlaylistEngine) Owned(ctx context.Context, playlistID int64, username string) (*models.Playlist, error) {
	p, err := e.Get(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	if p.Username != username {
		return nil, fmt.Errorf("%w: playlist %d belongs to another user", shared.ErrForbidden, playlistID)
	}
	return p, nil
}

// List returns the playlists of username.
func (e *PlaylistEngine) List(ctx context.Context, username string) ([]*models.Playlist, error) {
	return repositories.NewPlaylistRepository(e.db).ListByUser(ctx, username)
}

// Create stores a new playlist for username with trackIDs as its initial entries.
// Public defaults to true unless the playlist is collaborative.
func (e *PlaylistEngine) Create(ctx context.Context, username string, in models.PlaylistInput, trackIDs []int64) (*models.Playlist, error) {
	if err := shared.Validate(in); err != nil {
		return nil, err
	}

	p := &models.Playlist{Username: username, Name: in.Name, Public: true}
	in.Apply(p)
	if in.Public == nil && p.Collaborative {
		p.Public = false
	}

	err := repositories.WithTx(ctx, e.db, func(tx *sqlx.Tx) error {
		playlists := repositories.NewPlaylistRepository(tx)
		if err := playlists.Create(ctx, p); err != nil {
			return err
		}
		if len(trackIDs) == 0 {
			return nil
		}

		r := entryTx{
			playlists: playlists,
			entries:   repositories.NewPlaylistTrackRepository(tx),
			catalog:   repositories.NewCatalogRepository(tx),
		}
		return appendEntries(ctx, r, p.ID, trackIDs)
	})
	if err != nil {
		return nil, err
	}

	p.TrackCount = len(trackIDs)
	e.logger.Info("playlist created", "id", p.ID, "user", username, "tracks", p.TrackCount)
	return p, nil
}

// Update applies in to the playlist's metadata.
func (e *PlaylistEngine) Update(ctx context.Context, playlistID int64, in models.PlaylistInput) (*models.Playlist, error) {
	if err := shared.Validate(in); err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(playlistID)
	defer unlock()

	playlists := repositories.NewPlaylistRepository(e.db)
	p, err := playlists.Get(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	in.Apply(p)
	if err := playlists.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// DeletePlaylist removes a local playlist with its entries and push history.
// The remote playlist, if any, is left alone.
func (e *PlaylistEngine) DeletePlaylist(ctx context.Context, playlistID int64) error {
	unlock := e.locks.Lock(playlistID)
	defer unlock()

	if err := repositories.NewPlaylistRepository(e.db).Delete(ctx, playlistID); err != nil {
		return err
	}
	e.logger.Info("playlist deleted", "id", playlistID)
	return nil
}

// Export loads a playlist with its full tracks in order.
func (e *PlaylistEngine) Export(ctx context.Context, playlistID int64) (*models.PlaylistExport, error) {
	p, err := e.Get(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	entries, err := repositories.NewPlaylistTrackRepository(e.db).Entries(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	catalog := repositories.NewCatalogRepository(e.db)
	export := &models.PlaylistExport{Playlist: *p, Tracks: make([]models.Track, 0, len(entries))}
	for _, entry := range entries {
		track, err := catalog.GetTrack(ctx, entry.TrackID)
		if err != nil {
			return nil, err
		}
		export.Tracks = append(export.Tracks, *track)
	}
	return export, nil
}
