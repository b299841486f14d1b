package repositories

import (
	"context"
	"fmt"

	"github.com/desertthunder/tuttitracks/internal/models"
	"github.com/desertthunder/tuttitracks/internal/shared"
)

const trackColumns = `
	id, spotify_track_id, name, uri, spotify_url, preview_url, is_playable, duration_ms, popularity,
	release_year, album_id, acousticness, danceability, energy, instrumentalness, liveness, loudness,
	speechiness, valence, tempo, track_key, mode, time_signature, created_at, updated_at
`

// CatalogRepository persists cached tracks and the albums, artists and genres they link to.
//
// Catalog rows are keyed on their remote ids; the Ensure* methods are idempotent so concurrent
// caching of the same entity never produces duplicates.
type CatalogRepository struct {
	db Querier
}

// NewCatalogRepository creates a new CatalogRepository with the given database connection
func NewCatalogRepository(db Querier) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// FindTrackID returns the local id of the track with the given remote id.
func (r *CatalogRepository) FindTrackID(ctx context.Context, spotifyID string) (int64, bool, error) {
	var id int64
	err := r.db.GetContext(ctx, &id, r.db.Rebind("SELECT id FROM tracks WHERE spotify_track_id = ?"), spotifyID)
	if isNoRows(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to query track: %w", err)
	}
	return id, true, nil
}

// EnsureAlbum inserts the album if it is not cached yet and returns its local id.
func (r *CatalogRepository) EnsureAlbum(ctx context.Context, album models.Album) (int64, error) {
	insert := `
		INSERT INTO albums (spotify_album_id, name, image) VALUES (?, ?, ?)
		ON CONFLICT (spotify_album_id) DO NOTHING
	`
	if _, err := exec(ctx, r.db, insert, album.SpotifyAlbumID, album.Name, album.Image); err != nil {
		return 0, fmt.Errorf("failed to insert album: %w", err)
	}

	var id int64
	if err := r.db.GetContext(ctx, &id, r.db.Rebind("SELECT id FROM albums WHERE spotify_album_id = ?"), album.SpotifyAlbumID); err != nil {
		return 0, fmt.Errorf("failed to query album: %w", err)
	}
	return id, nil
}

// EnsureArtist inserts the artist if it is not cached yet and returns its local id.
func (r *CatalogRepository) EnsureArtist(ctx context.Context, artist models.Artist) (int64, error) {
	insert := `
		INSERT INTO artists (spotify_artist_id, name) VALUES (?, ?)
		ON CONFLICT (spotify_artist_id) DO NOTHING
	`
	if _, err := exec(ctx, r.db, insert, artist.SpotifyArtistID, artist.Name); err != nil {
		return 0, fmt.Errorf("failed to insert artist: %w", err)
	}

	var id int64
	if err := r.db.GetContext(ctx, &id, r.db.Rebind("SELECT id FROM artists WHERE spotify_artist_id = ?"), artist.SpotifyArtistID); err != nil {
		return 0, fmt.Errorf("failed to query artist: %w", err)
	}
	return id, nil
}

// EnsureGenre inserts the genre name if it is not cached yet and returns its local id.
func (r *CatalogRepository) EnsureGenre(ctx context.Context, name string) (int64, error) {
	if _, err := exec(ctx, r.db, "INSERT INTO genres (name) VALUES (?) ON CONFLICT (name) DO NOTHING", name); err != nil {
		return 0, fmt.Errorf("failed to insert genre: %w", err)
	}

	var id int64
	if err := r.db.GetContext(ctx, &id, r.db.Rebind("SELECT id FROM genres WHERE name = ?"), name); err != nil {
		return 0, fmt.Errorf("failed to query genre: %w", err)
	}
	return id, nil
}

// InsertTrack inserts the scalar fields of track and sets its id and timestamps.
func (r *CatalogRepository) InsertTrack(ctx context.Context, track *models.Track) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	ts := now()
	query := `
		INSERT INTO tracks (
			spotify_track_id, name, uri, spotify_url, preview_url, is_playable,
			duration_ms, popularity, release_year, album_id, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`

	id, err := insertReturningID(ctx, r.db, query,
		track.SpotifyTrackID,
		track.Name,
		track.URI,
		track.SpotifyURL,
		track.PreviewURL,
		track.IsPlayable,
		track.DurationMS,
		track.Popularity,
		track.ReleaseYear,
		track.AlbumID,
		ts,
		ts,
	)
	if err != nil {
		return fmt.Errorf("failed to insert track: %w", err)
	}

	track.ID, track.CreatedAt, track.UpdatedAt = id, ts, ts
	return nil
}

// LinkArtist links a track to an artist. Existing links are left untouched.
func (r *CatalogRepository) LinkArtist(ctx context.Context, trackID, artistID int64) error {
	query := "INSERT INTO track_artists (track_id, artist_id) VALUES (?, ?) ON CONFLICT DO NOTHING"
	if _, err := exec(ctx, r.db, query, trackID, artistID); err != nil {
		return fmt.Errorf("failed to link artist: %w", err)
	}
	return nil
}

// LinkGenre links a track to a genre. Existing links are left untouched.
func (r *CatalogRepository) LinkGenre(ctx context.Context, trackID, genreID int64) error {
	query := "INSERT INTO track_genres (track_id, genre_id) VALUES (?, ?) ON CONFLICT DO NOTHING"
	if _, err := exec(ctx, r.db, query, trackID, genreID); err != nil {
		return fmt.Errorf("failed to link genre: %w", err)
	}
	return nil
}

// UpdateAudioFeatures copies the audio features onto the cached track.
func (r *CatalogRepository) UpdateAudioFeatures(ctx context.Context, trackID int64, f models.AudioFeatures) error {
	query := `
		UPDATE tracks
		SET acousticness = ?, danceability = ?, energy = ?, instrumentalness = ?, liveness = ?,
			loudness = ?, speechiness = ?, valence = ?, tempo = ?, track_key = ?, mode = ?,
			time_signature = ?, updated_at = ?
		WHERE id = ?
	`

	rows, err := exec(ctx, r.db, query,
		f.Acousticness,
		f.Danceability,
		f.Energy,
		f.Instrumentalness,
		f.Liveness,
		f.Loudness,
		f.Speechiness,
		f.Valence,
		f.Tempo,
		f.Key,
		f.Mode,
		f.TimeSignature,
		now(),
		trackID,
	)
	if err != nil {
		return fmt.Errorf("failed to update audio features: %w", err)
	}
	if rows == 0 {
		return shared.NewNotFoundError("track", trackID)
	}
	return nil
}

// SpotifyIDs maps local track ids to remote ids. Unknown ids are absent from the result.
func (r *CatalogRepository) SpotifyIDs(ctx context.Context, ids []int64) (map[int64]string, error) {
	out := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var rows []models.TrackSummary
	if err := selectIn(ctx, r.db, &rows, "SELECT id, name, spotify_track_id FROM tracks WHERE id IN (?)", ids); err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}

	for _, row := range rows {
		out[row.ID] = row.SpotifyTrackID
	}
	return out, nil
}

// Summaries returns the summaries of the given tracks in the order of ids. Unknown ids are skipped.
func (r *CatalogRepository) Summaries(ctx context.Context, ids []int64) ([]models.TrackSummary, error) {
	if len(ids) == 0 {
		return []models.TrackSummary{}, nil
	}

	var rows []models.TrackSummary
	if err := selectIn(ctx, r.db, &rows, "SELECT id, name, spotify_track_id FROM tracks WHERE id IN (?)", ids); err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}

	byID := make(map[int64]models.TrackSummary, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}

	out := make([]models.TrackSummary, 0, len(ids))
	for _, id := range ids {
		if s, ok := byID[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// MissingTracks returns the ids from ids that are not cached.
func (r *CatalogRepository) MissingTracks(ctx context.Context, ids []int64) ([]int64, error) {
	known, err := r.SpotifyIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	var missing []int64
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// GetTrack retrieves a cached track with its album, artists and genres.
func (r *CatalogRepository) GetTrack(ctx context.Context, id int64) (*models.Track, error) {
	var track models.Track
	err := r.db.GetContext(ctx, &track, r.db.Rebind("SELECT "+trackColumns+" FROM tracks WHERE id = ?"), id)
	if isNoRows(err) {
		return nil, shared.NewNotFoundError("track", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query track: %w", err)
	}

	if track.AlbumID != nil {
		var album models.Album
		query := r.db.Rebind("SELECT id, spotify_album_id, name, image FROM albums WHERE id = ?")
		if err := r.db.GetContext(ctx, &album, query, *track.AlbumID); err != nil && !isNoRows(err) {
			return nil, fmt.Errorf("failed to query album: %w", err)
		} else if err == nil {
			track.Album = &album
		}
	}

	artists := `
		SELECT a.id, a.spotify_artist_id, a.name
		FROM artists a
		JOIN track_artists ta ON ta.artist_id = a.id
		WHERE ta.track_id = ?
		ORDER BY a.id
	`
	if err := r.db.SelectContext(ctx, &track.Artists, r.db.Rebind(artists), id); err != nil {
		return nil, fmt.Errorf("failed to query artists: %w", err)
	}

	genres := `
		SELECT g.name
		FROM genres g
		JOIN track_genres tg ON tg.genre_id = g.id
		WHERE tg.track_id = ?
		ORDER BY g.name
	`
	if err := r.db.SelectContext(ctx, &track.Genres, r.db.Rebind(genres), id); err != nil {
		return nil, fmt.Errorf("failed to query genres: %w", err)
	}

	return &track, nil
}

// CountTracks returns the number of cached tracks.
func (r *CatalogRepository) CountTracks(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM tracks"); err != nil {
		return 0, fmt.Errorf("failed to count tracks: %w", err)
	}
	return n, nil
}
