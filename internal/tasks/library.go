package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/jmoiron/sqlx"

	"github.com/desertthunder/tuttitracks/internal/models"
	"github.com/desertthunder/tuttitracks/internal/repositories"
	"github.com/desertthunder/tuttitracks/internal/services"
	"github.com/desertthunder/tuttitracks/internal/shared"
)

// Library caches remote tracks with their album, artists and genres in the local store.
type Library struct {
	db     *sqlx.DB
	remote services.Service
	logger *log.Logger
}

// NewLibrary creates a [Library]. remote is used for audio feature enrichment and may be nil.
func NewLibrary(db *sqlx.DB, remote services.Service, logger *log.Logger) *Library {
	return &Library{db: db, remote: remote, logger: logger}
}

// UpsertTrack caches t and returns its local id. wasNew is false when the track was already cached,
// in which case nothing is written.
func (l *Library) UpsertTrack(ctx context.Context, t services.SpotifyTrack) (trackID int64, wasNew bool, err error) {
	if t.ID == "" {
		return 0, false, shared.NewValidationError("id", "track has no remote id")
	}

	err = repositories.WithTx(ctx, l.db, func(tx *sqlx.Tx) error {
		catalog := repositories.NewCatalogRepository(tx)

		id, found, err := catalog.FindTrackID(ctx, t.ID)
		if err != nil {
			return err
		}
		if found {
			trackID = id
			return nil
		}

		track := trackFromRemote(t)
		if t.Album.ID != "" {
			albumID, err := catalog.EnsureAlbum(ctx, models.Album{
				SpotifyAlbumID: t.Album.ID,
				Name:           t.Album.Name,
				Image:          t.Album.Cover(),
			})
			if err != nil {
				return err
			}
			track.AlbumID = &albumID
		}

		if err := catalog.InsertTrack(ctx, track); err != nil {
			return err
		}

		for _, a := range t.Artists {
			if a.ID == "" {
				continue
			}

			artistID, err := catalog.EnsureArtist(ctx, models.Artist{SpotifyArtistID: a.ID, Name: a.Name})
			if err != nil {
				return err
			}
			if err := catalog.LinkArtist(ctx, track.ID, artistID); err != nil {
				return err
			}

			for _, name := range a.Genres {
				genreID, err := catalog.EnsureGenre(ctx, name)
				if err != nil {
					return err
				}
				if err := catalog.LinkGenre(ctx, track.ID, genreID); err != nil {
					return err
				}
			}
		}

		trackID, wasNew = track.ID, true
		return nil
	})
	if err == nil {
		return trackID, wasNew, nil
	}

	// A concurrent upsert of the same track wins the unique constraint; report its row.
	if id, found, ferr := repositories.NewCatalogRepository(l.db).FindTrackID(ctx, t.ID); ferr == nil && found {
		return id, false, nil
	}
	return 0, false, fmt.Errorf("failed to cache track %s: %w", t.ID, err)
}

// UpsertTracks caches tracks, de-duplicated by remote id in first-seen order, enriches the new
// ones with audio features, and returns their summaries.
//
// Enrichment failures are logged and do not fail the call.
func (l *Library) UpsertTracks(ctx context.Context, tracks []services.SpotifyTrack) ([]models.TrackSummary, error) {
	seen := make(map[string]bool, len(tracks))
	ids := make([]int64, 0, len(tracks))
	var created []int64

	for _, t := range tracks {
		if t.ID == "" || seen[t.ID] {
			continue
		}
		seen[t.ID] = true

		id, wasNew, err := l.UpsertTrack(ctx, t)
		if err != nil {
			return nil, err
		}

		ids = append(ids, id)
		if wasNew {
			created = append(created, id)
		}
	}

	if len(created) > 0 && l.remote != nil {
		if _, err := l.EnrichAudioFeatures(ctx, created); err != nil {
			l.logger.Warn("audio feature enrichment failed", "tracks", len(created), "err", err)
		}
	}

	return repositories.NewCatalogRepository(l.db).Summaries(ctx, ids)
}

// EnrichAudioFeatures fetches audio features for the cached tracks ids and stores them.
// It returns the number of tracks updated.
func (l *Library) EnrichAudioFeatures(ctx context.Context, ids []int64) (int, error) {
	if l.remote == nil || len(ids) == 0 {
		return 0, nil
	}

	catalog := repositories.NewCatalogRepository(l.db)
	remoteIDs, err := catalog.SpotifyIDs(ctx, ids)
	if err != nil {
		return 0, err
	}

	local := make(map[string]int64, len(remoteIDs))
	query := make([]string, 0, len(remoteIDs))
	for _, id := range ids {
		rid, ok := remoteIDs[id]
		if !ok {
			continue
		}
		if _, dup := local[rid]; !dup {
			query = append(query, rid)
		}
		local[rid] = id
	}

	features, err := l.remote.AudioFeatures(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch audio features: %w", err)
	}

	updated := 0
	for _, f := range features {
		id, ok := local[f.ID]
		if !ok {
			l.logger.Debug("skipping audio features for uncached track", "spotify_track_id", f.ID)
			continue
		}
		if err := catalog.UpdateAudioFeatures(ctx, id, featuresFromRemote(f)); err != nil {
			return updated, err
		}
		updated++
	}
	return updated, nil
}

// Track returns a cached track with its album, artists and genres.
func (l *Library) Track(ctx context.Context, id int64) (*models.Track, error) {
	return repositories.NewCatalogRepository(l.db).GetTrack(ctx, id)
}

func trackFromRemote(t services.SpotifyTrack) *models.Track {
	track := &models.Track{
		SpotifyTrackID: t.ID,
		Name:           t.Name,
		URI:            t.URI,
		SpotifyURL:     t.ExternalURLs.Spotify,
		PreviewURL:     t.PreviewURL,
		IsPlayable:     t.IsPlayable,
		DurationMS:     t.DurationMS,
		Popularity:     t.Popularity,
	}
	if track.URI == "" {
		track.URI = "spotify:track:" + t.ID
	}
	if year, ok := t.Album.ReleaseYear(); ok {
		track.ReleaseYear = &year
	}
	return track
}

func featuresFromRemote(f services.SpotifyAudioFeatures) models.AudioFeatures {
	return models.AudioFeatures{
		Acousticness:     &f.Acousticness,
		Danceability:     &f.Danceability,
		Energy:           &f.Energy,
		Instrumentalness: &f.Instrumentalness,
		Liveness:         &f.Liveness,
		Loudness:         &f.Loudness,
		Speechiness:      &f.Speechiness,
		Valence:          &f.Valence,
		Tempo:            &f.Tempo,
		Key:              &f.Key,
		Mode:             &f.Mode,
		TimeSignature:    &f.TimeSignature,
	}
}
