package tasks

import (
	"context"
	"fmt"
	"slices"

	"github.com/desertthunder/tuttitracks/internal/models"
	"github.com/desertthunder/tuttitracks/internal/services"
	"github.com/desertthunder/tuttitracks/internal/shared"
)

// Default page sizes of the browse views.
const (
	DefaultSearchLimit = 15
	DefaultLikedLimit  = 25
	DefaultTopLimit    = 20
	DefaultTimeRange   = "medium_term"
)

// TimeRanges are the accepted values for [Browser.Top].
var TimeRanges = []string{"short_term", "medium_term", "long_term"}

// Browser runs remote searches and listings and caches every returned track in the [Library].
type Browser struct {
	remote      services.Service
	library     *Library
	defaultYear int
}

// NewBrowser creates a [Browser]. defaultYear is used for empty searches; 0 selects [services.DefaultSearchYear].
func NewBrowser(remote services.Service, library *Library, defaultYear int) *Browser {
	return &Browser{remote: remote, library: library, defaultYear: defaultYear}
}

// Search runs q against the remote catalog and returns the cached tracks, de-duplicated.
func (b *Browser) Search(ctx context.Context, q services.SearchQuery, limit, offset int) ([]models.TrackSummary, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if q.DefaultYear == 0 {
		q.DefaultYear = b.defaultYear
	}

	page, err := b.remote.Search(ctx, q.String(), limit, max(offset, 0))
	if err != nil {
		return nil, err
	}
	return b.library.UpsertTracks(ctx, page.Items)
}

// Liked returns the user's saved tracks.
func (b *Browser) Liked(ctx context.Context, limit, offset int) ([]models.TrackSummary, error) {
	if limit <= 0 {
		limit = DefaultLikedLimit
	}

	page, err := b.remote.SavedTracks(ctx, limit, max(offset, 0))
	if err != nil {
		return nil, err
	}
	return b.library.UpsertTracks(ctx, page.Tracks())
}

// Top returns the user's most played tracks over timeRange, which defaults to medium_term.
func (b *Browser) Top(ctx context.Context, timeRange string, limit, offset int) ([]models.TrackSummary, error) {
	if timeRange == "" {
		timeRange = DefaultTimeRange
	}
	if !slices.Contains(TimeRanges, timeRange) {
		return nil, shared.NewValidationError("time_range", fmt.Sprintf("time_range must be one of: %v", TimeRanges))
	}
	if limit <= 0 {
		limit = DefaultTopLimit
	}

	page, err := b.remote.TopTracks(ctx, timeRange, limit, max(offset, 0))
	if err != nil {
		return nil, err
	}
	return b.library.UpsertTracks(ctx, page.Items)
}

// RemotePlaylist is the listing form of a remote playlist.
type RemotePlaylist struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	SnapshotID    string `json:"snapshot_id"`
	TrackCount    int    `json:"track_count"`
	Public        bool   `json:"public"`
	Collaborative bool   `json:"collaborative"`
	Owner         string `json:"owner"`
}

// RemotePlaylists lists the user's playlists on the remote service.
func (b *Browser) RemotePlaylists(ctx context.Context, limit, offset int) ([]RemotePlaylist, error) {
	page, err := b.remote.UserPlaylists(ctx, limit, max(offset, 0))
	if err != nil {
		return nil, err
	}

	out := make([]RemotePlaylist, 0, len(page.Items))
	for _, p := range page.Items {
		owner := p.Owner.DisplayName
		if owner == "" {
			owner = p.Owner.ID
		}
		out = append(out, RemotePlaylist{
			ID:            p.ID,
			Name:          p.Name,
			Description:   p.Description,
			SnapshotID:    p.SnapshotID,
			TrackCount:    p.Tracks.Total,
			Public:        p.Public,
			Collaborative: p.Collaborative,
			Owner:         owner,
		})
	}
	return out, nil
}

// TrackView is a cached track with its audio features rendered for display.
type TrackView struct {
	*models.Track
	Artist   string `json:"artist"`
	Duration string `json:"duration"`
	KeyName  string `json:"key_name,omitempty"`
	ModeName string `json:"mode_name,omitempty"`
}

// Track returns the cached track id with display fields.
func (b *Browser) Track(ctx context.Context, id int64) (*TrackView, error) {
	track, err := b.library.Track(ctx, id)
	if err != nil {
		return nil, err
	}
	return NewTrackView(track), nil
}

// NewTrackView derives the display fields of track.
func NewTrackView(track *models.Track) *TrackView {
	view := &TrackView{
		Track:    track,
		Artist:   track.ArtistNames(),
		Duration: shared.FormatDuration(track.DurationMS),
	}
	if track.Key != nil {
		view.KeyName = shared.KeySignature(*track.Key)
	}
	if track.Mode != nil {
		view.ModeName = shared.ModeName(*track.Mode)
	}
	return view
}
