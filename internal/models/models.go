// package models defines the data model for the playlist manager
package models

import (
	"context"
	"strings"
	"time"

	"github.com/desertthunder/tuttitracks/internal/shared"
)

// Model is implemented by every entity that is written through a [Repository].
type Model interface {
	Validate() error // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the common data access operations for a model keyed by K.
type Repository[T Model, K comparable] interface {
	Create(ctx context.Context, model T) error // Create inserts a new model into the database
	Get(ctx context.Context, key K) (T, error) // Get retrieves a model by its key
	Update(ctx context.Context, model T) error // Update modifies an existing model in the database
}

// User is a local account, optionally linked to a Spotify account.
type User struct {
	Username           string     `db:"username" json:"username" validate:"required,min=3,max=25"`
	Password           string     `db:"password" json:"-" validate:"required"`
	Email              string     `db:"email" json:"email" validate:"required,email,max=50"`
	SpotifyUserID      *string    `db:"spotify_user_id" json:"spotify_user_id,omitempty"`
	SpotifyDisplayName *string    `db:"spotify_display_name" json:"spotify_display_name,omitempty"`
	UserImage          *string    `db:"user_image" json:"user_image,omitempty"`
	Market             string     `db:"market" json:"market"`
	IsAdmin            bool       `db:"is_admin" json:"is_admin"`
	AccessToken        *string    `db:"access_token" json:"-"`
	RefreshToken       *string    `db:"refresh_token" json:"-"`
	TokenExpiry        *time.Time `db:"token_expiry" json:"-"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// Validate checks username, email and password hash presence.
func (u *User) Validate() error {
	return shared.Validate(u)
}

// Linked reports whether the user has completed the Spotify authorization flow.
func (u *User) Linked() bool {
	return u.AccessToken != nil && *u.AccessToken != ""
}

// Album is a cached remote album.
type Album struct {
	ID             int64  `db:"id" json:"id"`
	SpotifyAlbumID string `db:"spotify_album_id" json:"spotify_album_id"`
	Name           string `db:"name" json:"name"`
	Image          string `db:"image" json:"image"`
}

// Artist is a cached remote artist.
type Artist struct {
	ID              int64  `db:"id" json:"id"`
	SpotifyArtistID string `db:"spotify_artist_id" json:"spotify_artist_id"`
	Name            string `db:"name" json:"name"`
}

// Genre is a genre name attached to tracks through their artists.
type Genre struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// AudioFeatures holds the acoustic analysis of a track. Every field is nil until enrichment has run.
type AudioFeatures struct {
	Acousticness     *float64 `db:"acousticness" json:"acousticness"`
	Danceability     *float64 `db:"danceability" json:"danceability"`
	Energy           *float64 `db:"energy" json:"energy"`
	Instrumentalness *float64 `db:"instrumentalness" json:"instrumentalness"`
	Liveness         *float64 `db:"liveness" json:"liveness"`
	Loudness         *float64 `db:"loudness" json:"loudness"`
	Speechiness      *float64 `db:"speechiness" json:"speechiness"`
	Valence          *float64 `db:"valence" json:"valence"`
	Tempo            *float64 `db:"tempo" json:"tempo"`
	Key              *int     `db:"track_key" json:"key"`
	Mode             *int     `db:"mode" json:"mode"`
	TimeSignature    *int     `db:"time_signature" json:"time_signature"`
}

// Enriched reports whether audio features have been stored.
func (f AudioFeatures) Enriched() bool {
	return f.Danceability != nil || f.Energy != nil || f.Tempo != nil
}

// Track is a cached remote track.
type Track struct {
	ID             int64   `db:"id" json:"id"`
	SpotifyTrackID string  `db:"spotify_track_id" json:"spotify_track_id"`
	Name           string  `db:"name" json:"name"`
	URI            string  `db:"uri" json:"uri"`
	SpotifyURL     string  `db:"spotify_url" json:"spotify_url"`
	PreviewURL     *string `db:"preview_url" json:"preview_url,omitempty"`
	IsPlayable     *bool   `db:"is_playable" json:"is_playable,omitempty"`
	DurationMS     int     `db:"duration_ms" json:"duration_ms"`
	Popularity     int     `db:"popularity" json:"popularity"`
	ReleaseYear    *int    `db:"release_year" json:"release_year,omitempty"`
	AlbumID        *int64  `db:"album_id" json:"album_id,omitempty"`

	AudioFeatures `json:"audio_features"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	Album   *Album   `db:"-" json:"album,omitempty"`
	Artists []Artist `db:"-" json:"artists,omitempty"`
	Genres  []string `db:"-" json:"genres,omitempty"`
}

// Validate checks the fields required to insert a track.
func (t *Track) Validate() error {
	if t.SpotifyTrackID == "" {
		return shared.NewValidationError("spotify_track_id", "spotify_track_id is required")
	}
	if t.Name == "" {
		return shared.NewValidationError("name", "name is required")
	}
	return nil
}

// ArtistNames joins the names of the track's artists with ", ".
func (t *Track) ArtistNames() string {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

// TrackSummary is the short form returned by search and browse operations.
type TrackSummary struct {
	ID             int64  `db:"id" json:"id"`
	Name           string `db:"name" json:"name"`
	SpotifyTrackID string `db:"spotify_track_id" json:"spotify_track_id"`
}

// DefaultPlaylistName is used when a playlist is created without a name.
const DefaultPlaylistName = "New Playlist"

// Playlist is a user's local playlist. SpotifyPlaylistID is set once it has been pushed.
type Playlist struct {
	ID                int64     `db:"id" json:"id"`
	Username          string    `db:"username" json:"username" validate:"required"`
	Name              string    `db:"name" json:"name" validate:"required,max=100"`
	Description       string    `db:"description" json:"description" validate:"max=300"`
	Public            bool      `db:"public" json:"public"`
	Collaborative     bool      `db:"collaborative" json:"collaborative"`
	SpotifyPlaylistID *string   `db:"spotify_playlist_id" json:"spotify_playlist_id,omitempty"`
	SnapshotID        *string   `db:"snapshot_id" json:"snapshot_id,omitempty"`
	Image             *string   `db:"image" json:"image,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`

	TrackCount int `db:"track_count" json:"track_count"`
}

// Validate checks field constraints and that the playlist is not both collaborative and public.
func (p *Playlist) Validate() error {
	if err := shared.Validate(p); err != nil {
		return err
	}
	if p.Collaborative && p.Public {
		return shared.NewValidationError("collaborative", "a collaborative playlist cannot be public")
	}
	return nil
}

// Synced reports whether the playlist has a remote counterpart.
func (p *Playlist) Synced() bool {
	return p.SpotifyPlaylistID != nil && *p.SpotifyPlaylistID != ""
}

// RemoteID returns the remote playlist id or "".
func (p *Playlist) RemoteID() string {
	if p.SpotifyPlaylistID == nil {
		return ""
	}
	return *p.SpotifyPlaylistID
}

// Snapshot returns the last known remote snapshot id or "".
func (p *Playlist) Snapshot() string {
	if p.SnapshotID == nil {
		return ""
	}
	return *p.SnapshotID
}

// PlaylistEntry is one position in a playlist joined with its track.
type PlaylistEntry struct {
	ID             int64  `db:"id" json:"entry_id"`
	PlaylistID     int64  `db:"playlist_id" json:"playlist_id"`
	TrackID        int64  `db:"track_id" json:"track_id"`
	Index          int    `db:"idx" json:"index"`
	Name           string `db:"name" json:"name"`
	SpotifyTrackID string `db:"spotify_track_id" json:"spotify_track_id"`
	URI            string `db:"uri" json:"uri"`
	DurationMS     int    `db:"duration_ms" json:"duration_ms"`
}

// PlaylistExport is a playlist with its full tracks in playlist order.
type PlaylistExport struct {
	Playlist Playlist `json:"playlist"`
	Tracks   []Track  `json:"tracks"`
}

// SyncMode distinguishes the first push of a playlist from later ones.
type SyncMode string

const (
	SyncModeCreate SyncMode = "create"
	SyncModeUpdate SyncMode = "update"
)

// SyncStatus is the lifecycle state of a [SyncJob].
type SyncStatus string

const (
	SyncStatusPending   SyncStatus = "pending"
	SyncStatusCompleted SyncStatus = "completed"
	SyncStatusFailed    SyncStatus = "failed"
)

// SyncJob records one push of a playlist to the remote service.
type SyncJob struct {
	ID           int64      `db:"id" json:"id"`
	PlaylistID   int64      `db:"playlist_id" json:"playlist_id"`
	Username     string     `db:"username" json:"username"`
	Mode         SyncMode   `db:"mode" json:"mode" validate:"oneof=create update"`
	Status       SyncStatus `db:"status" json:"status" validate:"oneof=pending completed failed"`
	TracksTotal  int        `db:"tracks_total" json:"tracks_total"`
	TracksPushed int        `db:"tracks_pushed" json:"tracks_pushed"`
	SnapshotID   *string    `db:"snapshot_id" json:"snapshot_id,omitempty"`
	ErrorMessage *string    `db:"error_message" json:"error_message,omitempty"`
	StartedAt    *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt  *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Validate checks mode and status values.
func (j *SyncJob) Validate() error {
	return shared.Validate(j)
}

// Duration returns how long the push took, or zero while it is pending.
func (j *SyncJob) Duration() time.Duration {
	if j.StartedAt == nil || j.CompletedAt == nil {
		return 0
	}
	return j.CompletedAt.Sub(*j.StartedAt)
}

// SignupRequest carries the fields needed to create a local account.
type SignupRequest struct {
	Username string `json:"username" validate:"required,min=3,max=25"`
	Email    string `json:"email" validate:"required,email,max=50"`
	Password string `json:"password" validate:"required,min=6"`
}

// PlaylistInput carries the editable playlist fields.
type PlaylistInput struct {
	Name          string  `json:"name" validate:"max=100"`
	Description   *string `json:"description" validate:"omitempty,max=300"`
	Public        *bool   `json:"public"`
	Collaborative *bool   `json:"collaborative"`
}

// Apply copies the set fields of in onto p. An empty name keeps the current one and a nil
// description keeps the current description.
func (in PlaylistInput) Apply(p *Playlist) {
	if in.Name != "" {
		p.Name = in.Name
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Public != nil {
		p.Public = *in.Public
	}
	if in.Collaborative != nil {
		p.Collaborative = *in.Collaborative
	}
}
