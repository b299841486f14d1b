// package services defines interface Service for interacting with the remote music API
package services

import (
	"context"
)

// Service is the remote catalog and playlist API used by the library, sync and browse tasks.
type Service interface {
	// Me retrieves the profile of the user whose credentials are on ctx.
	Me(ctx context.Context) (*SpotifyUser, error)

	// Search runs a track search.
	Search(ctx context.Context, query string, limit, offset int) (*SpotifyTrackPage, error)

	// SavedTracks retrieves the user's liked tracks.
	SavedTracks(ctx context.Context, limit, offset int) (*SpotifyPaginatedTracks, error)

	// TopTracks retrieves the user's most played tracks over a time range.
	TopTracks(ctx context.Context, timeRange string, limit, offset int) (*SpotifyTrackPage, error)

	// UserPlaylists retrieves the user's remote playlists.
	UserPlaylists(ctx context.Context, limit, offset int) (*SpotifyPaginatedPlaylists, error)

	// Playlist retrieves one remote playlist, optionally restricted to fields.
	Playlist(ctx context.Context, playlistID, fields string) (*SpotifyPlaylist, error)

	// CreatePlaylist creates a remote playlist for userID.
	CreatePlaylist(ctx context.Context, userID string, details PlaylistDetails) (*SpotifyPlaylist, error)

	// UpdateDetails changes a remote playlist's metadata.
	UpdateDetails(ctx context.Context, playlistID string, details PlaylistDetails) error

	// ReplaceItems replaces a remote playlist's items and returns the new snapshot id. On a
	// partial failure it returns the snapshot of the last batch applied along with the error.
	ReplaceItems(ctx context.Context, playlistID string, uris []string) (string, error)

	// AudioFeatures retrieves the acoustic analysis of tracks.
	AudioFeatures(ctx context.Context, trackIDs []string) ([]SpotifyAudioFeatures, error)

	// Name returns the name of the service (e.g., "Spotify")
	Name() string
}
