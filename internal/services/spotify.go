// Spotify Web API endpoints on top of [Client]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Batch limits of the playlist items and audio features endpoints.
const (
	MaxItemsPerRequest    = 100
	MaxFeaturesPerRequest = 100
	MaxPageSize           = 50
)

type followers struct {
	Total int `json:"total"`
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Country     string         `json:"country"`
	Product     string         `json:"product"` // premium, free, etc.
	Followers   followers      `json:"followers"`
	Images      []SpotifyImage `json:"images"`
}

// Image returns the URL of the first profile image, or "".
func (u *SpotifyUser) Image() string {
	if len(u.Images) == 0 {
		return ""
	}
	return u.Images[0].URL
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type externalURLs struct {
	Spotify string `json:"spotify"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Artists      []SpotifyArtist `json:"artists"`
	Album        SpotifyAlbum    `json:"album"`
	DurationMS   int             `json:"duration_ms"`
	Explicit     bool            `json:"explicit"`
	Popularity   int             `json:"popularity"`
	PreviewURL   *string         `json:"preview_url"`
	IsPlayable   *bool           `json:"is_playable"`
	ExternalURLs externalURLs    `json:"external_urls"`
	URI          string          `json:"uri"`
}

// SpotifyArtist represents a Spotify artist. Genres are only present on full artist objects.
type SpotifyArtist struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Genres []string       `json:"genres"`
	Images []SpotifyImage `json:"images"`
	URI    string         `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []SpotifyArtist `json:"artists"`
	ReleaseDate string          `json:"release_date"`
	TotalTracks int             `json:"total_tracks"`
	Images      []SpotifyImage  `json:"images"`
	URI         string          `json:"uri"`
}

// Cover returns the third image (the smallest in the usual 640/300/64 set), falling back to the
// last available one.
func (a SpotifyAlbum) Cover() string {
	switch n := len(a.Images); {
	case n == 0:
		return ""
	case n > 2:
		return a.Images[2].URL
	default:
		return a.Images[n-1].URL
	}
}

// ReleaseYear parses the year prefix of the release date.
func (a SpotifyAlbum) ReleaseYear() (int, bool) {
	if len(a.ReleaseDate) < 4 {
		return 0, false
	}
	year, err := strconv.Atoi(a.ReleaseDate[:4])
	if err != nil {
		return 0, false
	}
	return year, true
}

type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type playlistTracks struct {
	Total int `json:"total"`
}

// SpotifyPlaylist represents a Spotify playlist as returned by the playlist endpoints.
type SpotifyPlaylist struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	Owner         Owner          `json:"owner"`
	Public        bool           `json:"public"`
	Collaborative bool           `json:"collaborative"`
	SnapshotID    string         `json:"snapshot_id"`
	Tracks        playlistTracks `json:"tracks"`
	Images        []SpotifyImage `json:"images"`
	URI           string         `json:"uri"`
}

// Image returns the URL of the first playlist image, or "".
func (p *SpotifyPlaylist) Image() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0].URL
}

// SpotifyTrackPage is a page of track objects (search results, top tracks).
type SpotifyTrackPage struct {
	Items  []SpotifyTrack `json:"items"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
	Next   *string        `json:"next"`
}

// SpotifyPaginatedTracks represents a paginated response of saved tracks.
type SpotifyPaginatedTracks struct {
	Items    []SpotifySavedTrack `json:"items"`
	Total    int                 `json:"total"`
	Limit    int                 `json:"limit"`
	Offset   int                 `json:"offset"`
	Next     *string             `json:"next"`
	Previous *string             `json:"previous"`
}

// Tracks unwraps the saved track items.
func (p *SpotifyPaginatedTracks) Tracks() []SpotifyTrack {
	tracks := make([]SpotifyTrack, 0, len(p.Items))
	for _, item := range p.Items {
		tracks = append(tracks, item.Track)
	}
	return tracks
}

// SpotifySavedTrack represents a track saved in the user's library.
type SpotifySavedTrack struct {
	AddedAt string       `json:"added_at"`
	Track   SpotifyTrack `json:"track"`
}

// SpotifyPaginatedPlaylists represents a paginated response of playlists.
type SpotifyPaginatedPlaylists struct {
	Items    []SpotifyPlaylist `json:"items"`
	Total    int               `json:"total"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
	Next     *string           `json:"next"`
	Previous *string           `json:"previous"`
}

// SpotifyAudioFeatures is the acoustic analysis of a single track.
type SpotifyAudioFeatures struct {
	ID               string  `json:"id"`
	Acousticness     float64 `json:"acousticness"`
	Danceability     float64 `json:"danceability"`
	Energy           float64 `json:"energy"`
	Instrumentalness float64 `json:"instrumentalness"`
	Liveness         float64 `json:"liveness"`
	Loudness         float64 `json:"loudness"`
	Speechiness      float64 `json:"speechiness"`
	Valence          float64 `json:"valence"`
	Tempo            float64 `json:"tempo"`
	Key              int     `json:"key"`
	Mode             int     `json:"mode"`
	TimeSignature    int     `json:"time_signature"`
}

// PlaylistDetails are the editable fields of a remote playlist.
type PlaylistDetails struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	Public        bool   `json:"public"`
	Collaborative bool   `json:"collaborative"`
}

type snapshotResponse struct {
	SnapshotID string `json:"snapshot_id"`
}

type itemsBody struct {
	URIs []string `json:"uris"`
}

// SpotifyService implements [Service] with typed Spotify endpoints.
type SpotifyService struct {
	client *Client
}

var _ Service = (*SpotifyService)(nil)

// NewSpotifyService creates a new Spotify service sending requests through client.
func NewSpotifyService(client *Client) *SpotifyService {
	return &SpotifyService{client: client}
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// Me retrieves the current authenticated user's profile.
func (s *SpotifyService) Me(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.client.Do(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Search runs a track search with a field-filter query such as "artist:Low year:1994".
func (s *SpotifyService) Search(ctx context.Context, query string, limit, offset int) (*SpotifyTrackPage, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "track")
	params.Set("limit", strconv.Itoa(clampLimit(limit)))
	params.Set("offset", strconv.Itoa(max(offset, 0)))

	var response struct {
		Tracks SpotifyTrackPage `json:"tracks"`
	}
	if err := s.client.Do(ctx, http.MethodGet, "/search?"+params.Encode(), nil, &response); err != nil {
		return nil, err
	}
	return &response.Tracks, nil
}

// SavedTracks retrieves the user's saved tracks with pagination.
func (s *SpotifyService) SavedTracks(ctx context.Context, limit, offset int) (*SpotifyPaginatedTracks, error) {
	endpoint := fmt.Sprintf("/me/tracks?limit=%d&offset=%d", clampLimit(limit), max(offset, 0))

	var response SpotifyPaginatedTracks
	if err := s.client.Do(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// TopTracks retrieves the user's top tracks over timeRange (short_term, medium_term or long_term).
func (s *SpotifyService) TopTracks(ctx context.Context, timeRange string, limit, offset int) (*SpotifyTrackPage, error) {
	params := url.Values{}
	params.Set("time_range", timeRange)
	params.Set("limit", strconv.Itoa(clampLimit(limit)))
	params.Set("offset", strconv.Itoa(max(offset, 0)))

	var response SpotifyTrackPage
	if err := s.client.Do(ctx, http.MethodGet, "/me/top/tracks?"+params.Encode(), nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// UserPlaylists retrieves the current user's playlists with pagination.
func (s *SpotifyService) UserPlaylists(ctx context.Context, limit, offset int) (*SpotifyPaginatedPlaylists, error) {
	endpoint := fmt.Sprintf("/me/playlists?limit=%d&offset=%d", clampLimit(limit), max(offset, 0))

	var response SpotifyPaginatedPlaylists
	if err := s.client.Do(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// Playlist retrieves a playlist by ID. fields, when set, restricts the response (e.g. "snapshot_id").
func (s *SpotifyService) Playlist(ctx context.Context, playlistID, fields string) (*SpotifyPlaylist, error) {
	endpoint := "/playlists/" + url.PathEscape(playlistID)
	if fields != "" {
		endpoint += "?fields=" + url.QueryEscape(fields)
	}

	var playlist SpotifyPlaylist
	if err := s.client.Do(ctx, http.MethodGet, endpoint, nil, &playlist); err != nil {
		return nil, err
	}
	return &playlist, nil
}

// CreatePlaylist creates a playlist owned by the remote user userID.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, userID string, details PlaylistDetails) (*SpotifyPlaylist, error) {
	endpoint := "/users/" + url.PathEscape(userID) + "/playlists"

	var playlist SpotifyPlaylist
	if err := s.client.Do(ctx, http.MethodPost, endpoint, details, &playlist); err != nil {
		return nil, err
	}
	return &playlist, nil
}

// UpdateDetails changes the name, description and visibility of a playlist.
func (s *SpotifyService) UpdateDetails(ctx context.Context, playlistID string, details PlaylistDetails) error {
	return s.client.Do(ctx, http.MethodPut, "/playlists/"+url.PathEscape(playlistID), details, nil)
}

// ReplaceItems replaces the full item list of a playlist and returns the final snapshot id.
//
// The first batch of 100 replaces the contents; later batches are appended, so an empty list clears the playlist.
// When a later batch fails the snapshot of the last batch that succeeded is returned with the error.
func (s *SpotifyService) ReplaceItems(ctx context.Context, playlistID string, uris []string) (string, error) {
	endpoint := "/playlists/" + url.PathEscape(playlistID) + "/tracks"
	batches := chunk(uris, MaxItemsPerRequest)

	var snap snapshotResponse
	if err := s.client.Do(ctx, http.MethodPut, endpoint, itemsBody{URIs: nonNil(batches[0])}, &snap); err != nil {
		return "", err
	}

	for _, batch := range batches[1:] {
		last := snap.SnapshotID
		if err := s.client.Do(ctx, http.MethodPost, endpoint, itemsBody{URIs: batch}, &snap); err != nil {
			return last, err
		}
	}
	return snap.SnapshotID, nil
}

// AudioFeatures retrieves audio features for the given track ids. Tracks without an analysis are omitted.
func (s *SpotifyService) AudioFeatures(ctx context.Context, trackIDs []string) ([]SpotifyAudioFeatures, error) {
	var features []SpotifyAudioFeatures

	for _, batch := range chunk(trackIDs, MaxFeaturesPerRequest) {
		if len(batch) == 0 {
			continue
		}

		var response struct {
			AudioFeatures []*SpotifyAudioFeatures `json:"audio_features"`
		}

		endpoint := "/audio-features?ids=" + url.QueryEscape(strings.Join(batch, ","))
		if err := s.client.Do(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
			return nil, err
		}

		for _, f := range response.AudioFeatures {
			if f != nil {
				features = append(features, *f)
			}
		}
	}
	return features, nil
}

// chunk splits items into consecutive batches of at most size. An empty input yields one empty batch.
func chunk[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return [][]T{{}}
	}

	batches := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		batches = append(batches, items[start:end])
	}
	return batches
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

func clampLimit(limit int) int {
	return min(max(limit, 1), MaxPageSize)
}
