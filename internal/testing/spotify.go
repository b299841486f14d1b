package testing

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
)

// Codes and tokens understood by [FakeSpotify].
const (
	GoodCode       = "good-code"
	ClientID       = "test-client"
	ClientSecret   = "test-secret"
	InitialAccess  = "access-1"
	InitialRefresh = "refresh-1"
	RemoteUserID   = "remote-user"
)

// Recorded is one request received by [FakeSpotify].
type Recorded struct {
	Method string
	Path   string
	Query  string
	Body   []byte
}

// Artist is the artist fixture shape of the remote API.
type Artist struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Genres []string `json:"genres,omitempty"`
}

// Image is the image fixture shape of the remote API.
type Image struct {
	URL string `json:"url"`
}

// Album is the album fixture shape of the remote API.
type Album struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	ReleaseDate string  `json:"release_date"`
	Images      []Image `json:"images"`
}

// Track is the track fixture shape of the remote API.
type Track struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	URI        string   `json:"uri"`
	DurationMS int      `json:"duration_ms"`
	Popularity int      `json:"popularity"`
	Artists    []Artist `json:"artists"`
	Album      Album    `json:"album"`
}

// NewTrack builds a track fixture with one artist and a three-image album released in 1994.
func NewTrack(id, name, artist string) Track {
	return Track{
		ID:         id,
		Name:       name,
		URI:        "spotify:track:" + id,
		DurationMS: 200000,
		Popularity: 50,
		Artists:    []Artist{{ID: "artist-" + artist, Name: artist, Genres: []string{"indie"}}},
		Album: Album{
			ID:          "album-" + id,
			Name:        name + " (Album)",
			ReleaseDate: "1994-03-01",
			Images:      []Image{{URL: "large"}, {URL: "medium"}, {URL: "small"}},
		},
	}
}

// Playlist is the state of a remote playlist held by [FakeSpotify].
type Playlist struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Public        bool     `json:"public"`
	Collaborative bool     `json:"collaborative"`
	SnapshotID    string   `json:"snapshot_id"`
	URIs          []string `json:"-"`
	version       int
}

// FakeSpotify is an in-process stand-in for the accounts service and Web API.
//
// The API accepts only the current access token; [FakeSpotify.Expire] invalidates it so the next
// call returns 401 until the client refreshes.
type FakeSpotify struct {
	*httptest.Server

	mu          sync.Mutex
	access      string
	refreshes   int
	failRefresh bool
	requests    []Recorded
	tracks      []Track
	features    map[string]map[string]any
	playlists   map[string]*Playlist
	order       []string
	failures    map[string]int
}

// NewFakeSpotify starts a fake server that is closed when the test ends.
func NewFakeSpotify(t *testing.T) *FakeSpotify {
	t.Helper()

	f := &FakeSpotify{
		access:    InitialAccess,
		features:  map[string]map[string]any{},
		playlists: map[string]*Playlist{},
		failures:  map[string]int{},
	}

	r := chi.NewRouter()
	r.Post("/api/token", f.token)
	r.Route("/v1", func(r chi.Router) {
		r.Use(f.record, f.authorize)
		r.Get("/me", f.me)
		r.Get("/search", f.search)
		r.Get("/me/tracks", f.savedTracks)
		r.Get("/me/top/tracks", f.topTracks)
		r.Get("/me/playlists", f.userPlaylists)
		r.Post("/users/{user}/playlists", f.createPlaylist)
		r.Get("/playlists/{id}", f.playlist)
		r.Put("/playlists/{id}", f.updatePlaylist)
		r.Put("/playlists/{id}/tracks", f.replaceItems)
		r.Post("/playlists/{id}/tracks", f.appendItems)
		r.Get("/audio-features", f.audioFeatures)
	})

	f.Server = httptest.NewServer(r)
	t.Cleanup(f.Close)
	return f
}

// APIURL is the base URL of the fake Web API.
func (f *FakeSpotify) APIURL() string { return f.URL + "/v1" }

// TokenURL is the URL of the fake token endpoint.
func (f *FakeSpotify) TokenURL() string { return f.URL + "/api/token" }

// AuthURL is the URL of the fake authorization page.
func (f *FakeSpotify) AuthURL() string { return f.URL + "/authorize" }

// AddTracks adds tracks to the catalog returned by search, liked and top endpoints.
func (f *FakeSpotify) AddTracks(tracks ...Track) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracks = append(f.tracks, tracks...)
}

// SetFeatures registers audio features for a track id.
func (f *FakeSpotify) SetFeatures(id string, features map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	features["id"] = id
	f.features[id] = features
}

// Expire invalidates the current access token.
func (f *FakeSpotify) Expire() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.access = "expired-" + f.access
}

// FailRefresh makes the token endpoint reject refresh grants.
func (f *FakeSpotify) FailRefresh() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failRefresh = true
}

// FailNext makes the next n requests matching "METHOD /path" return 500.
func (f *FakeSpotify) FailNext(route string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[route] = n
}

// Refreshes returns how many refresh grants were served.
func (f *FakeSpotify) Refreshes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes
}

// Requests returns the API requests received so far.
func (f *FakeSpotify) Requests() []Recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Recorded(nil), f.requests...)
}

// RequestsTo returns the API requests for method whose path has the given prefix.
func (f *FakeSpotify) RequestsTo(method, prefix string) []Recorded {
	var out []Recorded
	for _, r := range f.Requests() {
		if r.Method == method && strings.HasPrefix(r.Path, prefix) {
			out = append(out, r)
		}
	}
	return out
}

// Playlist returns a copy of the remote playlist state.
func (f *FakeSpotify) Playlist(id string) (Playlist, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.playlists[id]
	if !ok {
		return Playlist{}, false
	}
	cp := *p
	cp.URIs = append([]string(nil), p.URIs...)
	return cp, true
}

// ChangeRemotely bumps a playlist's snapshot as if it had been edited in another client.
func (f *FakeSpotify) ChangeRemotely(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.playlists[id]; ok {
		p.bump()
	}
}

func (p *Playlist) bump() {
	p.version++
	p.SnapshotID = fmt.Sprintf("%s-snap-%d", p.ID, p.version)
}

func (f *FakeSpotify) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(strings.NewReader(string(body)))

		f.mu.Lock()
		f.requests = append(f.requests, Recorded{Method: r.Method, Path: strings.TrimPrefix(r.URL.Path, "/v1"), Query: r.URL.RawQuery, Body: body})
		route := r.Method + " " + strings.TrimPrefix(r.URL.Path, "/v1")
		fail := f.failures[route] > 0
		if fail {
			f.failures[route]--
		}
		f.mu.Unlock()

		if fail {
			writeError(w, http.StatusInternalServerError, "Server error")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *FakeSpotify) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		valid := r.Header.Get("Authorization") == "Bearer "+f.access
		f.mu.Unlock()

		if !valid {
			writeError(w, http.StatusUnauthorized, "The access token expired")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *FakeSpotify) token(w http.ResponseWriter, r *http.Request) {
	user, pass, ok := r.BasicAuth()
	if !ok || user != ClientID || pass != ClientSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client", "error_description": "Invalid client"})
		return
	}

	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		if r.PostForm.Get("code") != GoodCode {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": "Invalid authorization code"})
			return
		}
		f.access = InitialAccess
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  InitialAccess,
			"refresh_token": InitialRefresh,
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	case "refresh_token":
		if f.failRefresh || r.PostForm.Get("refresh_token") == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": "Refresh token revoked"})
			return
		}
		f.refreshes++
		f.access = "access-" + strconv.Itoa(f.refreshes+1)
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": f.access,
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
	}
}

func (f *FakeSpotify) me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"id":           RemoteUserID,
		"display_name": "Remote User",
		"country":      "SE",
		"images":       []Image{{URL: "avatar"}},
	})
}

func (f *FakeSpotify) page(r *http.Request) []Track {
	f.mu.Lock()
	defer f.mu.Unlock()

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 {
		limit = 20
	}
	if offset >= len(f.tracks) {
		return []Track{}
	}
	end := min(offset+limit, len(f.tracks))
	return append([]Track(nil), f.tracks[offset:end]...)
}

func (f *FakeSpotify) search(w http.ResponseWriter, r *http.Request) {
	items := f.page(r)
	writeJSON(w, http.StatusOK, map[string]any{"tracks": map[string]any{"items": items, "total": len(items)}})
}

func (f *FakeSpotify) savedTracks(w http.ResponseWriter, r *http.Request) {
	items := []map[string]any{}
	for _, t := range f.page(r) {
		items = append(items, map[string]any{"added_at": "2024-01-01T00:00:00Z", "track": t})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

func (f *FakeSpotify) topTracks(w http.ResponseWriter, r *http.Request) {
	items := f.page(r)
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

func (f *FakeSpotify) userPlaylists(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	items := []map[string]any{}
	for _, id := range f.order {
		items = append(items, f.playlistJSON(f.playlists[id]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

func (f *FakeSpotify) playlistJSON(p *Playlist) map[string]any {
	return map[string]any{
		"id":            p.ID,
		"name":          p.Name,
		"description":   p.Description,
		"public":        p.Public,
		"collaborative": p.Collaborative,
		"snapshot_id":   p.SnapshotID,
		"owner":         map[string]string{"id": RemoteUserID, "display_name": "Remote User"},
		"tracks":        map[string]int{"total": len(p.URIs)},
		"images":        []Image{{URL: "mosaic-" + p.ID}},
	}
}

func (f *FakeSpotify) createPlaylist(w http.ResponseWriter, r *http.Request) {
	var p Playlist
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if p.Public && p.Collaborative {
		writeError(w, http.StatusBadRequest, "Collaborative playlists cannot be public")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	p.ID = fmt.Sprintf("pl-%d", len(f.playlists)+1)
	p.bump()
	f.playlists[p.ID] = &p
	f.order = append(f.order, p.ID)
	writeJSON(w, http.StatusCreated, f.playlistJSON(&p))
}

func (f *FakeSpotify) withPlaylist(w http.ResponseWriter, r *http.Request, fn func(p *Playlist)) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.playlists[chi.URLParam(r, "id")]
	if !ok {
		writeError(w, http.StatusNotFound, "Resource not found")
		return
	}
	fn(p)
}

func (f *FakeSpotify) playlist(w http.ResponseWriter, r *http.Request) {
	f.withPlaylist(w, r, func(p *Playlist) {
		if r.URL.Query().Get("fields") == "snapshot_id" {
			writeJSON(w, http.StatusOK, map[string]string{"snapshot_id": p.SnapshotID})
			return
		}
		writeJSON(w, http.StatusOK, f.playlistJSON(p))
	})
}

func (f *FakeSpotify) updatePlaylist(w http.ResponseWriter, r *http.Request) {
	var details Playlist
	if err := json.NewDecoder(r.Body).Decode(&details); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	f.withPlaylist(w, r, func(p *Playlist) {
		p.Name, p.Description = details.Name, details.Description
		p.Public, p.Collaborative = details.Public, details.Collaborative
		w.WriteHeader(http.StatusOK)
	})
}

type itemsBody struct {
	URIs []string `json:"uris"`
}

func decodeItems(w http.ResponseWriter, r *http.Request) (itemsBody, bool) {
	var body itemsBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return body, false
	}
	if len(body.URIs) > 100 {
		writeError(w, http.StatusBadRequest, "Too many items")
		return body, false
	}
	return body, true
}

func (f *FakeSpotify) replaceItems(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeItems(w, r)
	if !ok {
		return
	}
	f.withPlaylist(w, r, func(p *Playlist) {
		p.URIs = append([]string{}, body.URIs...)
		p.bump()
		writeJSON(w, http.StatusOK, map[string]string{"snapshot_id": p.SnapshotID})
	})
}

func (f *FakeSpotify) appendItems(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeItems(w, r)
	if !ok {
		return
	}
	f.withPlaylist(w, r, func(p *Playlist) {
		p.URIs = append(p.URIs, body.URIs...)
		p.bump()
		writeJSON(w, http.StatusCreated, map[string]string{"snapshot_id": p.SnapshotID})
	})
}

func (f *FakeSpotify) audioFeatures(w http.ResponseWriter, r *http.Request) {
	ids := strings.Split(r.URL.Query().Get("ids"), ",")
	if len(ids) > 100 {
		writeError(w, http.StatusBadRequest, "Too many ids")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]any, 0, len(ids))
	for _, id := range ids {
		if features, ok := f.features[id]; ok {
			out = append(out, features)
		} else {
			out = append(out, nil)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"audio_features": out})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": map[string]any{"status": status, "message": message}})
}
