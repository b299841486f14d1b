package server

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/desertthunder/tuttitracks/internal/models"
	"github.com/desertthunder/tuttitracks/internal/services"
	"github.com/desertthunder/tuttitracks/internal/shared"
	"github.com/desertthunder/tuttitracks/internal/tasks"
	tt "github.com/desertthunder/tuttitracks/internal/testing"
)

const testSecret = "test-session-secret"

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := shared.NewDatabase(shared.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if _, err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

type fixture struct {
	srv      *Server
	fake     *tt.FakeSpotify
	accounts *tasks.Accounts
	engine   *tasks.PlaylistEngine
	library  *tasks.Library
}

func newFixture(t *testing.T, conf shared.ServerConfig) *fixture {
	t.Helper()

	if conf.SessionSecret == "" {
		conf.SessionSecret = testSecret
	}

	db := setupTestDB(t)
	fake := tt.NewFakeSpotify(t)
	tokens := services.NewTokenManager(
		shared.SpotifyConfig{ClientID: tt.ClientID, ClientSecret: tt.ClientSecret, RedirectURI: "http://localhost:3000/callback"},
		shared.RemoteConfig{APIURL: fake.APIURL(), AuthURL: fake.AuthURL(), TokenURL: fake.TokenURL()},
		nil,
	)
	remote := services.NewSpotifyService(services.NewClient(tokens, services.ClientOpts{BaseURL: fake.APIURL()}))

	logger := log.New(io.Discard)
	engine := tasks.NewPlaylistEngine(db, logger)
	library := tasks.NewLibrary(db, remote, logger)
	accounts := tasks.NewAccounts(db, tokens, remote, logger)

	srv, err := New(Deps{
		Config:   conf,
		Accounts: accounts,
		Engine:   engine,
		Syncer:   tasks.NewSyncer(db, remote, engine, logger),
		Browser:  tasks.NewBrowser(remote, library, 0),
		Auth:     tokens,
		Logger:   logger,
	})
	require.NoError(t, err)

	return &fixture{srv: srv, fake: fake, accounts: accounts, engine: engine, library: library}
}

// signup creates a user and returns its session cookie. Linked users complete the authorization flow.
func (f *fixture) signup(t *testing.T, username string, linked bool) *http.Cookie {
	t.Helper()

	ctx := context.Background()
	_, err := f.accounts.Signup(ctx, models.SignupRequest{Username: username, Email: username + "@example.com", Password: "hunter22"})
	require.NoError(t, err)
	if linked {
		_, err = f.accounts.LinkSpotify(ctx, username, tt.GoodCode)
		require.NoError(t, err)
	}

	token, err := f.srv.sessions.Token(username)
	require.NoError(t, err)
	return &http.Cookie{Name: SessionCookie, Value: token}
}

// cacheTracks stores one track per remote id and returns the local ids in order.
func (f *fixture) cacheTracks(t *testing.T, remoteIDs ...string) []int64 {
	t.Helper()

	ids := make([]int64, 0, len(remoteIDs))
	for _, rid := range remoteIDs {
		id, _, err := f.library.UpsertTrack(context.Background(), services.SpotifyTrack{
			ID:         rid,
			Name:       "Song " + rid,
			DurationMS: 180000,
			Artists:    []services.SpotifyArtist{{ID: "artist-" + rid, Name: "Artist " + rid}},
			Album:      services.SpotifyAlbum{ID: "album-" + rid, Name: "Album " + rid},
		})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

// do sends a request through the server. body is encoded as JSON unless nil.
func (f *fixture) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

// decodeBody decodes a JSON response into a generic map.
func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// entryOrder returns the spotify track ids of a "tracks" response in order.
func entryOrder(t *testing.T, rec *httptest.ResponseRecorder) []string {
	t.Helper()

	var body struct {
		Tracks []models.PlaylistEntry `json:"tracks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())

	out := make([]string, 0, len(body.Tracks))
	for i, e := range body.Tracks {
		require.Equal(t, i, e.Index)
		out = append(out, e.SpotifyTrackID)
	}
	return out
}

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
