package tasks

import (
	"context"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/desertthunder/tuttitracks/internal/models"
	"github.com/desertthunder/tuttitracks/internal/repositories"
	"github.com/desertthunder/tuttitracks/internal/services"
	"github.com/desertthunder/tuttitracks/internal/shared"
	tt "github.com/desertthunder/tuttitracks/internal/testing"
)

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

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

// fixture wires every task component to an in-memory database and a fake remote service.
type fixture struct {
	db       *sqlx.DB
	fake     *tt.FakeSpotify
	tokens   *services.TokenManager
	remote   services.Service
	ctx      context.Context
	engine   *PlaylistEngine
	library  *Library
	syncer   *Syncer
	browser  *Browser
	accounts *Accounts
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := setupTestDB(t)
	fake := tt.NewFakeSpotify(t)
	tokens := services.NewTokenManager(
		shared.SpotifyConfig{ClientID: tt.ClientID, ClientSecret: tt.ClientSecret, RedirectURI: "http://localhost:3000/callback"},
		shared.RemoteConfig{APIURL: fake.APIURL(), AuthURL: fake.AuthURL(), TokenURL: fake.TokenURL()},
		nil,
	)
	remote := services.NewSpotifyService(services.NewClient(tokens, services.ClientOpts{BaseURL: fake.APIURL()}))

	logger := testLogger()
	engine := NewPlaylistEngine(db, logger)
	library := NewLibrary(db, remote, logger)

	creds := services.NewCredentials("alice", &oauth2.Token{AccessToken: tt.InitialAccess, RefreshToken: tt.InitialRefresh}, nil)

	return &fixture{
		db:       db,
		fake:     fake,
		tokens:   tokens,
		remote:   remote,
		ctx:      services.WithCredentials(context.Background(), creds),
		engine:   engine,
		library:  library,
		syncer:   NewSyncer(db, remote, engine, logger),
		browser:  NewBrowser(remote, library, 0),
		accounts: NewAccounts(db, tokens, remote, logger),
	}
}

// createUser stores a user; linked users get a remote profile.
func (f *fixture) createUser(t *testing.T, username string, linked bool) *models.User {
	t.Helper()

	users := repositories.NewUserRepository(f.db)
	user := &models.User{Username: username, Password: "hash", Email: username + "@example.com"}
	require.NoError(t, users.Create(context.Background(), user))

	if linked {
		require.NoError(t, users.LinkProfile(context.Background(), username, tt.RemoteUserID, "Remote User", "", "SE"))
	}

	user, err := users.Get(context.Background(), username)
	require.NoError(t, err)
	return user
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

// createPlaylist stores a playlist for username with the given tracks.
func (f *fixture) createPlaylist(t *testing.T, username, name string, trackIDs []int64) *models.Playlist {
	t.Helper()

	p, err := f.engine.Create(context.Background(), username, models.PlaylistInput{Name: name}, trackIDs)
	require.NoError(t, err)
	return p
}

// order returns the remote track ids of a playlist's entries in index order.
func (f *fixture) order(t *testing.T, playlistID int64) []string {
	t.Helper()

	entries, err := f.engine.Entries(context.Background(), playlistID)
	require.NoError(t, err)

	out := make([]string, 0, len(entries))
	for i, e := range entries {
		require.Equal(t, i, e.Index, "entry indices must be contiguous")
		out = append(out, e.SpotifyTrackID)
	}
	return out
}
