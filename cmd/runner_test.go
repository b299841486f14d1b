package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/desertthunder/tuttitracks/internal/models"
	"github.com/desertthunder/tuttitracks/internal/services"
	"github.com/desertthunder/tuttitracks/internal/shared"
	"github.com/desertthunder/tuttitracks/internal/tasks"
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

type cliFixture struct {
	runner *Runner
	out    *bytes.Buffer
	fake   *tt.FakeSpotify
}

// newCLIFixture returns a runner wired to an in-memory database and a fake Spotify.
func newCLIFixture(t *testing.T) *cliFixture {
	t.Helper()

	fake := tt.NewFakeSpotify(t)
	conf := shared.DefaultConfig()
	conf.Credentials.Spotify.ClientID = tt.ClientID
	conf.Credentials.Spotify.ClientSecret = tt.ClientSecret
	conf.Remote.APIURL = fake.APIURL()
	conf.Remote.AuthURL = fake.AuthURL()
	conf.Remote.TokenURL = fake.TokenURL()
	conf.Remote.RequestsPerSecond = 100
	conf.Log.Level = "error"

	out := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Config: conf,
		DB:     setupTestDB(t),
		Logger: log.New(io.Discard),
		Output: out,
	})
	return &cliFixture{runner: runner, out: out, fake: fake}
}

// run executes the command line args and returns its error. Output is reset before each run.
func (f *cliFixture) run(args ...string) error {
	f.out.Reset()
	return newApp(f.runner).Run(context.Background(), append([]string{"tuttitracks"}, args...))
}

// mustRun executes args and fails the test on error.
func (f *cliFixture) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	require.NoError(t, f.run(args...), "tuttitracks %s", strings.Join(args, " "))
	return f.out.String()
}

// user creates an account and links it to the fake remote.
func (f *cliFixture) user(t *testing.T, username string) {
	t.Helper()

	f.mustRun(t, "users", "create", "--username", username, "--email", username+"@example.com", "--password", "hunter22")
	c, err := f.runner.build()
	require.NoError(t, err)
	_, err = c.accounts.LinkSpotify(context.Background(), username, tt.GoodCode)
	require.NoError(t, err)
}

// searchIDs caches the fake catalog through the search command and returns the local track ids.
func (f *cliFixture) searchIDs(t *testing.T, username string) []string {
	t.Helper()

	var tracks []models.TrackSummary
	require.NoError(t, json.Unmarshal([]byte(f.mustRun(t, "search", "--user", username, "--artist", "Low", "--json")), &tracks))

	ids := make([]string, 0, len(tracks))
	for _, track := range tracks {
		ids = append(ids, strconv.FormatInt(track.ID, 10))
	}
	return ids
}

func (f *cliFixture) entryNames(t *testing.T, playlistID string) []string {
	t.Helper()

	var shown struct {
		Playlist models.Playlist        `json:"playlist"`
		Tracks   []models.PlaylistEntry `json:"tracks"`
	}
	require.NoError(t, json.Unmarshal([]byte(f.mustRun(t, "playlists", "show", "--id", playlistID, "--json")), &shown))

	names := make([]string, 0, len(shown.Tracks))
	for i, e := range shown.Tracks {
		require.Equal(t, i, e.Index)
		names = append(names, e.Name)
	}
	return names
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				ConfigPath: "custom.toml",
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.configPath != "custom.toml" {
				t.Errorf("expected configPath 'custom.toml', got %q", runner.configPath)
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
		})

		t.Run("with nil options uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to stdout")
			}
			if runner.httpClient != nil {
				t.Error("expected no shared http client")
			}
			if runner.config != nil {
				t.Error("expected config to be loaded lazily")
			}
		})

		t.Run("token refresh is bounded by the remote timeout", func(t *testing.T) {
			f := newCLIFixture(t)

			release := make(chan struct{})
			slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-release:
				}
			}))
			t.Cleanup(slow.Close)
			t.Cleanup(func() { close(release) })

			f.runner.config.Remote.TokenURL = slow.URL
			f.runner.config.Remote.TimeoutSeconds = 1
			c, err := f.runner.build()
			require.NoError(t, err)

			f.fake.Expire()
			creds := services.NewCredentials("alice", &oauth2.Token{AccessToken: tt.InitialAccess, RefreshToken: tt.InitialRefresh}, nil)

			start := time.Now()
			_, err = c.remote.Me(services.WithCredentials(context.Background(), creds))
			require.Error(t, err)
			assert.Less(t, time.Since(start), 5*time.Second)
		})

		t.Run("injected database is not closed", func(t *testing.T) {
			db := setupTestDB(t)
			runner := NewRunner(RunnerOpts{DB: db})

			if err := runner.after(context.Background(), nil); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if err := db.Ping(); err != nil {
				t.Errorf("expected database to stay open, got %v", err)
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			err := runner.writeJSON(map[string]string{"key": "value"}, true)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if result := output.String(); result != expected {
				t.Errorf("expected %q, got %q", expected, result)
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil {
				t.Fatal("expected error for non-serializable data")
			}
			if !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tt.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tt.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil {
				t.Fatal("expected error writing newline")
			}
			if !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if result := output.String(); result != "hello world" {
				t.Errorf("expected 'hello world', got %q", result)
			}
		})

		t.Run("writePlainln surrounds text with newlines", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlainln("Next steps:"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if result := output.String(); result != "\nNext steps:\n" {
				t.Errorf("unexpected output %q", result)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tt.FWriter{}})

			err := runner.writePlain("test")
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		names := map[string]bool{}
		for _, cmd := range commands {
			names[cmd.Name] = true
		}
		for _, want := range []string{"setup", "serve", "users", "auth", "search", "liked", "top", "remote", "tracks", "playlists", "tui"} {
			if !names[want] {
				t.Errorf("expected %s command to be registered", want)
			}
		}
	})

	t.Run("before loads config named by flag", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.toml")
		content := "[log]\nlevel = \"warn\"\n\n[search]\ndefault_year = 1999\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		runner := NewRunner(RunnerOpts{Logger: log.New(io.Discard), Output: &bytes.Buffer{}})
		err := newApp(runner).Run(context.Background(), []string{"tuttitracks", "--config", path, "setup", "config"})
		require.NoError(t, err)

		require.NotNil(t, runner.config)
		assert.Equal(t, path, runner.configPath)
		assert.Equal(t, 1999, runner.config.Search.DefaultYear)
		assert.Equal(t, log.WarnLevel, runner.logger.GetLevel())
	})
}

func TestCommands(t *testing.T) {
	t.Run("setup", func(t *testing.T) {
		t.Run("database reports schema version", func(t *testing.T) {
			f := newCLIFixture(t)
			assert.Contains(t, f.mustRun(t, "setup", "database"), "Database ready at schema version")
		})

		t.Run("config writes template once", func(t *testing.T) {
			f := newCLIFixture(t)
			path := filepath.Join(t.TempDir(), "nested", "config.toml")

			assert.Contains(t, f.mustRun(t, "setup", "config", "--config", path), "Config written to")
			tt.AssertFileExists(t, path)
			assert.Contains(t, tt.MustReadFile(t, path), "[credentials.spotify]")

			assert.Contains(t, f.mustRun(t, "setup", "config", "--config", path), "already exists")
		})

		t.Run("config saves client credentials", func(t *testing.T) {
			f := newCLIFixture(t)
			path := filepath.Join(t.TempDir(), "config.toml")

			f.mustRun(t, "setup", "config", "--config", path, "--client-id", "abc", "--client-secret", "xyz")

			loaded, err := shared.LoadConfig(path)
			require.NoError(t, err)
			assert.Equal(t, "abc", loaded.Credentials.Spotify.ClientID)
			assert.Equal(t, "xyz", loaded.Credentials.Spotify.ClientSecret)
		})
	})

	t.Run("users", func(t *testing.T) {
		f := newCLIFixture(t)

		out := f.mustRun(t, "users", "create", "--username", "alice", "--email", "alice@example.com", "--password", "hunter22")
		assert.Contains(t, out, "Created user alice")

		err := f.run("users", "create", "--username", "alice", "--email", "other@example.com", "--password", "hunter22")
		assert.Error(t, err)

		err = f.run("users", "create", "--username", "al", "--email", "bad", "--password", "x")
		var validation *shared.ValidationError
		assert.ErrorAs(t, err, &validation)
		assert.Equal(t, exitUsage, exitCode(err))

		var shown struct {
			User   models.User `json:"user"`
			Linked bool        `json:"linked"`
		}
		require.NoError(t, json.Unmarshal([]byte(f.mustRun(t, "users", "show", "--user", "alice", "--json")), &shown))
		assert.Equal(t, "alice", shown.User.Username)
		assert.False(t, shown.Linked)

		assert.Contains(t, f.mustRun(t, "users", "show", "--user", "alice"), "Spotify: not linked")

		err = f.run("users", "show", "--user", "nobody")
		assert.ErrorIs(t, err, shared.ErrUserNotFound)
		assert.Equal(t, exitNotFound, exitCode(err))
	})

	t.Run("browse", func(t *testing.T) {
		f := newCLIFixture(t)
		f.fake.AddTracks(tt.NewTrack("t1", "Words", "Low"), tt.NewTrack("t2", "Lazy", "Low"))

		f.mustRun(t, "users", "create", "--username", "bob", "--email", "bob@example.com", "--password", "hunter22")
		err := f.run("search", "--user", "bob", "--artist", "Low")
		assert.ErrorIs(t, err, shared.ErrNotLinked)
		assert.Equal(t, exitAuth, exitCode(err))

		f.user(t, "carol")

		out := f.mustRun(t, "search", "--user", "carol", "--artist", "Low", "--year", "1994")
		assert.Contains(t, out, "Words")
		assert.Contains(t, out, "Lazy")
		searches := f.fake.RequestsTo(http.MethodGet, "/search")
		require.Len(t, searches, 1)
		q, err := url.ParseQuery(searches[0].Query)
		require.NoError(t, err)
		assert.Equal(t, "artist:Low year:1994", q.Get("q"))

		ids := f.searchIDs(t, "carol")
		require.Len(t, ids, 2)

		assert.Contains(t, f.mustRun(t, "liked", "--user", "carol"), "Liked tracks")
		assert.Contains(t, f.mustRun(t, "top", "--user", "carol", "--time-range", "short_term"), "Top tracks (short_term)")

		err = f.run("top", "--user", "carol", "--time-range", "forever")
		assert.Equal(t, exitUsage, exitCode(err))

		out = f.mustRun(t, "tracks", "show", "--id", ids[0])
		assert.Contains(t, out, "Words")
		assert.Contains(t, out, "Artist:     Low")

		err = f.run("tracks", "show", "--id", "999")
		assert.Equal(t, exitNotFound, exitCode(err))

		assert.Error(t, f.run("search", "--artist", "Low"), "--user is required")
	})

	t.Run("playlists", func(t *testing.T) {
		f := newCLIFixture(t)
		f.fake.AddTracks(tt.NewTrack("a", "Alpha", "Low"), tt.NewTrack("b", "Bravo", "Low"), tt.NewTrack("c", "Charlie", "Low"))
		f.user(t, "dana")
		ids := f.searchIDs(t, "dana")
		require.Len(t, ids, 3)

		out := f.mustRun(t, "playlists", "create", "--user", "dana", "--name", "Road Trip", "--track", ids[0], "--track", ids[1])
		assert.Contains(t, out, "Created playlist 1: Road Trip (2 tracks)")

		f.mustRun(t, "playlists", "add", "--id", "1", "--track", ids[2])
		assert.Equal(t, []string{"Alpha", "Bravo", "Charlie"}, f.entryNames(t, "1"))

		f.mustRun(t, "playlists", "add", "--id", "1", "--track", ids[2], "--track", ids[1], "--index", "0")
		assert.Equal(t, []string{"Charlie", "Bravo", "Alpha", "Bravo", "Charlie"}, f.entryNames(t, "1"))

		f.mustRun(t, "playlists", "move", "--id", "1", "--from", "0", "--to", "4")
		assert.Equal(t, []string{"Bravo", "Alpha", "Bravo", "Charlie", "Charlie"}, f.entryNames(t, "1"))

		f.mustRun(t, "playlists", "remove", "--id", "1", "--track", ids[1])
		assert.Equal(t, []string{"Alpha", "Bravo", "Charlie", "Charlie"}, f.entryNames(t, "1"))

		f.mustRun(t, "playlists", "remove", "--id", "1", "--index", "3")
		assert.Equal(t, []string{"Alpha", "Bravo", "Charlie"}, f.entryNames(t, "1"))

		err := f.run("playlists", "move", "--id", "1", "--from", "0", "--to", "9")
		assert.ErrorIs(t, err, shared.ErrIndexOutOfRange)
		assert.Equal(t, exitNotFound, exitCode(err))

		assert.ErrorIs(t, f.run("playlists", "remove", "--id", "1"), shared.ErrMissingArgument)

		out = f.mustRun(t, "playlists", "list", "--user", "dana")
		assert.Contains(t, out, "Road Trip")
		assert.Contains(t, out, "Tracks: 3")

		out = f.mustRun(t, "playlists", "show", "--id", "1")
		assert.Contains(t, out, "Road Trip")
		assert.Contains(t, out, "3 tracks")

		t.Run("push creates then updates", func(t *testing.T) {
			out := f.mustRun(t, "playlists", "push", "--id", "1")
			assert.Contains(t, out, "Created Road Trip on Spotify (3 tracks)")

			remote, ok := f.fake.Playlist("pl-1")
			require.True(t, ok)
			assert.Equal(t, []string{"spotify:track:a", "spotify:track:b", "spotify:track:c"}, remote.URIs)

			f.mustRun(t, "playlists", "move", "--id", "1", "--from", "2", "--to", "0")
			out = f.mustRun(t, "playlists", "push", "--id", "1")
			assert.Contains(t, out, "Updated Road Trip")

			remote, _ = f.fake.Playlist("pl-1")
			assert.Equal(t, []string{"spotify:track:c", "spotify:track:a", "spotify:track:b"}, remote.URIs)
		})

		t.Run("push conflict needs force", func(t *testing.T) {
			f.fake.ChangeRemotely("pl-1")

			err := f.run("playlists", "push", "--id", "1")
			assert.True(t, tasks.IsConflict(err))
			assert.Equal(t, exitConflict, exitCode(err))
			assert.Contains(t, f.out.String(), "--force")

			f.mustRun(t, "playlists", "push", "--id", "1", "--force")
		})

		t.Run("history", func(t *testing.T) {
			out := f.mustRun(t, "playlists", "history", "--id", "1")
			assert.Contains(t, out, "create")
			assert.Contains(t, out, "update")
			assert.Contains(t, out, "failed")

			var jobs []models.SyncJob
			require.NoError(t, json.Unmarshal([]byte(f.mustRun(t, "playlists", "history", "--id", "1", "--json")), &jobs))
			assert.Len(t, jobs, 4)
		})

		t.Run("export", func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "out")

			out := f.mustRun(t, "playlists", "export", "--user", "dana", "--format", "csv", "--output", dir)
			assert.Contains(t, out, "Exported: 1/1")
			tt.AssertDirExists(t, dir)
			tt.AssertFileExists(t, filepath.Join(dir, tasks.ManifestFile))

			err := f.run("playlists", "export", "--id", "1", "--format", "xml", "--output", dir)
			assert.ErrorIs(t, err, shared.ErrInvalidFlag)

			assert.ErrorIs(t, f.run("playlists", "export"), shared.ErrMissingArgument)
		})

		t.Run("delete", func(t *testing.T) {
			f.mustRun(t, "playlists", "delete", "--id", "1")
			err := f.run("playlists", "show", "--id", "1")
			assert.ErrorIs(t, err, shared.ErrPlaylistNotFound)
		})
	})

	t.Run("push all", func(t *testing.T) {
		f := newCLIFixture(t)
		f.fake.AddTracks(tt.NewTrack("a", "Alpha", "Low"))
		f.user(t, "erin")
		ids := f.searchIDs(t, "erin")

		for i := range 2 {
			f.mustRun(t, "playlists", "create", "--user", "erin", "--name", fmt.Sprintf("Mix %d", i), "--track", ids[0])
		}

		out := f.mustRun(t, "playlists", "push", "--all", "--user", "erin", "--workers", "2")
		assert.Contains(t, out, "Pushed: 2/2")

		_, ok := f.fake.Playlist("pl-2")
		assert.True(t, ok)

		assert.ErrorIs(t, f.run("playlists", "push"), shared.ErrMissingArgument)
	})

	t.Run("auth requires configured credentials", func(t *testing.T) {
		f := newCLIFixture(t)
		f.runner.config.Credentials.Spotify.ClientID = ""

		err := f.run("auth", "spotify", "--user", "alice")
		assert.ErrorIs(t, err, shared.ErrMissingCredentials)
		assert.Equal(t, exitUsage, exitCode(err))
	})
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitOK},
		{"missing argument", fmt.Errorf("%w: --id", shared.ErrMissingArgument), exitUsage},
		{"validation", shared.NewValidationError("name", "too long"), exitUsage},
		{"not linked", shared.ErrNotLinked, exitAuth},
		{"forbidden", shared.ErrForbidden, exitAuth},
		{"not found", shared.NewNotFoundError("playlist", 3), exitNotFound},
		{"conflict", &shared.ConflictError{Resource: "playlist"}, exitConflict},
		{"remote", &shared.RemoteServiceError{Method: "GET", Path: "/me", Status: 500}, exitRemote},
		{"other", errors.New("boom"), exitError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := exitCode(tc.err); got != tc.want {
				t.Errorf("exitCode(%v) = %d, want %d", tc.err, got, tc.want)
			}
		})
	}
}
