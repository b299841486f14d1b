package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/adrg/xdg"
)

// isolateEnv points XDG at a temp dir and clears variables the env provider would pick up.
func isolateEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Cleanup(xdg.Reload)
	t.Setenv("XDG_CONFIG_HOME", dir)
	xdg.Reload()
	for key := range envKeys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("failed to chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
	return dir
}

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./tuttitracks.db" {
			t.Errorf("expected database path ./tuttitracks.db, got %s", config.Database.Path)
		}

		if config.Database.Driver != DriverSQLite {
			t.Errorf("expected sqlite3 driver, got %s", config.Database.Driver)
		}

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if config.Credentials.Spotify.ClientID != "your_spotify_client_id" {
			t.Errorf("expected spotify client_id your_spotify_client_id, got %s", config.Credentials.Spotify.ClientID)
		}

		if config.Credentials.Spotify.Configured() {
			t.Error("placeholder credentials should not count as configured")
		}

		if config.Search.DefaultYear != 2021 {
			t.Errorf("expected default search year 2021, got %d", config.Search.DefaultYear)
		}

		if len(config.Credentials.Spotify.Scopes) == 0 {
			t.Error("expected default scopes")
		}
	})

	t.Run("Durations", func(t *testing.T) {
		config := DefaultConfig()
		if got := config.Remote.Timeout().Seconds(); got != 10 {
			t.Errorf("expected 10s timeout, got %v", got)
		}
		if got := config.Server.SessionTTL().Hours(); got != 168 {
			t.Errorf("expected 168h session ttl, got %v", got)
		}

		var zero ServerConfig
		if got := zero.RateWindow().Seconds(); got != 60 {
			t.Errorf("expected 60s default rate window, got %v", got)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		isolateEnv(t)
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "nested", "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Database.Path != defaultConfig.Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		isolateEnv(t)
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[database]
path = "/custom/path.db"
max_open_conns = 20
max_idle_conns = 10

[server]
host = "0.0.0.0"
port = 8080

[credentials.spotify]
client_id = "test_client_id"
client_secret = "test_secret"
redirect_uri = "http://localhost:3000/callback"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected database path /custom/path.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 8080 {
			t.Errorf("expected server port 8080, got %d", config.Server.Port)
		}

		if config.Credentials.Spotify.ClientID != "test_client_id" {
			t.Errorf("expected spotify client_id test_client_id, got %s", config.Credentials.Spotify.ClientID)
		}

		if config.Remote.APIURL != "https://api.spotify.com/v1" {
			t.Errorf("expected defaults to fill unset keys, got api_url %q", config.Remote.APIURL)
		}
	})

	t.Run("Layering", func(t *testing.T) {
		dir := isolateEnv(t)

		userPath := filepath.Join(dir, AppName, "config.toml")
		if err := os.MkdirAll(filepath.Dir(userPath), 0o755); err != nil {
			t.Fatalf("failed to create user config dir: %v", err)
		}
		if err := os.WriteFile(userPath, []byte("[server]\nport = 4000\nhost = \"user-host\"\n"), 0o644); err != nil {
			t.Fatalf("failed to write user config: %v", err)
		}

		explicit := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(explicit, []byte("[server]\nport = 5000\n"), 0o644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		t.Setenv("TUTTI_LOG_LEVEL", "debug")
		t.Setenv("CLIENT_ID", "from-env")

		config, err := LoadConfig(explicit)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Server.Port != 5000 {
			t.Errorf("expected explicit file to win, got port %d", config.Server.Port)
		}
		if config.Server.Host != "user-host" {
			t.Errorf("expected user config host, got %s", config.Server.Host)
		}
		if config.Log.Level != "debug" {
			t.Errorf("expected env log level debug, got %s", config.Log.Level)
		}
		if config.Credentials.Spotify.ClientID != "from-env" {
			t.Errorf("expected env client id, got %s", config.Credentials.Spotify.ClientID)
		}
	})

	t.Run("Invalid", func(t *testing.T) {
		isolateEnv(t)
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[database]\ndriver = \"mysql\"\n"), 0o644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		_, err := LoadConfig(configPath)
		if !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("SaveConfig", func(t *testing.T) {
		isolateEnv(t)
		configPath := filepath.Join(t.TempDir(), "config.toml")
		config := DefaultConfig()
		config.Search.Limit = 30

		if err := SaveConfig(configPath, config); err != nil {
			t.Fatalf("failed to save config: %v", err)
		}

		loaded, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load saved config: %v", err)
		}
		if loaded.Search.Limit != 30 {
			t.Errorf("expected limit 30, got %d", loaded.Search.Limit)
		}
	})
}
