package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	ktoml "github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

//go:embed config.example.toml
var exampleConf []byte

// AppName names the user config directory and the binary.
const AppName = "tuttitracks"

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials" koanf:"credentials"`
	Database    DatabaseConfig    `toml:"database" koanf:"database"`
	Server      ServerConfig      `toml:"server" koanf:"server"`
	Remote      RemoteConfig      `toml:"remote" koanf:"remote"`
	Search      SearchConfig      `toml:"search" koanf:"search"`
	Log         LogConfig         `toml:"log" koanf:"log"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify" koanf:"spotify"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string   `toml:"client_id" koanf:"client_id"`
	ClientSecret string   `toml:"client_secret" koanf:"client_secret"`
	RedirectURI  string   `toml:"redirect_uri" koanf:"redirect_uri"`
	Scopes       []string `toml:"scopes" koanf:"scopes"`
	ShowDialog   bool     `toml:"show_dialog" koanf:"show_dialog"`
}

// Configured reports whether client credentials are present and not the template placeholders.
func (c SpotifyConfig) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != "" &&
		!strings.HasPrefix(c.ClientID, "your_") && !strings.HasPrefix(c.ClientSecret, "your_")
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Driver       string `toml:"driver" koanf:"driver" validate:"oneof=sqlite3 postgres"`
	Path         string `toml:"path" koanf:"path"`
	DSN          string `toml:"dsn" koanf:"dsn"`
	MaxOpenConns int    `toml:"max_open_conns" koanf:"max_open_conns" validate:"gte=0"`
	MaxIdleConns int    `toml:"max_idle_conns" koanf:"max_idle_conns" validate:"gte=0"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host              string   `toml:"host" koanf:"host"`
	Port              int      `toml:"port" koanf:"port" validate:"gte=0,lte=65535"`
	SessionSecret     string   `toml:"session_secret" koanf:"session_secret"`
	SessionTTLHours   int      `toml:"session_ttl_hours" koanf:"session_ttl_hours" validate:"gte=0"`
	CORSOrigins       []string `toml:"cors_origins" koanf:"cors_origins"`
	RateLimit         int      `toml:"rate_limit" koanf:"rate_limit" validate:"gte=0"`
	RateWindowSeconds int      `toml:"rate_window_seconds" koanf:"rate_window_seconds" validate:"gte=0"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SessionTTL returns the session lifetime, defaulting to one week.
func (s ServerConfig) SessionTTL() time.Duration {
	if s.SessionTTLHours <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(s.SessionTTLHours) * time.Hour
}

// RateWindow returns the rate limiter window, defaulting to one minute.
func (s ServerConfig) RateWindow() time.Duration {
	if s.RateWindowSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(s.RateWindowSeconds) * time.Second
}

// RemoteConfig contains endpoints and limits for the remote service.
type RemoteConfig struct {
	APIURL            string  `toml:"api_url" koanf:"api_url" validate:"required,url"`
	AuthURL           string  `toml:"auth_url" koanf:"auth_url" validate:"required,url"`
	TokenURL          string  `toml:"token_url" koanf:"token_url" validate:"required,url"`
	TimeoutSeconds    int     `toml:"timeout_seconds" koanf:"timeout_seconds" validate:"gte=0"`
	RequestsPerSecond float64 `toml:"requests_per_second" koanf:"requests_per_second" validate:"gte=0"`
}

// Timeout returns the per-request timeout, defaulting to ten seconds.
func (r RemoteConfig) Timeout() time.Duration {
	if r.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// SearchConfig contains search defaults.
type SearchConfig struct {
	DefaultYear int `toml:"default_year" koanf:"default_year"`
	Limit       int `toml:"limit" koanf:"limit" validate:"gte=0,lte=50"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level  string `toml:"level" koanf:"level"`
	Format string `toml:"format" koanf:"format" validate:"omitempty,oneof=text json logfmt"`
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	return Validate(c)
}

// envKeys maps environment variables to config keys. Unprefixed names are the ones
// used by earlier deployments (CLIENT_ID, SECRET_KEY, DATABASE_URL).
var envKeys = map[string]string{
	"TUTTI_SPOTIFY_CLIENT_ID":     "credentials.spotify.client_id",
	"TUTTI_SPOTIFY_CLIENT_SECRET": "credentials.spotify.client_secret",
	"TUTTI_SPOTIFY_REDIRECT_URI":  "credentials.spotify.redirect_uri",
	"TUTTI_DATABASE_DRIVER":       "database.driver",
	"TUTTI_DATABASE_PATH":         "database.path",
	"TUTTI_DATABASE_DSN":          "database.dsn",
	"TUTTI_SERVER_HOST":           "server.host",
	"TUTTI_SERVER_PORT":           "server.port",
	"TUTTI_SESSION_SECRET":        "server.session_secret",
	"TUTTI_REMOTE_API_URL":        "remote.api_url",
	"TUTTI_REMOTE_TIMEOUT":        "remote.timeout_seconds",
	"TUTTI_LOG_LEVEL":             "log.level",
	"TUTTI_LOG_FORMAT":            "log.format",
	"CLIENT_ID":                   "credentials.spotify.client_id",
	"CLIENT_SECRET":               "credentials.spotify.client_secret",
	"REDIRECT_URI":                "credentials.spotify.redirect_uri",
	"SECRET_KEY":                  "server.session_secret",
	"DATABASE_URL":                "database.dsn",
}

func envTransform(key string) string {
	return envKeys[key]
}

// UserConfigPath returns the per-user config file location.
func UserConfigPath() string {
	return filepath.Join(xdg.ConfigHome, AppName, "config.toml")
}

// LoadConfig builds the configuration from the embedded defaults, the user config file,
// the file at path, a .env file in the working directory and the environment, in that order.
//
// A missing file at path is not an error; an unreadable or malformed one is.
func LoadConfig(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(DefaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	for _, p := range []string{UserConfigPath(), path} {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := k.Load(file.Provider(p), ktoml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", p, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, exampleConf, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig writes config to path as TOML, replacing any existing file.
func SaveConfig(path string, config *Config) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}
