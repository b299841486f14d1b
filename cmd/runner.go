package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/tuttitracks/internal/services"
	"github.com/desertthunder/tuttitracks/internal/shared"
	"github.com/desertthunder/tuttitracks/internal/tasks"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	db         *sqlx.DB
	ownsDB     bool
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	components *components
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	DB         *sqlx.DB // Used instead of opening the configured database when set
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// components are the task layer built from the configuration.
type components struct {
	tokens   *services.TokenManager
	remote   services.Service
	engine   *tasks.PlaylistEngine
	library  *tasks.Library
	syncer   *tasks.Syncer
	browser  *tasks.Browser
	accounts *tasks.Accounts
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		db:         opts.DB,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, serveCommand, usersCommand, authCommand, searchCommand, likedCommand, topCommand,
		remoteCommand, tracksCommand, playlistsCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// before loads the configuration named by --config unless one was provided, and applies its log settings.
func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if path := cmd.String("config"); path != "" {
		r.configPath = path
	}

	if r.config == nil {
		config, err := shared.LoadConfig(r.configPath)
		if err != nil {
			return ctx, err
		}
		r.config = config
	}

	shared.ConfigureLogger(r.logger, r.config.Log)
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}
	return ctx, nil
}

// after closes the database opened by the command.
func (r *Runner) after(context.Context, *cli.Command) error {
	if r.db != nil && r.ownsDB {
		r.ownsDB = false
		return r.db.Close()
	}
	return nil
}

// database opens the configured database and applies pending migrations.
func (r *Runner) database() (*sqlx.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, err
	}
	if n, err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	} else if n > 0 {
		r.logger.Info("applied migrations", "count", n)
	}

	r.db = db
	r.ownsDB = true
	return db, nil
}

// build creates the task layer on first use.
func (r *Runner) build() (*components, error) {
	if r.components != nil {
		return r.components, nil
	}

	db, err := r.database()
	if err != nil {
		return nil, err
	}

	conf := r.config
	httpClient := services.TimeoutClient(r.httpClient, conf.Remote.Timeout())
	tokens := services.NewTokenManager(conf.Credentials.Spotify, conf.Remote, httpClient)
	client := services.NewClient(tokens, services.ClientOpts{
		BaseURL:           conf.Remote.APIURL,
		HTTPClient:        httpClient,
		RequestsPerSecond: conf.Remote.RequestsPerSecond,
		Logger:            shared.WithLogger(r.logger, "component", "remote"),
	})
	remote := services.NewSpotifyService(client)

	engine := tasks.NewPlaylistEngine(db, shared.WithLogger(r.logger, "component", "engine"))
	library := tasks.NewLibrary(db, remote, shared.WithLogger(r.logger, "component", "library"))

	r.components = &components{
		tokens:   tokens,
		remote:   remote,
		engine:   engine,
		library:  library,
		syncer:   tasks.NewSyncer(db, remote, engine, shared.WithLogger(r.logger, "component", "sync")),
		browser:  tasks.NewBrowser(remote, library, conf.Search.DefaultYear),
		accounts: tasks.NewAccounts(db, tokens, remote, shared.WithLogger(r.logger, "component", "accounts")),
	}
	return r.components, nil
}

// userContext returns the task layer and a context carrying the --user account's remote credentials.
func (r *Runner) userContext(ctx context.Context, cmd *cli.Command) (*components, context.Context, error) {
	c, err := r.build()
	if err != nil {
		return nil, nil, err
	}

	username := cmd.String("user")
	if username == "" {
		return nil, nil, fmt.Errorf("%w: --user is required", shared.ErrMissingArgument)
	}

	userCtx, err := c.accounts.WithCredentials(ctx, username)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot act as %s: %w", username, err)
	}
	return c, userCtx, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
