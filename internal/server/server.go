package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	"github.com/desertthunder/tuttitracks/internal/shared"
	"github.com/desertthunder/tuttitracks/internal/tasks"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler is an http.Handler that knows the paths it serves.
type Handler interface {
	http.Handler
	Routes() []string // Routes returns the path patterns this handler serves
}

// Mount registers every route of h on r.
func Mount(r chi.Router, h Handler) {
	for _, route := range h.Routes() {
		r.Handle(route, h)
	}
}

// Authorizer builds the remote authorization URL for a state token.
type Authorizer interface {
	BeginAuthorization(state string) string
}

// Deps are the components the server exposes.
type Deps struct {
	Config   shared.ServerConfig
	Accounts *tasks.Accounts
	Engine   *tasks.PlaylistEngine
	Syncer   *tasks.Syncer
	Browser  *tasks.Browser
	Auth     Authorizer
	Logger   *log.Logger
}

// Server is the JSON API over the playlist tasks.
type Server struct {
	conf     shared.ServerConfig
	accounts *tasks.Accounts
	engine   *tasks.PlaylistEngine
	syncer   *tasks.Syncer
	browser  *tasks.Browser
	auth     Authorizer
	sessions *Sessions
	logger   *log.Logger
	router   chi.Router
}

// New builds a [Server]. A session secret is required.
func New(d Deps) (*Server, error) {
	if d.Config.SessionSecret == "" {
		return nil, fmt.Errorf("%w: server.session_secret is required", shared.ErrInvalidConfig)
	}

	s := &Server{
		conf:     d.Config,
		accounts: d.Accounts,
		engine:   d.Engine,
		syncer:   d.Syncer,
		browser:  d.Browser,
		auth:     d.Auth,
		sessions: NewSessions(d.Config.SessionSecret, d.Config.SessionTTL()),
		logger:   shared.WithLogger(d.Logger, "component", "server"),
	}
	s.router = s.routes()
	return s, nil
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on the configured address until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.conf.Addr(),
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
