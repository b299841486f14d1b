package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/tuttitracks/internal/server"
	"github.com/desertthunder/tuttitracks/internal/shared"
)

// Serve runs the HTTP API until the process is interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	c, err := r.build()
	if err != nil {
		return err
	}

	conf := r.config.Server
	if host := cmd.String("host"); host != "" {
		conf.Host = host
	}
	if port := cmd.Int("port"); port > 0 {
		conf.Port = port
	}

	var auth server.Authorizer
	if r.config.Credentials.Spotify.Configured() {
		auth = c.tokens
	} else {
		r.logger.Warn("spotify credentials are not configured, account linking is disabled")
	}

	srv, err := server.New(server.Deps{
		Config:   conf,
		Accounts: c.accounts,
		Engine:   c.engine,
		Syncer:   c.syncer,
		Browser:  c.browser,
		Auth:     auth,
		Logger:   r.logger,
	})
	if err != nil {
		return err
	}

	r.writePlain("→ Serving on http://%s\n", conf.Addr())
	if err := srv.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrServiceUnavailable, err)
	}
	return nil
}
