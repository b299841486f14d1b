package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/tuttitracks/internal/models"
	"github.com/desertthunder/tuttitracks/internal/server"
	"github.com/desertthunder/tuttitracks/internal/shared"
)

// authTimeout bounds how long the command waits for the browser callback.
var authTimeout = 2 * time.Minute

// AuthSpotify links a local account to Spotify with the authorization code flow.
//
// Starts a local HTTP server on the redirect URI, opens the browser for user authorization,
// and exchanges the returned code for the account's tokens.
func (r *Runner) AuthSpotify(ctx context.Context, cmd *cli.Command) error {
	if !r.config.Credentials.Spotify.Configured() {
		return fmt.Errorf("%w: credentials.spotify.client_id and client_secret must be set", shared.ErrMissingCredentials)
	}

	c, err := r.build()
	if err != nil {
		return err
	}

	username := cmd.String("user")
	if _, err := c.accounts.User(ctx, username); err != nil {
		return err
	}

	user, err := r.doOAuth(ctx, !cmd.Bool("no-browser"), func(ctx context.Context, code string) (*models.User, error) {
		return c.accounts.LinkSpotify(ctx, username, code)
	})
	if err != nil {
		return err
	}

	name := user.Username
	if user.SpotifyDisplayName != nil && *user.SpotifyDisplayName != "" {
		name = *user.SpotifyDisplayName
	}
	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ %s is linked to Spotify as %s\n\n", user.Username, name)
	r.writePlain("You can now use: tuttitracks search --user %s\n", user.Username)
	return nil
}

// doOAuth executes the authorization flow with a local HTTP server on the redirect URI's host.
func (r *Runner) doOAuth(ctx context.Context, openBrowser bool, link server.LinkFunc) (*models.User, error) {
	c, err := r.build()
	if err != nil {
		return nil, err
	}

	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	redirectURI := r.config.Credentials.Spotify.RedirectURI
	handler, err := server.NewCallbackHandler(redirectURI, state, link)
	if err != nil {
		return nil, err
	}
	u, _ := url.Parse(redirectURI)

	router := chi.NewRouter()
	server.Mount(router, handler)

	listener, err := net.Listen("tcp", u.Host)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot listen on %s: %w", shared.ErrServiceUnavailable, u.Host, err)
	}

	httpServer := &http.Server{Handler: router, ReadHeaderTimeout: 5 * time.Second}
	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Info("starting callback server", "addr", u.Host)
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down callback server", "error", err)
		}
	}()

	authURL := c.tokens.BeginAuthorization(state)
	if openBrowser {
		r.writePlain("→ Opening browser for Spotify authorization...\n")
		if err := shared.OpenBrowser(authURL); err != nil {
			r.logger.Warn("failed to open browser automatically", "error", err)
			openBrowser = false
		}
	}
	if !openBrowser {
		r.writePlain("Open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (%s timeout)...\n", authTimeout)

	timeout := time.NewTimer(authTimeout)
	defer timeout.Stop()

	var result server.CallbackResult
	select {
	case result = <-handler.Result():
	case err := <-serverErrors:
		return nil, fmt.Errorf("callback server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after %s", shared.ErrTimeout, authTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if err := result.Error(); err != nil {
		return nil, fmt.Errorf("authorization failed: %w", err)
	}
	if result.User == nil {
		return nil, fmt.Errorf("%w: no account was linked", shared.ErrAuthFailed)
	}
	return result.User, nil
}
