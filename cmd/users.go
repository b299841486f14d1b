package main

import (
	"context"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/tuttitracks/internal/models"
)

// UsersCreate creates a local account.
func (r *Runner) UsersCreate(ctx context.Context, cmd *cli.Command) error {
	c, err := r.build()
	if err != nil {
		return err
	}

	user, err := c.accounts.Signup(ctx, models.SignupRequest{
		Username: cmd.String("username"),
		Email:    cmd.String("email"),
		Password: cmd.String("password"),
	})
	if err != nil {
		return err
	}

	r.logger.Info("created user", "username", user.Username)
	r.writePlain("✓ Created user %s\n", user.Username)
	r.writePlain("Link Spotify with: tuttitracks auth spotify --user %s\n", user.Username)
	return nil
}

// UsersShow prints a local account and its link state.
func (r *Runner) UsersShow(ctx context.Context, cmd *cli.Command) error {
	c, err := r.build()
	if err != nil {
		return err
	}

	user, err := c.accounts.User(ctx, cmd.String("user"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{"user": user, "linked": user.Linked()}, cmd.Bool("pretty"))
	}

	r.writePlainHeader(user.Username)
	r.writePlain("Email:   %s\n", user.Email)
	r.writePlain("Created: %s\n", humanize.Time(user.CreatedAt))
	if !user.Linked() {
		r.writePlain("Spotify: not linked\n")
		return nil
	}

	name := ""
	if user.SpotifyDisplayName != nil {
		name = *user.SpotifyDisplayName
	}
	if name == "" && user.SpotifyUserID != nil {
		name = *user.SpotifyUserID
	}
	r.writePlain("Spotify: %s\n", name)
	if user.Market != "" {
		r.writePlain("Market:  %s\n", user.Market)
	}
	return nil
}
