package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/tuttitracks/internal/shared"
)

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	r.logger.Info("initializing database", "driver", r.config.Database.Driver, "path", r.config.Database.Path)

	db, err := r.database()
	if err != nil {
		return fmt.Errorf("failed to prepare database: %w", err)
	}

	version, err := shared.CurrentVersion(db)
	if err != nil {
		return err
	}
	r.logger.Info("setup complete", "version", version)
	return r.writePlain("✓ Database ready at schema version %d\n", version)
}

// SetupRollback reverts the most recently applied migration.
func (r *Runner) SetupRollback(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database()
	if err != nil {
		return err
	}

	version, err := shared.RollbackMigration(db)
	if err != nil {
		return fmt.Errorf("failed to roll back migration: %w", err)
	}
	if version == 0 {
		return r.writePlain("Nothing to roll back\n")
	}
	return r.writePlain("✓ Rolled back migration %d\n", version)
}

// SetupConfig writes the config template to --config, or to the per-user config directory.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if cmd.Bool("user-dir") {
		path = shared.UserConfigPath()
	}

	if _, err := os.Stat(path); err == nil {
		return r.writePlain("Config already exists at %s\n", path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if id, secret := cmd.String("client-id"), cmd.String("client-secret"); id != "" || secret != "" {
		config := shared.DefaultConfig()
		config.Credentials.Spotify.ClientID = id
		config.Credentials.Spotify.ClientSecret = secret
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
		if err := shared.SaveConfig(path, config); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
	} else if err := shared.CreateConfigFile(path); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	r.logger.Info("config file created", "path", path)

	r.writePlain("✓ Config written to %s\n", path)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set credentials.spotify.client_id and client_secret\n")
	r.writePlain("2. Run 'tuttitracks setup database'\n")
	r.writePlain("3. Run 'tuttitracks users create' and 'tuttitracks auth spotify --user <name>'\n")
	return nil
}
