package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/desertthunder/tapedeck/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates the config file when missing and initializes the history database.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	if _, err := os.Stat(r.configPath); errors.Is(err, os.ErrNotExist) {
		r.logger.Info("config file not found, creating from template", "path", r.configPath)
		if err := shared.CreateConfigFile(r.configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else if config, err := shared.LoadConfig(r.configPath); err != nil {
			r.logger.Warn("failed to load created config, using defaults", "error", err)
		} else {
			r.config = config
		}
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)

	if dir := filepath.Dir(r.config.Database.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := r.openHistory()
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)

	r.writePlain("✓ Configuration: %s\n", r.configPath)
	r.writePlain("✓ History database: %s\n", r.config.Database.Path)
	if !r.config.HasSpotify() {
		r.writePlainln("Spotify links need credentials:")
		r.writePlain("  tapedeck config set credentials.spotify.client_id <id>\n")
		r.writePlain("  tapedeck config set credentials.spotify.client_secret <secret>\n")
	}
	return nil
}

// ConfigInit writes the default configuration file.
func (r *Runner) ConfigInit(ctx context.Context, cmd *cli.Command) error {
	if err := shared.CreateConfigFile(r.configPath); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", r.configPath)
	return r.writePlain("✓ Wrote %s\n", r.configPath)
}

// ConfigShow prints the effective configuration as TOML or JSON.
func (r *Runner) ConfigShow(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("json") {
		return r.writeJSON(r.config, true)
	}
	if err := toml.NewEncoder(r.output).Encode(r.config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ConfigSet assigns one dotted key and saves the file.
func (r *Runner) ConfigSet(ctx context.Context, cmd *cli.Command) error {
	key, value := cmd.StringArg("key"), cmd.StringArg("value")
	if key == "" {
		return fmt.Errorf("%w: key is required", shared.ErrMissingArgument)
	}

	if err := r.config.Set(key, value); err != nil {
		return err
	}
	if err := r.config.Save(r.configPath); err != nil {
		return err
	}

	r.logger.Debug("config updated", "key", key, "path", r.configPath)
	return r.writePlain("✓ %s = %q\n", key, value)
}

// ConfigPath prints the absolute path of the configuration file.
func (r *Runner) ConfigPath(ctx context.Context, cmd *cli.Command) error {
	path, err := filepath.Abs(r.configPath)
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}
	return r.writePlain("%s\n", path)
}
