package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pdfebc/pdfebc-web/internal/runner"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func configFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Server configuration file (YAML or JSON); defaults apply when omitted",
			Sources: cli.EnvVars("PDFEBC_CONFIG"),
		},
		&cli.StringSliceFlag{
			Name:  "allowed-env",
			Usage: "Environment variables allowed in the configuration (can be repeated)",
		},
	}
}

// loadSettings reads the --config file, when given, and resolves it.
func loadSettings(ctx context.Context, command *cli.Command) (runner.Settings, error) {
	logger := getLogger(ctx)

	var data []byte
	if filename := command.String("config"); filename != "" {
		var err error
		data, err = os.ReadFile(filename)
		if err != nil {
			return runner.Settings{}, fmt.Errorf("failed to read config file '%s': %w", filename, err)
		}
		logger.Debug("loaded config file", zap.String("config_filename", filename))
	}

	settings, err := runner.LoadSettings(data, command.StringSlice("allowed-env"))
	if err != nil {
		return runner.Settings{}, fmt.Errorf("failed to load config: %w", formatValidationError(err))
	}

	logger.Info("resolved settings",
		zap.String("name", settings.Name),
		zap.String("cache_dir", settings.CacheDir),
		zap.String("compressor", settings.Compressor.Binary),
		zap.String("level", settings.Compressor.Level),
		zap.Bool("delivery", settings.Delivery != nil),
		zap.Bool("redis", settings.Queue.RedisURL != ""),
	)
	return settings, nil
}
