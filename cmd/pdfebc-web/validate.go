package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pdfebc/pdfebc-web/internal/runner"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

var validateCommand = &cli.Command{
	Name:  "validate",
	Usage: "Validate a server configuration file",
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:  "allowed-env",
			Usage: "Environment variables allowed in the configuration (can be repeated)",
		},
	},
	Arguments: []cli.Argument{
		&cli.StringArg{
			Name:      "config",
			UsageText: "The configuration file to validate",
		},
	},
	Action: func(ctx context.Context, command *cli.Command) error {
		logger := getLogger(ctx)

		filename := command.StringArg("config")
		if filename == "" {
			return fmt.Errorf("no config file provided")
		}

		data, err := os.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("failed to read config file '%s': %w", filename, err)
		}

		logger = logger.With(zap.String("config_filename", filename))
		logger.Debug("validating config file")

		cfg, err := runner.ParseConfig(data)
		if err != nil {
			fmt.Println(formatValidationError(err))
			return fmt.Errorf("config file '%s' is invalid", filename)
		}

		variables, err := runner.BuildVariables(cfg, command.StringSlice("allowed-env"))
		if err != nil {
			return fmt.Errorf("failed to build variables: %w", err)
		}

		if err := runner.ExpandTemplates(&cfg, variables); err != nil {
			return fmt.Errorf("failed to expand templates: %w", err)
		}

		if _, err := runner.ResolveSettings(cfg); err != nil {
			return fmt.Errorf("config file '%s' is invalid: %w", filename, err)
		}

		fmt.Printf("✓ Config file '%s' is valid\n", filename)
		return nil
	},
}

func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("config has %d validation error(s):", len(validationErrs)))
		for _, fe := range validationErrs {
			sb.WriteString(fmt.Sprintf("\n  • %s: failed '%s' validation", fe.Namespace(), fe.Tag()))
			if fe.Param() != "" {
				sb.WriteString(fmt.Sprintf(" (param: %s)", fe.Param()))
			}
		}
		return errors.New(sb.String())
	}
	return err
}
