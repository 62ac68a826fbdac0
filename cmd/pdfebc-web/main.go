package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/urfave/cli/v3"
)

const appDescription = `pdfebc-web shrinks PDF files with Ghostscript.

"serve" runs the browser front end: uploads are staged per session, then either compressed
while the browser waits for the archive or queued for delivery by email, S3 or a filesystem
drop. "worker" runs only the delivery side against a shared Redis queue, and "compress"
does the same work on a local directory without a server.

Configuration is a YAML file (see "validate"); every setting has a default, so "serve" runs
without one.`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	var logger *zap.Logger

	return &cli.Command{
		Name:                  "pdfebc-web",
		Usage:                 "Compress PDF files with Ghostscript from the browser or the command line",
		Description:           appDescription,
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "Enable development logging at debug level",
				Sources: cli.EnvVars("PDFEBC_DEBUG"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				Sources: cli.EnvVars("PDFEBC_LOG_LEVEL"),
				Action:  validateLogLevel,
			},
		},
		Commands: []*cli.Command{
			serveCommand,
			workerCommand,
			compressCommand,
			validateCommand,
			versionCommand,
		},
		Before: func(ctx context.Context, command *cli.Command) (context.Context, error) {
			l, _, err := createLogger(command.Bool("debug"), command.String("log-level"))
			if err != nil {
				return nil, err
			}
			logger = l

			interactive := isInteractiveEnvironment()
			logger.Debug("logger created",
				zap.String("log_level", command.String("log-level")),
				zap.Bool("interactive", interactive),
			)

			ctx = withInteractive(ctx, interactive)
			return withLogger(ctx, logger), nil
		},
		After: func(ctx context.Context, command *cli.Command) error {
			if logger != nil {
				_ = logger.Sync()
			}
			return nil
		},
		ExitErrHandler: func(ctx context.Context, command *cli.Command, err error) {
			if err == nil {
				return
			}

			if l := tryLogger(ctx); l != nil {
				l.Error("pdfebc-web failed", zap.String("command", command.Name), zap.Error(err))
			} else {
				log.Printf("pdfebc-web failed: %v", err)
			}
		},
	}
}

func validateLogLevel(ctx context.Context, command *cli.Command, s string) error {
	if _, err := zapcore.ParseLevel(s); err != nil {
		return fmt.Errorf("invalid log level %s: %w", s, err)
	}
	return nil
}
