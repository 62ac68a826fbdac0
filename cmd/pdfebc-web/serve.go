package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pdfebc/pdfebc-web/internal/runner"
	"github.com/pdfebc/pdfebc-web/internal/server"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "Run the web front end together with the compression workers",
	Flags: append(configFlags(),
		&cli.StringFlag{
			Name:  "listen",
			Usage: "Override the listen address of the configuration",
		},
		&cli.BoolFlag{
			Name:  "no-workers",
			Usage: "Only queue compress-and-deliver tasks; a separate worker process runs them",
		},
	),
	Action: func(ctx context.Context, command *cli.Command) error {
		logger := getLogger(ctx)

		settings, err := loadSettings(ctx, command)
		if err != nil {
			return err
		}
		if listen := command.String("listen"); listen != "" {
			settings.Listen = listen
		}

		app := runner.Build(logger.Named("app"), settings)
		defer func() {
			if err := app.Close(); err != nil {
				logger.Error("failed to close services", zap.Error(err))
			}
		}()

		store, err := app.Store()
		if err != nil {
			return err
		}
		workflow, err := app.Workflow()
		if err != nil {
			return err
		}

		opts := []server.Option{server.WithHealthCheck(app.HealthCheck)}
		runWorkers := false
		if workflow.CanDeliver() {
			dispatcher, err := app.Dispatcher()
			if err != nil {
				return err
			}
			opts = append(opts, server.WithDispatcher(dispatcher))
			runWorkers = !command.Bool("no-workers")
		}

		srv, err := server.New(logger.Named("http"), store, workflow, opts...)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		var wg sync.WaitGroup
		var poolErr error
		if runWorkers {
			pool, err := app.Pool()
			if err != nil {
				return err
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				poolErr = pool.Run(ctx)
			}()
		}

		serveErr := srv.Serve(ctx, settings.Listen)
		cancel()
		wg.Wait()

		return errors.Join(serveErr, poolErr)
	},
}

var workerCommand = &cli.Command{
	Name:  "worker",
	Usage: "Run compress-and-deliver workers against a shared Redis queue",
	Flags: configFlags(),
	Action: func(ctx context.Context, command *cli.Command) error {
		logger := getLogger(ctx)

		settings, err := loadSettings(ctx, command)
		if err != nil {
			return err
		}
		if settings.Delivery == nil {
			return fmt.Errorf("worker requires a delivery sink in the configuration")
		}
		if settings.Queue.RedisURL == "" {
			logger.Warn("no redis queue configured; this worker only sees tasks submitted in this process")
		}

		app := runner.Build(logger.Named("app"), settings)
		defer func() {
			if err := app.Close(); err != nil {
				logger.Error("failed to close services", zap.Error(err))
			}
		}()

		pool, err := app.Pool()
		if err != nil {
			return err
		}

		return pool.Run(ctx)
	},
}
