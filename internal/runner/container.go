package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pdfebc/pdfebc-web/internal/compression"
	"github.com/pdfebc/pdfebc-web/internal/engine"
	"github.com/pdfebc/pdfebc-web/internal/engine/archivers"
	"github.com/pdfebc/pdfebc-web/internal/engine/sinks"
	"github.com/pdfebc/pdfebc-web/internal/queue"
	"github.com/pdfebc/pdfebc-web/internal/staging"
	"github.com/samber/do/v2"
	"go.uber.org/zap"
)

const redisConnectTimeout = 10 * time.Second

// BuildContainer creates a new DI container with all dependencies registered.
// Dependencies are lazily initialized when first requested.
func BuildContainer(logger *zap.Logger, settings Settings) *do.RootScope {
	injector := do.New()

	do.ProvideValue(injector, logger)
	do.ProvideValue(injector, settings)

	do.Provide(injector, func(i do.Injector) (*staging.Store, error) {
		s := do.MustInvoke[Settings](i)
		return staging.NewStoreFromPath(s.CacheDir, staging.WithArchiveExtension(s.Compression.Extension()))
	})

	do.Provide(injector, func(i do.Injector) (engine.Compressor, error) {
		log := do.MustInvoke[*zap.Logger](i)
		s := do.MustInvoke[Settings](i)
		cfg := s.Compressor
		binary, err := compression.ResolveBinary(cfg.Binary)
		if err != nil {
			return nil, err
		}
		cfg.Binary = binary

		gs, err := compression.NewGhostscript(log.Named("ghostscript"), cfg)
		if err != nil {
			return nil, err
		}
		return gs, nil
	})

	do.Provide(injector, func(i do.Injector) (*compression.Orchestrator, error) {
		log := do.MustInvoke[*zap.Logger](i)
		store, err := do.Invoke[*staging.Store](i)
		if err != nil {
			return nil, err
		}
		compressor, err := do.Invoke[engine.Compressor](i)
		if err != nil {
			return nil, err
		}
		return compression.NewOrchestrator(log.Named("compression"), store.Fs(), compressor), nil
	})

	do.Provide(injector, func(i do.Injector) (engine.Archiver, error) {
		s := do.MustInvoke[Settings](i)
		store, err := do.Invoke[*staging.Store](i)
		if err != nil {
			return nil, err
		}
		archiver, err := archivers.NewDirArchiver(store.Fs(), string(s.Compression))
		if err != nil {
			return nil, err
		}
		return archiver, nil
	})

	do.Provide(injector, func(i do.Injector) (*engine.Registry, error) {
		log := do.MustInvoke[*zap.Logger](i)
		return BuildRegistry(log.Named("sinks")), nil
	})

	do.Provide(injector, func(i do.Injector) (queue.Queue, error) {
		log := do.MustInvoke[*zap.Logger](i)
		s := do.MustInvoke[Settings](i)
		if s.Queue.RedisURL == "" {
			return queue.NewMemoryQueue(queue.DefaultMemoryCapacity), nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), redisConnectTimeout)
		defer cancel()
		q, err := queue.NewRedisQueueFromURL(ctx, s.Queue.RedisURL, s.Queue.RedisKey)
		if err != nil {
			return nil, err
		}
		log.Info("using redis task queue", zap.String("key", q.Key()))
		return q, nil
	})

	do.Provide(injector, func(i do.Injector) (*queue.Dispatcher, error) {
		log := do.MustInvoke[*zap.Logger](i)
		q, err := do.Invoke[queue.Queue](i)
		if err != nil {
			return nil, err
		}
		return queue.NewDispatcher(log.Named("dispatcher"), q), nil
	})

	do.Provide(injector, func(i do.Injector) (*Workflow, error) {
		log := do.MustInvoke[*zap.Logger](i)
		s := do.MustInvoke[Settings](i)
		store, err := do.Invoke[*staging.Store](i)
		if err != nil {
			return nil, err
		}
		orchestrator, err := do.Invoke[*compression.Orchestrator](i)
		if err != nil {
			return nil, err
		}
		archiver, err := do.Invoke[engine.Archiver](i)
		if err != nil {
			return nil, err
		}

		var opts []WorkflowOption
		if d := s.Delivery; d != nil {
			registry, err := do.Invoke[*engine.Registry](i)
			if err != nil {
				return nil, err
			}
			provider := func(ctx context.Context, target engine.DeliveryTarget) (engine.Sink, error) {
				return registry.CreateSink(ctx, d.Kind, target, d.Spec)
			}
			opts = append(opts, WithDelivery(provider, d.Bundle))
		}

		return NewWorkflow(log.Named("workflow"), store, orchestrator, archiver, opts...), nil
	})

	do.Provide(injector, func(i do.Injector) (*queue.Pool, error) {
		log := do.MustInvoke[*zap.Logger](i)
		s := do.MustInvoke[Settings](i)
		q, err := do.Invoke[queue.Queue](i)
		if err != nil {
			return nil, err
		}
		workflow, err := do.Invoke[*Workflow](i)
		if err != nil {
			return nil, err
		}

		pool := queue.NewPool(log.Named("workers"), q, queue.PoolConfig{
			Workers:      s.Queue.Workers,
			MaxAttempts:  s.Queue.MaxAttempts,
			RetryBackoff: s.Queue.RetryBackoff,
		})
		pool.Handle(CompressAndDeliverTask, workflow.HandleTask)
		return pool, nil
	})

	return injector
}

// BuildRegistry creates a new registry with all delivery sinks registered.
func BuildRegistry(logger *zap.Logger) *engine.Registry {
	registry := engine.NewRegistry(logger)
	sinks.Register(registry)
	return registry
}

// App is the assembled service graph shared by the serve, worker and compress commands.
type App struct {
	injector *do.RootScope
	settings Settings
}

func Build(logger *zap.Logger, settings Settings) *App {
	return &App{
		injector: BuildContainer(logger, settings),
		settings: settings,
	}
}

func (a *App) Settings() Settings {
	return a.settings
}

func (a *App) Store() (*staging.Store, error) {
	return invoke[*staging.Store](a, "staging store")
}

func (a *App) Workflow() (*Workflow, error) {
	return invoke[*Workflow](a, "workflow")
}

func (a *App) Dispatcher() (*queue.Dispatcher, error) {
	return invoke[*queue.Dispatcher](a, "dispatcher")
}

func (a *App) Pool() (*queue.Pool, error) {
	return invoke[*queue.Pool](a, "worker pool")
}

// HealthCheck runs the health checks of every service built so far.
func (a *App) HealthCheck(ctx context.Context) error {
	var errs error
	for name, err := range a.injector.HealthCheckWithContext(ctx) {
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errs
}

// Close shuts every built service down in reverse dependency order.
func (a *App) Close() error {
	report := a.injector.Shutdown()
	if report != nil && !report.Succeed {
		return fmt.Errorf("failed to shut down services: %w", report)
	}
	return nil
}

func invoke[T any](a *App, what string) (T, error) {
	v, err := do.Invoke[T](a.injector)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("failed to build %s: %w", what, err)
	}
	return v, nil
}
