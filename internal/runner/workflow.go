package runner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pdfebc/pdfebc-web/internal/compression"
	"github.com/pdfebc/pdfebc-web/internal/engine"
	"github.com/pdfebc/pdfebc-web/internal/queue"
	"github.com/pdfebc/pdfebc-web/internal/staging"
	"go.uber.org/zap"
)

const (
	CompressAndDeliverTask = "compress_and_deliver"

	// CompressedDirName is the output directory inside a session directory. The archive is
	// written next to it as CompressedDirName plus the archive suffix.
	CompressedDirName = "compressed_files"
)

var (
	ErrNothingStaged     = errors.New("no PDF files staged")
	ErrDeliveryDisabled  = errors.New("no delivery sink configured")
	ErrUnsupportedBundle = errors.New("unsupported delivery bundle")
)

// SinkProvider builds the delivery sink for one session.
type SinkProvider func(ctx context.Context, target engine.DeliveryTarget) (engine.Sink, error)

// Workflow drives a session through compression, archiving, delivery and cleanup.
type Workflow struct {
	logger       *zap.Logger
	store        *staging.Store
	orchestrator *compression.Orchestrator
	archiver     engine.Archiver
	newSink      SinkProvider
	bundle       string
}

type WorkflowOption func(*Workflow)

// WithDelivery enables CompressAndDeliver. bundle is BundleArchive or BundleFiles.
func WithDelivery(provider SinkProvider, bundle string) WorkflowOption {
	return func(w *Workflow) {
		w.newSink = provider
		w.bundle = bundle
	}
}

func NewWorkflow(logger *zap.Logger, store *staging.Store, orchestrator *compression.Orchestrator, archiver engine.Archiver, opts ...WorkflowOption) *Workflow {
	w := &Workflow{
		logger:       logger,
		store:        store,
		orchestrator: orchestrator,
		archiver:     archiver,
		bundle:       BundleArchive,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// CanDeliver reports whether CompressAndDeliver has somewhere to send results.
func (w *Workflow) CanDeliver() bool {
	return w.newSink != nil
}

// Staged lists the PDFs waiting in the session directory.
func (w *Workflow) Staged(sessionID string) ([]string, error) {
	return w.store.ListUploaded(sessionID, compression.DefaultExtension)
}

// Download is a finished archive whose session is still claimed. Exactly one of Finish or
// Release should follow; calls after the first are no-ops.
type Download struct {
	Path string

	workflow  *Workflow
	sessionID string
	done      bool
}

// Finish deletes the session directory, processing marker included.
func (d *Download) Finish() error {
	if d.done {
		return nil
	}
	d.done = true
	return d.workflow.store.Delete(d.sessionID)
}

// Release drops the claim and keeps the session files for another attempt.
func (d *Download) Release() {
	if d.done {
		return
	}
	d.done = true
	d.workflow.clearProcessing(d.sessionID)
}

// CompressToArchive compresses the staged PDFs and archives the output. On success the
// session stays marked as processing until the returned Download is finished or released,
// so uploads cannot land in a directory that is about to be deleted.
func (w *Workflow) CompressToArchive(ctx context.Context, sessionID string, onProgress compression.ProgressFunc) (_ *Download, err error) {
	if err := w.store.MarkProcessing(sessionID); err != nil {
		if errors.Is(err, staging.ErrNotFound) {
			return nil, ErrNothingStaged
		}
		return nil, err
	}
	defer func() {
		if err != nil {
			w.clearProcessing(sessionID)
		}
	}()

	run := &sessionRun{sessionID: sessionID, dir: w.store.Path(sessionID)}
	if _, err := w.compress(ctx, run, onProgress); err != nil {
		return nil, err
	}
	if _, err := w.archive(ctx, run); err != nil {
		return nil, err
	}

	return &Download{Path: run.archive, workflow: w, sessionID: sessionID}, nil
}

// CompressAndDeliver is the background task: compress, archive, deliver, then delete the
// session directory. A session that no longer exists was already delivered and is skipped.
// On failure the directory stays in place for inspection and retry.
func (w *Workflow) CompressAndDeliver(ctx context.Context, sessionID string) (err error) {
	if !w.CanDeliver() {
		return ErrDeliveryDisabled
	}

	logger := w.logger.With(zap.String("session_id", sessionID))
	if !w.store.Exists(sessionID) {
		logger.Info("session directory is gone, nothing to deliver")
		return nil
	}

	if err := w.store.MarkProcessing(sessionID); err != nil {
		return fmt.Errorf("failed to claim session: %w", err)
	}
	defer func() {
		if err != nil {
			w.clearProcessing(sessionID)
		}
	}()

	run := &sessionRun{sessionID: sessionID, dir: w.store.Path(sessionID)}
	progress := func(msg string) error {
		logger.Debug("compression progress", zap.String("message", msg))
		return nil
	}

	pipeline := engine.NewPipeline(CompressAndDeliverTask)
	steps := []engine.Step{
		engine.StepFunction("compress", "compression", func(ctx context.Context) (engine.Result, error) {
			return w.compress(ctx, run, progress)
		}),
		engine.StepFunction("archive", "archive", func(ctx context.Context) (engine.Result, error) {
			return w.archive(ctx, run)
		}),
		engine.StepFunction("deliver", "delivery", func(ctx context.Context) (engine.Result, error) {
			return w.deliver(ctx, run)
		}),
		engine.StepFunction("cleanup", "staging", func(ctx context.Context) (engine.Result, error) {
			if err := w.store.Delete(sessionID); err != nil {
				return engine.Result{}, err
			}
			return engine.Result{ID: "cleanup"}, nil
		}),
	}
	for _, step := range steps {
		if err := pipeline.AddStep(step.Name(), step); err != nil {
			return err
		}
	}

	start := time.Now()
	results, err := pipeline.Run(ctx)
	if err != nil {
		return err
	}

	for _, result := range results {
		logger.Debug("step finished", zap.String("step", result.ID), zap.Any("meta", result.Meta))
	}
	logger.Info("delivered compressed files",
		zap.Int("files", len(run.outputs)),
		zap.String("archive", filepath.Base(run.archive)),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// HandleTask adapts CompressAndDeliver to the worker pool.
func (w *Workflow) HandleTask(ctx context.Context, task queue.Task) error {
	return w.CompressAndDeliver(ctx, task.SessionID)
}

type sessionRun struct {
	sessionID string
	dir       string
	outputs   []string
	archive   string
}

func (w *Workflow) compress(ctx context.Context, run *sessionRun, onProgress compression.ProgressFunc) (engine.Result, error) {
	staged, err := w.Staged(run.sessionID)
	if err != nil {
		return engine.Result{}, err
	}
	if len(staged) == 0 {
		return engine.Result{}, ErrNothingStaged
	}

	// outputs of an earlier failed run are not reused
	fs := w.store.Fs()
	outDir := filepath.Join(run.dir, CompressedDirName)
	if err := fs.RemoveAll(outDir); err != nil {
		return engine.Result{}, fmt.Errorf("failed to reset %s: %w", outDir, err)
	}
	if err := fs.RemoveAll(outDir + w.archiver.Extension()); err != nil {
		return engine.Result{}, fmt.Errorf("failed to remove previous archive: %w", err)
	}

	outputs, err := w.orchestrator.CompressAll(ctx, run.dir, outDir, onProgress)
	if err != nil {
		return engine.Result{}, err
	}
	run.outputs = outputs

	return engine.Result{
		ID:        "compress",
		Artifacts: outputs,
		Meta:      map[string]string{"files": strconv.Itoa(len(outputs))},
	}, nil
}

func (w *Workflow) archive(ctx context.Context, run *sessionRun) (engine.Result, error) {
	outDir := filepath.Join(run.dir, CompressedDirName)
	archivePath, err := w.archiver.Archive(ctx, outDir, outDir)
	if err != nil {
		return engine.Result{}, fmt.Errorf("failed to archive compressed files: %w", err)
	}
	run.archive = archivePath

	return engine.Result{ID: "archive", Artifacts: []string{archivePath}}, nil
}

func (w *Workflow) deliver(ctx context.Context, run *sessionRun) (engine.Result, error) {
	var artifacts []string
	switch w.bundle {
	case BundleArchive:
		artifacts = []string{run.archive}
	case BundleFiles:
		artifacts = run.outputs
	default:
		return engine.Result{}, fmt.Errorf("%w: %q", ErrUnsupportedBundle, w.bundle)
	}

	sink, err := w.newSink(ctx, engine.DeliveryTarget{SessionID: run.sessionID})
	if err != nil {
		return engine.Result{}, fmt.Errorf("failed to create delivery sink: %w", err)
	}

	for _, artifact := range artifacts {
		if err := w.writeArtifact(ctx, sink, artifact); err != nil {
			return engine.Result{}, err
		}
	}

	if err := sink.Close(ctx); err != nil {
		return engine.Result{}, fmt.Errorf("failed to close sink %s: %w", sink.Name(), err)
	}

	return engine.Result{
		ID:        "deliver",
		Artifacts: artifacts,
		Meta:      map[string]string{"sink": sink.Name(), "bundle": w.bundle},
	}, nil
}

func (w *Workflow) writeArtifact(ctx context.Context, sink engine.Sink, artifact string) error {
	f, err := w.store.Fs().Open(artifact)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", artifact, err)
	}
	defer f.Close()

	if err := sink.Write(ctx, filepath.Base(artifact), f); err != nil {
		return fmt.Errorf("failed to deliver %s: %w", filepath.Base(artifact), err)
	}
	return nil
}

func (w *Workflow) clearProcessing(sessionID string) {
	if err := w.store.ClearProcessing(sessionID); err != nil {
		w.logger.Warn("failed to clear processing marker", zap.String("session_id", sessionID), zap.Error(err))
	}
}
