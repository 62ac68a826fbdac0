// Package compression runs an external compressor over every PDF staged in a directory.
package compression

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfebc/pdfebc-web/internal/engine"
	"github.com/samber/lo"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const (
	DefaultExtension = ".pdf"

	dirPerm = 0755
)

// ProgressFunc receives a status line after each file completes. Returned errors and panics are
// logged and never abort the batch. Callbacks run on their own goroutine, but CompressAll waits
// for the last one before returning, so a slow callback delays whatever follows the batch. The
// wait ends early when the context is done.
type ProgressFunc func(message string) error

type Orchestrator struct {
	logger     *zap.Logger
	fs         afero.Fs
	compressor engine.Compressor
	extension  string
}

func NewOrchestrator(logger *zap.Logger, fs afero.Fs, compressor engine.Compressor) *Orchestrator {
	return &Orchestrator{
		logger:     logger,
		fs:         fs,
		compressor: compressor,
		extension:  DefaultExtension,
	}
}

// Inputs lists the compressible files directly inside sourceDir, sorted by name.
func (o *Orchestrator) Inputs(sourceDir string) ([]string, error) {
	entries, err := afero.ReadDir(o.fs, sourceDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read source directory: %w", err)
	}

	return lo.FilterMap(entries, func(entry os.FileInfo, _ int) (string, bool) {
		if !entry.Mode().IsRegular() {
			return "", false
		}
		name := entry.Name()
		return name, strings.HasSuffix(strings.ToLower(name), o.extension)
	}), nil
}

// CompressAll compresses each input of sourceDir into destDir under the same base name and
// returns the produced paths in input order. The first failure stops the batch with a
// *CompressionError.
func (o *Orchestrator) CompressAll(ctx context.Context, sourceDir, destDir string, onProgress ProgressFunc) ([]string, error) {
	inputs, err := o.Inputs(sourceDir)
	if err != nil {
		return nil, err
	}

	if err := o.fs.MkdirAll(destDir, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create destination directory: %w", err)
	}

	progress, wait := o.startProgress(onProgress, len(inputs))
	defer wait(ctx)

	outputs := make([]string, 0, len(inputs))
	for i, name := range inputs {
		if err := ctx.Err(); err != nil {
			return outputs, fmt.Errorf("compression cancelled: %w", err)
		}

		src := filepath.Join(sourceDir, name)
		dst := filepath.Join(destDir, name)

		o.logger.Debug("compressing file", zap.String("src", src), zap.String("dst", dst))
		if err := o.compressor.CompressFile(ctx, src, dst); err != nil {
			return outputs, &CompressionError{File: src, Output: dst, Err: err}
		}
		outputs = append(outputs, dst)

		if progress != nil {
			progress <- fmt.Sprintf("Compressed %s (%d/%d)", name, i+1, len(inputs))
		}
	}

	return outputs, nil
}

// startProgress drains progress messages on a separate goroutine. The channel holds one slot
// per input so sends never block. wait closes the channel and returns once every message has
// been handed to the callback or ctx is done, whichever comes first.
func (o *Orchestrator) startProgress(onProgress ProgressFunc, size int) (chan<- string, func(context.Context)) {
	if onProgress == nil {
		return nil, func(context.Context) {}
	}

	messages := make(chan string, size)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for msg := range messages {
			o.report(onProgress, msg)
		}
	}()

	return messages, func(ctx context.Context) {
		close(messages)
		select {
		case <-done:
		case <-ctx.Done():
			o.logger.Warn("stopped waiting for progress callback", zap.Error(ctx.Err()))
		}
	}
}

func (o *Orchestrator) report(onProgress ProgressFunc, msg string) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Warn("progress callback panicked", zap.Any("panic", r))
		}
	}()

	if err := onProgress(msg); err != nil {
		o.logger.Warn("progress callback failed", zap.Error(err))
	}
}
