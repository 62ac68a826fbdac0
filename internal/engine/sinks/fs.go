package sinks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pdfebc/pdfebc-web/internal/engine"
	"github.com/spf13/afero"
)

const FilesystemSinkKind = "filesystem"

// FilesystemSink copies artifacts below a directory. Paths are confined to it.
type FilesystemSink struct {
	fs afero.Fs
}

func NewFilesystemSink(fs afero.Fs) *FilesystemSink {
	return &FilesystemSink{fs: fs}
}

// NewFilesystemSinkFromPath creates dir on the local disk and returns a sink rooted there.
func NewFilesystemSinkFromPath(dir string) (*FilesystemSink, error) {
	cleanPath := filepath.Clean(dir)

	if err := os.MkdirAll(cleanPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", cleanPath, err)
	}

	return NewFilesystemSink(afero.NewBasePathFs(afero.NewOsFs(), cleanPath)), nil
}

func (s *FilesystemSink) Name() string {
	return fmt.Sprintf("filesystem(%s)", s.fs.Name())
}

func (s *FilesystemSink) Kind() string {
	return FilesystemSinkKind
}

func (s *FilesystemSink) Write(ctx context.Context, path string, data io.Reader) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := s.fs.MkdirAll(dir, 0755); err != nil {
			return &DeliveryError{Sink: s.Name(), Err: fmt.Errorf("failed to create directory %s: %w", dir, err)}
		}
	}

	f, err := s.fs.Create(path)
	if err != nil {
		return &DeliveryError{Sink: s.Name(), Err: fmt.Errorf("failed to create file: %w", err)}
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	if _, err = io.Copy(f, data); err != nil {
		return &DeliveryError{Sink: s.Name(), Err: fmt.Errorf("failed to write to file: %w", err)}
	}

	return nil
}

func (s *FilesystemSink) Close(ctx context.Context) error {
	return nil
}

var _ engine.Sink = (*FilesystemSink)(nil)
