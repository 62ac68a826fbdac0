package sinks

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/pdfebc/pdfebc-web/internal/engine"
	"github.com/pdfebc/pdfebc-web/internal/engine/archivers"
)

const ArchiveSinkKind = "archive"

// ArchiveSink bundles every write into one tar archive held in memory. Close writes the
// archive to the inner sink under archiveName and closes it.
type ArchiveSink struct {
	inner       engine.Sink
	archiveName string
	buf         bytes.Buffer
	tw          *archivers.TarArchiver
	closed      bool
}

// NewArchiveSink wraps inner. archiveName gets the compression's suffix appended when missing.
func NewArchiveSink(inner engine.Sink, archiveName, compression string) (*ArchiveSink, error) {
	s := &ArchiveSink{inner: inner}

	tw, err := archivers.NewTarArchiver(&s.buf, compression)
	if err != nil {
		return nil, fmt.Errorf("failed to create tar archiver: %w", err)
	}
	s.tw = tw

	if !strings.HasSuffix(archiveName, tw.Extension()) {
		archiveName += tw.Extension()
	}
	s.archiveName = archiveName

	return s, nil
}

func (s *ArchiveSink) Name() string {
	return fmt.Sprintf("archive(%s)->%s", s.archiveName, s.inner.Name())
}

func (s *ArchiveSink) Kind() string {
	return ArchiveSinkKind
}

func (s *ArchiveSink) ArchiveName() string {
	return s.archiveName
}

func (s *ArchiveSink) Write(ctx context.Context, p string, data io.Reader) error {
	content, err := io.ReadAll(data)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", p, err)
	}

	info := memFileInfo{name: path.Base(p), size: int64(len(content)), modTime: time.Now()}
	if err := s.tw.AddFile(ctx, p, info, bytes.NewReader(content)); err != nil {
		return fmt.Errorf("failed to add file to archive: %w", err)
	}
	return nil
}

func (s *ArchiveSink) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.tw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}

	if err := s.inner.Write(ctx, s.archiveName, &s.buf); err != nil {
		return fmt.Errorf("failed to write archive to sink: %w", err)
	}

	if err := s.inner.Close(ctx); err != nil {
		return fmt.Errorf("failed to close inner sink: %w", err)
	}

	return nil
}

type memFileInfo struct {
	name    string
	size    int64
	modTime time.Time
}

func (fi memFileInfo) Name() string       { return fi.name }
func (fi memFileInfo) Size() int64        { return fi.size }
func (fi memFileInfo) Mode() fs.FileMode  { return 0644 }
func (fi memFileInfo) ModTime() time.Time { return fi.modTime }
func (fi memFileInfo) IsDir() bool        { return false }
func (fi memFileInfo) Sys() any           { return nil }

var _ engine.Sink = (*ArchiveSink)(nil)
