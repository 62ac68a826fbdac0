package archivers

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// CompressionType defines supported compression algorithms.
type CompressionType string

const (
	CompressionGzip CompressionType = "gzip"
	CompressionZstd CompressionType = "zstd"
	CompressionNone CompressionType = "none"
)

// ParseCompression validates a compression name. Empty defaults to gzip.
func ParseCompression(compression string) (CompressionType, error) {
	ct := CompressionType(compression)
	switch ct {
	case "":
		return CompressionGzip, nil
	case CompressionGzip, CompressionZstd, CompressionNone:
		return ct, nil
	default:
		return "", fmt.Errorf("unsupported compression type: %s", compression)
	}
}

// Extension returns the canonical archive suffix for the compression type.
func (c CompressionType) Extension() string {
	switch c {
	case CompressionGzip:
		return ".tgz"
	case CompressionZstd:
		return ".tar.zst"
	default:
		return ".tar"
	}
}

// TarArchiver streams a tar archive with optional compression into an io.Writer.
type TarArchiver struct {
	compressor  io.WriteCloser
	tarWriter   *tar.Writer
	compression CompressionType
	closed      bool
}

// NewTarArchiver creates a new tar archiver writing to w with the specified compression.
// Supported compression types: "gzip", "zstd", "none".
// If compression is empty, defaults to "gzip".
func NewTarArchiver(w io.Writer, compression string) (*TarArchiver, error) {
	ct, err := ParseCompression(compression)
	if err != nil {
		return nil, err
	}

	var compressor io.WriteCloser
	switch ct {
	case CompressionGzip:
		compressor = gzip.NewWriter(w)
	case CompressionZstd:
		compressor, err = zstd.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd writer: %w", err)
		}
	case CompressionNone:
		compressor = &nopWriteCloser{w}
	}

	return &TarArchiver{
		compressor:  compressor,
		tarWriter:   tar.NewWriter(compressor),
		compression: ct,
	}, nil
}

// AddDir adds a directory entry. The name gets a trailing slash if missing.
func (a *TarArchiver) AddDir(ctx context.Context, name string, info fs.FileInfo) error {
	if a.closed {
		return fmt.Errorf("archiver is closed")
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("failed to build tar header for %s: %w", name, err)
	}
	if !strings.HasSuffix(name, "/") {
		name += "/"
	}
	header.Name = name

	if err := a.tarWriter.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write tar header: %w", err)
	}

	return nil
}

// AddFile adds a regular file to the tar archive. The size is taken from info and exactly
// that many bytes are copied from data.
func (a *TarArchiver) AddFile(ctx context.Context, name string, info fs.FileInfo, data io.Reader) error {
	if a.closed {
		return fmt.Errorf("archiver is closed")
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("failed to build tar header for %s: %w", name, err)
	}
	header.Name = name

	if err := a.tarWriter.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write tar header: %w", err)
	}

	if _, err := io.CopyN(a.tarWriter, data, header.Size); err != nil {
		return fmt.Errorf("failed to write tar content: %w", err)
	}

	return nil
}

// Close finalizes the tar stream and flushes the compressor. It does not close the
// underlying writer.
func (a *TarArchiver) Close() error {
	if a.closed {
		return fmt.Errorf("archiver already closed")
	}
	a.closed = true

	// Close tar writer first
	if err := a.tarWriter.Close(); err != nil {
		return fmt.Errorf("failed to close tar writer: %w", err)
	}

	if err := a.compressor.Close(); err != nil {
		return fmt.Errorf("failed to close compressor: %w", err)
	}

	return nil
}

// Extension returns the file extension for this archive type.
func (a *TarArchiver) Extension() string {
	return a.compression.Extension()
}

// nopWriteCloser wraps a Writer to provide a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (n *nopWriteCloser) Close() error {
	return nil
}
