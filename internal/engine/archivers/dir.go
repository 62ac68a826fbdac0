package archivers

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/pdfebc/pdfebc-web/internal/engine"
	"github.com/spf13/afero"
)

var (
	// ErrNotADirectory is returned when the archive source is missing or is not a directory.
	ErrNotADirectory = errors.New("source is not a directory")

	// ErrEmptySource is returned when the archive source directory has no entries.
	ErrEmptySource = errors.New("source directory is empty")
)

var _ engine.Archiver = (*DirArchiver)(nil)

// DirArchiver archives whole directories into a single file.
type DirArchiver struct {
	fs          afero.Fs
	compression CompressionType
}

func NewDirArchiver(fs afero.Fs, compression string) (*DirArchiver, error) {
	ct, err := ParseCompression(compression)
	if err != nil {
		return nil, err
	}
	return &DirArchiver{fs: fs, compression: ct}, nil
}

func (a *DirArchiver) Extension() string {
	return a.compression.Extension()
}

// Archive writes sourceDir into a single archive. Preconditions are checked before any
// output is created; sourceDir itself is never modified.
func (a *DirArchiver) Archive(ctx context.Context, sourceDir, outPath string) (_ string, err error) {
	info, err := a.fs.Stat(sourceDir)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("'%s': %w", sourceDir, ErrNotADirectory)
	}

	entries, err := afero.ReadDir(a.fs, sourceDir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory %s: %w", sourceDir, err)
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("'%s': %w", sourceDir, ErrEmptySource)
	}

	ext := a.Extension()
	if !strings.HasSuffix(outPath, ext) {
		outPath += ext
	}

	out, err := a.fs.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("failed to create archive %s: %w", outPath, err)
	}
	defer func() {
		err = errors.Join(err, out.Close())
		if err != nil {
			_ = a.fs.Remove(outPath)
		}
	}()

	tw, err := NewTarArchiver(out, string(a.compression))
	if err != nil {
		return "", err
	}

	root := filepath.Base(filepath.Clean(sourceDir))
	cleanOut := filepath.Clean(outPath)

	walkErr := afero.Walk(a.fs, sourceDir, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if filepath.Clean(p) == cleanOut {
			return nil
		}

		rel, err := filepath.Rel(sourceDir, p)
		if err != nil {
			return err
		}
		name := root
		if rel != "." {
			name = path.Join(root, filepath.ToSlash(rel))
		}

		switch {
		case info.IsDir():
			return tw.AddDir(ctx, name, info)
		case info.Mode().IsRegular():
			return a.addFile(ctx, tw, p, name, info)
		default:
			return nil
		}
	})
	if walkErr != nil {
		return "", fmt.Errorf("failed to archive %s: %w", sourceDir, walkErr)
	}

	if err := tw.Close(); err != nil {
		return "", err
	}

	return outPath, nil
}

func (a *DirArchiver) addFile(ctx context.Context, tw *TarArchiver, p, name string, info fs.FileInfo) error {
	f, err := a.fs.Open(p)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", p, err)
	}
	defer f.Close()

	return tw.AddFile(ctx, name, info, f)
}
