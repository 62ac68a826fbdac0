// Package staging manages per-session upload directories under a shared cache root.
//
// Every session owns exactly one directory, <root>/<session-id>, which holds the uploaded
// source files and, transiently, the compression outputs and the archive artifact. No
// directory state is cached in memory: every call re-derives it from the filesystem so
// that several processes can share the same cache root.
package staging

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/afero"
)

const (
	// DefaultArchiveExtension is the canonical suffix of archive artifacts.
	DefaultArchiveExtension = ".tgz"

	processingMarker = ".processing"
	dirPerm          = 0755
	filePerm         = 0644
)

var (
	ErrAlreadyExists     = errors.New("session upload directory already exists")
	ErrNotFound          = errors.New("session upload directory not found")
	ErrInvalidSessionID  = errors.New("invalid session id")
	ErrInvalidFilename   = errors.New("invalid filename")
	ErrAlreadyProcessing = errors.New("session is already being processed")
)

type Store struct {
	fs         afero.Fs
	root       string
	archiveExt string
}

type Option func(*Store)

// WithArchiveExtension overrides the suffix HasArchive looks for.
func WithArchiveExtension(ext string) Option {
	return func(s *Store) {
		s.archiveExt = ext
	}
}

func NewStore(fs afero.Fs, root string, opts ...Option) *Store {
	s := &Store{
		fs:         fs,
		root:       filepath.Clean(root),
		archiveExt: DefaultArchiveExtension,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewStoreFromPath creates the cache root on the OS filesystem if needed and verifies that
// it is writable.
func NewStoreFromPath(root string, opts ...Option) (*Store, error) {
	fs := afero.NewOsFs()
	cleanRoot := filepath.Clean(root)

	if err := fs.MkdirAll(cleanRoot, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create cache root %s: %w", cleanRoot, err)
	}

	probe, err := afero.TempFile(fs, cleanRoot, ".probe-*")
	if err != nil {
		return nil, fmt.Errorf("cache root %s is not writable: %w", cleanRoot, err)
	}
	name := probe.Name()
	_ = probe.Close()
	if err := fs.Remove(name); err != nil {
		return nil, fmt.Errorf("failed to remove probe file in %s: %w", cleanRoot, err)
	}

	return NewStore(fs, cleanRoot, opts...), nil
}

func (s *Store) Root() string {
	return s.root
}

func (s *Store) Fs() afero.Fs {
	return s.fs
}

func (s *Store) ArchiveExtension() string {
	return s.archiveExt
}

// Path returns the staging directory of a session. It performs no I/O.
func (s *Store) Path(sessionID string) string {
	return filepath.Join(s.root, sessionID)
}

// Exists reports whether the session directory is present on disk.
func (s *Store) Exists(sessionID string) bool {
	if ValidateSessionID(sessionID) != nil {
		return false
	}
	ok, err := afero.DirExists(s.fs, s.Path(sessionID))
	return err == nil && ok
}

// Create creates the session directory and any missing parents. It fails with
// ErrAlreadyExists when the directory is already present.
func (s *Store) Create(sessionID string) error {
	if err := ValidateSessionID(sessionID); err != nil {
		return err
	}

	if err := s.fs.MkdirAll(s.root, dirPerm); err != nil {
		return fmt.Errorf("failed to create cache root %s: %w", s.root, err)
	}

	dir := s.Path(sessionID)
	if err := s.fs.Mkdir(dir, dirPerm); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("'%s': %w", dir, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	return nil
}

// EnsureExists creates the session directory if it is absent.
func (s *Store) EnsureExists(sessionID string) error {
	err := s.Create(sessionID)
	if errors.Is(err, ErrAlreadyExists) {
		return nil
	}
	return err
}

// Delete recursively removes the session directory. It fails with ErrNotFound when the
// directory does not exist.
func (s *Store) Delete(sessionID string) error {
	if err := ValidateSessionID(sessionID); err != nil {
		return err
	}

	dir := s.Path(sessionID)
	if !s.Exists(sessionID) {
		return fmt.Errorf("'%s': %w", dir, ErrNotFound)
	}

	if err := s.fs.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove %s: %w", dir, err)
	}

	return nil
}

// ListUploaded returns the names of the entries directly inside the session directory,
// sorted by name. A non-empty suffix keeps only names ending with it (case-insensitive).
// An absent directory yields an empty list.
func (s *Store) ListUploaded(sessionID string, suffix string) ([]string, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return nil, err
	}

	entries, err := afero.ReadDir(s.fs, s.Path(sessionID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", s.Path(sessionID), err)
	}

	names := lo.FilterMap(entries, func(entry os.FileInfo, _ int) (string, bool) {
		name := entry.Name()
		if name == processingMarker {
			return "", false
		}
		return name, hasSuffixFold(name, suffix)
	})

	return names, nil
}

// HasArchive reports whether any entry of the session directory carries the archive suffix.
func (s *Store) HasArchive(sessionID string) bool {
	names, err := s.ListUploaded(sessionID, s.archiveExt)
	return err == nil && len(names) > 0
}

// Save writes an uploaded blob into the session directory under its sanitized name,
// creating the directory when needed. The stored name is returned.
func (s *Store) Save(sessionID, filename string, data io.Reader) (_ string, err error) {
	name, err := SanitizeFilename(filename)
	if err != nil {
		return "", err
	}

	if err := s.EnsureExists(sessionID); err != nil {
		return "", err
	}

	p := filepath.Join(s.Path(sessionID), name)
	f, err := s.fs.OpenFile(p, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, filePerm)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", p, err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	if _, err := io.Copy(f, data); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", p, err)
	}

	return name, nil
}

// MarkProcessing claims the session for a compression run. A second claim fails with
// ErrAlreadyProcessing until ClearProcessing or Delete is called.
func (s *Store) MarkProcessing(sessionID string) error {
	if err := ValidateSessionID(sessionID); err != nil {
		return err
	}
	if !s.Exists(sessionID) {
		return fmt.Errorf("'%s': %w", s.Path(sessionID), ErrNotFound)
	}

	p := filepath.Join(s.Path(sessionID), processingMarker)
	f, err := s.fs.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, filePerm)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("'%s': %w", s.Path(sessionID), ErrAlreadyProcessing)
		}
		return fmt.Errorf("failed to create processing marker: %w", err)
	}

	return f.Close()
}

func (s *Store) ClearProcessing(sessionID string) error {
	if err := ValidateSessionID(sessionID); err != nil {
		return err
	}

	err := s.fs.Remove(filepath.Join(s.Path(sessionID), processingMarker))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove processing marker: %w", err)
	}
	return nil
}

func (s *Store) IsProcessing(sessionID string) bool {
	if ValidateSessionID(sessionID) != nil {
		return false
	}
	ok, err := afero.Exists(s.fs, filepath.Join(s.Path(sessionID), processingMarker))
	return err == nil && ok
}

func hasSuffixFold(name, suffix string) bool {
	if suffix == "" {
		return true
	}
	return len(name) >= len(suffix) && strings.EqualFold(name[len(name)-len(suffix):], suffix)
}
