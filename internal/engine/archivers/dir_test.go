package archivers

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOsArchiver(t *testing.T) *DirArchiver {
	t.Helper()
	archiver, err := NewDirArchiver(afero.NewOsFs(), "gzip")
	require.NoError(t, err)
	return archiver
}

func fillDir(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
}

type extracted struct {
	dirs  []string
	files map[string]string
}

func extractTgz(t *testing.T, p string) extracted {
	t.Helper()
	f, err := os.Open(p)
	require.NoError(t, err)
	defer f.Close()

	gr, err := gzip.NewReader(f)
	require.NoError(t, err)
	defer gr.Close()

	out := extracted{files: make(map[string]string)}
	tr := tar.NewReader(gr)
	for {
		h, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		if h.Typeflag == tar.TypeDir {
			out.dirs = append(out.dirs, h.Name)
			continue
		}
		content, err := io.ReadAll(tr)
		require.NoError(t, err)
		out.files[h.Name] = string(content)
	}
	return out
}

func TestDirArchiver_Archive(t *testing.T) {
	tests := []struct {
		name    string
		outName string
		wantOut string
	}{
		{
			name:    "keeps canonical suffix",
			outName: "blabla.tgz",
			wantOut: "blabla.tgz",
		},
		{
			name:    "appends canonical suffix",
			outName: "blabla.bliblu",
			wantOut: "blabla.bliblu.tgz",
		},
		{
			name:    "appends suffix to bin",
			outName: "x.bin",
			wantOut: "x.bin.tgz",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := filepath.Join(t.TempDir(), "source")
			fillDir(t, src, map[string]string{"a.pdf": "aaa", "b.pdf": "bbbbb"})
			outDir := t.TempDir()

			got, err := newOsArchiver(t).Archive(t.Context(), src, filepath.Join(outDir, tt.outName))
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(outDir, tt.wantOut), got)

			entries, err := os.ReadDir(outDir)
			require.NoError(t, err)
			require.Len(t, entries, 1)
			assert.Equal(t, tt.wantOut, entries[0].Name())
		})
	}
}

func TestDirArchiver_RoundTrip(t *testing.T) {
	src := filepath.Join(t.TempDir(), "compressed_files")
	files := map[string]string{}
	for i := range 20 {
		files[fmt.Sprintf("file%02d.pdf", i)] = fmt.Sprintf("content of file %d", i)
	}
	fillDir(t, src, files)

	out, err := newOsArchiver(t).Archive(t.Context(), src, filepath.Join(t.TempDir(), "bundle"))
	require.NoError(t, err)

	got := extractTgz(t, out)
	assert.Equal(t, []string{"compressed_files/"}, got.dirs)
	assert.Len(t, got.files, len(files))
	for name, content := range files {
		assert.Equal(t, content, got.files["compressed_files/"+name], "file %s", name)
	}

	// source is left untouched
	entries, err := os.ReadDir(src)
	require.NoError(t, err)
	assert.Len(t, entries, len(files))
}

func TestDirArchiver_NestedPaths(t *testing.T) {
	src := filepath.Join(t.TempDir(), "out")
	fillDir(t, src, map[string]string{"top.pdf": "t", "sub/inner.pdf": "i"})

	out, err := newOsArchiver(t).Archive(t.Context(), src, filepath.Join(t.TempDir(), "nested.tgz"))
	require.NoError(t, err)

	got := extractTgz(t, out)
	assert.ElementsMatch(t, []string{"out/", "out/sub/"}, got.dirs)
	assert.Equal(t, map[string]string{"out/top.pdf": "t", "out/sub/inner.pdf": "i"}, got.files)
}

func TestDirArchiver_EmptySource(t *testing.T) {
	src := t.TempDir()
	outDir := t.TempDir()

	_, err := newOsArchiver(t).Archive(t.Context(), src, filepath.Join(outDir, "blabla.tgz"))
	require.ErrorIs(t, err, ErrEmptySource)

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no archive should be produced")
}

func TestDirArchiver_NotADirectory(t *testing.T) {
	t.Run("source is a file", func(t *testing.T) {
		dir := t.TempDir()
		file := filepath.Join(dir, "file.pdf")
		require.NoError(t, os.WriteFile(file, []byte("pdf"), 0644))

		_, err := newOsArchiver(t).Archive(t.Context(), file, filepath.Join(dir, "badonka.tgz"))
		require.ErrorIs(t, err, ErrNotADirectory)
	})

	t.Run("source does not exist", func(t *testing.T) {
		dir := t.TempDir()
		_, err := newOsArchiver(t).Archive(t.Context(), filepath.Join(dir, "gone"), filepath.Join(dir, "badonka.tgz"))
		require.ErrorIs(t, err, ErrNotADirectory)
	})
}

func TestDirArchiver_OutputInsideSource(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/cache/abc123/report.pdf", []byte("pdf"), 0644))

	archiver, err := NewDirArchiver(fs, "gzip")
	require.NoError(t, err)

	out, err := archiver.Archive(t.Context(), "/cache/abc123", "/cache/abc123/compressed_files")
	require.NoError(t, err)
	assert.Equal(t, "/cache/abc123/compressed_files.tgz", out)

	f, err := fs.Open(out)
	require.NoError(t, err)
	defer f.Close()
	gr, err := gzip.NewReader(f)
	require.NoError(t, err)
	tr := tar.NewReader(gr)

	var names []string
	for {
		h, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names = append(names, h.Name)
	}
	assert.Equal(t, []string{"abc123/", "abc123/report.pdf"}, names)
}

func TestDirArchiver_CancelledContextRemovesOutput(t *testing.T) {
	src := filepath.Join(t.TempDir(), "source")
	fillDir(t, src, map[string]string{"a.pdf": "a"})
	outDir := t.TempDir()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := newOsArchiver(t).Archive(ctx, src, filepath.Join(outDir, "cancelled.tgz"))
	require.ErrorIs(t, err, context.Canceled)

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNewDirArchiver_Zstd(t *testing.T) {
	archiver, err := NewDirArchiver(afero.NewMemMapFs(), "zstd")
	require.NoError(t, err)
	assert.Equal(t, ".tar.zst", archiver.Extension())

	_, err = NewDirArchiver(afero.NewMemMapFs(), "lz4")
	require.Error(t, err)
}
