package archivers

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readTarEntries decompresses the reader (gzip, zstd, or none) and returns a map of entry name -> content.
// Directory entries map to an empty string.
func readTarEntries(r io.Reader, compression string) (map[string]string, error) {
	var decompressed io.Reader
	switch compression {
	case "gzip":
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		defer gr.Close()
		decompressed = gr
	case "zstd":
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		decompressed = zr
	case "none":
		decompressed = r
	default:
		return nil, fmt.Errorf("unknown compression: %s", compression)
	}
	tr := tar.NewReader(decompressed)
	found := make(map[string]string)
	for {
		h, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		content, err := io.ReadAll(tr)
		if err != nil {
			return nil, err
		}
		found[h.Name] = string(content)
	}
	return found, nil
}

func writeTempFile(t *testing.T, name, content string) os.FileInfo {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	info, err := os.Stat(p)
	require.NoError(t, err)
	return info
}

func TestNewTarArchiver(t *testing.T) {
	tests := []struct {
		name        string
		compression string
		wantExt     string
		wantErr     bool
	}{
		{
			name:        "gzip compression",
			compression: "gzip",
			wantExt:     ".tgz",
		},
		{
			name:        "zstd compression",
			compression: "zstd",
			wantExt:     ".tar.zst",
		},
		{
			name:        "no compression",
			compression: "none",
			wantExt:     ".tar",
		},
		{
			name:        "empty defaults to gzip",
			compression: "",
			wantExt:     ".tgz",
		},
		{
			name:        "unsupported compression",
			compression: "bzip2",
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			archiver, err := NewTarArchiver(io.Discard, tt.compression)
			if tt.wantErr {
				require.Error(t, err, "NewTarArchiver() expected error")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantExt, archiver.Extension())
		})
	}
}

func TestTarArchiver_Compressions(t *testing.T) {
	for _, compression := range []string{"gzip", "zstd", "none"} {
		t.Run(compression, func(t *testing.T) {
			var buf bytes.Buffer
			archiver, err := NewTarArchiver(&buf, compression)
			require.NoError(t, err)

			content := "hello, world!"
			info := writeTempFile(t, "test.txt", content)
			require.NoError(t, archiver.AddFile(t.Context(), "root/test.txt", info, bytes.NewReader([]byte(content))))
			require.NoError(t, archiver.Close())

			found, err := readTarEntries(&buf, compression)
			require.NoError(t, err)
			assert.Len(t, found, 1)
			assert.Equal(t, content, found["root/test.txt"])
		})
	}
}

func TestTarArchiver_AddDirAppendsSlash(t *testing.T) {
	var buf bytes.Buffer
	archiver, err := NewTarArchiver(&buf, "gzip")
	require.NoError(t, err)

	info, err := os.Stat(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, archiver.AddDir(t.Context(), "compressed_files", info))
	require.NoError(t, archiver.Close())

	found, err := readTarEntries(&buf, "gzip")
	require.NoError(t, err)
	assert.Contains(t, found, "compressed_files/")
}

func TestTarArchiver_ShortReader(t *testing.T) {
	archiver, err := NewTarArchiver(io.Discard, "gzip")
	require.NoError(t, err)

	info := writeTempFile(t, "test.txt", "twelve bytes")
	err = archiver.AddFile(t.Context(), "test.txt", info, bytes.NewReader([]byte("short")))
	require.Error(t, err)
	assert.ErrorContains(t, err, "failed to write tar content")
}

func TestTarArchiver_CloseTwice(t *testing.T) {
	archiver, err := NewTarArchiver(io.Discard, "gzip")
	require.NoError(t, err)

	require.NoError(t, archiver.Close())

	// Second close should error
	require.Error(t, archiver.Close(), "Close() second call should error")
}

func TestTarArchiver_AddFileAfterClose(t *testing.T) {
	archiver, err := NewTarArchiver(io.Discard, "gzip")
	require.NoError(t, err)

	require.NoError(t, archiver.Close())

	info := writeTempFile(t, "test.txt", "content")
	err = archiver.AddFile(t.Context(), "test.txt", info, bytes.NewReader([]byte("content")))
	require.Error(t, err, "AddFile() after Close() should error")
}
