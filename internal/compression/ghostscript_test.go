package compression

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not supported on windows")
	}

	path := filepath.Join(t.TempDir(), "fake-gs")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

const copyScript = `out=""
for arg in "$@"; do
  case "$arg" in
    -sOutputFile=*) out="${arg#-sOutputFile=}" ;;
  esac
  src="$arg"
done
cp "$src" "$out"
`

func TestNewGhostscript_Validation(t *testing.T) {
	tests := []struct {
		name        string
		cfg         GhostscriptConfig
		wantBinary  string
		wantLevel   string
		wantTimeout time.Duration
		errContains string
	}{
		{
			name:        "defaults",
			cfg:         GhostscriptConfig{},
			wantBinary:  "gs",
			wantLevel:   "default",
			wantTimeout: 5 * time.Minute,
		},
		{
			name:        "explicit values",
			cfg:         GhostscriptConfig{Binary: "/usr/local/bin/gs", Level: "ebook", Timeout: time.Second},
			wantBinary:  "/usr/local/bin/gs",
			wantLevel:   "ebook",
			wantTimeout: time.Second,
		},
		{
			name:        "unknown level",
			cfg:         GhostscriptConfig{Level: "tiny"},
			errContains: `invalid compression level "tiny"`,
		},
		{
			name:        "negative timeout",
			cfg:         GhostscriptConfig{Timeout: -time.Second},
			errContains: "invalid timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gs, err := NewGhostscript(zap.NewNop(), tt.cfg)
			if tt.errContains != "" {
				require.Error(t, err)
				assert.ErrorContains(t, err, tt.errContains)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBinary, gs.Binary())
			assert.Equal(t, tt.wantLevel, gs.Level())
			assert.Equal(t, tt.wantTimeout, gs.Timeout())
		})
	}
}

func TestGhostscript_Args(t *testing.T) {
	gs, err := NewGhostscript(zap.NewNop(), GhostscriptConfig{Level: "screen"})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"-sDEVICE=pdfwrite",
		"-dCompatibilityLevel=1.4",
		"-dPDFSETTINGS=/screen",
		"-dNOPAUSE",
		"-dQUIET",
		"-dBATCH",
		"-sOutputFile=/out/a.pdf",
		"/in/a.pdf",
	}, gs.Args("/in/a.pdf", "/out/a.pdf"))
}

func TestGhostscript_CompressFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.pdf")
	require.NoError(t, os.WriteFile(src, []byte("%PDF-1.7"), 0o644))

	tests := []struct {
		name        string
		script      string
		timeout     time.Duration
		errContains string
	}{
		{
			name:   "writes output",
			script: copyScript,
		},
		{
			name:        "non-zero exit carries stderr",
			script:      "echo 'Unrecoverable error' >&2\nexit 3\n",
			errContains: "command failed: exit status 3: Unrecoverable error",
		},
		{
			name:        "missing output",
			script:      "exit 0\n",
			errContains: "compressor produced no output",
		},
		{
			name:        "timeout",
			script:      "exec sleep 5\n",
			timeout:     100 * time.Millisecond,
			errContains: "command timed out after 100ms",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gs, err := NewGhostscript(zap.NewNop(), GhostscriptConfig{
				Binary:  writeScript(t, tt.script),
				Timeout: tt.timeout,
			})
			require.NoError(t, err)

			dst := filepath.Join(t.TempDir(), "out.pdf")
			err = gs.CompressFile(t.Context(), src, dst)
			if tt.errContains != "" {
				require.Error(t, err)
				assert.ErrorContains(t, err, tt.errContains)
				return
			}
			require.NoError(t, err)

			data, err := os.ReadFile(dst)
			require.NoError(t, err)
			assert.Equal(t, "%PDF-1.7", string(data))
		})
	}
}

func TestGhostscript_MissingBinary(t *testing.T) {
	gs, err := NewGhostscript(zap.NewNop(), GhostscriptConfig{Binary: filepath.Join(t.TempDir(), "no-such-gs")})
	require.NoError(t, err)

	err = gs.CompressFile(t.Context(), "in.pdf", "out.pdf")
	require.Error(t, err)
	assert.ErrorContains(t, err, "command failed")
}

func TestResolveBinary(t *testing.T) {
	script := writeScript(t, "exit 0\n")

	path, err := ResolveBinary(script)
	require.NoError(t, err)
	assert.Equal(t, script, path)

	_, err = ResolveBinary(filepath.Join(t.TempDir(), "no-such-gs"))
	require.Error(t, err)
	assert.ErrorContains(t, err, "compressor binary")
	assert.ErrorContains(t, err, "not found")
}
