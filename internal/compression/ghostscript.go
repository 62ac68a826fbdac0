package compression

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	GhostscriptKind = "ghostscript"

	DefaultBinary  = "gs"
	DefaultLevel   = "default"
	DefaultTimeout = 5 * time.Minute
)

// Levels lists the accepted -dPDFSETTINGS presets.
var Levels = []string{"screen", "ebook", "printer", "prepress", "default"}

type GhostscriptConfig struct {
	Binary  string
	Level   string
	Timeout time.Duration
}

// Ghostscript compresses a PDF by re-rendering it through the pdfwrite device.
type Ghostscript struct {
	logger  *zap.Logger
	binary  string
	level   string
	timeout time.Duration
}

func NewGhostscript(logger *zap.Logger, cfg GhostscriptConfig) (*Ghostscript, error) {
	binary := cfg.Binary
	if binary == "" {
		binary = DefaultBinary
	}

	level := cfg.Level
	if level == "" {
		level = DefaultLevel
	}
	if !slices.Contains(Levels, level) {
		return nil, fmt.Errorf("invalid compression level %q, expected one of %s", level, strings.Join(Levels, ", "))
	}

	timeout := cfg.Timeout
	if timeout < 0 {
		return nil, fmt.Errorf("invalid timeout %s", timeout)
	}
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &Ghostscript{
		logger:  logger,
		binary:  binary,
		level:   level,
		timeout: timeout,
	}, nil
}

// ResolveBinary looks binary up on PATH once so that every invocation runs the same executable.
func ResolveBinary(binary string) (string, error) {
	if binary == "" {
		binary = DefaultBinary
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return "", fmt.Errorf("compressor binary %q not found: %w", binary, err)
	}
	return path, nil
}

func (g *Ghostscript) Name() string {
	return g.binary
}

func (g *Ghostscript) Kind() string {
	return GhostscriptKind
}

func (g *Ghostscript) Binary() string {
	return g.binary
}

func (g *Ghostscript) Level() string {
	return g.level
}

func (g *Ghostscript) Timeout() time.Duration {
	return g.timeout
}

// Args returns the command line arguments used to compress src into dst.
func (g *Ghostscript) Args(src, dst string) []string {
	return []string{
		"-sDEVICE=pdfwrite",
		"-dCompatibilityLevel=1.4",
		"-dPDFSETTINGS=/" + g.level,
		"-dNOPAUSE",
		"-dQUIET",
		"-dBATCH",
		"-sOutputFile=" + dst,
		src,
	}
}

func (g *Ghostscript) CompressFile(ctx context.Context, src, dst string) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	args := g.Args(src, dst)
	cmd := exec.CommandContext(ctx, g.binary, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	g.logger.Debug("invoking compressor",
		zap.String("binary", g.binary),
		zap.Strings("args", args),
		zap.Duration("timeout", g.timeout),
	)
	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)
	exitCode := -1
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}
	g.logger.Debug("compressor finished",
		zap.String("src", src),
		zap.Int("exit_code", exitCode),
		zap.Duration("duration", duration),
	)

	if err != nil {
		output := strings.TrimSpace(strings.Join([]string{stderr.String(), stdout.String()}, "\n"))
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("command timed out after %s: %s", g.timeout, output)
		}
		if output != "" {
			return fmt.Errorf("command failed: %w: %s", err, output)
		}
		return fmt.Errorf("command failed: %w", err)
	}

	info, err := os.Stat(dst)
	if err != nil {
		return fmt.Errorf("compressor produced no output: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("compressor output %s is not a regular file", dst)
	}

	return nil
}
