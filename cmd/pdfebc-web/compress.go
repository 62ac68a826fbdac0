package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pdfebc/pdfebc-web/internal/compression"
	"github.com/pdfebc/pdfebc-web/internal/engine/archivers"
	"github.com/pdfebc/pdfebc-web/internal/engine/sinks"
	"github.com/pdfebc/pdfebc-web/internal/runner"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

var compressCommand = &cli.Command{
	Name:  "compress",
	Usage: "Compress every PDF of a local directory into one archive",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "out",
			Aliases: []string{"o"},
			Usage:   "Archive path, or - for stdout (default: compressed_files plus the archive suffix)",
		},
		&cli.StringFlag{
			Name:  "binary",
			Value: compression.DefaultBinary,
			Usage: "Ghostscript binary",
		},
		&cli.StringFlag{
			Name:  "level",
			Value: compression.DefaultLevel,
			Usage: "Ghostscript PDFSETTINGS preset (screen, ebook, printer, prepress, default)",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Value: compression.DefaultTimeout,
			Usage: "Timeout for a single file",
		},
		&cli.StringFlag{
			Name:  "compression",
			Value: string(archivers.CompressionGzip),
			Usage: "Archive compression (gzip, zstd, none)",
		},
	},
	Arguments: []cli.Argument{
		&cli.StringArg{
			Name:      "dir",
			UsageText: "The directory holding the PDF files",
		},
	},
	Action: func(ctx context.Context, command *cli.Command) error {
		logger := getLogger(ctx)

		dir := command.StringArg("dir")
		if dir == "" {
			return fmt.Errorf("no directory provided")
		}

		binary, err := compression.ResolveBinary(command.String("binary"))
		if err != nil {
			return err
		}

		gs, err := compression.NewGhostscript(logger.Named("ghostscript"), compression.GhostscriptConfig{
			Binary:  binary,
			Level:   command.String("level"),
			Timeout: command.Duration("timeout"),
		})
		if err != nil {
			return err
		}

		tmpDir, err := os.MkdirTemp("", "pdfebc-*")
		if err != nil {
			return fmt.Errorf("failed to create work directory: %w", err)
		}
		defer os.RemoveAll(tmpDir)

		var progress compression.ProgressFunc
		if isInteractive(ctx) {
			progress = func(msg string) error {
				_, err := fmt.Fprintln(os.Stderr, msg)
				return err
			}
		}

		fs := afero.NewOsFs()
		outDir := filepath.Join(tmpDir, runner.CompressedDirName)
		orchestrator := compression.NewOrchestrator(logger.Named("compression"), fs, gs)
		outputs, err := orchestrator.CompressAll(ctx, dir, outDir, progress)
		if err != nil {
			return err
		}
		if len(outputs) == 0 {
			return fmt.Errorf("no PDF files found in '%s'", dir)
		}

		out := command.String("out")
		if out == "-" {
			return streamArchive(ctx, fs, outputs, command.String("compression"))
		}

		archiver, err := archivers.NewDirArchiver(fs, command.String("compression"))
		if err != nil {
			return err
		}
		if out == "" {
			out = runner.CompressedDirName
		}

		archivePath, err := archiver.Archive(ctx, outDir, out)
		if err != nil {
			return fmt.Errorf("failed to archive compressed files: %w", err)
		}

		logger.Info("compressed files", zap.Int("files", len(outputs)), zap.String("archive", archivePath))
		return nil
	},
}

// streamArchive writes the compressed files to stdout as one archive.
func streamArchive(ctx context.Context, fs afero.Fs, outputs []string, compressionType string) (err error) {
	sink, err := sinks.NewArchiveSink(sinks.NewStreamSink(os.Stdout), runner.CompressedDirName, compressionType)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, sink.Close(ctx))
	}()

	for _, output := range outputs {
		f, err := fs.Open(output)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", output, err)
		}
		err = sink.Write(ctx, filepath.Join(runner.CompressedDirName, filepath.Base(output)), f)
		f.Close()
		if err != nil {
			return err
		}
	}

	return nil
}
