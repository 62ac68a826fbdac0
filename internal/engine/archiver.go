package engine

import (
	"context"
)

// Archiver bundles a directory into a single archive file.
type Archiver interface {
	// Archive writes every entry of sourceDir into one archive at outPath, nested under a
	// top-level entry named after sourceDir. The canonical extension is appended to outPath
	// when missing and the final path is returned.
	Archive(ctx context.Context, sourceDir, outPath string) (string, error)

	// Extension returns the canonical file extension for this archive type (e.g., ".tgz").
	Extension() string
}
