package engine

import (
	"context"
	"io"
)

// Sink delivers artifacts produced for a session to a destination (disk, object storage,
// email, an HTTP response). A sink is built per delivery and must be closed exactly once;
// sinks that batch their writes perform the actual delivery on Close.
type Sink interface {
	Named
	Closer

	// Write delivers a single artifact under the given relative path.
	Write(ctx context.Context, path string, data io.Reader) error
}

// DeliveryTarget identifies what a sink is being built for.
type DeliveryTarget struct {
	SessionID string
}
