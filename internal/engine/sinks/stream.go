package sinks

import (
	"context"
	"fmt"
	"io"

	"github.com/pdfebc/pdfebc-web/internal/engine"
)

const StreamSinkKind = "stream"

// StreamSink copies every artifact, back to back, into a single writer such as an HTTP
// response or stdout.
type StreamSink struct {
	w       io.Writer
	written int64
}

func NewStreamSink(w io.Writer) *StreamSink {
	return &StreamSink{w: w}
}

func (s *StreamSink) Name() string {
	return "stream"
}

func (s *StreamSink) Kind() string {
	return StreamSinkKind
}

// Written returns the number of bytes copied so far.
func (s *StreamSink) Written() int64 {
	return s.written
}

func (s *StreamSink) Write(ctx context.Context, path string, data io.Reader) error {
	n, err := io.Copy(s.w, data)
	s.written += n
	if err != nil {
		return &DeliveryError{Sink: s.Name(), Err: fmt.Errorf("failed to copy %s: %w", path, err)}
	}
	return nil
}

func (s *StreamSink) Close(ctx context.Context) error {
	return nil
}

var _ engine.Sink = (*StreamSink)(nil)
