package engine

import "context"

// Compressor runs one compression pass over a single file, writing the result to dst.
type Compressor interface {
	CompressFile(ctx context.Context, src, dst string) error
}

// CompressorFunc adapts a function to the Compressor interface.
type CompressorFunc func(ctx context.Context, src, dst string) error

func (f CompressorFunc) CompressFile(ctx context.Context, src, dst string) error {
	return f(ctx, src, dst)
}
