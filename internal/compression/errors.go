package compression

import "fmt"

// CompressionError reports the input file whose compression failed. Outputs written before the
// failure are left in place.
type CompressionError struct {
	File   string
	Output string
	Err    error
}

func (e *CompressionError) Error() string {
	return fmt.Sprintf("failed to compress %q: %v", e.File, e.Err)
}

func (e *CompressionError) Unwrap() error {
	return e.Err
}
