package sinks

import "fmt"

// DeliveryError reports that a sink could not hand artifacts to their destination.
type DeliveryError struct {
	Sink string
	Err  error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery through %s failed: %v", e.Sink, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
