package engine

import (
	"context"
)

type Step interface {
	Named
	Resolve(ctx context.Context) (Result, error)
}

type StepFunc func(ctx context.Context) (Result, error)

type stepFunction struct {
	name string
	kind string
	fn   StepFunc
}

func (s *stepFunction) Name() string {
	return s.name
}

func (s *stepFunction) Kind() string {
	return s.kind
}

func (s *stepFunction) Resolve(ctx context.Context) (Result, error) {
	return s.fn(ctx)
}

func StepFunction(name string, kind string, fn StepFunc) Step {
	return &stepFunction{name: name, kind: kind, fn: fn}
}
