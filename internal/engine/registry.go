package engine

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

type SinkFactory func(ctx context.Context, logger *zap.Logger, target DeliveryTarget, input any) (Sink, error)

// TypedSinkFactory is a strongly-typed sink factory.
// T is the concrete spec type (e.g. *v1.EmailDelivery).
type TypedSinkFactory[T any] func(ctx context.Context, logger *zap.Logger, target DeliveryTarget, spec T) (Sink, error)

// NewSinkFactory wraps a typed sink factory into a generic SinkFactory.
// It centralizes the unsafe cast from any → T and provides a clear error if the type mismatches.
func NewSinkFactory[T any](kind string, f TypedSinkFactory[T]) SinkFactory {
	return func(ctx context.Context, logger *zap.Logger, target DeliveryTarget, input any) (Sink, error) {
		spec, ok := input.(T)
		if !ok {
			return nil, fmt.Errorf("invalid sink spec for kind %q: %T", kind, input)
		}
		return f(ctx, logger, target, spec)
	}
}

// UnsupportedTypeError is returned when a sink kind is not registered.
type UnsupportedTypeError struct {
	Category  string   // "sink"
	Kind      string   // the requested kind
	Available []string // registered kinds
}

func (e *UnsupportedTypeError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("unsupported %s type %q: no %ss registered", e.Category, e.Kind, e.Category)
	}
	return fmt.Sprintf("unsupported %s type %q (available: %v)", e.Category, e.Kind, e.Available)
}

type Registry struct {
	mu     sync.RWMutex
	sinks  map[string]SinkFactory
	logger *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		sinks:  make(map[string]SinkFactory),
		logger: logger,
	}
}

func (r *Registry) RegisterSink(kind string, factory SinkFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[kind] = factory
}

func (r *Registry) CreateSink(ctx context.Context, kind string, target DeliveryTarget, spec any) (Sink, error) {
	r.mu.RLock()
	factory, ok := r.sinks[kind]
	available := r.availableSinks()
	r.mu.RUnlock()
	if !ok {
		return nil, &UnsupportedTypeError{Category: "sink", Kind: kind, Available: available}
	}
	return factory(ctx, r.logger, target, spec)
}

func (r *Registry) AvailableSinks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.availableSinks()
}

func (r *Registry) availableSinks() []string {
	sinks := lo.Keys(r.sinks)
	slices.Sort(sinks)
	return sinks
}
