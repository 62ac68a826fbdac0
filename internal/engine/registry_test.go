package engine

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Mock types for testing

type mockSink struct {
	name string
	kind string
}

func (m *mockSink) Name() string { return m.name }
func (m *mockSink) Kind() string { return m.kind }

func (m *mockSink) Write(context.Context, string, io.Reader) error { return nil }
func (m *mockSink) Close(context.Context) error                    { return nil }

type testSinkSpec struct {
	Value string
}

type wrongSpec struct{}

func TestNewSinkFactory(t *testing.T) {
	logger := zap.NewNop()
	ctx := t.Context()
	target := DeliveryTarget{SessionID: "abc123"}

	t.Run("correct spec type returns sink", func(t *testing.T) {
		expectedSink := &mockSink{name: "test", kind: "test_kind"}

		factory := NewSinkFactory("test_kind", func(_ context.Context, _ *zap.Logger, tgt DeliveryTarget, spec testSinkSpec) (Sink, error) {
			assert.Equal(t, "abc123", tgt.SessionID)
			assert.Equal(t, "test_value", spec.Value)
			return expectedSink, nil
		})

		sink, err := factory(ctx, logger, target, testSinkSpec{Value: "test_value"})

		require.NoError(t, err)
		assert.Equal(t, expectedSink, sink)
	})

	t.Run("wrong spec type returns error", func(t *testing.T) {
		factory := NewSinkFactory("test_kind", func(_ context.Context, _ *zap.Logger, _ DeliveryTarget, _ testSinkSpec) (Sink, error) {
			t.Fatal("factory should not be called with wrong spec type")
			return nil, nil
		})

		sink, err := factory(ctx, logger, target, wrongSpec{})

		require.Error(t, err)
		assert.Nil(t, sink)
		assert.ErrorContains(t, err, "test_kind")
		assert.ErrorContains(t, err, "wrongSpec")
	})
}

func TestRegistry_CreateSink(t *testing.T) {
	registry := NewRegistry(zap.NewNop())
	registry.RegisterSink("b_kind", NewSinkFactory("b_kind", func(_ context.Context, _ *zap.Logger, _ DeliveryTarget, spec testSinkSpec) (Sink, error) {
		return &mockSink{name: spec.Value, kind: "b_kind"}, nil
	}))
	registry.RegisterSink("a_kind", NewSinkFactory("a_kind", func(_ context.Context, _ *zap.Logger, _ DeliveryTarget, _ testSinkSpec) (Sink, error) {
		return &mockSink{kind: "a_kind"}, nil
	}))

	t.Run("registered kind builds sink", func(t *testing.T) {
		sink, err := registry.CreateSink(t.Context(), "b_kind", DeliveryTarget{}, testSinkSpec{Value: "built"})
		require.NoError(t, err)
		assert.Equal(t, "built", sink.Name())
	})

	t.Run("unknown kind returns UnsupportedTypeError", func(t *testing.T) {
		_, err := registry.CreateSink(t.Context(), "carrier_pigeon", DeliveryTarget{}, testSinkSpec{})
		require.Error(t, err)

		var unsupported *UnsupportedTypeError
		require.ErrorAs(t, err, &unsupported)
		assert.Equal(t, "sink", unsupported.Category)
		assert.Equal(t, "carrier_pigeon", unsupported.Kind)
		assert.Equal(t, []string{"a_kind", "b_kind"}, unsupported.Available)
	})

	t.Run("available sinks are sorted", func(t *testing.T) {
		assert.Equal(t, []string{"a_kind", "b_kind"}, registry.AvailableSinks())
	})
}

func TestUnsupportedTypeError_Empty(t *testing.T) {
	registry := NewRegistry(zap.NewNop())
	_, err := registry.CreateSink(t.Context(), "email", DeliveryTarget{}, nil)
	require.Error(t, err)
	assert.EqualError(t, err, `unsupported sink type "email": no sinks registered`)
}
