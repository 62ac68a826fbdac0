package sinks

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func TestStreamSink_Write(t *testing.T) {
	var buf bytes.Buffer
	sink := NewStreamSink(&buf)

	require.NoError(t, sink.Write(t.Context(), "a.tgz", bytes.NewBufferString("first")))
	require.NoError(t, sink.Write(t.Context(), "b.tgz", bytes.NewBufferString("second")))
	require.NoError(t, sink.Close(t.Context()))

	assert.Equal(t, "firstsecond", buf.String())
	assert.Equal(t, int64(11), sink.Written())
	assert.Equal(t, "stream", sink.Name())
	assert.Equal(t, "stream", sink.Kind())
}

func TestStreamSink_WriteFailure(t *testing.T) {
	sink := NewStreamSink(failingWriter{})

	err := sink.Write(t.Context(), "a.tgz", bytes.NewBufferString("data"))
	require.Error(t, err)

	var deliveryErr *DeliveryError
	require.ErrorAs(t, err, &deliveryErr)
	assert.Equal(t, "stream", deliveryErr.Sink)
	assert.ErrorContains(t, err, "broken pipe")
}
