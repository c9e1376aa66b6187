package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDisabledInstallsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	_, span := Tracer().Start(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()

	assert.NoError(t, shutdown(context.Background()))
}

func TestRunAttributes(t *testing.T) {
	attrs := RunAttributes("T1", "run-1", 3)
	require.Len(t, attrs, 3)

	byKey := map[string]string{}
	for _, kv := range attrs {
		byKey[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "T1", byKey["ticket.id"])
	assert.Equal(t, "run-1", byKey["run.id"])
	assert.Equal(t, "3", byKey["criteria.count"])
}
