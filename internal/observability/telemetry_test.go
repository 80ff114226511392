package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestInitialize_Disabled(t *testing.T) {
	telemetry, err := Initialize(context.Background(), Config{ServiceName: "test", Enabled: false})
	require.NoError(t, err)

	assert.False(t, telemetry.Enabled())
	assert.NoError(t, telemetry.Shutdown(context.Background()))

	var missing *Telemetry
	assert.False(t, missing.Enabled())
	assert.NoError(t, missing.Shutdown(context.Background()))
}

func TestSampler(t *testing.T) {
	params := sdktrace.SamplingParameters{
		ParentContext: context.Background(),
		TraceID:       trace.TraceID{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		Name:          "ExchangeService.TryDoExchange",
	}

	tests := []struct {
		name     string
		ratio    float64
		decision sdktrace.SamplingDecision
	}{
		{name: "keep all", ratio: 1, decision: sdktrace.RecordAndSample},
		{name: "above one", ratio: 2, decision: sdktrace.RecordAndSample},
		{name: "drop all", ratio: 0, decision: sdktrace.Drop},
		{name: "negative", ratio: -1, decision: sdktrace.Drop},
		{name: "high trace id past a small ratio", ratio: 0.01, decision: sdktrace.Drop},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.decision, Sampler(tt.ratio).ShouldSample(params).Decision)
		})
	}
}
