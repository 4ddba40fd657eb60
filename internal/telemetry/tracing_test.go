package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitTracerProviderDisabled(t *testing.T) {
	shutdown, err := InitTracerProvider(context.Background(), Config{})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestInitTracerProviderProducesTraceIDs(t *testing.T) {
	shutdown, err := InitTracerProvider(context.Background(), Config{
		Enabled:     true,
		ServiceName: "lpsn-scraper-test",
		SampleRatio: 1,
	})
	require.NoError(t, err)
	defer func() {
		require.NoError(t, shutdown(context.Background()))
	}()

	ctx, span := otel.Tracer("test").Start(context.Background(), "op")
	defer span.End()
	require.Len(t, TraceID(ctx), 32)
	require.Empty(t, TraceID(context.Background()))
}
