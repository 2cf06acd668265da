package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"vms-inventory/internal/config"
)

func TestSetupTracing_DisabledWithoutEndpoint(t *testing.T) {
	tp, shutdown, err := SetupTracing(context.Background(), config.OtelConfig{ServiceName: "vms-inventory"})
	require.NoError(t, err)
	require.NotNil(t, tp)
	require.NoError(t, shutdown(context.Background()))

	_, isSDK := tp.(*sdktrace.TracerProvider)
	require.False(t, isSDK)
}

func TestSetupTracing_InstallsProvider(t *testing.T) {
	previous := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	tp, shutdown, err := SetupTracing(context.Background(), config.OtelConfig{
		Endpoint:    "http://127.0.0.1:4318",
		ServiceName: "vms-inventory",
	})
	require.NoError(t, err)

	sdkProvider, ok := tp.(*sdktrace.TracerProvider)
	require.True(t, ok)
	require.Same(t, sdkProvider, otel.GetTracerProvider())

	// nothing was recorded so shutdown has nothing to flush
	require.NoError(t, shutdown(context.Background()))
}
