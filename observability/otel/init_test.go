package otel

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseHeaders(t *testing.T) {
	headers := ParseHeaders(" api-key = secret ,broken, =x,tenant=lending")
	require.Equal(t, map[string]string{"api-key": "secret", "tenant": "lending"}, headers)
}

func TestInitRequiresServiceName(t *testing.T) {
	_, err := Init(context.Background(), Config{})
	require.Error(t, err)
}

func TestInitWithoutExporters(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "lendingd", Version: "test"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestSamplerDescriptions(t *testing.T) {
	require.Contains(t, sampler(0).Description(), "AlwaysOnSampler")
	require.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased")
}

func TestBuildResourceCarriesNetwork(t *testing.T) {
	res, err := buildResource(Config{ServiceName: "lendingd", Network: "devnet"})
	require.NoError(t, err)
	found := false
	for _, kv := range res.Attributes() {
		if string(kv.Key) == "lending.network" {
			found = true
			require.Equal(t, "devnet", kv.Value.AsString())
		}
	}
	require.True(t, found)
}

func TestRunShutdownsKeepsFirstError(t *testing.T) {
	var order []int
	first := errors.New("first")
	err := runShutdowns(context.Background(), []shutdownFunc{
		func(context.Context) error { order = append(order, 0); return errors.New("second") },
		func(context.Context) error { order = append(order, 1); return first },
	})
	require.ErrorIs(t, err, first)
	require.Equal(t, []int{1, 0}, order)
}
