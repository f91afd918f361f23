package metrics

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/goran-ethernal/TransferIndexor/pkg/config"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, url string) (int, string) {
	t.Helper()

	resp, err := http.Get(url) //nolint:gosec,noctx
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, string(body)
}

func TestServer_Disabled(t *testing.T) {
	s := NewServer(&config.MetricsConfig{Enabled: false}, nil)
	require.NoError(t, s.Start(context.Background()))
	require.Nil(t, s.Addr())
	require.NoError(t, s.Stop(context.Background()))

	require.NoError(t, NewServer(nil, nil).Run(context.Background()))
}

func TestServer_ServesMetricsAndHealth(t *testing.T) {
	s := NewServer(&config.MetricsConfig{Enabled: true, ListenAddress: "127.0.0.1:0", Path: "/metrics"}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Start(ctx))
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	LastIndexedBlockSet("0xtoken", 4242)
	base := fmt.Sprintf("http://%s", s.Addr())

	code, body := get(t, base+"/health")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "OK", body)

	code, body = get(t, base+"/metrics")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, `transferindexor_last_indexed_block{token="0xtoken"} 4242`)
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	s := NewServer(&config.MetricsConfig{Enabled: true, ListenAddress: "127.0.0.1:0", Path: "/metrics"}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, s.Run(ctx))
	require.NotNil(t, s.Addr())

	_, err := http.Get(fmt.Sprintf("http://%s/health", s.Addr())) //nolint:gosec,noctx
	require.Error(t, err)
}

func TestServer_ListenError(t *testing.T) {
	s := NewServer(&config.MetricsConfig{Enabled: true, ListenAddress: "256.0.0.1:bad", Path: "/metrics"}, nil)
	require.Error(t, s.Start(context.Background()))
}
