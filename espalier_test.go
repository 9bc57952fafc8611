package espalier

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avhart/espalier/internal/config"
)

func defaultConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	return cfg
}

func TestNew_Defaults(t *testing.T) {
	eng, err := New(context.Background(), defaultConfig(t), WithRegistry(prometheus.NewRegistry()))
	require.NoError(t, err)
	defer eng.Close()

	assert.NotNil(t, eng.Model)
	assert.NotNil(t, eng.Sessions)
	assert.NotNil(t, eng.Vectors)
	assert.NotNil(t, eng.Metrics)

	ingestor, err := eng.Ingestor()
	require.NoError(t, err)
	assert.NotNil(t, ingestor)
	assert.NotNil(t, eng.Pipeline())
}

func TestNew_SessionsUsable(t *testing.T) {
	eng, err := New(context.Background(), defaultConfig(t), WithRegistry(prometheus.NewRegistry()))
	require.NoError(t, err)
	defer eng.Close()

	ctx := context.Background()
	state, err := eng.Sessions.LoadOrStart(ctx, "s1")
	require.NoError(t, err)
	assert.NotNil(t, state)

	loaded, err := eng.Sessions.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, state.Status, loaded.Status)
}

func TestNew_EncryptedSessions(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.EncryptionKey = "0123456789abcdef0123456789abcdef"

	eng, err := New(context.Background(), cfg, WithRegistry(prometheus.NewRegistry()))
	require.NoError(t, err)
	defer eng.Close()

	ctx := context.Background()
	_, err = eng.Sessions.LoadOrStart(ctx, "secret")
	require.NoError(t, err)
	_, err = eng.Sessions.Load(ctx, "secret")
	assert.NoError(t, err)
}
