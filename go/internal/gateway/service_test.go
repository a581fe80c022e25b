package gateway

import (
	"context"
	"testing"

	"github.com/metadiscourse/metaworkshop/go/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalService_BroadcastDispatchesHandlers(t *testing.T) {
	var got events.ComboPayload
	handlers := events.NewHandlerMap().OnCombo(func(_ context.Context, _ string, payload events.ComboPayload) error {
		got = payload
		return nil
	})
	service := NewLocalService(DefaultConnectionConfig(), handlers)

	env, err := events.NewEnvelope("ABCD", events.EventTypeCombo, events.ComboPayload{
		ClusterID:  "c1",
		ComboCount: 3,
	})
	require.NoError(t, err)

	require.NoError(t, service.Broadcast(context.Background(), env))
	assert.Equal(t, "c1", got.ClusterID)
	assert.Equal(t, 3, got.ComboCount)
}

func TestLocalService_BroadcastWithoutHandlers(t *testing.T) {
	service := NewLocalService(DefaultConnectionConfig(), nil)

	env, err := events.NewEnvelope("ABCD", events.EventTypeRevealWave, events.RevealWavePayload{WaveCount: 1})
	require.NoError(t, err)

	assert.NoError(t, service.Broadcast(context.Background(), env))
}

func TestConnectionManager_StatsEmpty(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())

	stats := cm.GetConnectionStats()
	assert.Zero(t, stats.TotalConnections)
	assert.Zero(t, stats.ActiveSessions)
	assert.Empty(t, stats.SessionConnections)
}
