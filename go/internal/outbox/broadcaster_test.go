package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/metadiscourse/metaworkshop/go/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStaging struct {
	sessionCode string
	eventType   string
	payload     json.RawMessage
	err         error
}

func (f *fakeStaging) InsertEvent(_ context.Context, sessionCode, eventType string, payload json.RawMessage) error {
	if f.err != nil {
		return f.err
	}
	f.sessionCode = sessionCode
	f.eventType = eventType
	f.payload = payload
	return nil
}

func TestBroadcaster_StagesEnvelope(t *testing.T) {
	staging := &fakeStaging{}
	broadcaster := NewBroadcaster(staging)

	env, err := events.NewEnvelope("ABCD", events.EventTypeCombo, events.ComboPayload{
		ClusterID:  "c1",
		ComboCount: 2,
	})
	require.NoError(t, err)

	require.NoError(t, broadcaster.Broadcast(context.Background(), env))

	assert.Equal(t, "ABCD", staging.sessionCode)
	assert.Equal(t, "combo", staging.eventType)

	// The staged payload is the whole envelope, so the relay republishes
	// it without re-encoding.
	var staged events.Envelope
	require.NoError(t, json.Unmarshal(staging.payload, &staged))
	assert.Equal(t, env.EventID, staged.EventID)
	assert.Equal(t, env.Type, staged.Type)
}

func TestBroadcaster_StagingFailure(t *testing.T) {
	stagingErr := errors.New("connection refused")
	broadcaster := NewBroadcaster(&fakeStaging{err: stagingErr})

	env, err := events.NewEnvelope("ABCD", events.EventTypeCombo, events.ComboPayload{})
	require.NoError(t, err)

	assert.ErrorIs(t, broadcaster.Broadcast(context.Background(), env), stagingErr)
}
