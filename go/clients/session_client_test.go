package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/metadiscourse/metaworkshop/go/internal/combo"
	"github.com/metadiscourse/metaworkshop/go/internal/dedup"
	"github.com/metadiscourse/metaworkshop/go/internal/events"
	"github.com/metadiscourse/metaworkshop/go/internal/httpapi"
	"github.com/metadiscourse/metaworkshop/go/internal/models"
	"github.com/metadiscourse/metaworkshop/go/internal/reveal"
	"github.com/metadiscourse/metaworkshop/go/internal/session"
	"github.com/metadiscourse/metaworkshop/go/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dropBroadcaster struct{}

func (dropBroadcaster) Broadcast(context.Context, events.Envelope) error { return nil }

func newTestServer(t *testing.T, token string) *httptest.Server {
	t.Helper()
	mem := store.NewMemory()
	engine := dedup.NewEngine(mem)
	scheduler := reveal.NewScheduler(mem, dropBroadcaster{})
	t.Cleanup(scheduler.Close)
	coordinator := session.NewCoordinator(engine, combo.NewDetector(mem), scheduler, dropBroadcaster{})

	mux := http.NewServeMux()
	httpapi.NewService(mem, engine, coordinator, token).RegisterRoutes(mux)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestSessionClient_SubmitCard(t *testing.T) {
	server := newTestServer(t, "token")
	client := NewSessionClient(server.URL, "ABCD").WithAuthority("token")
	ctx := context.Background()

	accepted, err := client.SubmitCard(ctx, "Hello World!", "p1", models.CardPhasePre)
	require.NoError(t, err)
	assert.True(t, accepted)

	accepted, err = client.SubmitCard(ctx, "hello world", "p2", "pre")
	require.NoError(t, err)
	assert.False(t, accepted, "a dedup conflict is a result, not an error")

	cards, err := client.ListCards(ctx)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "hello world", cards[0].Cleaned)
}

func TestSessionClient_WithoutAuthority(t *testing.T) {
	server := newTestServer(t, "token")
	client := NewSessionClient(server.URL, "ABCD")

	_, err := client.SubmitCard(context.Background(), "Hello", "p1", "pre")
	require.Error(t, err)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
}

func TestSessionClient_BonkAndSummary(t *testing.T) {
	server := newTestServer(t, "token")
	client := NewSessionClient(server.URL, "ABCD").WithAuthority("token")
	ctx := context.Background()

	result, err := client.BonkCard(ctx, "cluster-1", "p1")
	require.NoError(t, err)
	assert.False(t, result.Detected)

	result, err = client.BonkCard(ctx, "cluster-1", "p2")
	require.NoError(t, err)
	assert.True(t, result.Detected)
	assert.Equal(t, 2, result.ComboCount)

	summary, err := client.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.NumBonks)
	assert.Len(t, summary.Combos, 1)
}

func TestSessionClient_TriggerReveal(t *testing.T) {
	server := newTestServer(t, "token")
	client := NewSessionClient(server.URL, "ABCD").WithAuthority("token")
	ctx := context.Background()

	_, err := client.SubmitCard(ctx, "one card", "p1", "pre")
	require.NoError(t, err)

	assert.NoError(t, client.TriggerReveal(ctx, "coordinator"))
}
