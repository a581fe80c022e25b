package dedup

import (
	"context"
	"errors"
	"testing"

	"github.com/metadiscourse/metaworkshop/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCardWriter struct {
	cards []models.Card
	err   error
}

func (f *fakeCardWriter) InsertCardIfAbsent(_ context.Context, card models.Card) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	for _, c := range f.cards {
		if c.SessionCode == card.SessionCode && c.Cleaned == card.Cleaned {
			return false, nil
		}
	}
	f.cards = append(f.cards, card)
	return true, nil
}

func TestEngine_Submit_AcceptThenDuplicate(t *testing.T) {
	writer := &fakeCardWriter{}
	engine := NewEngine(writer)
	ctx := context.Background()

	result, err := engine.Submit(ctx, "ABCD", "Hello World!", "p1", "pre")
	require.NoError(t, err)
	assert.Equal(t, ResultAccepted, result)

	// Different surface form, same dedup key.
	result, err = engine.Submit(ctx, "ABCD", "  hello world  ", "p2", "pre")
	require.NoError(t, err)
	assert.Equal(t, ResultDuplicate, result)

	require.Len(t, writer.cards, 1)
	assert.Equal(t, "Hello World!", writer.cards[0].Text, "stored card keeps the first submitter's raw text")
	assert.Equal(t, "hello world", writer.cards[0].Cleaned)
	assert.Equal(t, "p1", writer.cards[0].PlayerID)
}

func TestEngine_Submit_SessionsAreIndependent(t *testing.T) {
	writer := &fakeCardWriter{}
	engine := NewEngine(writer)
	ctx := context.Background()

	result, err := engine.Submit(ctx, "AAAA", "same text", "p1", "pre")
	require.NoError(t, err)
	assert.Equal(t, ResultAccepted, result)

	result, err = engine.Submit(ctx, "BBBB", "same text", "p1", "pre")
	require.NoError(t, err)
	assert.Equal(t, ResultAccepted, result, "dedup keys are scoped per session")
}

func TestEngine_Submit_EmptyText(t *testing.T) {
	writer := &fakeCardWriter{}
	engine := NewEngine(writer)
	ctx := context.Background()

	for _, text := range []string{"", "   ", "\t\n"} {
		_, err := engine.Submit(ctx, "ABCD", text, "p1", "pre")
		assert.ErrorIs(t, err, ErrEmptyText, "text %q", text)
	}
	assert.Empty(t, writer.cards, "rejected submissions must not reach the store")
}

func TestEngine_Submit_PunctuationOnlyStillStored(t *testing.T) {
	// "?!" is not whitespace, so it passes the empty check even though its
	// dedup key is the empty string. All punctuation-only cards in a
	// session then collapse onto that one key.
	writer := &fakeCardWriter{}
	engine := NewEngine(writer)
	ctx := context.Background()

	result, err := engine.Submit(ctx, "ABCD", "?!", "p1", "pre")
	require.NoError(t, err)
	assert.Equal(t, ResultAccepted, result)

	result, err = engine.Submit(ctx, "ABCD", "...", "p2", "pre")
	require.NoError(t, err)
	assert.Equal(t, ResultDuplicate, result)
}

func TestEngine_Submit_StoreFailure(t *testing.T) {
	storeErr := errors.New("connection refused")
	engine := NewEngine(&fakeCardWriter{err: storeErr})

	_, err := engine.Submit(context.Background(), "ABCD", "hello", "p1", "pre")
	require.Error(t, err)
	assert.ErrorIs(t, err, storeErr)
}
