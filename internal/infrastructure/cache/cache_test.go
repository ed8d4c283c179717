package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRUStoreEvictsOldest(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewLRUStore(2, time.Minute)
	require.NoError(t, store.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, store.Set(ctx, "b", []byte("2"), 0))

	// touching a makes b the eviction candidate
	_, ok, _ := store.Get(ctx, "a")
	require.True(t, ok)
	require.NoError(t, store.Set(ctx, "c", []byte("3"), 0))

	_, ok, _ = store.Get(ctx, "b")
	assert.False(t, ok)
	value, ok, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("1"), value)
	assert.Equal(t, 2, store.Len())
}

func TestLRUStoreExpiry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewLRUStore(4, time.Minute)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Second))
	_, ok, _ := store.Get(ctx, "k")
	assert.True(t, ok)

	now = now.Add(2 * time.Second)
	_, ok, _ = store.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())
}

func TestLRUStoreCopiesValues(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewLRUStore(1, 0)
	value := []byte("abc")
	require.NoError(t, store.Set(ctx, "k", value, 0))
	value[0] = 'x'

	got, _, _ := store.Get(ctx, "k")
	assert.Equal(t, []byte("abc"), got)
}

type countingEmbedder struct {
	calls [][]string
	err   error
}

func (c *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	c.calls = append(c.calls, append([]string(nil), texts...))
	if c.err != nil {
		return nil, c.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text))}
	}
	return out, nil
}

func TestCachedEmbedderEmbedsOnlyMisses(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	next := &countingEmbedder{}
	emb := NewCachedEmbedder(next, NewLRUStore(16, time.Hour), "text-embedding-3-small", time.Hour, nil)

	first, err := emb.Embed(ctx, []string{"a", "bbb"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1}, {3}}, first)

	second, err := emb.Embed(ctx, []string{"bbb", "cc"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{3}, {2}}, second)

	require.Len(t, next.calls, 2)
	assert.Equal(t, []string{"cc"}, next.calls[1])

	_, err = emb.Embed(ctx, []string{"a"})
	require.NoError(t, err)
	assert.Len(t, next.calls, 2)
}

func TestCachedEmbedderPropagatesErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("rate limited")
	emb := NewCachedEmbedder(&countingEmbedder{err: boom}, NewLRUStore(4, time.Hour), "m", time.Hour, nil)
	_, err := emb.Embed(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, boom)
}

func TestCachedEmbedderKeysByModel(t *testing.T) {
	t.Parallel()

	a := NewCachedEmbedder(nil, nil, "model-a", 0, nil)
	b := NewCachedEmbedder(nil, nil, "model-b", 0, nil)
	assert.NotEqual(t, a.key("text"), b.key("text"))
	assert.Equal(t, a.key("text"), a.key("text"))
}

func TestNewRedisStoreValidation(t *testing.T) {
	t.Parallel()

	_, err := NewRedisStore(context.Background(), "")
	assert.Error(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = NewRedisStore(ctx, "127.0.0.1:1")
	assert.Error(t, err)
}
