package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"SurveyInsights/internal/ports"
)

// CachedEmbedder serves repeated texts from a CacheStore and embeds only the misses.
type CachedEmbedder struct {
	next   ports.Embedder
	store  ports.CacheStore
	model  string
	ttl    time.Duration
	logger *slog.Logger
}

var _ ports.Embedder = (*CachedEmbedder)(nil)

// NewCachedEmbedder wraps next; model namespaces the cache keys.
func NewCachedEmbedder(next ports.Embedder, store ports.CacheStore, model string, ttl time.Duration, logger *slog.Logger) *CachedEmbedder {
	if logger != nil {
		logger = logger.With("component", "embedding-cache")
	}
	return &CachedEmbedder{next: next, store: store, model: model, ttl: ttl, logger: logger}
}

// Embed returns cached vectors where present. Cache failures degrade to a plain call.
func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	var (
		missTexts []string
		missIdx   []int
	)
	for i, text := range texts {
		if vec, ok := c.lookup(ctx, text); ok {
			vectors[i] = vec
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) == 0 {
		c.debug("all embeddings cached", "count", len(texts))
		return vectors, nil
	}

	fresh, err := c.next.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missTexts) {
		return nil, fmt.Errorf("embed: got %d vectors for %d inputs: %w", len(fresh), len(missTexts), ports.ErrMalformedResponse)
	}

	for j, vec := range fresh {
		vectors[missIdx[j]] = vec
		c.remember(ctx, missTexts[j], vec)
	}
	c.debug("embedded", "hits", len(texts)-len(missTexts), "misses", len(missTexts))
	return vectors, nil
}

func (c *CachedEmbedder) lookup(ctx context.Context, text string) ([]float32, bool) {
	raw, ok, err := c.store.Get(ctx, c.key(text))
	if err != nil {
		c.debug("cache get failed", "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var vec []float32
	if err := json.Unmarshal(raw, &vec); err != nil {
		return nil, false
	}
	return vec, true
}

func (c *CachedEmbedder) remember(ctx context.Context, text string, vec []float32) {
	raw, err := json.Marshal(vec)
	if err != nil {
		return
	}
	if err := c.store.Set(ctx, c.key(text), raw, c.ttl); err != nil {
		c.debug("cache set failed", "error", err)
	}
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha1.Sum([]byte(c.model + "\x00" + text))
	return "emb:" + hex.EncodeToString(sum[:])
}

func (c *CachedEmbedder) debug(msg string, args ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Debug(msg, args...)
}
