package vectorsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/tidwall/gjson"

	"SurveyInsights/internal/config"
	"SurveyInsights/internal/domain"
	"SurveyInsights/internal/ports"
)

const upsertBatchSize = 100

// PineconeIndex talks to a Pinecone index over its data-plane REST API.
type PineconeIndex struct {
	host      string
	apiKey    string
	namespace string
	embedder  ports.Embedder
	http      *http.Client
	logger    *slog.Logger
	attempts  uint
	delay     time.Duration
}

var _ ports.QuestionIndex = (*PineconeIndex)(nil)

// NewPineconeIndex creates a reusable HTTP client for one index host.
func NewPineconeIndex(cfg config.PineconeConfig, namespace string, embedder ports.Embedder, logger *slog.Logger) *PineconeIndex {
	host := strings.TrimRight(cfg.IndexHost, "/")
	if host != "" && !strings.Contains(host, "://") {
		host = "https://" + host
	}
	return &PineconeIndex{
		host:      host,
		apiKey:    cfg.APIKey,
		namespace: namespace,
		embedder:  embedder,
		http:      &http.Client{Timeout: 15 * time.Second},
		logger:    componentLogger(logger, "pinecone"),
		attempts:  3,
		delay:     200 * time.Millisecond,
	}
}

// Search embeds query and returns the topK nearest chunks with their raw scores.
func (p *PineconeIndex) Search(ctx context.Context, query string, topK int) ([]domain.Candidate, error) {
	if err := p.check(); err != nil {
		return nil, err
	}

	vectors, err := p.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed query: %w", ports.ErrMalformedResponse)
	}

	payload := map[string]any{
		"vector":          vectors[0],
		"topK":            topK,
		"includeMetadata": true,
	}
	if p.namespace != "" {
		payload["namespace"] = p.namespace
	}

	body, err := p.post(ctx, "/query", payload)
	if err != nil {
		return nil, err
	}

	candidates, err := decodeMatches(body)
	if err != nil {
		return nil, err
	}
	p.debug("query completed", "top_k", topK, "matches", len(candidates))
	return candidates, nil
}

// Upsert writes embedded chunks in batches of 100 vectors.
func (p *PineconeIndex) Upsert(ctx context.Context, chunks []domain.Chunk) error {
	if err := p.check(); err != nil {
		return err
	}

	for start := 0; start < len(chunks); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(chunks))

		vectors := make([]map[string]any, 0, end-start)
		for _, chunk := range chunks[start:end] {
			if len(chunk.Embedding) == 0 {
				return fmt.Errorf("upsert %s: chunk has no embedding", chunk.ID)
			}
			vectors = append(vectors, map[string]any{
				"id":       chunk.ID,
				"values":   chunk.Embedding,
				"metadata": map[string]any(chunk.Metadata),
			})
		}

		payload := map[string]any{"vectors": vectors}
		if ns := namespaceOf(chunks[start], p.namespace); ns != "" {
			payload["namespace"] = ns
		}
		if _, err := p.post(ctx, "/vectors/upsert", payload); err != nil {
			return err
		}
		p.debug("upserted batch", "from", start, "to", end)
	}
	return nil
}

func (p *PineconeIndex) check() error {
	if p == nil {
		return fmt.Errorf("pinecone index is nil")
	}
	if p.host == "" || p.apiKey == "" || p.embedder == nil {
		return fmt.Errorf("pinecone index misconfigured")
	}
	return nil
}

func (p *PineconeIndex) post(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	var out []byte
	err = retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+path, bytes.NewReader(body))
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("new request: %w", err))
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Api-Key", p.apiKey)

			resp, err := p.http.Do(req)
			if err != nil {
				return fmt.Errorf("do request: %w", err)
			}
			defer resp.Body.Close()

			raw, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("read response body: %w", err)
			}
			if resp.StatusCode >= http.StatusInternalServerError {
				return fmt.Errorf("pinecone error %s: %s", resp.Status, snippet(raw))
			}
			if resp.StatusCode != http.StatusOK {
				return retry.Unrecoverable(fmt.Errorf("pinecone error %s: %s", resp.Status, snippet(raw)))
			}
			out = raw
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(p.attempts),
		retry.Delay(p.delay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			p.debug("retrying request", "path", path, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", path, err)
	}
	return out, nil
}

// decodeMatches keeps scores in their JSON type so the ranker decides how to read them.
func decodeMatches(body []byte) ([]domain.Candidate, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("decode matches: invalid json: %w", ports.ErrMalformedResponse)
	}
	matches := gjson.GetBytes(body, "matches")
	if !matches.IsArray() {
		return nil, fmt.Errorf("decode matches: %w", ports.ErrMalformedResponse)
	}

	var candidates []domain.Candidate
	matches.ForEach(func(_, match gjson.Result) bool {
		candidate := domain.Candidate{ID: match.Get("id").String()}
		if score := match.Get("score"); score.Exists() {
			candidate.Score = score.Value()
		}
		if meta, ok := match.Get("metadata").Value().(map[string]any); ok {
			candidate.Metadata = domain.Metadata(meta)
			candidate.Text = candidate.Metadata.String(domain.MetaText).OrEmpty()
		}
		candidates = append(candidates, candidate)
		return true
	})
	return candidates, nil
}

func namespaceOf(chunk domain.Chunk, fallback string) string {
	if chunk.Namespace != "" {
		return chunk.Namespace
	}
	return fallback
}

func snippet(raw []byte) string {
	if len(raw) > 1024 {
		raw = raw[:1024]
	}
	return strings.TrimSpace(string(raw))
}

func (p *PineconeIndex) debug(msg string, args ...any) {
	if p.logger == nil {
		return
	}
	p.logger.Debug(msg, args...)
}

func componentLogger(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With("component", name)
}
