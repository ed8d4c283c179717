package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"SurveyInsights/internal/config"
	"SurveyInsights/internal/ports"
)

// Embedder implements ports.Embedder with the OpenAI embeddings endpoint.
type Embedder struct {
	client     openai.Client
	model      string
	apiKey     string
	dimensions int
}

var _ ports.Embedder = (*Embedder)(nil)

// NewEmbedder builds an embeddings client from configuration.
func NewEmbedder(cfg config.LLMConfig, opts ...option.RequestOption) *Embedder {
	return &Embedder{
		client:     openai.NewClient(clientOptions(cfg, opts)...),
		model:      cfg.EmbeddingModel,
		apiKey:     cfg.APIKey,
		dimensions: cfg.EmbeddingDimensions,
	}
}

// Embed returns one vector per input text, in input order.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if e == nil {
		return nil, fmt.Errorf("embedder is nil")
	}
	if e.apiKey == "" || e.model == "" {
		return nil, fmt.Errorf("embedder misconfigured")
	}
	if len(texts) == 0 {
		return nil, nil
	}

	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	}
	if e.dimensions > 0 {
		params.Dimensions = openai.Int(int64(e.dimensions))
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings: got %d vectors for %d inputs: %w", len(resp.Data), len(texts), ports.ErrMalformedResponse)
	}

	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		idx := int(item.Index)
		if idx < 0 || idx >= len(vectors) {
			return nil, fmt.Errorf("embeddings: index %d out of range: %w", idx, ports.ErrMalformedResponse)
		}
		vec := make([]float32, len(item.Embedding))
		for i, v := range item.Embedding {
			vec[i] = float32(v)
		}
		vectors[idx] = vec
	}
	return vectors, nil
}
