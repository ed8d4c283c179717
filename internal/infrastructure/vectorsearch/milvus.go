package vectorsearch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"SurveyInsights/internal/config"
	"SurveyInsights/internal/domain"
	"SurveyInsights/internal/ports"
)

const (
	milvusIDField     = "id"
	milvusVectorField = "vector"
)

var milvusOutputFields = []string{milvusIDField, domain.MetaText, domain.MetaQuestionID, domain.MetaCleanText}

// milvusAPI is the part of client.Client the index needs.
type milvusAPI interface {
	Search(ctx context.Context, collName string, partitions []string, expr string, outputFields []string,
		vectors []entity.Vector, vectorField string, metricType entity.MetricType, topK int,
		sp entity.SearchParam, opts ...client.SearchQueryOptionFunc) ([]client.SearchResult, error)
	Upsert(ctx context.Context, collName string, partitionName string, columns ...entity.Column) (entity.Column, error)
	Close() error
}

// MilvusIndex stores question chunks in a Milvus collection searched by inner product.
type MilvusIndex struct {
	client     milvusAPI
	collection string
	embedder   ports.Embedder
	logger     *slog.Logger
}

var _ ports.QuestionIndex = (*MilvusIndex)(nil)

// NewMilvusIndex dials Milvus and binds the configured collection.
func NewMilvusIndex(ctx context.Context, cfg config.MilvusConfig, embedder ports.Embedder, logger *slog.Logger) (*MilvusIndex, error) {
	if cfg.Address == "" || cfg.Collection == "" {
		return nil, fmt.Errorf("milvus index misconfigured")
	}
	c, err := client.NewClient(ctx, client.Config{
		Address:  cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("connect milvus %s: %w", cfg.Address, err)
	}
	return newMilvusIndex(c, cfg.Collection, embedder, logger), nil
}

func newMilvusIndex(api milvusAPI, collection string, embedder ports.Embedder, logger *slog.Logger) *MilvusIndex {
	return &MilvusIndex{
		client:     api,
		collection: collection,
		embedder:   embedder,
		logger:     componentLogger(logger, "milvus"),
	}
}

// Search embeds query and returns the topK nearest chunks.
func (m *MilvusIndex) Search(ctx context.Context, query string, topK int) ([]domain.Candidate, error) {
	if m == nil || m.client == nil || m.embedder == nil {
		return nil, fmt.Errorf("milvus index misconfigured")
	}

	vectors, err := m.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed query: %w", ports.ErrMalformedResponse)
	}

	sp, err := entity.NewIndexFlatSearchParam()
	if err != nil {
		return nil, fmt.Errorf("search params: %w", err)
	}
	results, err := m.client.Search(ctx, m.collection, nil, "", milvusOutputFields,
		[]entity.Vector{entity.FloatVector(vectors[0])}, milvusVectorField, entity.IP, topK, sp)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", m.collection, err)
	}

	var candidates []domain.Candidate
	for _, result := range results {
		if result.Err != nil {
			return nil, fmt.Errorf("search %s: %w", m.collection, result.Err)
		}
		for i := 0; i < result.ResultCount; i++ {
			candidates = append(candidates, candidateFromResult(result, i))
		}
	}
	if m.logger != nil {
		m.logger.Debug("search completed", "top_k", topK, "matches", len(candidates))
	}
	return candidates, nil
}

// Upsert writes embedded chunks as VarChar metadata columns plus a float vector column.
func (m *MilvusIndex) Upsert(ctx context.Context, chunks []domain.Chunk) error {
	if m == nil || m.client == nil {
		return fmt.Errorf("milvus index misconfigured")
	}
	if len(chunks) == 0 {
		return nil
	}

	dim := len(chunks[0].Embedding)
	ids := make([]string, len(chunks))
	texts := make([]string, len(chunks))
	qids := make([]string, len(chunks))
	clean := make([]string, len(chunks))
	vectors := make([][]float32, len(chunks))
	for i, chunk := range chunks {
		if len(chunk.Embedding) == 0 || len(chunk.Embedding) != dim {
			return fmt.Errorf("upsert %s: embedding dimension %d, want %d", chunk.ID, len(chunk.Embedding), dim)
		}
		ids[i] = chunk.ID
		texts[i] = chunk.Text
		qids[i] = chunk.Metadata.String(domain.MetaQuestionID).OrElse(domain.UnknownQuestionID)
		clean[i] = chunk.Metadata.String(domain.MetaCleanText).OrEmpty()
		vectors[i] = chunk.Embedding
	}

	_, err := m.client.Upsert(ctx, m.collection, "",
		entity.NewColumnVarChar(milvusIDField, ids),
		entity.NewColumnVarChar(domain.MetaText, texts),
		entity.NewColumnVarChar(domain.MetaQuestionID, qids),
		entity.NewColumnVarChar(domain.MetaCleanText, clean),
		entity.NewColumnFloatVector(milvusVectorField, dim, vectors),
	)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", m.collection, err)
	}
	return nil
}

// Close releases the gRPC connection.
func (m *MilvusIndex) Close() error {
	if m == nil || m.client == nil {
		return nil
	}
	return m.client.Close()
}

func candidateFromResult(result client.SearchResult, i int) domain.Candidate {
	candidate := domain.Candidate{Metadata: domain.Metadata{}}
	if i < len(result.Scores) {
		candidate.Score = float64(result.Scores[i])
	}
	for _, name := range milvusOutputFields {
		column := result.Fields.GetColumn(name)
		if column == nil {
			continue
		}
		value, err := column.GetAsString(i)
		if err != nil {
			continue
		}
		if name == milvusIDField {
			candidate.ID = value
			continue
		}
		candidate.Metadata[name] = value
	}
	candidate.Text = candidate.Metadata.String(domain.MetaText).OrEmpty()
	return candidate
}
