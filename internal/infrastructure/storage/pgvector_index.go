package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/pgvector/pgvector-go"

	"SurveyInsights/internal/domain"
	"SurveyInsights/internal/ports"
)

const (
	chunksTable      = "survey_chunks"
	chunkBatchSize   = 100
	distanceExpr     = "embedding <=> ?"
	similarityExpr   = "1 - (embedding <=> ?) AS score"
	chunksOnConflict = `ON CONFLICT (id) DO UPDATE
              SET namespace = EXCLUDED.namespace,
                  qid = EXCLUDED.qid,
                  text = EXCLUDED.text,
                  clean_text = EXCLUDED.clean_text,
                  embedding = EXCLUDED.embedding`
)

// PGVectorIndex keeps question chunks in Postgres and searches them by cosine similarity.
type PGVectorIndex struct {
	db        *sql.DB
	namespace string
	embedder  ports.Embedder
}

var _ ports.QuestionIndex = (*PGVectorIndex)(nil)

// NewPGVectorIndex wires a sql.DB with the pgvector extension installed.
func NewPGVectorIndex(db *sql.DB, namespace string, embedder ports.Embedder) *PGVectorIndex {
	return &PGVectorIndex{db: db, namespace: namespace, embedder: embedder}
}

// Search embeds query and returns the topK closest chunks; score is cosine similarity.
func (p *PGVectorIndex) Search(ctx context.Context, query string, topK int) ([]domain.Candidate, error) {
	if p.db == nil || p.embedder == nil {
		return nil, fmt.Errorf("pgvector index misconfigured")
	}

	vectors, err := p.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed query: %w", ports.ErrMalformedResponse)
	}

	stmt, args, err := searchQuery(vectors[0], p.namespace, topK).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build search query: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var candidates []domain.Candidate
	for rows.Next() {
		var (
			id, text, qid, clean string
			score                float64
		)
		if err := rows.Scan(&id, &text, &qid, &clean, &score); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		candidates = append(candidates, domain.Candidate{
			ID:    id,
			Text:  text,
			Score: score,
			Metadata: domain.Metadata{
				domain.MetaText:       text,
				domain.MetaQuestionID: qid,
				domain.MetaCleanText:  clean,
			},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return candidates, nil
}

// Upsert inserts or refreshes chunks in batches.
func (p *PGVectorIndex) Upsert(ctx context.Context, chunks []domain.Chunk) error {
	if p.db == nil {
		return fmt.Errorf("pgvector index misconfigured")
	}

	for start := 0; start < len(chunks); start += chunkBatchSize {
		end := min(start+chunkBatchSize, len(chunks))
		stmt, args, err := upsertChunksQuery(chunks[start:end], p.namespace).ToSql()
		if err != nil {
			return fmt.Errorf("build chunk upsert: %w", err)
		}
		if _, err := p.db.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("upsert chunks: %w", err)
		}
	}
	return nil
}

func searchQuery(vector []float32, namespace string, topK int) sq.SelectBuilder {
	vec := pgvector.NewVector(vector)
	query := psql.Select("id", "text", "qid", "clean_text").
		Column(sq.Expr(similarityExpr, vec)).
		From(chunksTable)
	if namespace != "" {
		query = query.Where(sq.Eq{"namespace": namespace})
	}
	return query.OrderByClause(distanceExpr, vec).Limit(uint64(max(topK, 1)))
}

func upsertChunksQuery(chunks []domain.Chunk, namespace string) sq.InsertBuilder {
	query := psql.Insert(chunksTable).
		Columns("id", "namespace", "qid", "text", "clean_text", "embedding")
	for _, chunk := range chunks {
		ns := chunk.Namespace
		if ns == "" {
			ns = namespace
		}
		query = query.Values(
			chunk.ID,
			ns,
			chunk.Metadata.String(domain.MetaQuestionID).OrElse(domain.UnknownQuestionID),
			chunk.Text,
			chunk.Metadata.String(domain.MetaCleanText).OrEmpty(),
			pgvector.NewVector(chunk.Embedding),
		)
	}
	return query.Suffix(chunksOnConflict)
}
