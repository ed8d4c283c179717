package storage

import (
	"context"
	"database/sql"
	"fmt"
)

const reportsSchema = `CREATE TABLE IF NOT EXISTS insight_reports (
    run_id        TEXT PRIMARY KEY,
    question      TEXT NOT NULL,
    question_id   TEXT NOT NULL,
    question_text TEXT NOT NULL,
    prompt        TEXT NOT NULL,
    raw_answer    TEXT NOT NULL,
    insights      TEXT NOT NULL,
    document_url  TEXT NOT NULL DEFAULT '',
    status        TEXT NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL,
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS insight_reports_question_idx ON insight_reports (question_id, created_at DESC);`

const chunksSchema = `CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS survey_chunks (
    id         TEXT PRIMARY KEY,
    namespace  TEXT NOT NULL,
    qid        TEXT NOT NULL,
    text       TEXT NOT NULL,
    clean_text TEXT NOT NULL,
    embedding  vector(%d) NOT NULL
);
CREATE INDEX IF NOT EXISTS survey_chunks_namespace_idx ON survey_chunks (namespace);`

// Migrate creates the report table and, when dimensions > 0, the chunk table.
func Migrate(ctx context.Context, db *sql.DB, dimensions int) error {
	if db == nil {
		return fmt.Errorf("migrate: db is nil")
	}
	for _, stmt := range schemaStatements(dimensions) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func schemaStatements(dimensions int) []string {
	stmts := []string{reportsSchema}
	if dimensions > 0 {
		stmts = append(stmts, fmt.Sprintf(chunksSchema, dimensions))
	}
	return stmts
}
