package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"SurveyInsights/internal/domain"
	"SurveyInsights/internal/ports"
)

const reportsTable = "insight_reports"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var reportColumns = []string{
	"run_id", "question", "question_id", "question_text", "prompt",
	"raw_answer", "insights", "document_url", "status", "created_at",
}

// PostgresRepository persists insight reports into Postgres.
type PostgresRepository struct {
	db *sql.DB
}

var _ ports.ReportRepository = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Save upserts the report snapshot keyed by run id.
func (r *PostgresRepository) Save(ctx context.Context, report domain.InsightReport) error {
	if r.db == nil {
		return nil
	}

	query, args, err := saveReportQuery(report).ToSql()
	if err != nil {
		return fmt.Errorf("build report upsert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert report: %w", err)
	}
	return nil
}

// History returns the latest reports for a question, newest first.
func (r *PostgresRepository) History(ctx context.Context, questionID string, limit int) ([]domain.InsightReport, error) {
	if r.db == nil {
		return nil, nil
	}

	query, args, err := historyQuery(questionID, limit).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build history query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}

	var reports []domain.InsightReport
	for rows.Next() {
		var (
			report domain.InsightReport
			status string
		)
		if err := rows.Scan(
			&report.RunID,
			&report.Question,
			&report.QuestionID,
			&report.QuestionText,
			&report.Prompt,
			&report.RawAnswer,
			&report.Insights,
			&report.DocumentURL,
			&status,
			&report.CreatedAt,
		); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan report: %w", err)
		}
		report.Status = domain.ReportStatus(status)
		reports = append(reports, report)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return reports, nil
}

func saveReportQuery(report domain.InsightReport) sq.InsertBuilder {
	return psql.Insert(reportsTable).
		Columns(reportColumns...).
		Values(
			report.RunID,
			report.Question,
			report.QuestionID,
			report.QuestionText,
			report.Prompt,
			report.RawAnswer,
			report.Insights,
			report.DocumentURL,
			string(report.Status),
			report.CreatedAt,
		).
		Suffix(`ON CONFLICT (run_id) DO UPDATE
              SET insights = EXCLUDED.insights,
                  raw_answer = EXCLUDED.raw_answer,
                  document_url = EXCLUDED.document_url,
                  status = EXCLUDED.status,
                  updated_at = NOW()`)
}

func historyQuery(questionID string, limit int) sq.SelectBuilder {
	if limit <= 0 {
		limit = 10
	}
	return psql.Select(reportColumns...).
		From(reportsTable).
		Where(sq.Eq{"question_id": questionID}).
		OrderBy("created_at DESC").
		Limit(uint64(limit))
}
