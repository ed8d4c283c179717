package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hashicorp/go-multierror"

	"SurveyInsights/internal/domain"
)

// Asker is the part of Pipeline the batch runner drives.
type Asker interface {
	Ask(ctx context.Context, question string) (domain.InsightReport, error)
}

// BatchRunner asks a fixed list of questions in order.
type BatchRunner struct {
	asker     Asker
	questions []string
	logger    *slog.Logger
}

// NewBatchRunner returns a runner over questions.
func NewBatchRunner(asker Asker, questions []string, logger *slog.Logger) *BatchRunner {
	if logger != nil {
		logger = logger.With("component", "batch")
	}
	return &BatchRunner{asker: asker, questions: questions, logger: logger}
}

// Run asks every question, continuing past failures. It returns the reports that
// completed and the accumulated errors.
func (b *BatchRunner) Run(ctx context.Context) ([]domain.InsightReport, error) {
	if b.asker == nil {
		return nil, nil
	}

	var (
		reports []domain.InsightReport
		result  *multierror.Error
	)
	for _, question := range b.questions {
		if err := ctx.Err(); err != nil {
			result = multierror.Append(result, err)
			break
		}
		report, err := b.asker.Ask(ctx, question)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("ask %q: %w", question, err))
			if b.logger != nil {
				b.logger.Warn("question failed", "question", question, "error", err)
			}
			continue
		}
		reports = append(reports, report)
		if b.logger != nil {
			b.logger.Info("question answered", "question", question, "qid", report.QuestionID, "url", report.DocumentURL)
		}
	}
	return reports, result.ErrorOrNil()
}
