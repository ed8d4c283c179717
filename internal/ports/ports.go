package ports

import (
	"context"
	"errors"
	"io"
	"time"

	"SurveyInsights/internal/domain"
)

var (
	// ErrMalformedResponse marks an upstream payload that violates its documented shape.
	ErrMalformedResponse = errors.New("malformed upstream response")
	// ErrQuestionNotInTable is returned when the spreadsheet has no block for a question.
	ErrQuestionNotInTable = errors.New("question not found in table source")
)

// QuestionIndex is the semantic-search collaborator holding questionnaire chunks.
type QuestionIndex interface {
	Search(ctx context.Context, query string, topK int) ([]domain.Candidate, error)
	Upsert(ctx context.Context, chunks []domain.Chunk) error
}

// Embedder turns text into dense vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// TableSource extracts the response table for a question identifier.
type TableSource interface {
	ExtractQuestionTable(ctx context.Context, questionID string) (domain.Table, error)
}

// Completer sends prompts to a text-generation model.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Publisher stores a finished report in an external document store and returns its URL.
type Publisher interface {
	Publish(ctx context.Context, report domain.InsightReport) (string, error)
}

// ReportRepository persists reports for audit and history.
type ReportRepository interface {
	Save(ctx context.Context, report domain.InsightReport) error
	History(ctx context.Context, questionID string, limit int) ([]domain.InsightReport, error)
}

// Notifier announces finished reports on a chat channel.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// DocumentLoader reads questionnaire text out of a file format.
type DocumentLoader interface {
	Extensions() []string
	Load(ctx context.Context, r io.Reader) (string, error)
}

// DocumentSource loads questionnaire text from a file path or URL.
type DocumentSource interface {
	Load(ctx context.Context, location string) (string, error)
}

// CacheStore is a byte-oriented key/value cache with expiry.
type CacheStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Scheduler controls when batch runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
