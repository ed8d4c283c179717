package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/samber/mo"
)

// UnknownQuestionID is the sentinel identifier used when no question could be resolved.
const UnknownQuestionID = "unknown"

// Well-known metadata keys written by the ingestor and read by the ranker.
const (
	MetaQuestionID = "qid"
	MetaCleanText  = "clean_text"
	MetaText       = "text"
)

// Metadata is the loosely typed payload attached to an indexed chunk.
type Metadata map[string]any

// String returns the value stored under key when it is a non-empty string.
func (m Metadata) String(key string) mo.Option[string] {
	if m == nil {
		return mo.None[string]()
	}
	raw, ok := m[key]
	if !ok {
		return mo.None[string]()
	}
	value, ok := raw.(string)
	if !ok || value == "" {
		return mo.None[string]()
	}
	return mo.Some(value)
}

// Candidate is one snippet returned by semantic search.
type Candidate struct {
	ID       string
	Text     string
	Score    any
	Metadata Metadata
}

// EmbeddingScore coerces the upstream similarity score into a float.
// Missing, non-numeric and non-finite values read as 0.
func (c Candidate) EmbeddingScore() float64 {
	var value float64
	switch v := c.Score.(type) {
	case float64:
		value = v
	case float32:
		value = float64(v)
	case int:
		value = float64(v)
	case int64:
		value = float64(v)
	case int32:
		value = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0
		}
		value = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		value = parsed
	default:
		return 0
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	return value
}

// RankedResult is the outcome of question ranking.
type RankedResult struct {
	QuestionID   string
	QuestionText string
	Score        float64
	Found        bool
}

// UnknownResult is the documented empty ranking outcome.
func UnknownResult() RankedResult {
	return RankedResult{QuestionID: UnknownQuestionID}
}

// Chunk is a questionnaire fragment prepared for the vector index.
type Chunk struct {
	ID        string
	Namespace string
	Text      string
	Metadata  Metadata
	Embedding []float32
}

// Table is a response block cut out of the tabulation spreadsheet.
type Table struct {
	QuestionID string
	Title      string
	Header     []string
	Rows       [][]string
}

// Width returns the number of columns, accounting for ragged rows.
func (t Table) Width() int {
	width := len(t.Header)
	for _, row := range t.Rows {
		if len(row) > width {
			width = len(row)
		}
	}
	return width
}

// Cell returns the value at row/col or an empty string for ragged rows.
func (t Table) Cell(row, col int) string {
	if row < 0 || row >= len(t.Rows) || col < 0 || col >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][col]
}

// ReportStatus enumerates pipeline milestones.
type ReportStatus string

const (
	StatusMatched   ReportStatus = "matched"
	StatusAnalyzed  ReportStatus = "analyzed"
	StatusPublished ReportStatus = "published"
	StatusFailed    ReportStatus = "failed"
)

// InsightReport is the end product of one question run.
type InsightReport struct {
	RunID        string
	Question     string
	QuestionID   string
	QuestionText string
	Prompt       string
	RawAnswer    string
	Insights     string
	DocumentURL  string
	Status       ReportStatus
	CreatedAt    time.Time
}

// Title names the published document.
func (r InsightReport) Title() string {
	return "Insights Report - " + r.QuestionID
}

// Body is the plain-text document content: header, question, then insights.
func (r InsightReport) Body() string {
	return "Insights for " + r.QuestionID + "\n\n" +
		strings.TrimSpace(r.QuestionText) + "\n\n" +
		strings.TrimSpace(r.Insights) + "\n"
}
