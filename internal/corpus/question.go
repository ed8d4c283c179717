package corpus

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"SurveyInsights/internal/domain"
	"SurveyInsights/internal/ranking"
)

var (
	disallowedExpr = regexp.MustCompile(`[^\p{L}\p{N}_\s.,?!-]`)
	spaceExpr      = regexp.MustCompile(`\s+`)
)

// QuestionInfo is the index metadata derived from one chunk.
type QuestionInfo struct {
	QuestionID string
	CleanText  string
}

// CleanText normalises extracted document text for indexing.
func CleanText(text string) string {
	text = norm.NFKC.String(text)
	text = disallowedExpr.ReplaceAllString(text, " ")
	text = spaceExpr.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// ExtractQuestionInfo finds the first question id in chunk and cleans its text.
func ExtractQuestionInfo(chunk string) QuestionInfo {
	qid, ok := ranking.ExtractQuestionID(chunk)
	if !ok {
		qid = domain.UnknownQuestionID
	}
	return QuestionInfo{QuestionID: qid, CleanText: CleanText(chunk)}
}

// BuildChunks turns raw windows into index chunks with ids "<namespace>-chunk-<i>".
func BuildChunks(namespace string, windows []string) []domain.Chunk {
	chunks := make([]domain.Chunk, 0, len(windows))
	for i, window := range windows {
		info := ExtractQuestionInfo(window)
		chunks = append(chunks, domain.Chunk{
			ID:        fmt.Sprintf("%s-chunk-%d", namespace, i),
			Namespace: namespace,
			Text:      window,
			Metadata: domain.Metadata{
				domain.MetaText:       window,
				domain.MetaQuestionID: info.QuestionID,
				domain.MetaCleanText:  info.CleanText,
			},
		})
	}
	return chunks
}
