// Package ranking selects the survey question that best matches a user's question
// out of semantic-search candidates.
//
// Scoring blends the upstream embedding similarity with a keyword relevance score
// computed over the cleaned candidate text, then applies an optional prefix boost.
// The ranker is pure: it holds only compiled configuration and is safe for
// concurrent use.
package ranking

import (
	"fmt"
	"strings"

	"SurveyInsights/internal/domain"
)

// Scored is the per-candidate breakdown of the ranking fold.
type Scored struct {
	Index      int
	QuestionID string
	Text       string
	Embedding  float64
	Relevance  float64
	Final      float64
	Boosted    bool
}

// Ranker scores candidates with a fixed configuration.
type Ranker struct {
	cfg            Config
	cleaner        cleaner
	domainKeywords []string
	usageKeywords  []string
}

// New validates cfg and compiles its text-cleaning rules.
func New(cfg Config) (*Ranker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Ranker{
		cfg:            cfg,
		cleaner:        newCleaner(cfg.Boilerplate, cfg.Annotations),
		domainKeywords: lowerAll(cfg.DomainKeywords),
		usageKeywords:  lowerAll(cfg.UsageKeywords),
	}, nil
}

// MustNew is New for static configurations; it panics on invalid input.
func MustNew(cfg Config) *Ranker {
	r, err := New(cfg)
	if err != nil {
		panic(fmt.Sprintf("ranking: %v", err))
	}
	return r
}

// SelectBestQuestion returns the identifier and cleaned text of the highest scoring
// candidate. Candidates without usable text are skipped; when none remain the result
// carries domain.UnknownQuestionID and empty text.
func (r *Ranker) SelectBestQuestion(candidates []domain.Candidate, query string) domain.RankedResult {
	tokens := strings.Fields(strings.ToLower(query))

	var (
		best  Scored
		found bool
	)
	for i, candidate := range candidates {
		scored, ok := r.score(i, candidate, tokens)
		if !ok {
			continue
		}
		// strict comparison: the earliest candidate wins an exact tie
		if !found || scored.Final > best.Final {
			best = scored
			found = true
		}
	}

	if !found {
		return domain.UnknownResult()
	}
	return domain.RankedResult{
		QuestionID:   best.QuestionID,
		QuestionText: best.Text,
		Score:        best.Final,
		Found:        true,
	}
}

// Explain scores every usable candidate in input order.
func (r *Ranker) Explain(candidates []domain.Candidate, query string) []Scored {
	tokens := strings.Fields(strings.ToLower(query))
	out := make([]Scored, 0, len(candidates))
	for i, candidate := range candidates {
		if scored, ok := r.score(i, candidate, tokens); ok {
			out = append(out, scored)
		}
	}
	return out
}

// Clean exposes the configured text normalisation.
func (r *Ranker) Clean(text string) string {
	return r.cleaner.Clean(text)
}

func (r *Ranker) score(index int, candidate domain.Candidate, queryTokens []string) (Scored, bool) {
	raw := displayText(candidate)
	if raw == "" {
		return Scored{}, false
	}

	text := r.cleaner.Clean(raw)
	qid := questionID(candidate, raw)
	embedding := candidate.EmbeddingScore()
	relevance := r.relevance(text, queryTokens)

	final := r.cfg.Weights.Embedding*embedding + r.cfg.Weights.Relevance*relevance
	boosted := r.hasPriorityPrefix(qid)
	if boosted {
		final *= r.cfg.Boost.Factor
	}

	return Scored{
		Index:      index,
		QuestionID: qid,
		Text:       text,
		Embedding:  embedding,
		Relevance:  relevance,
		Final:      final,
		Boosted:    boosted,
	}, true
}

func (r *Ranker) relevance(text string, queryTokens []string) float64 {
	lowered := strings.ToLower(text)
	return r.cfg.Weights.Domain*fraction(lowered, r.domainKeywords) +
		r.cfg.Weights.Usage*fraction(lowered, r.usageKeywords) +
		r.cfg.Weights.Query*fraction(lowered, queryTokens)
}

func (r *Ranker) hasPriorityPrefix(qid string) bool {
	if qid == domain.UnknownQuestionID {
		return false
	}
	for _, prefix := range r.cfg.Boost.Prefixes {
		if strings.HasPrefix(qid, prefix) {
			return true
		}
	}
	return false
}

func displayText(c domain.Candidate) string {
	return c.Metadata.String(domain.MetaCleanText).
		OrElse(c.Metadata.String(domain.MetaText).
			OrElse(c.Text))
}

func questionID(c domain.Candidate, raw string) string {
	if qid, ok := c.Metadata.String(domain.MetaQuestionID).Get(); ok && qid != domain.UnknownQuestionID {
		return qid
	}
	if qid, ok := ExtractQuestionID(raw); ok {
		return qid
	}
	if qid, ok := ExtractQuestionID(c.Text); ok {
		return qid
	}
	return domain.UnknownQuestionID
}

// fraction is the share of terms found in text; an empty term set contributes 0.
func fraction(text string, terms []string) float64 {
	if len(terms) == 0 {
		return 0
	}
	hits := 0
	for _, term := range terms {
		if strings.Contains(text, term) {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}
