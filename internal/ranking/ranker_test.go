package ranking

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SurveyInsights/internal/domain"
)

func newTestRanker(t *testing.T) *Ranker {
	t.Helper()
	r, err := New(DefaultConfig())
	require.NoError(t, err)
	return r
}

func TestSelectBestQuestionEmptyCandidates(t *testing.T) {
	t.Parallel()
	r := newTestRanker(t)

	got := r.SelectBestQuestion(nil, "anything")
	assert.Equal(t, domain.UnknownQuestionID, got.QuestionID)
	assert.Empty(t, got.QuestionText)
	assert.False(t, got.Found)

	got = r.SelectBestQuestion([]domain.Candidate{}, "anything")
	assert.Equal(t, domain.UnknownQuestionID, got.QuestionID)
	assert.Empty(t, got.QuestionText)
}

func TestSelectBestQuestionSkipsCandidatesWithoutText(t *testing.T) {
	t.Parallel()
	r := newTestRanker(t)

	candidates := []domain.Candidate{
		{Score: 0.99},
		{Score: 0.95, Metadata: domain.Metadata{domain.MetaText: "", domain.MetaQuestionID: "Q1"}},
		{Score: 0.9, Metadata: domain.Metadata{domain.MetaCleanText: 42}},
	}

	got := r.SelectBestQuestion(candidates, "apps")
	assert.Equal(t, domain.UnknownQuestionID, got.QuestionID)
	assert.Empty(t, got.QuestionText)
}

func TestSelectBestQuestionScenarioBoostedMatch(t *testing.T) {
	t.Parallel()
	r := newTestRanker(t)

	candidates := []domain.Candidate{
		{Text: "Q10.1 Which OTT apps do you currently use?", Score: 0.9, Metadata: domain.Metadata{}},
	}

	got := r.SelectBestQuestion(candidates, "OTT usage")
	require.True(t, got.Found)
	assert.Equal(t, "Q10.1", got.QuestionID)
	assert.Equal(t, "Q10.1 Which OTT apps do you currently use?", got.QuestionText)

	// domain 2/8, usage 2/6, query 1/2
	relevance := 0.4*(2.0/8.0) + 0.3*(2.0/6.0) + 0.3*(1.0/2.0)
	want := (0.7*0.9 + 0.3*relevance) * 1.5
	assert.InDelta(t, want, got.Score, 1e-9)
	assert.Greater(t, got.Score, 0.9*0.7*1.5)
}

func TestSelectBestQuestionBoostOverridesSimilarity(t *testing.T) {
	t.Parallel()
	r := newTestRanker(t)

	candidates := []domain.Candidate{
		{Text: "Q5 Rate the brand overall", Score: 0.5},
		{Text: "Q10 Rate the brand overall", Score: 0.4},
	}

	got := r.SelectBestQuestion(candidates, "")
	assert.Equal(t, "Q10", got.QuestionID)
	assert.InDelta(t, 0.4*0.7*1.5, got.Score, 1e-9)
}

func TestSelectBestQuestionStripsBoilerplate(t *testing.T) {
	t.Parallel()
	r := newTestRanker(t)

	candidates := []domain.Candidate{
		{Text: "SHOW SCREEN TO THE RESPONDENT Please answer Q3", Score: 0.8},
	}

	got := r.SelectBestQuestion(candidates, "answer")
	assert.Equal(t, "Q3", got.QuestionID)
	assert.Equal(t, "Please answer Q3", got.QuestionText)
}

func TestSelectBestQuestionUnparseableScores(t *testing.T) {
	t.Parallel()
	r := newTestRanker(t)

	scores := []any{nil, "not-a-number", struct{}{}, math.NaN(), math.Inf(1), []int{1}}
	for _, score := range scores {
		got := r.SelectBestQuestion([]domain.Candidate{{Text: "Q2 Which platform do you prefer?", Score: score}}, "platform")
		assert.Equal(t, "Q2", got.QuestionID, "score %v", score)

		explained := r.Explain([]domain.Candidate{{Text: "Q2 Which platform do you prefer?", Score: score}}, "platform")
		require.Len(t, explained, 1)
		assert.Zero(t, explained[0].Embedding, "score %v", score)
	}
}

func TestSelectBestQuestionNumericStringScore(t *testing.T) {
	t.Parallel()
	r := newTestRanker(t)

	candidates := []domain.Candidate{
		{Text: "Q2 Rate the brand", Score: 0.2},
		{Text: "Q3 Rate the brand", Score: "0.6"},
	}
	got := r.SelectBestQuestion(candidates, "")
	assert.Equal(t, "Q3", got.QuestionID)
}

func TestSelectBestQuestionIsIdempotent(t *testing.T) {
	t.Parallel()
	r := newTestRanker(t)

	candidates := []domain.Candidate{
		{Text: "Q4 Which video apps have you installed?", Score: 0.61},
		{Text: "Q11.2 How often do you stream?", Score: 0.52},
		{Text: "Q7 (SA) Gender", Score: 0.7},
	}

	first := r.SelectBestQuestion(candidates, "installed video apps")
	second := r.SelectBestQuestion(candidates, "installed video apps")
	assert.Equal(t, first, second)
}

func TestSelectBestQuestionTieKeepsFirst(t *testing.T) {
	t.Parallel()
	r := newTestRanker(t)

	candidates := []domain.Candidate{
		{Text: "Rate the brand", Score: 0.5, Metadata: domain.Metadata{domain.MetaQuestionID: "Q1"}},
		{Text: "Rate the brand", Score: 0.5, Metadata: domain.Metadata{domain.MetaQuestionID: "Q2"}},
	}

	got := r.SelectBestQuestion(candidates, "brand")
	assert.Equal(t, "Q1", got.QuestionID)
}

func TestSelectBestQuestionBoostMonotonic(t *testing.T) {
	t.Parallel()
	r := newTestRanker(t)

	prev := math.Inf(-1)
	for score := 0.0; score <= 1.0; score += 0.05 {
		got := r.SelectBestQuestion([]domain.Candidate{{Text: "Q10.2 Which apps do you use?", Score: score}}, "apps")
		require.Equal(t, "Q10.2", got.QuestionID)
		assert.GreaterOrEqual(t, got.Score, prev)
		prev = got.Score
	}
}

func TestSelectBestQuestionMetadataPrecedence(t *testing.T) {
	t.Parallel()
	r := newTestRanker(t)

	candidates := []domain.Candidate{
		{
			Text:  "raw Q9 chunk",
			Score: 0.5,
			Metadata: domain.Metadata{
				domain.MetaCleanText:  "Which OTT apps do you use?",
				domain.MetaText:       "Q12 Which OTT apps do you use? (MA)",
				domain.MetaQuestionID: "unknown",
			},
		},
	}

	got := r.SelectBestQuestion(candidates, "")
	assert.Equal(t, "Which OTT apps do you use?", got.QuestionText)
	// clean_text carries no id, so the raw snippet is consulted
	assert.Equal(t, "Q9", got.QuestionID)
}

func TestSelectBestQuestionExplicitQuestionID(t *testing.T) {
	t.Parallel()
	r := newTestRanker(t)

	candidates := []domain.Candidate{
		{Score: 0.5, Metadata: domain.Metadata{domain.MetaText: "Q3 text mentions Q3", domain.MetaQuestionID: "Q11.4"}},
	}

	got := r.SelectBestQuestion(candidates, "")
	assert.Equal(t, "Q11.4", got.QuestionID)
	assert.InDelta(t, 0.5*0.7*1.5, got.Score, 1e-9)
}

func TestSelectBestQuestionUnknownIDWhenNoPattern(t *testing.T) {
	t.Parallel()
	r := newTestRanker(t)

	got := r.SelectBestQuestion([]domain.Candidate{{Text: "General instructions for the interviewer", Score: 0.3}}, "")
	assert.True(t, got.Found)
	assert.Equal(t, domain.UnknownQuestionID, got.QuestionID)
	assert.Equal(t, "General instructions for the interviewer", got.QuestionText)
}

func TestCustomConfigWithoutKeywords(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.DomainKeywords = nil
	cfg.UsageKeywords = nil
	cfg.Boost.Prefixes = []string{"Q2"}
	cfg.Boost.Factor = 2
	r, err := New(cfg)
	require.NoError(t, err)

	explained := r.Explain([]domain.Candidate{{Text: "Q2 something", Score: 0.5}}, "")
	require.Len(t, explained, 1)
	assert.Zero(t, explained[0].Relevance)
	assert.True(t, explained[0].Boosted)
	assert.InDelta(t, 0.7, explained[0].Final, 1e-9)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	negative := DefaultConfig()
	negative.Weights.Query = -0.1
	_, err := New(negative)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	noFactor := DefaultConfig()
	noFactor.Boost.Factor = 0
	_, err = New(noFactor)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	emptyMarker := DefaultConfig()
	emptyMarker.Annotations = append(emptyMarker.Annotations, " ")
	_, err = New(emptyMarker)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	assert.Panics(t, func() { MustNew(negative) })
}
