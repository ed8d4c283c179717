package corpus

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SurveyInsights/internal/domain"
)

// wordTokenizer treats each whitespace separated word as one token.
type wordTokenizer struct{}

func (wordTokenizer) Encode(text string) []int {
	words := strings.Fields(text)
	out := make([]int, len(words))
	for i := range words {
		out[i] = i
	}
	return out
}

func (wordTokenizer) Decode(tokens []int) string {
	parts := make([]string, len(tokens))
	for i, tok := range tokens {
		parts[i] = "w" + string(rune('a'+tok%26))
	}
	return strings.Join(parts, " ")
}

func TestChunkerSplitWindows(t *testing.T) {
	t.Parallel()

	c, err := NewChunker(wordTokenizer{}, 4, 1)
	require.NoError(t, err)

	chunks := c.Split("one two three four five six seven eight nine ten")
	// starts at 0, 3, 6, 9
	require.Len(t, chunks, 4)
	assert.Equal(t, "wa wb wc wd", chunks[0])
	assert.Equal(t, "wd we wf wg", chunks[1])
	assert.Equal(t, "wg wh wi wj", chunks[2])
	assert.Equal(t, "wj", chunks[3])
}

func TestChunkerSplitEmpty(t *testing.T) {
	t.Parallel()

	c, err := NewChunker(wordTokenizer{}, 4, 0)
	require.NoError(t, err)
	assert.Nil(t, c.Split("   "))
}

func TestNewChunkerValidation(t *testing.T) {
	t.Parallel()

	_, err := NewChunker(nil, 4, 1)
	assert.Error(t, err)
	_, err = NewChunker(wordTokenizer{}, 0, 0)
	assert.Error(t, err)
	_, err = NewChunker(wordTokenizer{}, 4, 4)
	assert.Error(t, err)
	_, err = NewChunker(wordTokenizer{}, 4, -1)
	assert.Error(t, err)
}

func TestCleanText(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Q10.1 Which OTT apps do you use? MA", CleanText("Q10.1 Which OTT apps\n\ndo you use? (MA)"))
	assert.Equal(t, "Netflix Prime", CleanText("Netflix • Prime"))
	// full-width digits fold to ASCII
	assert.Equal(t, "Q12", CleanText("Q１２"))
}

func TestBuildChunks(t *testing.T) {
	t.Parallel()

	chunks := BuildChunks("survey", []string{"Q4 Which apps? (MA)", "Thank the respondent"})
	require.Len(t, chunks, 2)

	assert.Equal(t, "survey-chunk-0", chunks[0].ID)
	assert.Equal(t, "Q4", chunks[0].Metadata[domain.MetaQuestionID])
	assert.Equal(t, "Q4 Which apps? MA", chunks[0].Metadata[domain.MetaCleanText])
	assert.Equal(t, "Q4 Which apps? (MA)", chunks[0].Metadata[domain.MetaText])

	assert.Equal(t, "survey-chunk-1", chunks[1].ID)
	assert.Equal(t, domain.UnknownQuestionID, chunks[1].Metadata[domain.MetaQuestionID])
}
