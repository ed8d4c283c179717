package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDefaults(t *testing.T) {
	t.Parallel()

	got, err := Builder{}.Build("Q10.1", "Which OTT apps do you use?", "| App |\n| --- |")
	require.NoError(t, err)

	assert.Contains(t, got, "This data is from a survey about the brand. The study focuses on a general market research study.")
	assert.Contains(t, got, "**Question:**\nWhich OTT apps do you use?\n")
	assert.Contains(t, got, "**Base size:** 1000 respondents")
	assert.Contains(t, got, "**Data Table:**\n| App |\n| --- |\n")
	assert.Contains(t, got, "Please generate 3 clear, concise insights from this data.")
	assert.Contains(t, got, "Then provide 2 actionable recommendations based on the insights.")
}

func TestBuildCustomSettings(t *testing.T) {
	t.Parallel()

	b := Builder{Brand: "StreamCo", StudyContext: "brand awareness", BaseSize: 2314, Insights: 4, Recommendations: 1}
	got, err := b.Build("Q7", "  ", "table")
	require.NoError(t, err)

	assert.Contains(t, got, "survey about StreamCo. The study focuses on brand awareness.")
	assert.Contains(t, got, "**Question:**\nQ7\n")
	assert.Contains(t, got, "2314 respondents")
	assert.Contains(t, got, "generate 4 clear")
	assert.Contains(t, got, "provide 1 actionable")
}

func TestBuildCustomTemplate(t *testing.T) {
	t.Parallel()

	got, err := Builder{Template: "{{.QuestionID}}: {{.QuestionText}} ({{.Insights}})"}.Build("Q3", "Age?", "")
	require.NoError(t, err)
	assert.Equal(t, "Q3: Age? (3)", got)

	_, err = Builder{Template: "{{.Missing"}.Build("Q3", "Age?", "")
	assert.Error(t, err)
}

func TestSections(t *testing.T) {
	t.Parallel()

	text := "Here are insights:\n1. A\n2. B\n3. C\n\nRecommendations:\n1. D\n2. E"
	assert.Equal(t, []string{"1. A", "2. B", "3. C\n\nRecommendations:", "1. D", "2. E"}, Sections(text))
	assert.Nil(t, Sections("no numbered items"))
}

func TestExtractInsights(t *testing.T) {
	t.Parallel()

	text := "Here are insights:\n1. A\n2. B\n3. C\n\nRecommendations:\n1. D\n2. E\n3. F"
	want := "**Insights:**\n\n1. A\n2. B\n3. C\n\nRecommendations:\n\n\n\n1. D\n2. E"
	assert.Equal(t, want, ExtractInsights(text, 3, 2))
}

func TestExtractInsightsRawFallback(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "**Raw Output:**\n\n1. only one", ExtractInsights("  1. only one \n", 3, 2))

	long := strings.Repeat("é", rawOutputLimit+50)
	got := ExtractInsights(long, 3, 2)
	assert.Equal(t, "**Raw Output:**\n\n"+strings.Repeat("é", rawOutputLimit), got)
}
