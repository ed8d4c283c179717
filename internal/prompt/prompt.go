// Package prompt renders the analyst prompt and trims the model's answer.
package prompt

import (
	"fmt"
	"strings"
	"text/template"
)

// SystemPrompt is sent as the system message of every completion.
const SystemPrompt = "You are an expert market research analyst."

const (
	DefaultBrand           = "the brand"
	DefaultStudyContext    = "a general market research study"
	DefaultBaseSize        = 1000
	DefaultInsights        = 3
	DefaultRecommendations = 2
)

const defaultTemplate = `
You are an expert market research analyst.

This data is from a survey about {{.Brand}}. The study focuses on {{.StudyContext}}.

Below is the question and the response data table:

**Question:**
{{.QuestionText}}

**Base size:** {{.BaseSize}} respondents

**Data Table:**
{{.Table}}

Please generate {{.Insights}} clear, concise insights from this data.
Then provide {{.Recommendations}} actionable recommendations based on the insights.
`

var defaultTmpl = template.Must(template.New("insight").Parse(defaultTemplate))

// Builder holds the study-level settings of the analyst prompt. Zero fields fall
// back to the package defaults.
type Builder struct {
	Brand           string
	StudyContext    string
	BaseSize        int
	Insights        int
	Recommendations int
	// Template overrides the built-in prompt; it sees the fields of promptData.
	Template string
}

type promptData struct {
	QuestionID      string
	QuestionText    string
	Table           string
	Brand           string
	StudyContext    string
	BaseSize        int
	Insights        int
	Recommendations int
}

// Build renders the prompt for one question. An empty question text falls back to the id.
func (b Builder) Build(questionID, questionText, tableMarkdown string) (string, error) {
	tmpl := defaultTmpl
	if strings.TrimSpace(b.Template) != "" {
		parsed, err := template.New("insight").Parse(b.Template)
		if err != nil {
			return "", fmt.Errorf("parse prompt template: %w", err)
		}
		tmpl = parsed
	}

	text := strings.TrimSpace(questionText)
	if text == "" {
		text = questionID
	}

	data := promptData{
		QuestionID:      questionID,
		QuestionText:    text,
		Table:           tableMarkdown,
		Brand:           orString(b.Brand, DefaultBrand),
		StudyContext:    orString(b.StudyContext, DefaultStudyContext),
		BaseSize:        orInt(b.BaseSize, DefaultBaseSize),
		Insights:        b.InsightCount(),
		Recommendations: b.RecommendationCount(),
	}

	var out strings.Builder
	if err := tmpl.Execute(&out, data); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return out.String(), nil
}

// InsightCount is the number of insights requested.
func (b Builder) InsightCount() int { return orInt(b.Insights, DefaultInsights) }

// RecommendationCount is the number of recommendations requested.
func (b Builder) RecommendationCount() int {
	return orInt(b.Recommendations, DefaultRecommendations)
}

func orString(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func orInt(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
