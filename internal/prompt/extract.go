package prompt

import (
	"regexp"
	"strings"
)

const rawOutputLimit = 1000

var (
	itemStartExpr    = regexp.MustCompile(`\d\.`)
	itemBoundaryExpr = regexp.MustCompile(`\n\d\.`)
)

// Sections splits text into numbered items. The first item starts at the first
// "<digit>." anywhere in the text; each later one starts on a new line.
func Sections(text string) []string {
	first := itemStartExpr.FindStringIndex(text)
	if first == nil {
		return nil
	}

	base := first[0]
	start := base
	var sections []string
	for _, loc := range itemBoundaryExpr.FindAllStringIndex(text[base:], -1) {
		end := base + loc[0]
		sections = append(sections, text[start:end])
		start = end + 1
	}
	return append(sections, text[start:])
}

// ExtractInsights keeps the first insights and recommendations items of a model
// answer. Answers with too few numbered items come back as raw output, truncated.
func ExtractInsights(text string, insights, recommendations int) string {
	sections := Sections(text)
	if insights > 0 && recommendations >= 0 && len(sections) >= insights+recommendations {
		head := strings.Join(sections[:insights], "\n")
		tail := strings.Join(sections[insights:insights+recommendations], "\n")
		return "**Insights:**\n\n" + head + "\n\n\n\n" + tail
	}

	raw := []rune(strings.TrimSpace(text))
	if len(raw) > rawOutputLimit {
		raw = raw[:rawOutputLimit]
	}
	return "**Raw Output:**\n\n" + string(raw)
}
