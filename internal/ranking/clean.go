package ranking

import (
	"regexp"
	"strings"
)

var (
	questionIDExpr = regexp.MustCompile(`Q\d+(?:\.\d+)?`)
	whitespaceExpr = regexp.MustCompile(`\s+`)
)

// cleaner strips survey instructions out of question text.
type cleaner struct {
	boilerplate []*regexp.Regexp
	annotations []*regexp.Regexp
}

func newCleaner(boilerplate, annotations []string) cleaner {
	c := cleaner{}
	for _, phrase := range boilerplate {
		c.boilerplate = append(c.boilerplate, regexp.MustCompile(`(?i)`+regexp.QuoteMeta(phrase)+`\s*`))
	}
	for _, tag := range annotations {
		c.annotations = append(c.annotations, regexp.MustCompile(`\s*`+regexp.QuoteMeta(tag)+`\s*`))
	}
	return c
}

// Clean removes boilerplate markers and annotations and collapses whitespace.
func (c cleaner) Clean(text string) string {
	for _, expr := range c.boilerplate {
		text = expr.ReplaceAllString(text, "")
	}
	// annotations sit between words, keep them apart
	for _, expr := range c.annotations {
		text = expr.ReplaceAllString(text, " ")
	}
	text = whitespaceExpr.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// ExtractQuestionID returns the first "Q<digits>[.<digits>]" token in text.
func ExtractQuestionID(text string) (string, bool) {
	id := questionIDExpr.FindString(text)
	return id, id != ""
}
