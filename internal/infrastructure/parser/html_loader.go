package parser

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"SurveyInsights/internal/ports"
)

const blockSelector = "h1, h2, h3, h4, h5, h6, p, li, tr"

// HTMLLoader extracts questionnaire text from HTML exports, one block per line.
type HTMLLoader struct{}

var _ ports.DocumentLoader = HTMLLoader{}

// Extensions lists the HTML file types.
func (HTMLLoader) Extensions() []string { return []string{".html", ".htm"} }

// Load parses r and returns headings, paragraphs, list items and table rows as lines.
func (HTMLLoader) Load(ctx context.Context, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("parse document: %w", err)
	}
	return documentText(doc), nil
}

func documentText(doc *goquery.Document) string {
	doc.Find("script, style, noscript").Remove()

	var lines []string
	doc.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		// nested blocks are emitted once: rows whole, anything else by its innermost element
		if goquery.NodeName(s) != "tr" {
			if s.Find(blockSelector).Length() > 0 || s.ParentsFiltered("tr").Length() > 0 {
				return
			}
		}
		if line := blockText(s); line != "" {
			lines = append(lines, line)
		}
	})

	if len(lines) == 0 {
		return collapse(doc.Find("body").Text())
	}
	return strings.Join(lines, "\n")
}

func blockText(s *goquery.Selection) string {
	if goquery.NodeName(s) != "tr" {
		return collapse(s.Text())
	}
	var cells []string
	s.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
		if text := collapse(cell.Text()); text != "" {
			cells = append(cells, text)
		}
	})
	return strings.Join(cells, " | ")
}

func collapse(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
