// Package table prepares spreadsheet response blocks for an LLM prompt.
package table

import (
	"fmt"
	"strconv"
	"strings"

	"SurveyInsights/internal/domain"
)

// DefaultKeyTerms mark banner columns worth keeping (totals, bases, demographics).
var DefaultKeyTerms = []string{"total", "base", "male", "female", "age", "nccs", "years"}

// Selection controls SelectColumns.
type Selection struct {
	KeyTerms    []string
	MinRelevant int
	Fallback    int
	MaxColumns  int
}

// DefaultSelection mirrors the tabulation layout of the OTT survey.
func DefaultSelection() Selection {
	return Selection{KeyTerms: DefaultKeyTerms, MinRelevant: 5, Fallback: 10, MaxColumns: 10}
}

// SelectColumns keeps the label column plus the banner columns that matter.
// Headed columns containing "all" or a key term come first; when fewer than
// MinRelevant match, the first Fallback headed columns are appended. The result is
// de-duplicated and capped at MaxColumns data columns.
func SelectColumns(t domain.Table, sel Selection) domain.Table {
	width := t.Width()
	if width == 0 {
		return t
	}

	label := -1
	if columnHasValues(t, 0) {
		label = 0
	}

	var headed []int
	for col := 0; col < width; col++ {
		if col == label {
			continue
		}
		if strings.TrimSpace(header(t, col)) != "" {
			headed = append(headed, col)
		}
	}

	var picked []int
	for _, col := range headed {
		name := strings.ToLower(header(t, col))
		if strings.Contains(name, "all") || containsAny(name, sel.KeyTerms) {
			picked = append(picked, col)
		}
	}
	if len(picked) < sel.MinRelevant {
		limit := sel.Fallback
		if limit <= 0 || limit > len(headed) {
			limit = len(headed)
		}
		picked = append(picked, headed[:limit]...)
	}
	picked = dedupe(picked)
	if sel.MaxColumns > 0 && len(picked) > sel.MaxColumns {
		picked = picked[:sel.MaxColumns]
	}

	columns := picked
	if label >= 0 {
		columns = append([]int{label}, picked...)
	}
	return project(t, columns)
}

// FormatNumbers renders numeric cells as one-decimal percentages. Rows whose label
// mentions "base" hold respondent counts and are left untouched.
func FormatNumbers(t domain.Table) domain.Table {
	out := t
	out.Rows = make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		formatted := make([]string, len(row))
		isBase := len(row) > 0 && strings.Contains(strings.ToLower(row[0]), "base")
		for j, cell := range row {
			if j == 0 || isBase {
				formatted[j] = cell
				continue
			}
			formatted[j] = formatPercent(cell)
		}
		out.Rows[i] = formatted
	}
	return out
}

// Markdown renders t as a GitHub pipe table.
func Markdown(t domain.Table) string {
	width := t.Width()
	if width == 0 {
		return ""
	}

	var b strings.Builder
	writeRow := func(cells func(int) string) {
		b.WriteString("|")
		for col := 0; col < width; col++ {
			b.WriteString(" ")
			b.WriteString(escape(cells(col)))
			b.WriteString(" |")
		}
		b.WriteString("\n")
	}

	writeRow(func(col int) string { return header(t, col) })
	writeRow(func(int) string { return "---" })
	for i := range t.Rows {
		row := i
		writeRow(func(col int) string { return t.Cell(row, col) })
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatPercent(cell string) string {
	trimmed := strings.TrimSpace(cell)
	if trimmed == "" {
		return cell
	}
	number := strings.TrimSuffix(trimmed, "%")
	value, err := strconv.ParseFloat(strings.TrimSpace(number), 64)
	if err != nil {
		return cell
	}
	return fmt.Sprintf("%.1f%%", value)
}

func header(t domain.Table, col int) string {
	if col < len(t.Header) {
		return t.Header[col]
	}
	return ""
}

func columnHasValues(t domain.Table, col int) bool {
	for row := range t.Rows {
		if strings.TrimSpace(t.Cell(row, col)) != "" {
			return true
		}
	}
	return false
}

func project(t domain.Table, columns []int) domain.Table {
	out := domain.Table{QuestionID: t.QuestionID, Title: t.Title}
	out.Header = make([]string, len(columns))
	for i, col := range columns {
		out.Header[i] = header(t, col)
	}
	out.Rows = make([][]string, len(t.Rows))
	for r := range t.Rows {
		row := make([]string, len(columns))
		for i, col := range columns {
			row[i] = t.Cell(r, col)
		}
		out.Rows[r] = row
	}
	return out
}

func containsAny(s string, terms []string) bool {
	for _, term := range terms {
		if term != "" && strings.Contains(s, term) {
			return true
		}
	}
	return false
}

func dedupe(values []int) []int {
	seen := make(map[int]struct{}, len(values))
	out := values[:0:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func escape(cell string) string {
	cell = strings.ReplaceAll(cell, "|", `\|`)
	return strings.ReplaceAll(cell, "\n", " ")
}
