package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SurveyInsights/internal/domain"
)

func sampleTable() domain.Table {
	return domain.Table{
		QuestionID: "Q10.1",
		Header:     []string{"", "Total", "Male", "Female", "Delhi", "Mumbai", "", "Age 18-24"},
		Rows: [][]string{
			{"Base", "2314", "1200", "1114", "400", "380", "", "500"},
			{"Netflix", "45.26", "40", "50.5", "41", "39", "", "60"},
			{"Prime", "38%", "35", "41", "n/a", "33"},
		},
	}
}

func TestSelectColumnsKeepsLabelAndRelevant(t *testing.T) {
	t.Parallel()

	got := SelectColumns(sampleTable(), DefaultSelection())
	// fewer than five relevant columns, so the first headed columns are appended
	assert.Equal(t, []string{"", "Total", "Male", "Female", "Age 18-24", "Delhi", "Mumbai"}, got.Header)
	require.Len(t, got.Rows, 3)
	assert.Equal(t, []string{"Prime", "38%", "35", "41", "", "n/a", "33"}, got.Rows[2])
}

func TestSelectColumnsCapsWidth(t *testing.T) {
	t.Parallel()

	sel := DefaultSelection()
	sel.MaxColumns = 2
	got := SelectColumns(sampleTable(), sel)
	assert.Equal(t, []string{"", "Total", "Male"}, got.Header)
}

func TestSelectColumnsEmptyTable(t *testing.T) {
	t.Parallel()

	got := SelectColumns(domain.Table{QuestionID: "Q1"}, DefaultSelection())
	assert.Equal(t, "Q1", got.QuestionID)
	assert.Empty(t, got.Header)
}

func TestFormatNumbers(t *testing.T) {
	t.Parallel()

	got := FormatNumbers(sampleTable())
	assert.Equal(t, []string{"Base", "2314", "1200", "1114", "400", "380", "", "500"}, got.Rows[0])
	assert.Equal(t, []string{"Netflix", "45.3%", "40.0%", "50.5%", "41.0%", "39.0%", "", "60.0%"}, got.Rows[1])
	assert.Equal(t, []string{"Prime", "38.0%", "35.0%", "41.0%", "n/a", "33.0%"}, got.Rows[2])
}

func TestMarkdown(t *testing.T) {
	t.Parallel()

	tbl := domain.Table{
		Header: []string{"App", "Total"},
		Rows: [][]string{
			{"Netflix", "45.0%"},
			{"A|B"},
		},
	}
	want := "| App | Total |\n| --- | --- |\n| Netflix | 45.0% |\n| A\\|B |  |"
	assert.Equal(t, want, Markdown(tbl))
	assert.Empty(t, Markdown(domain.Table{}))
}
