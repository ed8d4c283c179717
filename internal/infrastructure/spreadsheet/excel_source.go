package spreadsheet

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"

	"SurveyInsights/internal/config"
	"SurveyInsights/internal/domain"
	"SurveyInsights/internal/ports"
)

const (
	defaultSheet      = "col%"
	defaultWindowSize = 25
)

// ExcelSource cuts question blocks out of a tabulation workbook.
type ExcelSource struct {
	path       string
	sheet      string
	windowSize int
	logger     *slog.Logger

	once sync.Once
	rows [][]string
	err  error
}

var _ ports.TableSource = (*ExcelSource)(nil)

// NewExcelSource prepares a lazily loaded workbook reader.
func NewExcelSource(cfg config.SpreadsheetConfig, logger *slog.Logger) *ExcelSource {
	sheet := cfg.Sheet
	if sheet == "" {
		sheet = defaultSheet
	}
	window := cfg.WindowSize
	if window <= 1 {
		window = defaultWindowSize
	}
	if logger != nil {
		logger = logger.With("component", "spreadsheet")
	}
	return &ExcelSource{path: cfg.Path, sheet: sheet, windowSize: window, logger: logger}
}

// ExtractQuestionTable finds the first row mentioning questionID and returns the block
// under it: the next row is the header, the following windowSize-1 rows the body.
func (s *ExcelSource) ExtractQuestionTable(ctx context.Context, questionID string) (domain.Table, error) {
	if err := ctx.Err(); err != nil {
		return domain.Table{}, err
	}
	rows, err := s.load()
	if err != nil {
		return domain.Table{}, err
	}

	matcher, err := questionMatcher(questionID)
	if err != nil {
		return domain.Table{}, err
	}

	start := -1
	var title string
	for i, row := range rows {
		text := strings.Join(nonEmpty(row), " ")
		if matcher.MatchString(text) {
			start, title = i, text
			break
		}
	}
	if start < 0 {
		return domain.Table{}, fmt.Errorf("%s in sheet %q: %w", questionID, s.sheet, ports.ErrQuestionNotInTable)
	}
	s.debug("question located", "qid", questionID, "row", start)

	tbl := domain.Table{QuestionID: questionID, Title: title}
	headerRow := start + 1
	if headerRow >= len(rows) {
		return tbl, nil
	}
	tbl.Header = rows[headerRow]

	end := min(start+1+s.windowSize, len(rows))
	tbl.Rows = append(tbl.Rows, rows[headerRow+1:end]...)
	return tbl, nil
}

func (s *ExcelSource) load() ([][]string, error) {
	s.once.Do(func() {
		if s.path == "" {
			s.err = fmt.Errorf("spreadsheet source misconfigured")
			return
		}
		f, err := excelize.OpenFile(s.path)
		if err != nil {
			s.err = fmt.Errorf("open workbook %s: %w", s.path, err)
			return
		}
		defer f.Close()

		s.rows, s.err = readSheet(f, s.sheet)
		if s.err == nil {
			s.debug("workbook loaded", "path", s.path, "sheet", s.sheet, "rows", len(s.rows))
		}
	})
	return s.rows, s.err
}

func readSheet(f *excelize.File, sheet string) ([][]string, error) {
	sheets := f.GetSheetList()
	found := false
	for _, name := range sheets {
		if name == sheet {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("sheet %q not found (available: %s)", sheet, strings.Join(sheets, ", "))
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

// questionMatcher matches the id as a whole token so Q1 does not hit Q10.1.
func questionMatcher(questionID string) (*regexp.Regexp, error) {
	id := strings.TrimSpace(questionID)
	if id == "" || id == domain.UnknownQuestionID {
		return nil, fmt.Errorf("invalid question id %q", questionID)
	}
	return regexp.Compile(`(?i)(^|[^\p{L}\p{N}.])` + regexp.QuoteMeta(id) + `($|[^\p{L}\p{N}]|\.[^\p{N}]|\.$)`)
}

func nonEmpty(row []string) []string {
	out := make([]string, 0, len(row))
	for _, cell := range row {
		if cell = strings.TrimSpace(cell); cell != "" {
			out = append(out, cell)
		}
	}
	return out
}

func (s *ExcelSource) debug(msg string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Debug(msg, args...)
}
