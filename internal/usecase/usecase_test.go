package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SurveyInsights/internal/corpus"
	"SurveyInsights/internal/domain"
	"SurveyInsights/internal/metrics"
	"SurveyInsights/internal/ports"
	"SurveyInsights/internal/prompt"
)

type fakeIndex struct {
	candidates []domain.Candidate
	err        error

	queries  []string
	topKs    []int
	upserted [][]domain.Chunk
}

func (f *fakeIndex) Search(_ context.Context, query string, topK int) ([]domain.Candidate, error) {
	f.queries = append(f.queries, query)
	f.topKs = append(f.topKs, topK)
	return f.candidates, f.err
}

func (f *fakeIndex) Upsert(_ context.Context, chunks []domain.Chunk) error {
	f.upserted = append(f.upserted, append([]domain.Chunk(nil), chunks...))
	return f.err
}

type fakeTables struct {
	tables map[string]domain.Table
	asked  []string
}

func (f *fakeTables) ExtractQuestionTable(_ context.Context, qid string) (domain.Table, error) {
	f.asked = append(f.asked, qid)
	t, ok := f.tables[qid]
	if !ok {
		return domain.Table{}, ports.ErrQuestionNotInTable
	}
	return t, nil
}

type fakeCompleter struct {
	answer string
	err    error

	system string
	user   string
}

func (f *fakeCompleter) Complete(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	f.system, f.user = systemPrompt, userPrompt
	return f.answer, f.err
}

type fakePublisher struct {
	url     string
	err     error
	reports []domain.InsightReport
}

func (f *fakePublisher) Publish(_ context.Context, report domain.InsightReport) (string, error) {
	f.reports = append(f.reports, report)
	return f.url, f.err
}

type fakeRepository struct {
	saved []domain.InsightReport
}

func (f *fakeRepository) Save(_ context.Context, report domain.InsightReport) error {
	f.saved = append(f.saved, report)
	return nil
}

func (f *fakeRepository) History(context.Context, string, int) ([]domain.InsightReport, error) {
	return f.saved, nil
}

type fakeNotifier struct {
	messages []string
}

func (f *fakeNotifier) Notify(_ context.Context, msg string) error {
	f.messages = append(f.messages, msg)
	return nil
}

const fiveSections = `1. Awareness is highest among men.
2. Younger buyers lean on online channels.
3. NCCS A over-indexes on premium packs.
4. Push digital campaigns to 18-24.
5. Launch a premium trial pack.`

func surveyCandidates() []domain.Candidate {
	return []domain.Candidate{
		{ID: "c1", Score: 0.62, Metadata: domain.Metadata{"qid": "Q3", "clean_text": "Q3. Which brands have you heard of?"}},
		{ID: "c2", Score: 0.58, Metadata: domain.Metadata{"qid": "Q10", "clean_text": "Q10. Which brand of tea do you buy most often?"}},
	}
}

func surveyTable() domain.Table {
	return domain.Table{
		QuestionID: "Q10",
		Title:      "Q10. Which brand of tea do you buy most often?",
		Header:     []string{"", "Total", "Male", "Female"},
		Rows: [][]string{
			{"Base", "1000", "480", "520"},
			{"Brand A", "45", "50", "40"},
		},
	}
}

func newTestPipeline(idx *fakeIndex, tables *fakeTables, completer *fakeCompleter, extra func(*PipelineDeps)) *Pipeline {
	deps := PipelineDeps{
		Index:     idx,
		Tables:    tables,
		Completer: completer,
		Now:       func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) },
	}
	if extra != nil {
		extra(&deps)
	}
	return NewPipeline(deps)
}

func TestPipelineAskEndToEnd(t *testing.T) {
	t.Parallel()

	idx := &fakeIndex{candidates: surveyCandidates()}
	tables := &fakeTables{tables: map[string]domain.Table{"Q10": surveyTable()}}
	completer := &fakeCompleter{answer: fiveSections}
	publisher := &fakePublisher{url: "https://docs.example/d/1/edit"}
	repo := &fakeRepository{}
	notifier := &fakeNotifier{}

	p := newTestPipeline(idx, tables, completer, func(d *PipelineDeps) {
		d.Publisher = publisher
		d.Repository = repo
		d.Notifier = notifier
		d.Prompt = prompt.Builder{Brand: "Acme Tea"}
		d.Metrics = metrics.NewMetrics()
	})

	report, err := p.Ask(context.Background(), "  Which tea brand is most popular?  ")
	require.NoError(t, err)

	assert.Equal(t, []string{"Survey question about: Which tea brand is most popular?"}, idx.queries)
	assert.Equal(t, []int{40}, idx.topKs)
	assert.Equal(t, []string{"Q10"}, tables.asked)

	assert.Equal(t, "Q10", report.QuestionID)
	assert.Equal(t, "Q10. Which brand of tea do you buy most often?", report.QuestionText)
	assert.Equal(t, domain.StatusPublished, report.Status)
	assert.Equal(t, "https://docs.example/d/1/edit", report.DocumentURL)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC), report.CreatedAt)

	assert.Equal(t, prompt.SystemPrompt, completer.system)
	assert.Contains(t, completer.user, "Acme Tea")
	assert.Contains(t, completer.user, "| Total |")
	assert.Contains(t, completer.user, "45.0%")
	assert.True(t, strings.HasPrefix(report.Insights, "**Insights:**"))

	require.Len(t, publisher.reports, 1)
	assert.Equal(t, "Q10", publisher.reports[0].QuestionID)
	require.Len(t, repo.saved, 1)
	assert.Equal(t, report.RunID, repo.saved[0].RunID)
	require.Len(t, notifier.messages, 1)
	assert.Contains(t, notifier.messages[0], "https://docs.example/d/1/edit")
}

func TestPipelineAskEmptyQuestion(t *testing.T) {
	t.Parallel()

	idx := &fakeIndex{}
	p := newTestPipeline(idx, &fakeTables{}, &fakeCompleter{}, nil)

	_, err := p.Ask(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuestion)
	assert.Empty(t, idx.queries)
}

func TestPipelineAskNoMatchStopsBeforeDownstream(t *testing.T) {
	t.Parallel()

	cases := map[string][]domain.Candidate{
		"no candidates":  nil,
		"no usable text": {{ID: "x", Score: 0.9}},
		"unknown id":     {{ID: "y", Score: 0.9, Metadata: domain.Metadata{"clean_text": "Please tell us about yourself"}}},
	}
	for name, candidates := range cases {
		candidates := candidates
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			tables := &fakeTables{}
			completer := &fakeCompleter{}
			p := newTestPipeline(&fakeIndex{candidates: candidates}, tables, completer, nil)

			report, err := p.Ask(context.Background(), "anything")
			assert.ErrorIs(t, err, ErrNoMatchingQuestion)
			assert.Equal(t, domain.StatusFailed, report.Status)
			assert.Empty(t, tables.asked)
			assert.Empty(t, completer.user)
		})
	}
}

func TestPipelineAskPropagatesStageErrors(t *testing.T) {
	t.Parallel()

	t.Run("search", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("index down")
		p := newTestPipeline(&fakeIndex{err: boom}, &fakeTables{}, &fakeCompleter{}, nil)
		_, err := p.Ask(context.Background(), "q")
		assert.ErrorIs(t, err, boom)
	})

	t.Run("table", func(t *testing.T) {
		t.Parallel()
		p := newTestPipeline(&fakeIndex{candidates: surveyCandidates()}, &fakeTables{}, &fakeCompleter{}, nil)
		_, err := p.Ask(context.Background(), "q")
		assert.ErrorIs(t, err, ports.ErrQuestionNotInTable)
		assert.Contains(t, err.Error(), "Q10")
	})

	t.Run("completion", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("rate limited")
		tables := &fakeTables{tables: map[string]domain.Table{"Q10": surveyTable()}}
		p := newTestPipeline(&fakeIndex{candidates: surveyCandidates()}, tables, &fakeCompleter{err: boom}, nil)
		report, err := p.Ask(context.Background(), "q")
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, domain.StatusFailed, report.Status)
	})

	t.Run("publish keeps analysed report", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("quota")
		tables := &fakeTables{tables: map[string]domain.Table{"Q10": surveyTable()}}
		repo := &fakeRepository{}
		p := newTestPipeline(&fakeIndex{candidates: surveyCandidates()}, tables, &fakeCompleter{answer: fiveSections}, func(d *PipelineDeps) {
			d.Publisher = &fakePublisher{err: boom}
			d.Repository = repo
		})
		report, err := p.Ask(context.Background(), "q")
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, domain.StatusAnalyzed, report.Status)
		assert.NotEmpty(t, report.Insights)
		assert.Empty(t, repo.saved)
	})
}

func TestPipelineRawOutputFallback(t *testing.T) {
	t.Parallel()

	tables := &fakeTables{tables: map[string]domain.Table{"Q10": surveyTable()}}
	p := newTestPipeline(&fakeIndex{candidates: surveyCandidates()}, tables, &fakeCompleter{answer: "No numbered output."}, nil)

	report, err := p.Ask(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAnalyzed, report.Status)
	assert.Equal(t, "**Raw Output:**\n\nNo numbered output.", report.Insights)
}

func TestPipelineFindQuestion(t *testing.T) {
	t.Parallel()

	idx := &fakeIndex{candidates: surveyCandidates()}
	p := newTestPipeline(idx, nil, nil, func(d *PipelineDeps) {
		d.TopK = 5
		d.QueryTemplate = "%s"
	})

	result, err := p.FindQuestion(context.Background(), "tea brand")
	require.NoError(t, err)
	assert.Equal(t, "Q10", result.QuestionID)
	assert.True(t, result.Found)
	assert.Equal(t, []string{"tea brand"}, idx.queries)
	assert.Equal(t, []int{10}, idx.topKs)
}

type staticSource struct{ text string }

func (s staticSource) Load(context.Context, string) (string, error) { return s.text, nil }

type wordTokenizer struct{}

func (wordTokenizer) Encode(text string) []int {
	words := strings.Fields(text)
	out := make([]int, len(words))
	for i := range words {
		out[i] = i
	}
	return out
}

type wordDecoder struct {
	wordTokenizer
	words []string
}

func (w wordDecoder) Decode(tokens []int) string {
	parts := make([]string, len(tokens))
	for i, tok := range tokens {
		parts[i] = w.words[tok]
	}
	return strings.Join(parts, " ")
}

type recordingEmbedder struct {
	batches [][]string
}

func (r *recordingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	r.batches = append(r.batches, texts)
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i), 1}
	}
	return out, nil
}

func TestIngestorIndexesChunks(t *testing.T) {
	t.Parallel()

	text := "Q1. How old are you? Q2. Which city do you live in? Q3. Which brands do you know?"
	tok := wordDecoder{words: strings.Fields(text)}
	chunker, err := corpus.NewChunker(tok, 6, 2)
	require.NoError(t, err)

	idx := &fakeIndex{}
	emb := &recordingEmbedder{}
	ing := NewIngestor(IngestorDeps{
		Source:    staticSource{text: text},
		Chunker:   chunker,
		Embedder:  emb,
		Index:     idx,
		BatchSize: 2,
	})

	count, err := ing.Ingest(context.Background(), "questionnaire.pdf", "")
	require.NoError(t, err)

	windows := chunker.Split(text)
	assert.Equal(t, len(windows), count)
	assert.Len(t, emb.batches, (len(windows)+1)/2)

	var stored []domain.Chunk
	for _, batch := range idx.upserted {
		stored = append(stored, batch...)
	}
	require.Len(t, stored, len(windows))
	assert.Equal(t, "default-chunk-0", stored[0].ID)
	assert.Equal(t, "Q1", stored[0].Metadata[domain.MetaQuestionID])
	for _, chunk := range stored {
		assert.Len(t, chunk.Embedding, 2)
	}
}

func TestIngestorMisconfigured(t *testing.T) {
	t.Parallel()

	_, err := NewIngestor(IngestorDeps{}).Ingest(context.Background(), "x.pdf", "ns")
	assert.Error(t, err)
}

type scriptedAsker struct {
	mu    sync.Mutex
	fail  map[string]error
	asked []string
}

func (s *scriptedAsker) Ask(_ context.Context, question string) (domain.InsightReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.asked = append(s.asked, question)
	if err := s.fail[question]; err != nil {
		return domain.InsightReport{}, err
	}
	return domain.InsightReport{Question: question, QuestionID: "Q1"}, nil
}

func TestBatchRunnerContinuesPastFailures(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	asker := &scriptedAsker{fail: map[string]error{"second": boom}}
	runner := NewBatchRunner(asker, []string{"first", "second", "third"}, nil)

	reports, err := runner.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), `"second"`)
	assert.Len(t, reports, 2)
	assert.Equal(t, []string{"first", "second", "third"}, asker.asked)
}

func TestBatchRunnerStopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	asker := &scriptedAsker{}
	reports, err := NewBatchRunner(asker, []string{"a", "b"}, nil).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, reports)
	assert.Empty(t, asker.asked)
}

type manualDriver struct {
	job     func(time.Time)
	stopped bool
}

func (m *manualDriver) Start(_ context.Context, job func(time.Time)) error {
	m.job = job
	return nil
}

func (m *manualDriver) Stop(context.Context) error {
	m.stopped = true
	return nil
}

func TestSchedulerRunsBatchOnTrigger(t *testing.T) {
	t.Parallel()

	driver := &manualDriver{}
	asker := &scriptedAsker{}
	s := NewScheduler(driver, NewBatchRunner(asker, []string{"a"}, nil), nil)

	require.NoError(t, s.Start(context.Background()))
	require.NotNil(t, driver.job)
	driver.job(time.Now())
	assert.Equal(t, []string{"a"}, asker.asked)

	require.NoError(t, s.Stop(context.Background()))
	assert.True(t, driver.stopped)
}

func TestSchedulerWithoutDriver(t *testing.T) {
	t.Parallel()

	s := NewScheduler(nil, nil, nil)
	assert.NoError(t, s.Start(context.Background()))
	assert.NoError(t, s.Stop(context.Background()))
}
