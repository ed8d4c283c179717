package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"SurveyInsights/internal/domain"
	"SurveyInsights/internal/metrics"
	"SurveyInsights/internal/ports"
	"SurveyInsights/internal/prompt"
	"SurveyInsights/internal/ranking"
	"SurveyInsights/internal/table"
	"SurveyInsights/internal/tracing"
)

const (
	defaultTopK          = 20
	defaultQueryTemplate = "Survey question about: %s"
)

var (
	// ErrEmptyQuestion is returned when the user question is blank.
	ErrEmptyQuestion = errors.New("question is empty")
	// ErrNoMatchingQuestion is returned when no candidate resolves to a survey question.
	ErrNoMatchingQuestion = errors.New("no matching survey question")
)

// PipelineDeps wires all driven adapters into the question pipeline.
// Publisher, Repository and Notifier are optional.
type PipelineDeps struct {
	Index      ports.QuestionIndex
	Ranker     *ranking.Ranker
	Tables     ports.TableSource
	Completer  ports.Completer
	Publisher  ports.Publisher
	Repository ports.ReportRepository
	Notifier   ports.Notifier

	Prompt        prompt.Builder
	Selection     table.Selection
	SystemPrompt  string
	QueryTemplate string
	TopK          int

	Metrics *metrics.Metrics
	Logger  *slog.Logger
	Now     func() time.Time
}

// Pipeline answers free-text questions about the survey.
type Pipeline struct {
	index      ports.QuestionIndex
	ranker     *ranking.Ranker
	tables     ports.TableSource
	completer  ports.Completer
	publisher  ports.Publisher
	repository ports.ReportRepository
	notifier   ports.Notifier

	prompt        prompt.Builder
	selection     table.Selection
	systemPrompt  string
	queryTemplate string
	topK          int

	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	p := &Pipeline{
		index:         deps.Index,
		ranker:        deps.Ranker,
		tables:        deps.Tables,
		completer:     deps.Completer,
		publisher:     deps.Publisher,
		repository:    deps.Repository,
		notifier:      deps.Notifier,
		prompt:        deps.Prompt,
		selection:     deps.Selection,
		systemPrompt:  deps.SystemPrompt,
		queryTemplate: deps.QueryTemplate,
		topK:          deps.TopK,
		metrics:       deps.Metrics,
		now:           deps.Now,
	}
	if p.ranker == nil {
		p.ranker = ranking.MustNew(ranking.DefaultConfig())
	}
	if p.selection.MaxColumns == 0 {
		p.selection = table.DefaultSelection()
	}
	if p.systemPrompt == "" {
		p.systemPrompt = prompt.SystemPrompt
	}
	if p.queryTemplate == "" {
		p.queryTemplate = defaultQueryTemplate
	}
	if p.topK <= 0 {
		p.topK = defaultTopK
	}
	if p.now == nil {
		p.now = time.Now
	}
	if deps.Logger != nil {
		p.logger = deps.Logger.With("component", "pipeline")
	}
	return p
}

// FindQuestion searches the index and ranks the candidates for question.
func (p *Pipeline) FindQuestion(ctx context.Context, question string) (result domain.RankedResult, err error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return domain.UnknownResult(), ErrEmptyQuestion
	}
	if p.index == nil {
		return domain.UnknownResult(), fmt.Errorf("pipeline misconfigured: no question index")
	}

	candidates, err := p.retrieve(ctx, question)
	if err != nil {
		return domain.UnknownResult(), err
	}

	_, end := tracing.StartSpan(ctx, metrics.StageRank, attribute.Int("candidates", len(candidates)))
	started := time.Now()
	result = p.ranker.SelectBestQuestion(candidates, question)
	p.metrics.ObserveStage(metrics.StageRank, time.Since(started))
	end(nil)

	if p.logger != nil && p.logger.Enabled(ctx, slog.LevelDebug) {
		for _, s := range p.ranker.Explain(candidates, question) {
			p.debug("candidate scored",
				"index", s.Index,
				"qid", s.QuestionID,
				"embedding", s.Embedding,
				"relevance", s.Relevance,
				"final", s.Final,
				"boosted", s.Boosted,
			)
		}
	}

	if !result.Found || result.QuestionID == domain.UnknownQuestionID {
		p.metrics.IncRanked(metrics.OutcomeUnknown)
		return result, ErrNoMatchingQuestion
	}
	p.metrics.IncRanked(metrics.OutcomeMatched)
	p.debug("question matched", "qid", result.QuestionID, "score", result.Score)
	return result, nil
}

// Ask runs the whole pipeline for one question and returns the finished report.
// A failing publish, persist or notify stage is returned with the partial report.
func (p *Pipeline) Ask(ctx context.Context, question string) (domain.InsightReport, error) {
	report := domain.InsightReport{
		RunID:     uuid.NewString(),
		Question:  strings.TrimSpace(question),
		CreatedAt: p.now().UTC(),
	}
	if report.Question == "" {
		return report, ErrEmptyQuestion
	}
	if p.tables == nil || p.completer == nil {
		return report, fmt.Errorf("pipeline misconfigured: table source and completer are required")
	}

	match, err := p.FindQuestion(ctx, report.Question)
	if err != nil {
		report.Status = domain.StatusFailed
		return report, err
	}
	report.QuestionID = match.QuestionID
	report.QuestionText = match.QuestionText
	report.Status = domain.StatusMatched

	tableMarkdown, err := p.table(ctx, match.QuestionID)
	if err != nil {
		report.Status = domain.StatusFailed
		return report, err
	}

	if err := p.generate(ctx, &report, tableMarkdown); err != nil {
		report.Status = domain.StatusFailed
		return report, err
	}
	report.Status = domain.StatusAnalyzed

	if err := p.publish(ctx, &report); err != nil {
		return report, err
	}
	if err := p.persist(ctx, report); err != nil {
		return report, err
	}
	if err := p.notify(ctx, report); err != nil {
		return report, err
	}
	return report, nil
}

func (p *Pipeline) retrieve(ctx context.Context, question string) (candidates []domain.Candidate, err error) {
	ctx, end := tracing.StartSpan(ctx, metrics.StageRetrieve)
	defer func() { end(err) }()
	defer p.observe(metrics.StageRetrieve, time.Now(), &err)

	query := fmt.Sprintf(p.queryTemplate, question)
	candidates, err = p.index.Search(ctx, query, p.topK*2)
	if err != nil {
		return nil, fmt.Errorf("search questions: %w", err)
	}
	p.metrics.ObserveCandidates(len(candidates))
	tracing.SetAttributes(ctx, attribute.Int("candidates", len(candidates)))
	p.debug("candidates retrieved", "count", len(candidates))
	return candidates, nil
}

func (p *Pipeline) table(ctx context.Context, questionID string) (markdown string, err error) {
	ctx, end := tracing.StartSpan(ctx, metrics.StageTable, attribute.String("qid", questionID))
	defer func() { end(err) }()
	defer p.observe(metrics.StageTable, time.Now(), &err)

	raw, err := p.tables.ExtractQuestionTable(ctx, questionID)
	if err != nil {
		return "", fmt.Errorf("extract table %s: %w", questionID, err)
	}
	selected := table.FormatNumbers(table.SelectColumns(raw, p.selection))
	p.debug("table extracted", "qid", questionID, "rows", len(selected.Rows), "columns", len(selected.Header))
	return table.Markdown(selected), nil
}

func (p *Pipeline) generate(ctx context.Context, report *domain.InsightReport, tableMarkdown string) (err error) {
	ctx, end := tracing.StartSpan(ctx, metrics.StageGenerate, attribute.String("qid", report.QuestionID))
	defer func() { end(err) }()
	defer p.observe(metrics.StageGenerate, time.Now(), &err)

	report.Prompt, err = p.prompt.Build(report.QuestionID, report.QuestionText, tableMarkdown)
	if err != nil {
		return fmt.Errorf("build prompt: %w", err)
	}
	report.RawAnswer, err = p.completer.Complete(ctx, p.systemPrompt, report.Prompt)
	if err != nil {
		return fmt.Errorf("generate insights %s: %w", report.QuestionID, err)
	}
	report.Insights = prompt.ExtractInsights(report.RawAnswer, p.prompt.InsightCount(), p.prompt.RecommendationCount())
	return nil
}

func (p *Pipeline) publish(ctx context.Context, report *domain.InsightReport) (err error) {
	if p.publisher == nil {
		return nil
	}
	ctx, end := tracing.StartSpan(ctx, metrics.StagePublish)
	defer func() { end(err) }()
	defer p.observe(metrics.StagePublish, time.Now(), &err)

	url, err := p.publisher.Publish(ctx, *report)
	if err != nil {
		return fmt.Errorf("publish report %s: %w", report.QuestionID, err)
	}
	report.DocumentURL = url
	report.Status = domain.StatusPublished
	p.debug("report published", "qid", report.QuestionID, "url", url)
	return nil
}

func (p *Pipeline) persist(ctx context.Context, report domain.InsightReport) (err error) {
	if p.repository == nil {
		return nil
	}
	ctx, end := tracing.StartSpan(ctx, metrics.StagePersist)
	defer func() { end(err) }()
	defer p.observe(metrics.StagePersist, time.Now(), &err)

	if err = p.repository.Save(ctx, report); err != nil {
		return fmt.Errorf("persist report %s: %w", report.RunID, err)
	}
	return nil
}

func (p *Pipeline) notify(ctx context.Context, report domain.InsightReport) (err error) {
	if p.notifier == nil {
		return nil
	}
	ctx, end := tracing.StartSpan(ctx, metrics.StageNotify)
	defer func() { end(err) }()
	defer p.observe(metrics.StageNotify, time.Now(), &err)

	if err = p.notifier.Notify(ctx, buildNotification(report)); err != nil {
		return fmt.Errorf("notify report %s: %w", report.QuestionID, err)
	}
	return nil
}

func (p *Pipeline) observe(stage string, started time.Time, err *error) {
	p.metrics.ObserveStage(stage, time.Since(started))
	if *err != nil {
		p.metrics.IncStageErrors(stage)
	}
}

func (p *Pipeline) debug(msg string, args ...any) {
	if p.logger == nil {
		return
	}
	p.logger.Debug(msg, args...)
}

func buildNotification(report domain.InsightReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", report.QuestionID, strings.TrimSpace(report.QuestionText))
	fmt.Fprintf(&b, "Asked: %s\n", report.Question)
	if report.DocumentURL != "" {
		fmt.Fprintf(&b, "%s\n", report.DocumentURL)
	} else {
		fmt.Fprintf(&b, "\n%s\n", strings.TrimSpace(report.Insights))
	}
	return b.String()
}
