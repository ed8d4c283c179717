package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"SurveyInsights/internal/config"
	"SurveyInsights/internal/corpus"
	"SurveyInsights/internal/domain"
	"SurveyInsights/internal/infrastructure/cache"
	"SurveyInsights/internal/infrastructure/gdocs"
	"SurveyInsights/internal/infrastructure/llm"
	"SurveyInsights/internal/infrastructure/mcpserver"
	"SurveyInsights/internal/infrastructure/objectstore"
	"SurveyInsights/internal/infrastructure/parser"
	"SurveyInsights/internal/infrastructure/scheduler"
	"SurveyInsights/internal/infrastructure/spreadsheet"
	"SurveyInsights/internal/infrastructure/storage"
	"SurveyInsights/internal/infrastructure/telegram"
	"SurveyInsights/internal/infrastructure/vectorsearch"
	"SurveyInsights/internal/logging"
	"SurveyInsights/internal/metrics"
	"SurveyInsights/internal/ports"
	"SurveyInsights/internal/prompt"
	"SurveyInsights/internal/ranking"
	"SurveyInsights/internal/table"
	"SurveyInsights/internal/usecase"
)

const defaultEmbeddingDimensions = 1536

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	registry *prometheus.Registry

	embedder   ports.Embedder
	index      ports.QuestionIndex
	repository ports.ReportRepository
	pipeline   *usecase.Pipeline

	closers []io.Closer
}

// New builds the application from cfg. Connections to Postgres, Milvus and Redis are
// opened here; callers must Close the result.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (application *Application, err error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	a := &Application{
		cfg:      cfg,
		logger:   baseLogger,
		metrics:  metrics.NewMetrics(),
		registry: prometheus.NewRegistry(),
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	if err := a.metrics.Register(a.registry); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ranker, err := ranking.New(cfg.Ranking)
	if err != nil {
		return nil, err
	}

	db, err := a.openDatabase(ctx)
	if err != nil {
		return nil, err
	}

	a.embedder, err = a.buildEmbedder(ctx)
	if err != nil {
		return nil, err
	}

	a.index, err = a.buildIndex(ctx, db)
	if err != nil {
		return nil, err
	}

	publisher, err := buildPublisher(ctx, cfg.Publish)
	if err != nil {
		return nil, err
	}

	if db != nil {
		a.repository = storage.NewPostgresRepository(db)
	}

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.BotToken != "" && cfg.Notifications.Telegram.ChatID != "" {
		notifier = telegram.NewNotifier(cfg.Notifications.Telegram)
	}

	selection := table.DefaultSelection()
	if cfg.Spreadsheet.MaxColumns > 0 {
		selection.MaxColumns = cfg.Spreadsheet.MaxColumns
	}

	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Index:      a.index,
		Ranker:     ranker,
		Tables:     spreadsheet.NewExcelSource(cfg.Spreadsheet, baseLogger),
		Completer:  llm.NewChatGPTClient(cfg.LLM),
		Publisher:  publisher,
		Repository: a.repository,
		Notifier:   notifier,
		Prompt: prompt.Builder{
			Brand:           cfg.Prompt.Brand,
			StudyContext:    cfg.Prompt.StudyContext,
			BaseSize:        cfg.Prompt.BaseSize,
			Insights:        cfg.Prompt.Insights,
			Recommendations: cfg.Prompt.Recommendations,
			Template:        cfg.Prompt.Template,
		},
		Selection:     selection,
		SystemPrompt:  cfg.LLM.SystemPrompt,
		QueryTemplate: cfg.Retrieval.QueryTemplate,
		TopK:          cfg.Retrieval.TopK,
		Metrics:       a.metrics,
		Logger:        baseLogger,
	})
	return a, nil
}

// Pipeline exposes the question pipeline.
func (a *Application) Pipeline() *usecase.Pipeline {
	return a.pipeline
}

// Ask runs one question through the pipeline.
func (a *Application) Ask(ctx context.Context, question string) (domain.InsightReport, error) {
	return a.pipeline.Ask(ctx, question)
}

// History lists the latest persisted reports for a question id.
func (a *Application) History(ctx context.Context, questionID string, limit int) ([]domain.InsightReport, error) {
	if a.repository == nil {
		return nil, fmt.Errorf("report history needs database.dsn")
	}
	return a.repository.History(ctx, questionID, limit)
}

// Ingest indexes a questionnaire document. An empty namespace uses the configured one.
func (a *Application) Ingest(ctx context.Context, location, namespace string) (int, error) {
	tokenizer, err := corpus.NewTiktokenTokenizer(a.cfg.Ingest.Encoding)
	if err != nil {
		return 0, err
	}
	chunker, err := corpus.NewChunker(tokenizer, a.cfg.Ingest.ChunkTokens, a.cfg.Ingest.OverlapTokens)
	if err != nil {
		return 0, err
	}
	if namespace == "" {
		namespace = a.namespace()
	}

	ingestor := usecase.NewIngestor(usecase.IngestorDeps{
		Source:    parser.NewDocumentSource(parser.NewDefaultRegistry(), nil, a.logger),
		Chunker:   chunker,
		Embedder:  a.embedder,
		Index:     a.index,
		BatchSize: a.cfg.Ingest.BatchSize,
		Metrics:   a.metrics,
		Logger:    a.logger,
	})
	return ingestor.Ingest(ctx, location, namespace)
}

// Serve runs the configured questions on the scheduler and exposes /metrics until ctx ends.
func (a *Application) Serve(ctx context.Context) error {
	batch := usecase.NewBatchRunner(a.pipeline, a.cfg.Survey.Questions, a.logger)
	driver := scheduler.NewIntervalScheduler(a.cfg.Scheduler.Every(), a.cfg.Scheduler.Location())
	sched := usecase.NewScheduler(driver, batch, a.logger)

	var srv *http.Server
	serveErr := make(chan error, 1)
	if addr := a.cfg.Metrics.ListenAddr; addr != "" {
		srv = &http.Server{
			Addr:              addr,
			Handler:           a.MetricsHandler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
		}()
		a.logger.Info("metrics listening", "addr", addr)
	}

	if len(a.cfg.Survey.Questions) == 0 {
		a.logger.Warn("no survey questions configured; scheduler idle")
	} else if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serveErr:
		runErr = fmt.Errorf("metrics server: %w", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var result *multierror.Error
	result = multierror.Append(result, runErr)
	result = multierror.Append(result, sched.Stop(shutdownCtx))
	if srv != nil {
		result = multierror.Append(result, srv.Shutdown(shutdownCtx))
	}
	return result.ErrorOrNil()
}

// ServeMCP serves the pipeline as MCP tools over stdio.
func (a *Application) ServeMCP(version string) error {
	return mcpserver.ServeStdio(mcpserver.New(a.pipeline, version, a.logger))
}

// MetricsHandler serves the application registry in the Prometheus text format.
func (a *Application) MetricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	return mux
}

// Close releases every opened connection.
func (a *Application) Close() error {
	var result *multierror.Error
	for i := len(a.closers) - 1; i >= 0; i-- {
		result = multierror.Append(result, a.closers[i].Close())
	}
	a.closers = nil
	return result.ErrorOrNil()
}

func (a *Application) namespace() string {
	if a.cfg.Retrieval.Namespace != "" {
		return a.cfg.Retrieval.Namespace
	}
	return usecase.DefaultNamespace
}

func (a *Application) openDatabase(ctx context.Context) (*sql.DB, error) {
	if a.cfg.Database.DSN == "" {
		return nil, nil
	}
	db, err := sql.Open("postgres", a.cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.closers = append(a.closers, db)
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	dims := 0
	if a.cfg.Retrieval.Provider == "pgvector" {
		dims = a.cfg.LLM.EmbeddingDimensions
		if dims <= 0 {
			dims = defaultEmbeddingDimensions
		}
	}
	if err := storage.Migrate(ctx, db, dims); err != nil {
		return nil, err
	}
	return db, nil
}

func (a *Application) buildEmbedder(ctx context.Context) (ports.Embedder, error) {
	base := llm.NewEmbedder(a.cfg.LLM)
	store, closer, err := buildCacheStore(ctx, a.cfg.Cache)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		a.closers = append(a.closers, closer)
	}
	if store == nil {
		return base, nil
	}
	return cache.NewCachedEmbedder(base, store, a.cfg.LLM.EmbeddingModel, a.cfg.Cache.Expiry(), a.logger), nil
}

func (a *Application) buildIndex(ctx context.Context, db *sql.DB) (ports.QuestionIndex, error) {
	switch strings.ToLower(a.cfg.Retrieval.Provider) {
	case "", "pinecone":
		return vectorsearch.NewPineconeIndex(a.cfg.Retrieval.Pinecone, a.namespace(), a.embedder, a.logger), nil
	case "milvus":
		idx, err := vectorsearch.NewMilvusIndex(ctx, a.cfg.Retrieval.Milvus, a.embedder, a.logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, idx)
		return idx, nil
	case "pgvector":
		if db == nil {
			return nil, fmt.Errorf("pgvector index misconfigured: database.dsn is empty")
		}
		return storage.NewPGVectorIndex(db, a.namespace(), a.embedder), nil
	default:
		return nil, fmt.Errorf("retrieval provider %q is not supported", a.cfg.Retrieval.Provider)
	}
}

func buildCacheStore(ctx context.Context, cfg config.CacheConfig) (ports.CacheStore, io.Closer, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "none":
		return nil, nil, nil
	case "memory":
		return cache.NewLRUStore(cfg.Capacity, cfg.Expiry()), nil, nil
	case "redis":
		store, err := cache.NewRedisStore(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	default:
		return nil, nil, fmt.Errorf("cache provider %q is not supported", cfg.Provider)
	}
}

func buildPublisher(ctx context.Context, cfg config.PublishConfig) (ports.Publisher, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "none":
		return nil, nil
	case "gdocs":
		publisher, err := gdocs.NewPublisher(ctx, cfg.GoogleDocs)
		if err != nil {
			return nil, err
		}
		return publisher, nil
	case "s3":
		publisher, err := objectstore.NewS3Publisher(cfg.S3)
		if err != nil {
			return nil, err
		}
		return publisher, nil
	default:
		return nil, fmt.Errorf("publish provider %q is not supported", cfg.Provider)
	}
}
