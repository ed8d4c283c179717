package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"SurveyInsights/internal/corpus"
	"SurveyInsights/internal/metrics"
	"SurveyInsights/internal/ports"
	"SurveyInsights/internal/tracing"
)

const (
	// DefaultNamespace is used when ingestion is not given a namespace.
	DefaultNamespace = "default"
	defaultBatchSize = 100
)

// IngestorDeps wires the adapters the questionnaire ingestion needs.
type IngestorDeps struct {
	Source    ports.DocumentSource
	Chunker   *corpus.Chunker
	Embedder  ports.Embedder
	Index     ports.QuestionIndex
	BatchSize int
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Ingestor loads a questionnaire, splits it into token windows and indexes them.
type Ingestor struct {
	source    ports.DocumentSource
	chunker   *corpus.Chunker
	embedder  ports.Embedder
	index     ports.QuestionIndex
	batchSize int
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewIngestor constructs the ingestion use case.
func NewIngestor(deps IngestorDeps) *Ingestor {
	ing := &Ingestor{
		source:    deps.Source,
		chunker:   deps.Chunker,
		embedder:  deps.Embedder,
		index:     deps.Index,
		batchSize: deps.BatchSize,
		metrics:   deps.Metrics,
	}
	if ing.batchSize <= 0 {
		ing.batchSize = defaultBatchSize
	}
	if deps.Logger != nil {
		ing.logger = deps.Logger.With("component", "ingestor")
	}
	return ing
}

// Ingest indexes the document at location under namespace and returns the chunk count.
func (i *Ingestor) Ingest(ctx context.Context, location, namespace string) (count int, err error) {
	if i.source == nil || i.chunker == nil || i.embedder == nil || i.index == nil {
		return 0, fmt.Errorf("ingestor misconfigured")
	}
	if strings.TrimSpace(namespace) == "" {
		namespace = DefaultNamespace
	}

	ctx, end := tracing.StartSpan(ctx, metrics.StageIngest, attribute.String("namespace", namespace))
	started := time.Now()
	defer func() {
		end(err)
		i.metrics.ObserveStage(metrics.StageIngest, time.Since(started))
		if err != nil {
			i.metrics.IncStageErrors(metrics.StageIngest)
		}
	}()

	text, err := i.source.Load(ctx, location)
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", location, err)
	}
	i.info("document loaded", "location", location, "chars", len(text))

	chunks := corpus.BuildChunks(namespace, i.chunker.Split(text))
	if len(chunks) == 0 {
		return 0, nil
	}
	i.info("chunks created", "count", len(chunks))

	for start := 0; start < len(chunks); start += i.batchSize {
		stop := start + i.batchSize
		if stop > len(chunks) {
			stop = len(chunks)
		}
		batch := chunks[start:stop]

		texts := make([]string, len(batch))
		for j, chunk := range batch {
			texts[j] = chunk.Text
		}
		vectors, err := i.embedder.Embed(ctx, texts)
		if err != nil {
			return start, fmt.Errorf("embed chunks %d-%d: %w", start, stop-1, err)
		}
		if len(vectors) != len(batch) {
			return start, fmt.Errorf("embed chunks %d-%d: got %d vectors: %w", start, stop-1, len(vectors), ports.ErrMalformedResponse)
		}
		for j := range batch {
			batch[j].Embedding = vectors[j]
		}

		if err := i.index.Upsert(ctx, batch); err != nil {
			return start, fmt.Errorf("upsert chunks %d-%d: %w", start, stop-1, err)
		}
		if i.logger != nil {
			for _, chunk := range batch {
				i.logger.Debug("chunk stored", "id", chunk.ID, "qid", chunk.Metadata["qid"])
			}
		}
	}

	i.info("document indexed", "location", location, "namespace", namespace, "chunks", len(chunks))
	return len(chunks), nil
}

func (i *Ingestor) info(msg string, args ...any) {
	if i.logger == nil {
		return
	}
	i.logger.Info(msg, args...)
}
