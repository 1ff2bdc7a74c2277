// Package pool grows the question pool from the filtered dataset export.
package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xhad/qafilter/internal/models"
	"github.com/xhad/qafilter/internal/types"
	"github.com/xhad/qafilter/pkg/llm"
	"github.com/xhad/qafilter/pkg/loader"
	"github.com/xhad/qafilter/pkg/processor"
	"github.com/xhad/qafilter/pkg/store"
	"golang.org/x/time/rate"
)

var (
	ErrNoRecords = errors.New("source has no records")
	ErrDuplicate = errors.New("question is a near duplicate")
)

type Translator interface {
	Translate(ctx context.Context, question, answer string) (*llm.Translation, error)
}

type Answerer interface {
	Answer(ctx context.Context, question string) (string, error)
}

type BuilderConfig struct {
	SourcePath        string
	Source            string // label stored with each question
	Interval          time.Duration
	DuplicateDistance float64
	Processor         processor.ProcessorConfig
	Logger            *slog.Logger
	Rand              func(n int) int
}

// BatchResult summarizes one ProcessBatch or Refill run.
type BatchResult struct {
	Requested int `json:"requested"`
	Processed int `json:"processed"`
	Added     int `json:"added"`
	Failed    int `json:"failed"`
	PoolSize  int `json:"poolSize"`
}

// Progress is called after every attempted question. q is nil when err is set.
type Progress func(done, total int, q *models.Question, err error)

type Builder struct {
	config     BuilderConfig
	store      store.Store
	translator Translator
	answerer   Answerer
	embedder   types.Embedder
	processor  processor.Processor
	limiter    *rate.Limiter
	now        func() time.Time

	mu     sync.Mutex
	source types.Dataset
}

// NewBuilder wires a pool builder. embedder may be nil, which disables
// near-duplicate detection.
func NewBuilder(config BuilderConfig, s store.Store, translator Translator, answerer Answerer, embedder types.Embedder) *Builder {
	if config.SourcePath == "" {
		config.SourcePath = "filtrelenmis_soru_cevaplar.json"
	}
	if config.Source == "" {
		config.Source = "Yahoo Answers (Translated)"
	}
	if config.Interval == 0 {
		config.Interval = 2 * time.Second
	}
	if config.DuplicateDistance == 0 {
		config.DuplicateDistance = 0.05
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Rand == nil {
		config.Rand = rand.IntN
	}

	return &Builder{
		config:     config,
		store:      s,
		translator: translator,
		answerer:   answerer,
		embedder:   embedder,
		processor:  processor.NewWithConfig(config.Processor),
		limiter:    rate.NewLimiter(rate.Every(config.Interval), 1),
		now:        time.Now,
	}
}

// records loads the source export once and caches it.
func (b *Builder) records(ctx context.Context) (types.Dataset, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.source != nil {
		return b.source, nil
	}

	ds, err := loader.ReadFile(ctx, b.config.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load question source: %w", err)
	}
	if ds.Len() == 0 {
		return nil, fmt.Errorf("%s: %w", b.config.SourcePath, ErrNoRecords)
	}

	b.config.Logger.Debug("question source loaded", "path", b.config.SourcePath, "records", ds.Len())
	b.source = ds
	return ds, nil
}

// ProcessOne turns a random source record into a translated question with
// an AI answer. It does not touch the store beyond duplicate lookups.
func (b *Builder) ProcessOne(ctx context.Context) (*models.Question, error) {
	ds, err := b.records(ctx)
	if err != nil {
		return nil, err
	}

	record := ds.At(b.config.Rand(ds.Len()))
	question, answer, err := b.processor.Process(record)
	if err != nil {
		return nil, err
	}

	embedding, err := b.checkDuplicate(ctx, question)
	if err != nil {
		return nil, err
	}

	b.config.Logger.Debug("translating", "question", preview(question))
	translation, err := b.translator.Translate(ctx, question, answer)
	if err != nil {
		return nil, err
	}

	b.config.Logger.Debug("generating AI answer", "question", preview(translation.Question))
	aiAnswer, err := b.answerer.Answer(ctx, translation.Question)
	if err != nil {
		return nil, err
	}

	return &models.Question{
		ID:               "q_" + uuid.NewString(),
		Question:         translation.Question,
		AnswerAI:         aiAnswer,
		AnswerHuman:      translation.Answer,
		Source:           b.config.Source,
		OriginalQuestion: question,
		OriginalAnswer:   answer,
		IsTranslated:     true,
		CreatedAt:        b.now().UTC(),
		Embedding:        embedding,
	}, nil
}

func (b *Builder) checkDuplicate(ctx context.Context, question string) ([]float32, error) {
	if b.embedder == nil {
		return nil, nil
	}

	vectors, err := b.embedder.CreateEmbedding(ctx, []string{question})
	if err != nil {
		return nil, err
	}
	embedding := llm.FlattenEmbeddings(vectors)

	index, ok := b.store.(store.SimilarityIndex)
	if !ok || len(embedding) == 0 {
		return embedding, nil
	}

	nearest, err := index.Nearest(ctx, embedding)
	if err != nil {
		return nil, err
	}
	if nearest != nil && nearest.Distance < b.config.DuplicateDistance {
		return nil, fmt.Errorf("%w of %s (distance %.3f)", ErrDuplicate, nearest.ID, nearest.Distance)
	}
	return embedding, nil
}

// ProcessBatch generates count questions, one per Interval, and stores the
// ones that succeed. Failures of single questions are counted and skipped.
func (b *Builder) ProcessBatch(ctx context.Context, count int, onProgress Progress) (BatchResult, error) {
	result := BatchResult{Requested: count}

	if _, err := b.records(ctx); err != nil {
		return result, err
	}

	for i := 0; i < count; i++ {
		if err := b.limiter.Wait(ctx); err != nil {
			return result, err
		}

		q, err := b.ProcessOne(ctx)
		result.Processed++
		if err == nil {
			var added int
			added, err = b.store.Add(ctx, []models.Question{*q})
			if err != nil {
				return result, fmt.Errorf("failed to store question: %w", err)
			}
			if added == 0 {
				err = ErrDuplicate
			}
		}

		if err != nil {
			result.Failed++
			b.config.Logger.Warn("question skipped", "attempt", i+1, "error", err)
			q = nil
		} else {
			result.Added++
			b.config.Logger.Info("question added", "id", q.ID, "question", preview(q.Question))
		}

		if onProgress != nil {
			onProgress(i+1, count, q, err)
		}
	}

	stats, err := b.store.Stats(ctx)
	if err != nil {
		return result, err
	}
	result.PoolSize = stats.Total

	return result, nil
}

// Refill tops the pool up towards target, adding at most maxPerRun
// questions. A full pool is left alone.
func (b *Builder) Refill(ctx context.Context, target, maxPerRun int, onProgress Progress) (BatchResult, error) {
	stats, err := b.store.Stats(ctx)
	if err != nil {
		return BatchResult{}, err
	}

	if stats.Total >= target {
		b.config.Logger.Info("pool is full", "size", stats.Total, "target", target)
		return BatchResult{PoolSize: stats.Total}, nil
	}

	need := min(maxPerRun, target-stats.Total)
	b.config.Logger.Info("refilling pool", "size", stats.Total, "target", target, "adding", need)
	return b.ProcessBatch(ctx, need, onProgress)
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= 50 {
		return s
	}
	return string(r[:50]) + "..."
}
