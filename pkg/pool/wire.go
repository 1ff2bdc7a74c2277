package pool

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xhad/qafilter/internal/types"
	"github.com/xhad/qafilter/pkg/config"
	"github.com/xhad/qafilter/pkg/llm"
	"github.com/xhad/qafilter/pkg/processor"
	"github.com/xhad/qafilter/pkg/store"
)

// Open builds the store and an Ollama-backed builder from cfg. Embeddings,
// and with them near-duplicate checks, are only enabled for Postgres.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Builder, store.Store, error) {
	s, err := store.Open(ctx, store.Config{
		DatabaseURL: cfg.Database.URL,
		TableName:   cfg.Database.TableName,
		VectorDim:   cfg.Database.VectorDim,
		PoolFile:    cfg.Database.PoolFile,
	})
	if err != nil {
		return nil, nil, err
	}

	chat, err := llm.NewWithConfig(llm.ChatConfig{
		Model:            cfg.LLM.Model,
		TranslationModel: cfg.LLM.TranslationModel,
		Temperature:      cfg.LLM.Temperature,
		MaxTokens:        cfg.LLM.MaxTokens,
		BaseURL:          cfg.LLM.BaseURL,
	})
	if err != nil {
		s.Close()
		return nil, nil, fmt.Errorf("failed to initialize chat engine: %w", err)
	}

	var embedder types.Embedder
	if _, ok := s.(store.SimilarityIndex); ok {
		embedder, err = llm.NewEmbedderWithConfig(llm.EmbedderConfig{
			Model:   cfg.LLM.EmbeddingModel,
			BaseURL: cfg.LLM.BaseURL,
		})
		if err != nil {
			s.Close()
			return nil, nil, err
		}
	}

	builder := NewBuilder(BuilderConfig{
		SourcePath:        cfg.Pool.Source,
		Interval:          cfg.Pool.Interval,
		DuplicateDistance: cfg.Pool.DuplicateDistance,
		Processor: processor.ProcessorConfig{
			QuestionField: cfg.Filter.QuestionField,
			AnswerField:   cfg.Filter.AnswerField,
			MaxLength:     cfg.Pool.MaxAnswerLength,
		},
		Logger: logger,
	}, s, chat, chat, embedder)

	return builder, s, nil
}
