package store

import (
	"context"
	"fmt"

	"github.com/xhad/qafilter/internal/models"
)

// Store persists the question pool.
type Store interface {
	Init(ctx context.Context) error
	Load(ctx context.Context) ([]models.Question, error)
	// Add inserts questions whose text is not already pooled and
	// reports how many were new.
	Add(ctx context.Context, questions []models.Question) (int, error)
	// Update overwrites the text fields of the question with patch.ID.
	// Empty patch fields keep their stored value. It returns nil when the
	// id is unknown.
	Update(ctx context.Context, patch models.Question) (*models.Question, error)
	Delete(ctx context.Context, id string) (bool, error)
	Clear(ctx context.Context) error
	Stats(ctx context.Context) (models.PoolStats, error)
	Close()
}

// SimilarityIndex is implemented by stores that keep question embeddings.
// Nearest returns nil when nothing comparable is stored.
type SimilarityIndex interface {
	Nearest(ctx context.Context, embedding []float32) (*models.ScoredQuestion, error)
}

var (
	_ Store           = (*FileStore)(nil)
	_ Store           = (*PostgresStore)(nil)
	_ SimilarityIndex = (*PostgresStore)(nil)
)

type Config struct {
	DatabaseURL string
	TableName   string
	VectorDim   int
	PoolFile    string
}

// Open returns a Postgres store when a database URL is configured and a
// file store otherwise. The returned store is initialized.
func Open(ctx context.Context, config Config) (Store, error) {
	var (
		s   Store
		err error
	)

	if config.DatabaseURL != "" {
		s, err = NewPostgres(ctx, PostgresConfig{
			ConnString: config.DatabaseURL,
			TableName:  config.TableName,
			VectorDim:  config.VectorDim,
		})
		if err != nil {
			return nil, err
		}
	} else {
		s = NewFile(config.PoolFile)
	}

	if err := s.Init(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	return s, nil
}

func statsOf(questions []models.Question) models.PoolStats {
	stats := models.PoolStats{BySource: make(map[string]int)}
	for _, q := range questions {
		stats.Total++
		stats.BySource[q.Source]++
		if q.IsTranslated {
			stats.Translated++
		}
	}
	return stats
}
