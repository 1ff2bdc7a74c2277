package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms/ollama"
)

// EmbeddingClient is satisfied by *ollama.LLM.
type EmbeddingClient interface {
	CreateEmbedding(ctx context.Context, inputTexts []string) ([][]float32, error)
}

type EmbedderConfig struct {
	Model   string
	BaseURL string // Ollama server URL
}

// Embedder turns question text into vectors for duplicate detection.
type Embedder struct {
	Config EmbedderConfig
	client EmbeddingClient
}

func NewEmbedderWithConfig(config EmbedderConfig) (*Embedder, error) {
	if config.Model == "" {
		config.Model = "nomic-embed-text:latest" // Default Ollama model
	}

	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434" // Default Ollama URL
	}

	emb, err := ollama.New(ollama.WithModel(config.Model), ollama.WithServerURL(config.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	return &Embedder{Config: config, client: emb}, nil
}

func NewEmbedderWithClient(config EmbedderConfig, client EmbeddingClient) *Embedder {
	return &Embedder{Config: config, client: client}
}

func (e *Embedder) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := e.client.CreateEmbedding(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding error: %w", err)
	}
	return vectors, nil
}

func FlattenEmbeddings(embeddings [][]float32) []float32 {
	var flattened []float32
	for _, emb := range embeddings {
		flattened = append(flattened, emb...)
	}
	return flattened
}
