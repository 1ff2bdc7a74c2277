package types

import (
	"context"

	"github.com/xhad/qafilter/internal/models"
)

// Predicate reports whether a record should be kept.
type Predicate func(models.Record) bool

// Core interfaces
type Dataset interface {
	Len() int
	At(i int) models.Record
	Columns() []string
	Filter(pred Predicate) Dataset
	Project(fields []string) Dataset
	WriteLineDelimitedJSON(path string) error
}

type Loader interface {
	Load(ctx context.Context) (Dataset, error)
}

type Sink interface {
	Consume(ds Dataset) error
}

type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}
