// Package pipeline runs the load, filter, project and sink stages.
package pipeline

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/xhad/qafilter/internal/models"
	"github.com/xhad/qafilter/internal/types"
	"github.com/xhad/qafilter/pkg/dataset"
)

type Config struct {
	AnswerField   string
	QuestionField string
	MinWordCount  int
	// OutputFields is the projection keep-list. Empty skips projection.
	OutputFields []string
	OutputPath   string
}

func DefaultConfig() Config {
	return Config{
		AnswerField:   "best_answer",
		QuestionField: "question_title",
		MinWordCount:  40,
		OutputFields:  []string{"question_title", "best_answer"},
		OutputPath:    "filtrelenmis_soru_cevaplar.json",
	}
}

// Hooks lets a caller drive progress widgets between stages. Nil fields are
// skipped.
type Hooks struct {
	// Loaded runs once the dataset is in memory, before filtering starts.
	Loaded func(n int)
	// Checked runs after each record has been tested by the filter.
	Checked func()
	// Filtered runs when filtering is done, before any output is written.
	Filtered func(kept int)
}

type Pipeline struct {
	config Config
	loader types.Loader
	out    io.Writer
	hooks  Hooks
}

func New(config Config, loader types.Loader, out io.Writer) *Pipeline {
	return &Pipeline{config: config, loader: loader, out: out}
}

func (p *Pipeline) WithHooks(hooks Hooks) *Pipeline {
	p.hooks = hooks
	return p
}

// Run loads the dataset once, filters it and hands the result to sink.
// Load failures are returned; sink failures are the sink's to report.
func (p *Pipeline) Run(ctx context.Context, sink types.Sink) error {
	ds, err := p.loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}
	if p.hooks.Loaded != nil {
		p.hooks.Loaded(ds.Len())
	}
	p.report("✓ Loaded %d records\n", ds.Len())

	keep := dataset.MinWords(p.config.AnswerField, p.config.MinWordCount)
	if checked := p.hooks.Checked; checked != nil {
		inner := keep
		keep = func(r models.Record) bool {
			defer checked()
			return inner(r)
		}
	}
	ds = ds.Filter(keep)
	if p.hooks.Filtered != nil {
		p.hooks.Filtered(ds.Len())
	}
	p.report("✓ %d records have at least %d words in %s\n", ds.Len(), p.config.MinWordCount, p.config.AnswerField)

	if len(p.config.OutputFields) > 0 {
		ds = ds.Project(p.config.OutputFields)
		p.report("✓ Kept columns %v for %d records\n", ds.Columns(), ds.Len())
	}

	return sink.Consume(ds)
}

func (p *Pipeline) report(format string, args ...any) {
	color.New(color.FgGreen).Fprintf(p.out, format, args...)
}
