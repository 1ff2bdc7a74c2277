package pipeline

import (
	"fmt"
	"io"
	"math/rand/v2"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/xhad/qafilter/internal/types"
)

// ConsoleSampleSink prints one uniformly chosen record.
type ConsoleSampleSink struct {
	Out           io.Writer
	QuestionField string
	AnswerField   string
	// Rand returns an index in [0, n). Defaults to math/rand/v2.
	Rand func(n int) int
}

// NewSampleSink prints a random record using the fields named in config.
func NewSampleSink(config Config, out io.Writer) *ConsoleSampleSink {
	return &ConsoleSampleSink{
		Out:           out,
		QuestionField: config.QuestionField,
		AnswerField:   config.AnswerField,
	}
}

func (s *ConsoleSampleSink) Consume(ds types.Dataset) error {
	if ds.Len() == 0 {
		color.New(color.FgYellow).Fprintln(s.Out, "No matching record found.")
		return nil
	}

	pick := s.Rand
	if pick == nil {
		pick = rand.IntN
	}

	record := ds.At(pick(ds.Len()))
	question, _ := record.String(s.QuestionField)
	answer, _ := record.String(s.AnswerField)

	label := color.New(color.FgCyan, color.Bold)
	fmt.Fprintln(s.Out)
	label.Fprint(s.Out, "Question: ")
	fmt.Fprintln(s.Out, question)
	label.Fprint(s.Out, "Answer: ")
	fmt.Fprintln(s.Out, answer)
	return nil
}

// FileSink writes the dataset as JSONL. A failed write is reported on Out
// and swallowed so the program still exits normally.
type FileSink struct {
	Out  io.Writer
	Path string
}

func NewFileSink(config Config, out io.Writer) *FileSink {
	return &FileSink{Out: out, Path: config.OutputPath}
}

func (s *FileSink) Consume(ds types.Dataset) error {
	abs, err := filepath.Abs(s.Path)
	if err == nil {
		err = ds.WriteLineDelimitedJSON(abs)
	}
	if err != nil {
		color.New(color.FgRed).Fprintf(s.Out, "Error writing %s: %v\n", s.Path, err)
		return nil
	}

	color.New(color.FgGreen).Fprintf(s.Out, "✓ Wrote %d records to %s\n", ds.Len(), abs)
	return nil
}
