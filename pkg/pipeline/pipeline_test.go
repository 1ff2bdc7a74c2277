package pipeline_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/qafilter/internal/models"
	"github.com/xhad/qafilter/internal/types"
	"github.com/xhad/qafilter/pkg/dataset"
	"github.com/xhad/qafilter/pkg/pipeline"
)

const shortAnswer = "Because of Rayleigh scattering which disperses blue light more than red light across the atmosphere due to wavelength dependence of scattering intensity."

func init() {
	color.NoColor = true
}

func longAnswer(n int) string {
	w := make([]string, n)
	for i := range w {
		w[i] = "word"
	}
	return strings.Join(w, " ")
}

type staticLoader struct {
	ds    types.Dataset
	err   error
	calls int
}

func (l *staticLoader) Load(context.Context) (types.Dataset, error) {
	l.calls++
	return l.ds, l.err
}

type sinkFunc func(types.Dataset) error

func (f sinkFunc) Consume(ds types.Dataset) error { return f(ds) }

type captureSink struct {
	got types.Dataset
}

func (s *captureSink) Consume(ds types.Dataset) error {
	s.got = ds
	return nil
}

var columns = []string{"id", "topic", "question_title", "question_content", "best_answer"}

func records() []models.Record {
	return []models.Record{
		{"id": "1", "topic": "Science", "question_title": "Why is sky blue?", "question_content": nil, "best_answer": shortAnswer},
		{"id": "2", "topic": "Science", "question_title": "Why is sky blue?", "question_content": "", "best_answer": longAnswer(45)},
		{"id": "3", "topic": "Sports", "question_title": "Who won?", "question_content": "", "best_answer": nil},
		{"id": "4", "topic": "Music", "question_title": "Best album?", "question_content": "", "best_answer": longAnswer(40)},
	}
}

func TestRunFiltersAndProjects(t *testing.T) {
	loader := &staticLoader{ds: dataset.New(columns, records())}
	sink := &captureSink{}
	var out bytes.Buffer

	err := pipeline.New(pipeline.DefaultConfig(), loader, &out).Run(context.Background(), sink)
	require.NoError(t, err)

	assert.Equal(t, 1, loader.calls)
	require.NotNil(t, sink.got)
	assert.Equal(t, 2, sink.got.Len())
	assert.Equal(t, []string{"question_title", "best_answer"}, sink.got.Columns())
	for i := 0; i < sink.got.Len(); i++ {
		r := sink.got.At(i)
		assert.Len(t, r, 2)
		answer, ok := r.String("best_answer")
		require.True(t, ok)
		assert.GreaterOrEqual(t, dataset.WordCount(answer), 40)
	}

	assert.Contains(t, out.String(), "Loaded 4 records")
	assert.Contains(t, out.String(), "2 records have at least 40 words in best_answer")
}

func TestRunWithoutProjectionKeepsColumns(t *testing.T) {
	loader := &staticLoader{ds: dataset.New(columns, records())}
	sink := &captureSink{}
	config := pipeline.DefaultConfig()
	config.OutputFields = nil

	require.NoError(t, pipeline.New(config, loader, &bytes.Buffer{}).Run(context.Background(), sink))
	assert.Equal(t, columns, sink.got.Columns())
	assert.Equal(t, "2", sink.got.At(0)["id"])
}

func TestRunLoadFailure(t *testing.T) {
	boom := errors.New("dataset unreachable")
	sink := &captureSink{}

	err := pipeline.New(pipeline.DefaultConfig(), &staticLoader{err: boom}, &bytes.Buffer{}).Run(context.Background(), sink)
	require.ErrorIs(t, err, boom)
	assert.Nil(t, sink.got)
}

func TestRunHooksFireBetweenStages(t *testing.T) {
	loader := &staticLoader{ds: dataset.New(columns, records())}
	var out bytes.Buffer
	var events []string
	checked := 0

	sink := sinkFunc(func(ds types.Dataset) error {
		events = append(events, "sink")
		return nil
	})
	p := pipeline.New(pipeline.DefaultConfig(), loader, &out).WithHooks(pipeline.Hooks{
		Loaded: func(n int) {
			assert.Equal(t, 4, n)
			assert.Empty(t, out.String(), "load hook runs before any stage is reported")
			events = append(events, "loaded")
		},
		Checked: func() { checked++ },
		Filtered: func(kept int) {
			assert.Equal(t, 2, kept)
			events = append(events, "filtered")
		},
	})

	require.NoError(t, p.Run(context.Background(), sink))
	assert.Equal(t, []string{"loaded", "filtered", "sink"}, events)
	assert.Equal(t, 4, checked)
}

func TestRunHooksSkippedOnLoadFailure(t *testing.T) {
	loaded := false
	p := pipeline.New(pipeline.DefaultConfig(), &staticLoader{err: errors.New("offline")}, &bytes.Buffer{}).
		WithHooks(pipeline.Hooks{Loaded: func(int) { loaded = true }})

	require.Error(t, p.Run(context.Background(), &captureSink{}))
	assert.False(t, loaded)
}

func TestSinksFromConfig(t *testing.T) {
	config := pipeline.DefaultConfig()
	config.QuestionField = "title"
	config.OutputPath = "custom.json"

	sample := pipeline.NewSampleSink(config, &bytes.Buffer{})
	assert.Equal(t, "title", sample.QuestionField)
	assert.Equal(t, "best_answer", sample.AnswerField)

	file := pipeline.NewFileSink(config, &bytes.Buffer{})
	assert.Equal(t, "custom.json", file.Path)
}

func TestConsoleSampleSink(t *testing.T) {
	ds := dataset.New(columns, records()).Filter(dataset.MinWords("best_answer", 40))

	var out bytes.Buffer
	var gotN int
	sink := &pipeline.ConsoleSampleSink{
		Out:           &out,
		QuestionField: "question_title",
		AnswerField:   "best_answer",
		Rand: func(n int) int {
			gotN = n
			return 0
		},
	}

	require.NoError(t, sink.Consume(ds))
	assert.Equal(t, 2, gotN)
	assert.Contains(t, out.String(), "Question: Why is sky blue?")
	assert.Contains(t, out.String(), "Answer: "+longAnswer(45))
	assert.NotContains(t, out.String(), shortAnswer)
}

func TestConsoleSampleSinkEmpty(t *testing.T) {
	ds := dataset.New(columns, records()[:1]).Filter(dataset.MinWords("best_answer", 40))

	var out bytes.Buffer
	sink := &pipeline.ConsoleSampleSink{
		Out:  &out,
		Rand: func(int) int { t.Fatal("rand called on empty dataset"); return 0 },
	}

	require.NoError(t, sink.Consume(ds))
	assert.Contains(t, out.String(), "No matching record found.")
}

func TestFileSink(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "filtrelenmis_soru_cevaplar.json")
	ds := dataset.New(columns, records()).
		Filter(dataset.MinWords("best_answer", 40)).
		Project([]string{"question_title", "best_answer"})

	var out bytes.Buffer
	require.NoError(t, (&pipeline.FileSink{Out: &out, Path: path}).Consume(ds))
	assert.Contains(t, out.String(), path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	lines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var obj map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &obj))
		assert.Len(t, obj, 2)
		assert.Contains(t, obj, "question_title")
		assert.Contains(t, obj, "best_answer")
		lines++
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, ds.Len(), lines)
}

func TestFileSinkRelativePathPrintsAbsolute(t *testing.T) {
	t.Chdir(t.TempDir())
	ds := dataset.New([]string{"question_title", "best_answer"}, nil)

	var out bytes.Buffer
	require.NoError(t, (&pipeline.FileSink{Out: &out, Path: "out.json"}).Consume(ds))

	abs, err := filepath.Abs("out.json")
	require.NoError(t, err)
	assert.Contains(t, out.String(), abs)
	assert.FileExists(t, abs)
}

func TestFileSinkWriteFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	ds := dataset.New(columns, records())
	var out bytes.Buffer

	err := (&pipeline.FileSink{Out: &out, Path: filepath.Join(blocker, "out.json")}).Consume(ds)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Error writing")
	assert.Contains(t, out.String(), "not a directory")
}
