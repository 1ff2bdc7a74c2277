package loader_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/qafilter/pkg/loader"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestFileLoaderJSONLines(t *testing.T) {
	path := writeFile(t, `{"question_title":"q1","best_answer":"a1"}
{"question_title":"q2","best_answer":null,"topic":3}

{"question_title":"q3"}
`)

	ds, err := loader.NewFile(path).Load(context.Background())
	require.NoError(t, err)

	require.Equal(t, 3, ds.Len())
	assert.Equal(t, []string{"question_title", "best_answer", "topic"}, ds.Columns())
	assert.Equal(t, "a1", ds.At(0)["best_answer"])
	assert.Nil(t, ds.At(1)["best_answer"])
	assert.Contains(t, ds.At(1), "best_answer")
	assert.NotContains(t, ds.At(2), "best_answer")
}

func TestFileLoaderJSONArray(t *testing.T) {
	path := writeFile(t, `  [
  {"id": 1, "question_title": "q1", "best_answer": "a1"},
  {"id": 2, "question_title": "q2", "best_answer": "a2"}
]`)

	ds, err := loader.NewFile(path).Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, ds.Len())
	assert.Equal(t, []string{"id", "question_title", "best_answer"}, ds.Columns())
}

func TestFileLoaderEmpty(t *testing.T) {
	ds, err := loader.NewFile(writeFile(t, "\n\n")).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, ds.Len())
}

func TestFileLoaderErrors(t *testing.T) {
	_, err := loader.NewFile(filepath.Join(t.TempDir(), "missing.json")).Load(context.Background())
	assert.Error(t, err)

	_, err = loader.NewFile(writeFile(t, `{"question_title": "q1"`)).Load(context.Background())
	assert.Error(t, err)

	_, err = loader.NewFile(writeFile(t, `[1, 2]`)).Load(context.Background())
	assert.Error(t, err)
}
