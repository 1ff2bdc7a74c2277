package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rowsServer(t *testing.T, total int, hits *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		if r.URL.Path != "/rows" {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		if q.Get("dataset") != "community-datasets/yahoo_answers_topics" || q.Get("split") != "train" {
			http.Error(w, "unknown dataset", http.StatusNotFound)
			return
		}
		offset, _ := strconv.Atoi(q.Get("offset"))
		length, _ := strconv.Atoi(q.Get("length"))

		type row struct {
			RowIdx int            `json:"row_idx"`
			Row    map[string]any `json:"row"`
		}
		var rows []row
		for i := offset; i < offset+length && i < total; i++ {
			rows = append(rows, row{RowIdx: i, Row: map[string]any{
				"id":             i,
				"topic":          i % 10,
				"question_title": fmt.Sprintf("question %d", i),
				"best_answer":    fmt.Sprintf("answer %d", i),
			}})
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"features": []map[string]any{
				{"feature_idx": 0, "name": "id"},
				{"feature_idx": 1, "name": "topic"},
				{"feature_idx": 2, "name": "question_title"},
				{"feature_idx": 3, "name": "question_content"},
				{"feature_idx": 4, "name": "best_answer"},
			},
			"rows":           rows,
			"num_rows_total": total,
		})
	}))
}

func testHubConfig(endpoint string) HubConfig {
	return HubConfig{
		Endpoint:  endpoint,
		Dataset:   "community-datasets/yahoo_answers_topics",
		Config:    "yahoo_answers_topics",
		Split:     "train",
		PageSize:  10,
		RateLimit: 1000,
	}
}

func TestHubLoaderLoadsAllPages(t *testing.T) {
	var hits int32
	server := rowsServer(t, 25, &hits)
	defer server.Close()

	var progress []int
	config := testHubConfig(server.URL)
	config.OnProgress = func(loaded, total int) {
		assert.Equal(t, 25, total)
		progress = append(progress, loaded)
	}

	l, err := NewHubWithConfig(config)
	require.NoError(t, err)

	ds, err := l.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 25, ds.Len())
	assert.Equal(t, []string{"id", "topic", "question_title", "question_content", "best_answer"}, ds.Columns())
	assert.Equal(t, "question 0", ds.At(0)["question_title"])
	assert.Equal(t, "answer 24", ds.At(24)["best_answer"])
	assert.Equal(t, json.Number("7"), ds.At(7)["id"])
	assert.Equal(t, []int{10, 20, 25}, progress)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestHubLoaderMaxRows(t *testing.T) {
	var hits int32
	server := rowsServer(t, 1000, &hits)
	defer server.Close()

	config := testHubConfig(server.URL)
	config.MaxRows = 15

	l, err := NewHubWithConfig(config)
	require.NoError(t, err)

	ds, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 15, ds.Len())
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestHubLoaderSendsToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"features":[{"feature_idx":0,"name":"best_answer"}],"rows":[],"num_rows_total":0}`))
	}))
	defer server.Close()

	config := testHubConfig(server.URL)
	config.Token = "secret"

	l, err := NewHubWithConfig(config)
	require.NoError(t, err)

	ds, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, ds.Len())
	assert.Equal(t, []string{"best_answer"}, ds.Columns())
}

func TestHubLoaderFailurePropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "dataset is gated", http.StatusInternalServerError)
	}))
	defer server.Close()

	l, err := NewHubWithConfig(testHubConfig(server.URL))
	require.NoError(t, err)

	_, err = l.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "received status code 500")
}

func TestHubLoaderMalformedPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rows": [`))
	}))
	defer server.Close()

	l, err := NewHubWithConfig(testHubConfig(server.URL))
	require.NoError(t, err)

	_, err = l.Load(context.Background())
	assert.Error(t, err)
}

func TestNewHubWithConfigDefaults(t *testing.T) {
	l, err := NewHubWithConfig(HubConfig{Dataset: "community-datasets/yahoo_answers_topics", PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, "https://datasets-server.huggingface.co", l.config.Endpoint)
	assert.Equal(t, "train", l.config.Split)
	assert.Equal(t, maxPageSize, l.config.PageSize)

	_, err = NewHubWithConfig(HubConfig{})
	assert.Error(t, err)
}
