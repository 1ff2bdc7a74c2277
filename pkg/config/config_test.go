package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configData := `
dataset:
  name: "community-datasets/yahoo_answers_topics"
  split: "test"
  page_size: 50
  max_rows: 1000

filter:
  min_word_count: 25

output:
  path: "out.jsonl"

llm:
  base_url: "http://localhost:11434"
  model: "llama3"
  max_tokens: 1000
  temperature: 0.5

database:
  url: "postgres://localhost:5432/test"
  table_name: "test_questions"

pool:
  target: 20
  interval: 500ms
  schedule: "*/30 * * * *"
`
	err := os.WriteFile(configPath, []byte(configData), 0644)
	require.NoError(t, err)

	t.Setenv("DATABASE_URL", "")
	t.Setenv("HF_TOKEN", "")

	// Test loading config
	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	// Verify loaded values
	assert.Equal(t, "test", config.Dataset.Split)
	assert.Equal(t, 50, config.Dataset.PageSize)
	assert.Equal(t, 1000, config.Dataset.MaxRows)
	assert.Equal(t, 25, config.Filter.MinWordCount)
	assert.Equal(t, "out.jsonl", config.Output.Path)
	assert.Equal(t, "llama3", config.LLM.Model)
	assert.Equal(t, 1000, config.LLM.MaxTokens)
	assert.Equal(t, 0.5, config.LLM.Temperature)
	assert.Equal(t, "postgres://localhost:5432/test", config.Database.URL)
	assert.Equal(t, "test_questions", config.Database.TableName)
	assert.Equal(t, 20, config.Pool.Target)
	assert.Equal(t, 500*time.Millisecond, config.Pool.Interval)
	assert.Equal(t, "*/30 * * * *", config.Pool.Schedule)

	// Unset sections fall back to defaults
	assert.Equal(t, "yahoo_answers_topics", config.Dataset.Config)
	assert.Equal(t, []string{"question_title", "best_answer"}, config.Filter.OutputFields)
	assert.Equal(t, "out.jsonl", config.Pool.Source)
	assert.Equal(t, 5, config.Pool.MaxPerRun)
	assert.Empty(t, config.Validate())
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("dataset: [unclosed"), 0644))

	_, err := LoadConfig(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error parsing config file")
}

func TestDefaultConfig(t *testing.T) {
	t.Setenv("HF_TOKEN", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("POOL_FILE", "")
	t.Setenv("PORT", "")

	config, err := getDefaultConfig()
	require.NoError(t, err)

	assert.Equal(t, "community-datasets/yahoo_answers_topics", config.Dataset.Name)
	assert.Equal(t, "train", config.Dataset.Split)
	assert.Equal(t, "best_answer", config.Filter.AnswerField)
	assert.Equal(t, 40, config.Filter.MinWordCount)
	assert.Equal(t, "filtrelenmis_soru_cevaplar.json", config.Output.Path)
	assert.Equal(t, ".questions-pool.json", config.Database.PoolFile)
	assert.Equal(t, 50, config.Pool.Target)
	assert.Equal(t, 2*time.Second, config.Pool.Interval)
	assert.Equal(t, "8080", config.Server.Port)
	assert.Empty(t, config.Validate())
}

func TestMergeWithEnv(t *testing.T) {
	t.Setenv("HF_TOKEN", "hf_secret")
	t.Setenv("OLLAMA_BASE_URL", "http://ollama:11434")
	t.Setenv("DATABASE_URL", "postgres://db:5432/pool")
	t.Setenv("POOL_FILE", "/tmp/pool.json")
	t.Setenv("PORT", "9000")

	config, err := getDefaultConfig()
	require.NoError(t, err)

	assert.Equal(t, "hf_secret", config.Dataset.Token)
	assert.Equal(t, "http://ollama:11434", config.LLM.BaseURL)
	assert.Equal(t, "postgres://db:5432/pool", config.Database.URL)
	assert.Equal(t, "/tmp/pool.json", config.Database.PoolFile)
	assert.Equal(t, "9000", config.Server.Port)
}

func validConfig(t *testing.T) Config {
	t.Helper()
	config := Config{}
	applyDefaults(&config)
	return config
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name         string
		mutate       func(c *Config)
		expectedErrs int
		errorFields  []string
	}{
		{
			name:         "valid config",
			mutate:       func(c *Config) {},
			expectedErrs: 0,
		},
		{
			name: "page size above api limit",
			mutate: func(c *Config) {
				c.Dataset.PageSize = 500
			},
			expectedErrs: 1,
			errorFields:  []string{"dataset.page_size"},
		},
		{
			name: "bad endpoint ignored for file source",
			mutate: func(c *Config) {
				c.Dataset.Endpoint = "not a url"
				c.Dataset.File = "rows.jsonl"
			},
			expectedErrs: 0,
		},
		{
			name: "bad endpoint",
			mutate: func(c *Config) {
				c.Dataset.Endpoint = "not a url"
			},
			expectedErrs: 1,
			errorFields:  []string{"dataset.endpoint"},
		},
		{
			name: "invalid llm settings",
			mutate: func(c *Config) {
				c.LLM.MaxTokens = 5000
				c.LLM.Temperature = 3
			},
			expectedErrs: 2,
			errorFields:  []string{"llm.max_tokens", "llm.temperature"},
		},
		{
			name: "unsafe table name",
			mutate: func(c *Config) {
				c.Database.TableName = "questions; DROP TABLE x"
			},
			expectedErrs: 1,
			errorFields:  []string{"database.table_name"},
		},
		{
			name: "bad schedule",
			mutate: func(c *Config) {
				c.Pool.Schedule = "every tuesday"
			},
			expectedErrs: 1,
			errorFields:  []string{"pool.schedule"},
		},
		{
			name: "negative pool settings",
			mutate: func(c *Config) {
				c.Pool.Target = -1
				c.Pool.MaxPerRun = 0
			},
			expectedErrs: 2,
			errorFields:  []string{"pool.target", "pool.max_per_run"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig(t)
			tt.mutate(&config)

			errs := config.Validate()
			assert.Len(t, errs, tt.expectedErrs)

			var fields []string
			for _, e := range errs {
				fields = append(fields, e.Field)
			}
			for _, f := range tt.errorFields {
				assert.Contains(t, fields, f)
			}
		})
	}
}
