package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type DatasetConfig struct {
	Endpoint  string  `yaml:"endpoint"`
	Name      string  `yaml:"name"`
	Config    string  `yaml:"config"`
	Split     string  `yaml:"split"`
	Token     string  `yaml:"token"`
	File      string  `yaml:"file"`
	PageSize  int     `yaml:"page_size"`
	MaxRows   int     `yaml:"max_rows"`
	RateLimit float64 `yaml:"rate_limit"`
}

type FilterConfig struct {
	QuestionField string   `yaml:"question_field"`
	AnswerField   string   `yaml:"answer_field"`
	MinWordCount  int      `yaml:"min_word_count"`
	OutputFields  []string `yaml:"output_fields"`
}

type OutputConfig struct {
	Path string `yaml:"path"`
}

type LLMConfig struct {
	BaseURL          string  `yaml:"base_url"`
	Model            string  `yaml:"model"`
	TranslationModel string  `yaml:"translation_model"`
	EmbeddingModel   string  `yaml:"embedding_model"`
	MaxTokens        int     `yaml:"max_tokens"`
	Temperature      float64 `yaml:"temperature"`
}

type DatabaseConfig struct {
	URL       string `yaml:"url"`
	TableName string `yaml:"table_name"`
	VectorDim int    `yaml:"vector_dim"`
	PoolFile  string `yaml:"pool_file"`
}

type PoolConfig struct {
	Source            string        `yaml:"source"`
	Target            int           `yaml:"target"`
	MaxPerRun         int           `yaml:"max_per_run"`
	Interval          time.Duration `yaml:"interval"`
	Schedule          string        `yaml:"schedule"`
	DuplicateDistance float64       `yaml:"duplicate_distance"`
	MaxAnswerLength   int           `yaml:"max_answer_length"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

type Config struct {
	Dataset  DatasetConfig  `yaml:"dataset"`
	Filter   FilterConfig   `yaml:"filter"`
	Output   OutputConfig   `yaml:"output"`
	LLM      LLMConfig      `yaml:"llm"`
	Database DatabaseConfig `yaml:"database"`
	Pool     PoolConfig     `yaml:"pool"`
	Server   ServerConfig   `yaml:"server"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/qafilter/config.yaml"),
			"/etc/qafilter/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	applyDefaults(config)
	mergeWithEnv(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.Dataset.Endpoint == "" {
		config.Dataset.Endpoint = "https://datasets-server.huggingface.co"
	}
	if config.Dataset.Name == "" {
		config.Dataset.Name = "community-datasets/yahoo_answers_topics"
	}
	if config.Dataset.Config == "" {
		config.Dataset.Config = "yahoo_answers_topics"
	}
	if config.Dataset.Split == "" {
		config.Dataset.Split = "train"
	}
	if config.Dataset.PageSize == 0 {
		config.Dataset.PageSize = 100
	}
	if config.Dataset.RateLimit == 0 {
		config.Dataset.RateLimit = 5
	}

	if config.Filter.QuestionField == "" {
		config.Filter.QuestionField = "question_title"
	}
	if config.Filter.AnswerField == "" {
		config.Filter.AnswerField = "best_answer"
	}
	if config.Filter.MinWordCount == 0 {
		// roughly three or four sentences
		config.Filter.MinWordCount = 40
	}
	if len(config.Filter.OutputFields) == 0 {
		config.Filter.OutputFields = []string{config.Filter.QuestionField, config.Filter.AnswerField}
	}

	if config.Output.Path == "" {
		config.Output.Path = "filtrelenmis_soru_cevaplar.json"
	}

	if config.LLM.BaseURL == "" {
		config.LLM.BaseURL = "http://localhost:11434"
	}
	if config.LLM.Model == "" {
		config.LLM.Model = "gemma3:27b"
	}
	if config.LLM.TranslationModel == "" {
		config.LLM.TranslationModel = "qwen2.5:72b"
	}
	if config.LLM.EmbeddingModel == "" {
		config.LLM.EmbeddingModel = "nomic-embed-text:latest"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.7
	}

	if config.Database.TableName == "" {
		config.Database.TableName = "questions"
	}
	if config.Database.VectorDim == 0 {
		config.Database.VectorDim = 768
	}
	if config.Database.PoolFile == "" {
		config.Database.PoolFile = ".questions-pool.json"
	}

	if config.Pool.Source == "" {
		config.Pool.Source = config.Output.Path
	}
	if config.Pool.Target == 0 {
		config.Pool.Target = 50
	}
	if config.Pool.MaxPerRun == 0 {
		config.Pool.MaxPerRun = 5
	}
	if config.Pool.Interval == 0 {
		config.Pool.Interval = 2 * time.Second
	}
	if config.Pool.DuplicateDistance == 0 {
		config.Pool.DuplicateDistance = 0.05
	}
	if config.Pool.MaxAnswerLength == 0 {
		config.Pool.MaxAnswerLength = 1200
	}

	if config.Server.Port == "" {
		config.Server.Port = "8080"
	}
}

func mergeWithEnv(config *Config) {
	if token := os.Getenv("HF_TOKEN"); token != "" {
		config.Dataset.Token = token
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.LLM.BaseURL = baseURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if poolFile := os.Getenv("POOL_FILE"); poolFile != "" {
		config.Database.PoolFile = poolFile
	}
	if port := os.Getenv("PORT"); port != "" {
		config.Server.Port = port
	}
}
