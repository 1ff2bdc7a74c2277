package config

import (
	"fmt"
	"net/url"
	"regexp"

	"github.com/robfig/cron/v3"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate Dataset config
	if c.Dataset.File == "" {
		if c.Dataset.Name == "" {
			errors = append(errors, ValidationError{
				Field:   "dataset.name",
				Message: "dataset name is required when no file is given",
			})
		}
		if _, err := url.ParseRequestURI(c.Dataset.Endpoint); err != nil {
			errors = append(errors, ValidationError{
				Field:   "dataset.endpoint",
				Message: "invalid datasets endpoint URL",
			})
		}
	}

	if c.Dataset.PageSize < 1 || c.Dataset.PageSize > 100 {
		errors = append(errors, ValidationError{
			Field:   "dataset.page_size",
			Message: "page_size must be between 1 and 100",
		})
	}

	if c.Dataset.MaxRows < 0 {
		errors = append(errors, ValidationError{
			Field:   "dataset.max_rows",
			Message: "max_rows must not be negative",
		})
	}

	if c.Dataset.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "dataset.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	// Validate Filter config
	if c.Filter.QuestionField == "" || c.Filter.AnswerField == "" {
		errors = append(errors, ValidationError{
			Field:   "filter.fields",
			Message: "question_field and answer_field are required",
		})
	}

	if c.Filter.MinWordCount < 1 {
		errors = append(errors, ValidationError{
			Field:   "filter.min_word_count",
			Message: "min_word_count must be positive",
		})
	}

	if c.Output.Path == "" {
		errors = append(errors, ValidationError{
			Field:   "output.path",
			Message: "output path is required",
		})
	}

	// Validate LLM config
	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 4096 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 4096",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	if _, err := url.ParseRequestURI(c.LLM.BaseURL); err != nil {
		errors = append(errors, ValidationError{
			Field:   "llm.base_url",
			Message: "invalid Ollama base URL",
		})
	}

	// Validate Database config
	if c.Database.URL != "" {
		if u, err := url.Parse(c.Database.URL); err != nil || u.Scheme == "" {
			errors = append(errors, ValidationError{
				Field:   "database.url",
				Message: "invalid database URL",
			})
		}
	}

	if !identifierPattern.MatchString(c.Database.TableName) {
		errors = append(errors, ValidationError{
			Field:   "database.table_name",
			Message: fmt.Sprintf("invalid table name: %q", c.Database.TableName),
		})
	}

	if c.Database.VectorDim < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.vector_dim",
			Message: "vector_dim must be positive",
		})
	}

	// Validate Pool config
	if c.Pool.Target < 1 {
		errors = append(errors, ValidationError{
			Field:   "pool.target",
			Message: "target must be positive",
		})
	}

	if c.Pool.MaxPerRun < 1 {
		errors = append(errors, ValidationError{
			Field:   "pool.max_per_run",
			Message: "max_per_run must be positive",
		})
	}

	if c.Pool.DuplicateDistance < 0 || c.Pool.DuplicateDistance > 2 {
		errors = append(errors, ValidationError{
			Field:   "pool.duplicate_distance",
			Message: "duplicate_distance must be between 0 and 2",
		})
	}

	if c.Pool.Schedule != "" {
		if _, err := cron.ParseStandard(c.Pool.Schedule); err != nil {
			errors = append(errors, ValidationError{
				Field:   "pool.schedule",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
	}

	return errors
}
