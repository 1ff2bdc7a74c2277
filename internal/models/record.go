package models

import "time"

// Record is a single dataset row keyed by column name.
type Record map[string]any

// String returns the value of field when it holds a non-null string.
func (r Record) String(field string) (string, bool) {
	v, ok := r[field]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Question is a translated question with a human and an AI answer, ready to be
// served from the pool.
type Question struct {
	ID               string    `json:"id"`
	Question         string    `json:"question"`
	AnswerAI         string    `json:"answerAI"`
	AnswerHuman      string    `json:"answerHuman"`
	Source           string    `json:"source"`
	OriginalQuestion string    `json:"originalQuestion,omitempty"`
	OriginalAnswer   string    `json:"originalAnswer,omitempty"`
	IsTranslated     bool      `json:"isTranslated"`
	CreatedAt        time.Time `json:"createdAt"`
	Embedding        []float32 `json:"-"`
}

type ScoredQuestion struct {
	Question
	Distance float64
}

type PoolStats struct {
	Total      int            `json:"total"`
	BySource   map[string]int `json:"bySource"`
	Translated int            `json:"translated"`
}
