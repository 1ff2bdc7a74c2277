package store

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/xhad/qafilter/internal/models"
)

// FileStore keeps the pool as an indented JSON array on disk.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFile(path string) *FileStore {
	if path == "" {
		path = ".questions-pool.json"
	}
	return &FileStore{path: path}
}

func (s *FileStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to stat pool file: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create pool directory: %w", err)
		}
	}
	return s.save(nil)
}

func (s *FileStore) Load(ctx context.Context) ([]models.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *FileStore) Add(ctx context.Context, questions []models.Question) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.load()
	if err != nil {
		return 0, err
	}

	seen := make(map[string]bool, len(existing))
	for _, q := range existing {
		seen[q.Question] = true
	}

	added := 0
	for _, q := range questions {
		if seen[q.Question] {
			continue
		}
		seen[q.Question] = true
		existing = append(existing, q)
		added++
	}

	if added == 0 {
		return 0, nil
	}
	return added, s.save(existing)
}

func (s *FileStore) Update(ctx context.Context, patch models.Question) (*models.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	questions, err := s.load()
	if err != nil {
		return nil, err
	}

	for i := range questions {
		if questions[i].ID != patch.ID {
			continue
		}
		q := &questions[i]
		q.Question = cmp.Or(patch.Question, q.Question)
		q.AnswerAI = cmp.Or(patch.AnswerAI, q.AnswerAI)
		q.AnswerHuman = cmp.Or(patch.AnswerHuman, q.AnswerHuman)
		q.Source = cmp.Or(patch.Source, q.Source)

		updated := *q
		return &updated, s.save(questions)
	}
	return nil, nil
}

func (s *FileStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	questions, err := s.load()
	if err != nil {
		return false, err
	}

	kept := questions[:0]
	for _, q := range questions {
		if q.ID != id {
			kept = append(kept, q)
		}
	}
	if len(kept) == len(questions) {
		return false, nil
	}
	return true, s.save(kept)
}

func (s *FileStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(nil)
}

func (s *FileStore) Stats(ctx context.Context) (models.PoolStats, error) {
	questions, err := s.Load(ctx)
	if err != nil {
		return models.PoolStats{}, err
	}
	return statsOf(questions), nil
}

func (s *FileStore) Close() {}

func (s *FileStore) load() ([]models.Question, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []models.Question{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read pool file: %w", err)
	}

	var questions []models.Question
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, fmt.Errorf("failed to parse pool file %s: %w", s.path, err)
	}
	if questions == nil {
		questions = []models.Question{}
	}
	return questions, nil
}

func (s *FileStore) save(questions []models.Question) error {
	if questions == nil {
		questions = []models.Question{}
	}
	data, err := json.MarshalIndent(questions, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode pool: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write pool file: %w", err)
	}
	return nil
}
