package store

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/xhad/qafilter/internal/models"
)

type PostgresConfig struct {
	ConnString string
	TableName  string
	VectorDim  int
}

type PostgresStore struct {
	config PostgresConfig
	pool   *pgxpool.Pool
}

func NewPostgres(ctx context.Context, config PostgresConfig) (*PostgresStore, error) {
	if config.TableName == "" {
		config.TableName = "questions"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 768 // nomic-embed-text
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &PostgresStore{
		config: config,
		pool:   pool,
	}, nil
}

func (ps *PostgresStore) Init(ctx context.Context) error {
	// Enable pgvector extension
	_, err := ps.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			question TEXT NOT NULL,
			answer_ai TEXT NOT NULL,
			answer_human TEXT NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			original_question TEXT,
			original_answer TEXT,
			is_translated BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			embedding vector(%d)
		)`, ps.config.TableName, ps.config.VectorDim)

	if _, err = ps.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	indexes := []string{
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_created_at_idx ON %[1]s (created_at)`, ps.config.TableName),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_source_idx ON %[1]s (source)`, ps.config.TableName),
		fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS %[1]s_embedding_idx
			ON %[1]s
			USING hnsw (embedding vector_cosine_ops)`, ps.config.TableName),
	}
	for _, stmt := range indexes {
		if _, err := ps.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

func (ps *PostgresStore) Add(ctx context.Context, questions []models.Question) (int, error) {
	// Begin transaction
	tx, err := ps.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	exists := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE question = $1)`, ps.config.TableName)
	insert := fmt.Sprintf(`
		INSERT INTO %s (id, question, answer_ai, answer_human, source,
			original_question, original_answer, is_translated, created_at, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING`,
		ps.config.TableName)

	added := 0
	for _, q := range questions {
		question := sanitizeUTF8(q.Question)

		var found bool
		if err := tx.QueryRow(ctx, exists, question).Scan(&found); err != nil {
			return 0, fmt.Errorf("failed to check for duplicate: %w", err)
		}
		if found {
			continue
		}

		var embedding any
		if len(q.Embedding) > 0 {
			embedding = pgvector.NewVector(q.Embedding)
		}

		tag, err := tx.Exec(ctx, insert,
			q.ID,
			question,
			sanitizeUTF8(q.AnswerAI),
			sanitizeUTF8(q.AnswerHuman),
			q.Source,
			nullable(sanitizeUTF8(q.OriginalQuestion)),
			nullable(sanitizeUTF8(q.OriginalAnswer)),
			q.IsTranslated,
			q.CreatedAt,
			embedding,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert question: %w", err)
		}
		added += int(tag.RowsAffected())
	}

	// Commit transaction
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return added, nil
}

const questionColumns = `id, question, answer_ai, answer_human, source,
	COALESCE(original_question, ''), COALESCE(original_answer, ''), is_translated, created_at`

func scanQuestion(row pgx.Row, dest *models.Question, extra ...any) error {
	return row.Scan(append([]any{
		&dest.ID,
		&dest.Question,
		&dest.AnswerAI,
		&dest.AnswerHuman,
		&dest.Source,
		&dest.OriginalQuestion,
		&dest.OriginalAnswer,
		&dest.IsTranslated,
		&dest.CreatedAt,
	}, extra...)...)
}

func (ps *PostgresStore) Load(ctx context.Context) ([]models.Question, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY created_at, id`, questionColumns, ps.config.TableName)

	rows, err := ps.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query questions: %w", err)
	}
	defer rows.Close()

	questions := []models.Question{}
	for rows.Next() {
		var q models.Question
		if err := scanQuestion(rows, &q); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		questions = append(questions, q)
	}

	return questions, rows.Err()
}

// Nearest returns the stored question closest to embedding by cosine distance.
func (ps *PostgresStore) Nearest(ctx context.Context, embedding []float32) (*models.ScoredQuestion, error) {
	query := fmt.Sprintf(`
		SELECT %s, embedding <=> $1 AS distance
		FROM %s
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT 1`,
		questionColumns, ps.config.TableName)

	var sq models.ScoredQuestion
	err := scanQuestion(ps.pool.QueryRow(ctx, query, pgvector.NewVector(embedding)), &sq.Question, &sq.Distance)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query nearest question: %w", err)
	}
	return &sq, nil
}

func (ps *PostgresStore) Update(ctx context.Context, patch models.Question) (*models.Question, error) {
	query := fmt.Sprintf(`
		UPDATE %s SET
			question = COALESCE(NULLIF($2, ''), question),
			answer_ai = COALESCE(NULLIF($3, ''), answer_ai),
			answer_human = COALESCE(NULLIF($4, ''), answer_human),
			source = COALESCE(NULLIF($5, ''), source)
		WHERE id = $1
		RETURNING %s`,
		ps.config.TableName, questionColumns)

	var q models.Question
	err := scanQuestion(ps.pool.QueryRow(ctx, query,
		patch.ID,
		sanitizeUTF8(patch.Question),
		sanitizeUTF8(patch.AnswerAI),
		sanitizeUTF8(patch.AnswerHuman),
		patch.Source,
	), &q)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update question: %w", err)
	}
	return &q, nil
}

func (ps *PostgresStore) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := ps.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, ps.config.TableName), id)
	if err != nil {
		return false, fmt.Errorf("failed to delete question: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (ps *PostgresStore) Clear(ctx context.Context) error {
	if _, err := ps.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s`, ps.config.TableName)); err != nil {
		return fmt.Errorf("failed to clear questions: %w", err)
	}
	return nil
}

func (ps *PostgresStore) Stats(ctx context.Context) (models.PoolStats, error) {
	stats := models.PoolStats{BySource: make(map[string]int)}

	err := ps.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT COUNT(*), COUNT(*) FILTER (WHERE is_translated)
		FROM %s`, ps.config.TableName)).Scan(&stats.Total, &stats.Translated)
	if err != nil {
		return stats, fmt.Errorf("failed to count questions: %w", err)
	}

	rows, err := ps.pool.Query(ctx, fmt.Sprintf(`SELECT source, COUNT(*) FROM %s GROUP BY source`, ps.config.TableName))
	if err != nil {
		return stats, fmt.Errorf("failed to group questions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			source string
			count  int
		)
		if err := rows.Scan(&source, &count); err != nil {
			return stats, fmt.Errorf("failed to scan row: %w", err)
		}
		stats.BySource[source] = count
	}

	return stats, rows.Err()
}

func (ps *PostgresStore) Close() {
	if ps.pool != nil {
		ps.pool.Close()
	}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// sanitizeUTF8 drops invalid bytes, which Postgres rejects in TEXT columns.
func sanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for i, r := range s {
			if r == utf8.RuneError {
				_, size := utf8.DecodeRuneInString(s[i:])
				if size == 1 {
					continue
				}
			}
			v = append(v, r)
		}
		return string(v)
	}
	return s
}
