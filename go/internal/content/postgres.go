package content

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcdev12/buzzquiz/go/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS contents (
	id                  TEXT PRIMARY KEY,
	kind                TEXT NOT NULL,
	title               TEXT NOT NULL,
	raw_content         TEXT NOT NULL,
	cleaned_text        TEXT NOT NULL,
	uploaded_at         TIMESTAMPTZ NOT NULL,
	status              TEXT NOT NULL,
	word_count          INTEGER NOT NULL,
	estimated_questions INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS pool_questions (
	id         TEXT PRIMARY KEY,
	content_id TEXT NOT NULL REFERENCES contents(id) ON DELETE CASCADE,
	position   INTEGER NOT NULL,
	question   TEXT NOT NULL,
	context    TEXT NOT NULL DEFAULT '',
	difficulty TEXT NOT NULL,
	used       BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS pool_questions_content_position
	ON pool_questions (content_id, position);
`

// PostgresStore is a Store backed by a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects to databaseURL and creates the tables if needed.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) PutContent(ctx context.Context, c models.Content) error {
	defer observe("postgres", "put_content")()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO contents (id, kind, title, raw_content, cleaned_text, uploaded_at, status, word_count, estimated_questions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			kind = EXCLUDED.kind,
			title = EXCLUDED.title,
			raw_content = EXCLUDED.raw_content,
			cleaned_text = EXCLUDED.cleaned_text,
			uploaded_at = EXCLUDED.uploaded_at,
			status = EXCLUDED.status,
			word_count = EXCLUDED.word_count,
			estimated_questions = EXCLUDED.estimated_questions
	`, c.ID, string(c.Kind), c.Title, c.RawContent, c.CleanedText, c.UploadedAt,
		string(c.Status), c.WordCount, c.EstimatedQuestions)
	if err != nil {
		return fmt.Errorf("failed to put content: %w", err)
	}
	return nil
}

const contentColumns = `id, kind, title, raw_content, cleaned_text, uploaded_at, status, word_count, estimated_questions`

func scanContent(row pgx.Row) (models.Content, error) {
	var c models.Content
	var kind, status string
	err := row.Scan(&c.ID, &kind, &c.Title, &c.RawContent, &c.CleanedText, &c.UploadedAt,
		&status, &c.WordCount, &c.EstimatedQuestions)
	c.Kind = models.ContentKind(kind)
	c.Status = models.ContentStatus(status)
	return c, err
}

func (s *PostgresStore) GetContent(ctx context.Context, id string) (models.Content, error) {
	defer observe("postgres", "get_content")()
	c, err := scanContent(s.pool.QueryRow(ctx, `SELECT `+contentColumns+` FROM contents WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Content{}, ErrNotFound
		}
		return models.Content{}, fmt.Errorf("failed to get content: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) ListContent(ctx context.Context) ([]models.Content, error) {
	defer observe("postgres", "list_content")()
	rows, err := s.pool.Query(ctx, `SELECT `+contentColumns+` FROM contents ORDER BY uploaded_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list content: %w", err)
	}
	defer rows.Close()

	var out []models.Content
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan content: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeleteContent(ctx context.Context, id string) error {
	defer observe("postgres", "delete_content")()
	if _, err := s.pool.Exec(ctx, `DELETE FROM contents WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete content: %w", err)
	}
	return nil
}

// inTx runs fn inside a transaction, rolling back when fn fails.
func (s *PostgresStore) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx) // no-op after commit
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// lockContent takes a row lock on the content so pool updates serialize.
func lockContent(ctx context.Context, tx pgx.Tx, contentID string) error {
	var id string
	err := tx.QueryRow(ctx, `SELECT id FROM contents WHERE id = $1 FOR UPDATE`, contentID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (s *PostgresStore) PutQuestions(ctx context.Context, contentID string, questions []models.PoolQuestion) error {
	defer observe("postgres", "put_questions")()
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if err := lockContent(ctx, tx, contentID); err != nil {
			return err
		}

		batch := &pgx.Batch{}
		batch.Queue(`DELETE FROM pool_questions WHERE content_id = $1`, contentID)
		for i, q := range questions {
			batch.Queue(`
				INSERT INTO pool_questions (id, content_id, position, question, context, difficulty, used)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, q.ID, contentID, i, q.Question, q.Context, string(q.Difficulty), q.Used)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to store questions: %w", err)
		}
		return nil
	})
}

const poolColumns = `id, content_id, question, context, difficulty, used`

func scanPoolQuestion(row pgx.Row) (models.PoolQuestion, error) {
	var q models.PoolQuestion
	var difficulty string
	err := row.Scan(&q.ID, &q.ContentID, &q.Question, &q.Context, &difficulty, &q.Used)
	q.Difficulty = models.Difficulty(difficulty)
	return q, err
}

func (s *PostgresStore) Questions(ctx context.Context, contentID string) ([]models.PoolQuestion, error) {
	defer observe("postgres", "questions")()
	rows, err := s.pool.Query(ctx, `
		SELECT `+poolColumns+` FROM pool_questions WHERE content_id = $1 ORDER BY position
	`, contentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	defer rows.Close()

	out := []models.PoolQuestion{}
	for rows.Next() {
		q, err := scanPoolQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *PostgresStore) TakeUnused(ctx context.Context, contentID string) (models.PoolQuestion, bool, error) {
	defer observe("postgres", "take_unused")()

	var (
		taken    models.PoolQuestion
		recycled bool
	)
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if err := lockContent(ctx, tx, contentID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrEmptyPool
			}
			return err
		}

		q, err := scanPoolQuestion(tx.QueryRow(ctx, `
			SELECT `+poolColumns+` FROM pool_questions
			WHERE content_id = $1 AND NOT used
			ORDER BY position LIMIT 1
		`, contentID))
		switch {
		case err == nil:
		case errors.Is(err, pgx.ErrNoRows):
			tag, err := tx.Exec(ctx, `UPDATE pool_questions SET used = FALSE WHERE content_id = $1`, contentID)
			if err != nil {
				return fmt.Errorf("failed to reset pool: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return ErrEmptyPool
			}
			recycled = true
			q, err = scanPoolQuestion(tx.QueryRow(ctx, `
				SELECT `+poolColumns+` FROM pool_questions
				WHERE content_id = $1 ORDER BY position LIMIT 1
			`, contentID))
			if err != nil {
				return fmt.Errorf("failed to take question: %w", err)
			}
		default:
			return fmt.Errorf("failed to take question: %w", err)
		}

		if _, err := tx.Exec(ctx, `UPDATE pool_questions SET used = TRUE WHERE id = $1`, q.ID); err != nil {
			return fmt.Errorf("failed to mark question used: %w", err)
		}
		q.Used = true
		taken = q
		return nil
	})
	if err != nil {
		return models.PoolQuestion{}, false, err
	}
	return taken, recycled, nil
}

func (s *PostgresStore) ResetPool(ctx context.Context, contentID string) error {
	defer observe("postgres", "reset_pool")()
	if _, err := s.pool.Exec(ctx, `UPDATE pool_questions SET used = FALSE WHERE content_id = $1`, contentID); err != nil {
		return fmt.Errorf("failed to reset pool: %w", err)
	}
	return nil
}
