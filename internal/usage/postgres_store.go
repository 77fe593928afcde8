package usage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PostgresStore struct {
	db DB
}

func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const schema = `
	CREATE TABLE IF NOT EXISTS usage_records (
		id                UUID PRIMARY KEY,
		request_id        TEXT NOT NULL DEFAULT '',
		provider          TEXT NOT NULL,
		model             TEXT NOT NULL,
		prompt_tokens     INTEGER NOT NULL,
		completion_tokens INTEGER NOT NULL,
		total_tokens      INTEGER NOT NULL,
		estimated_cost    DOUBLE PRECISION NOT NULL,
		created_at        TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS usage_records_created_at_idx ON usage_records (created_at);
`

// Migrate creates the usage table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate usage schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, rec *Record) error {
	query := `
		INSERT INTO usage_records (id, request_id, provider, model, prompt_tokens, completion_tokens, total_tokens, estimated_cost, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.Exec(ctx, query,
		rec.ID, rec.RequestID, rec.Provider, rec.Model,
		rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens, rec.EstimatedCost, rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to save usage record: %w", err)
	}

	return nil
}

func (s *PostgresStore) List(ctx context.Context, f Filter) ([]*Record, error) {
	query := `
		SELECT id, request_id, provider, model, prompt_tokens, completion_tokens, total_tokens, estimated_cost, created_at
		FROM usage_records
		WHERE created_at BETWEEN $1 AND $2 AND ($3 = '' OR provider = $3)
		ORDER BY created_at DESC
	`
	rows, err := s.db.Query(ctx, query, f.From, f.To, f.Provider)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var r Record
		err := rows.Scan(
			&r.ID, &r.RequestID, &r.Provider, &r.Model,
			&r.PromptTokens, &r.CompletionTokens, &r.TotalTokens, &r.EstimatedCost, &r.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan usage record: %w", err)
		}
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating usage records: %w", err)
	}

	return records, nil
}

func (s *PostgresStore) TotalCost(ctx context.Context, f Filter) (float64, error) {
	query := `
		SELECT COALESCE(SUM(estimated_cost), 0)
		FROM usage_records
		WHERE created_at BETWEEN $1 AND $2 AND ($3 = '' OR provider = $3)
	`
	var total float64
	err := s.db.QueryRow(ctx, query, f.From, f.To, f.Provider).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to get total cost: %w", err)
	}

	return total, nil
}
