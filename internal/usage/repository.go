package usage

//go:generate mockgen -destination=./repository_mock_test.go -package=usage -source=repository.go Repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Repository is the interface for usage ledger storage.
type Repository interface {
	// Insert stores a single record.
	Insert(ctx context.Context, record *Record) error
	// Summarize aggregates records created at or after since.
	Summarize(ctx context.Context, since time.Time) ([]*Summary, error)
}

var schema = []string{`
	CREATE TABLE IF NOT EXISTS chat_usage (
		id           UUID PRIMARY KEY,
		request_id   TEXT NOT NULL,
		mode         TEXT NOT NULL,
		backend      TEXT NOT NULL,
		model        TEXT NOT NULL,
		status       TEXT NOT NULL,
		fragments    INTEGER NOT NULL DEFAULT 0,
		output_bytes INTEGER NOT NULL DEFAULT 0,
		duration_ms  BIGINT NOT NULL,
		error        TEXT NOT NULL DEFAULT '',
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS ix_chat_usage_created_at ON chat_usage (created_at)`,
}

// EnsureSchema creates the ledger table if it does not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, statement := range schema {
		if _, err := db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("could not create usage schema: %w", err)
		}
	}
	return nil
}

// postgresRepository is the Repository backed by Postgres through the pgx
// database/sql driver.
type postgresRepository struct {
	db *sql.DB // database connection pool.
}

// NewPostgresRepository is the constructor for the repository.
func NewPostgresRepository(db *sql.DB) Repository {
	return &postgresRepository{
		db: db,
	}
}

// Insert implements the interface.
func (pr *postgresRepository) Insert(ctx context.Context, record *Record) error {
	query := `
		INSERT INTO chat_usage (id, request_id, mode, backend, model, status, fragments, output_bytes, duration_ms, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := pr.db.ExecContext(ctx, query,
		record.ID,
		record.RequestID,
		string(record.Mode),
		record.Backend,
		record.Model,
		record.Status,
		record.Fragments,
		record.OutputBytes,
		record.Duration.Milliseconds(),
		record.Error,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("database error during usage insert: %w", err)
	}
	return nil
}

// Summarize implements the interface.
func (pr *postgresRepository) Summarize(ctx context.Context, since time.Time) ([]*Summary, error) {
	query := `
		SELECT mode, status, COUNT(*), COALESCE(SUM(output_bytes), 0), COALESCE(AVG(duration_ms), 0)
		FROM chat_usage
		WHERE created_at >= $1
		GROUP BY mode, status
		ORDER BY mode, status
	`

	rows, err := pr.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("database error during usage summary: %w", err)
	}
	defer rows.Close()

	summaries := make([]*Summary, 0)
	for rows.Next() {
		var s Summary
		var mode string
		if err := rows.Scan(&mode, &s.Status, &s.Count, &s.OutputBytes, &s.AvgDurationMs); err != nil {
			return nil, fmt.Errorf("could not scan usage summary: %w", err)
		}
		s.Mode = Mode(mode)
		summaries = append(summaries, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database error during usage summary: %w", err)
	}

	return summaries, nil
}

// noopRepository drops every record. It is used when no database is set.
type noopRepository struct{}

// NewNoopRepository returns a Repository that stores nothing.
func NewNoopRepository() Repository {
	return noopRepository{}
}

func (noopRepository) Insert(ctx context.Context, record *Record) error {
	return nil
}

func (noopRepository) Summarize(ctx context.Context, since time.Time) ([]*Summary, error) {
	return []*Summary{}, nil
}
