package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS episodes (
	id         TEXT PRIMARY KEY,
	actor_id   TEXT NOT NULL,
	scenario   TEXT NOT NULL,
	steps      BIGINT NOT NULL,
	reward     DOUBLE PRECISION NOT NULL,
	terminal   BOOLEAN NOT NULL,
	error      TEXT NOT NULL DEFAULT '',
	started_at TIMESTAMPTZ NOT NULL,
	ended_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS episodes_ended_at_idx ON episodes (ended_at DESC);`

// PostgresStore implements Store backed by PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres connects to dsn and creates the episodes table if needed.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	store := NewPostgresStore(db)
	if err := store.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Migrate creates the episodes table.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate episodes table: %w", err)
	}
	return nil
}

func (p *PostgresStore) SaveEpisode(ctx context.Context, ep Episode) error {
	query := `
		INSERT INTO episodes (id, actor_id, scenario, steps, reward, terminal, error, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := p.db.ExecContext(ctx, query,
		ep.ID, ep.ActorID, ep.Scenario, int64(ep.Steps), ep.Reward, ep.Terminal,
		ep.Error, ep.StartedAt, ep.EndedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("failed to save episode: %w", err)
	}
	return nil
}

func (p *PostgresStore) GetEpisode(ctx context.Context, id string) (Episode, error) {
	query := `
		SELECT id, actor_id, scenario, steps, reward, terminal, error, started_at, ended_at
		FROM episodes WHERE id = $1`

	ep, err := scanEpisode(p.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Episode{}, ErrNotFound
	}
	if err != nil {
		return Episode{}, fmt.Errorf("failed to get episode: %w", err)
	}
	return ep, nil
}

func (p *PostgresStore) ListEpisodes(ctx context.Context, limit int) ([]Episode, error) {
	query := `
		SELECT id, actor_id, scenario, steps, reward, terminal, error, started_at, ended_at
		FROM episodes ORDER BY ended_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list episodes: %w", err)
	}
	defer rows.Close()

	var out []Episode
	for rows.Next() {
		ep, err := scanEpisode(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan episode: %w", err)
		}
		out = append(out, ep)
	}
	return out, rows.Err()
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEpisode(row scanner) (Episode, error) {
	var (
		ep    Episode
		steps int64
	)
	err := row.Scan(&ep.ID, &ep.ActorID, &ep.Scenario, &steps, &ep.Reward, &ep.Terminal,
		&ep.Error, &ep.StartedAt, &ep.EndedAt)
	ep.Steps = uint32(steps)
	return ep, err
}

// isUniqueViolation reports a PostgreSQL unique_violation (23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
