package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Postgres stores each record as a jsonb payload keyed by id.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return &Postgres{db: db}, nil
}

// Migrate creates the routes table if it does not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS routes (
    id          TEXT PRIMARY KEY,
    created_at  TIMESTAMPTZ NOT NULL,
    reached     BOOLEAN NOT NULL,
    payload     JSONB NOT NULL
)`)
	if err != nil {
		return fmt.Errorf("migrating routes table: %w", err)
	}
	return nil
}

func (p *Postgres) Save(ctx context.Context, rec Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO routes (id, created_at, reached, payload) VALUES ($1, $2, $3, $4)
         ON CONFLICT (id) DO UPDATE SET created_at = EXCLUDED.created_at, reached = EXCLUDED.reached, payload = EXCLUDED.payload`,
		rec.ID, rec.CreatedAt, rec.Route.Reached, payload)
	return err
}

func (p *Postgres) Get(ctx context.Context, id string) (Record, error) {
	var payload []byte
	err := p.db.QueryRowContext(ctx, `SELECT payload FROM routes WHERE id = $1`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return Record{}, fmt.Errorf("decoding route %s: %w", id, err)
	}
	return rec, nil
}

func (p *Postgres) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx, `SELECT payload FROM routes ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var rec Record
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (p *Postgres) Close() error {
	return p.db.Close()
}
