package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/FranksOps/sprig/internal/keyword"
	"github.com/FranksOps/sprig/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ensure postgresBackend implements storage.Backend
var _ storage.Backend = (*postgresBackend)(nil)

type postgresBackend struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS research_runs (
	id TEXT PRIMARY KEY,
	input TEXT NOT NULL,
	kind TEXT NOT NULL,
	seed TEXT NOT NULL,
	ranker TEXT NOT NULL,
	keywords JSONB NOT NULL,
	variations JSONB NOT NULL,
	suggestions_added INTEGER NOT NULL,
	ideas_added INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	duration_ms BIGINT NOT NULL,
	error TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS research_runs_input ON research_runs (input);
`

// New connects to Postgres and creates the run archive table.
func New(ctx context.Context, dsn string) (storage.Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	_, err = pool.Exec(ctx, schema)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) Save(ctx context.Context, run *storage.Run) error {
	keywordsJSON, err := json.Marshal(run.Keywords)
	if err != nil {
		return fmt.Errorf("encoding keywords: %w", err)
	}
	variationsJSON, err := json.Marshal(run.Variations)
	if err != nil {
		return fmt.Errorf("encoding variations: %w", err)
	}

	query := `
	INSERT INTO research_runs (
		id, input, kind, seed, ranker, keywords, variations, suggestions_added, ideas_added, created_at, duration_ms, error
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = b.pool.Exec(ctx, query,
		run.ID,
		run.Input,
		string(run.Kind),
		run.Seed,
		run.Rank,
		keywordsJSON,
		variationsJSON,
		run.SuggestionsAdded,
		run.IdeasAdded,
		run.CreatedAt,
		run.Duration.Milliseconds(),
		run.Error,
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	return nil
}

func (b *postgresBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Run, error) {
	query := `SELECT id, input, kind, seed, ranker, keywords, variations, suggestions_added, ideas_added, created_at, duration_ms, error FROM research_runs WHERE 1=1`
	args := []any{}
	paramCount := 1

	if filter.Input != "" {
		query += fmt.Sprintf(` AND input = $%d`, paramCount)
		args = append(args, filter.Input)
		paramCount++
	}
	if filter.Failed != nil {
		if *filter.Failed {
			query += ` AND error <> ''`
		} else {
			query += ` AND error = ''`
		}
	}
	if filter.Since != nil {
		query += fmt.Sprintf(` AND created_at >= $%d`, paramCount)
		args = append(args, *filter.Since)
		paramCount++
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, paramCount)
		args = append(args, filter.Limit)
		paramCount++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, paramCount)
		args = append(args, filter.Offset)
	}

	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []*storage.Run
	for rows.Next() {
		var r storage.Run
		var kind string
		var keywordsJSON, variationsJSON []byte
		var durationMs int64

		err := rows.Scan(
			&r.ID, &r.Input, &kind, &r.Seed, &r.Rank, &keywordsJSON, &variationsJSON,
			&r.SuggestionsAdded, &r.IdeasAdded, &r.CreatedAt, &durationMs, &r.Error,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}

		r.Kind = keyword.Kind(kind)
		r.Duration = time.Duration(durationMs) * time.Millisecond
		if err := json.Unmarshal(keywordsJSON, &r.Keywords); err != nil {
			return nil, fmt.Errorf("decoding keywords: %w", err)
		}
		if err := json.Unmarshal(variationsJSON, &r.Variations); err != nil {
			return nil, fmt.Errorf("decoding variations: %w", err)
		}

		runs = append(runs, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading runs: %w", err)
	}

	return runs, nil
}

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}
