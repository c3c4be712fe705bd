package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/FranksOps/sprig/internal/keyword"
	"github.com/FranksOps/sprig/internal/storage"
	_ "modernc.org/sqlite"
)

// ensure sqliteBackend implements storage.Backend
var _ storage.Backend = (*sqliteBackend)(nil)

type sqliteBackend struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS research_runs (
	id TEXT PRIMARY KEY,
	input TEXT NOT NULL,
	kind TEXT NOT NULL,
	seed TEXT NOT NULL,
	ranker TEXT NOT NULL,
	keywords TEXT NOT NULL,
	variations TEXT NOT NULL,
	suggestions_added INTEGER NOT NULL,
	ideas_added INTEGER NOT NULL,
	created_at DATETIME NOT NULL,
	duration_ms INTEGER NOT NULL,
	error TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS research_runs_input ON research_runs (input);
`

// New opens (or creates) a SQLite run archive.
func New(dsn string) (storage.Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) Save(ctx context.Context, run *storage.Run) error {
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
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = b.db.ExecContext(ctx, query,
		run.ID,
		run.Input,
		string(run.Kind),
		run.Seed,
		run.Rank,
		string(keywordsJSON),
		string(variationsJSON),
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

func (b *sqliteBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Run, error) {
	query := `SELECT id, input, kind, seed, ranker, keywords, variations, suggestions_added, ideas_added, created_at, duration_ms, error FROM research_runs WHERE 1=1`
	args := []any{}

	if filter.Input != "" {
		query += ` AND input = ?`
		args = append(args, filter.Input)
	}
	if filter.Failed != nil {
		if *filter.Failed {
			query += ` AND error != ''`
		} else {
			query += ` AND error = ''`
		}
	}
	if filter.Since != nil {
		query += ` AND created_at >= ?`
		args = append(args, *filter.Since)
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	} else if filter.Offset > 0 {
		// SQLite only accepts OFFSET after a LIMIT.
		query += ` LIMIT -1`
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []*storage.Run
	for rows.Next() {
		var r storage.Run
		var kind, keywordsJSON, variationsJSON string
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
		if err := json.Unmarshal([]byte(keywordsJSON), &r.Keywords); err != nil {
			return nil, fmt.Errorf("decoding keywords: %w", err)
		}
		if err := json.Unmarshal([]byte(variationsJSON), &r.Variations); err != nil {
			return nil, fmt.Errorf("decoding variations: %w", err)
		}

		runs = append(runs, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading runs: %w", err)
	}

	return runs, nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}
