package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	gateway "github.com/skyward-io/skygate/internal"
)

// GetEntry returns the cached row for (category, key, provider).
func (s *Store) GetEntry(ctx context.Context, category gateway.Category, key, provider string) (*gateway.CacheEntry, error) {
	var payload sql.NullString
	var lastUpdated string
	err := s.read.QueryRowContext(ctx,
		`SELECT payload, last_updated FROM cache_entries
		 WHERE category = ? AND key = ? AND provider = ?`,
		string(category), key, provider,
	).Scan(&payload, &lastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, gateway.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	e := &gateway.CacheEntry{
		Category: category,
		Key:      key,
		Provider: provider,
	}
	if payload.Valid {
		e.Payload = json.RawMessage(payload.String)
	}
	if t, err := time.Parse(time.RFC3339Nano, lastUpdated); err == nil {
		e.LastUpdated = t
	}
	return e, nil
}

// UpsertEntry writes the entry, replacing any existing row for the same
// (category, key, provider) tuple. Last write wins; callers rely on the
// upsert being idempotent under concurrent same-key fetches.
func (s *Store) UpsertEntry(ctx context.Context, e *gateway.CacheEntry) error {
	ts := e.LastUpdated
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.write.ExecContext(ctx,
		`INSERT INTO cache_entries (category, key, provider, payload, last_updated)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(category, key, provider) DO UPDATE SET
		 payload = excluded.payload,
		 last_updated = excluded.last_updated`,
		string(e.Category), e.Key, e.Provider, string(e.Payload), ts.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// DeleteExpired removes entries of the category last updated before the
// cutoff. Rows past the serve-stale window can never be returned, so they
// only cost disk.
func (s *Store) DeleteExpired(ctx context.Context, category gateway.Category, before time.Time) (int64, error) {
	res, err := s.write.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE category = ? AND last_updated < ?`,
		string(category), before.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
