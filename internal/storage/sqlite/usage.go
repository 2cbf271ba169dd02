package sqlite

import (
	"context"
	"database/sql"
	"errors"
)

// Count returns the call count for (provider, day), zero when no row exists.
func (s *Store) Count(ctx context.Context, provider, day string) (int64, error) {
	var n int64
	err := s.read.QueryRowContext(ctx,
		`SELECT count FROM api_usage WHERE provider = ? AND yyyymmdd = ?`,
		provider, day,
	).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return n, err
}

// Increment atomically adds n to the (provider, day) counter. The increment
// happens inside the UPDATE itself, so concurrent callers never lose
// updates -- undercounting would defeat the budget guarantee.
func (s *Store) Increment(ctx context.Context, provider, day string, n int64) error {
	_, err := s.write.ExecContext(ctx,
		`INSERT INTO api_usage (provider, yyyymmdd, count) VALUES (?, ?, ?)
		 ON CONFLICT(provider, yyyymmdd) DO UPDATE SET
		 count = count + excluded.count`,
		provider, day, n,
	)
	return err
}

// CountsForDay returns all provider counts recorded for one day.
func (s *Store) CountsForDay(ctx context.Context, day string) (map[string]int64, error) {
	rows, err := s.read.QueryContext(ctx,
		`SELECT provider, count FROM api_usage WHERE yyyymmdd = ?`, day,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var provider string
		var n int64
		if err := rows.Scan(&provider, &n); err != nil {
			return nil, err
		}
		out[provider] = n
	}
	return out, rows.Err()
}
