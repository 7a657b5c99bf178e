package store

import (
	"context"
	"fmt"

	"followcrawl/pkg/api"
)

// UpsertFollowers inserts newly discovered identifiers, ignoring ones the
// store already knows. Existing rows are untouched, so a follower whose
// profile was already fetched never regresses to discovered. Returns how
// many identifiers were new.
func (s *Store) UpsertFollowers(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO followers (id) VALUES (?) ON CONFLICT(id) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("store: prepare upsert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, id := range ids {
		res, err := stmt.ExecContext(ctx, id)
		if err != nil {
			return 0, fmt.Errorf("store: upsert follower %s: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("store: upsert follower %s: %w", id, err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit upsert: %w", err)
	}

	s.logger.DebugWithFields("followers upserted", map[string]interface{}{
		"batch": len(ids),
		"new":   inserted,
	})

	return inserted, nil
}

// RecordProfile stores a fetched profile snapshot and transitions the record
// to profile_fetched. The latest fetch wins: any prior snapshot is
// overwritten.
func (s *Store) RecordProfile(ctx context.Context, id string, profile *api.Profile) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE followers SET
			screen_name     = ?,
			display_name    = ?,
			bio             = ?,
			location        = ?,
			url             = ?,
			followers_count = ?,
			friends_count   = ?,
			statuses_count  = ?,
			verified        = ?,
			protected       = ?,
			created_at      = ?,
			status          = ?,
			last_fetched_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		profile.ScreenName,
		profile.DisplayName,
		profile.Bio,
		profile.Location,
		profile.URL,
		profile.FollowersCount,
		profile.FriendsCount,
		profile.StatusesCount,
		profile.Verified,
		profile.Protected,
		profile.CreatedAt,
		string(StatusProfileFetched),
		id,
	)
	if err != nil {
		return fmt.Errorf("store: record profile %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: record profile %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("store: record profile: unknown follower %s", id)
	}

	return nil
}

// RecordProfileFailure marks a follower whose account was gone when its
// profile was fetched. Not retried on later runs.
func (s *Store) RecordProfileFailure(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE followers SET
			status          = ?,
			last_fetched_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		string(StatusProfileFailed),
		id,
	)
	if err != nil {
		return fmt.Errorf("store: record profile failure %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: record profile failure %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("store: record profile failure: unknown follower %s", id)
	}

	return nil
}

// NextNeedingProfile returns up to limit identifiers still awaiting a
// profile fetch, in insertion order so enrichment progress is deterministic.
func (s *Store) NextNeedingProfile(ctx context.Context, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM followers WHERE status = ? ORDER BY rowid LIMIT ?`,
		string(StatusDiscovered), limit)
	if err != nil {
		return nil, fmt.Errorf("store: query pending followers: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan pending follower: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate pending followers: %w", err)
	}

	return ids, nil
}

// FollowerStatus returns the stored status of one follower identifier.
func (s *Store) FollowerStatus(ctx context.Context, id string) (Status, error) {
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM followers WHERE id = ?`, id).Scan(&status)
	if err != nil {
		return "", fmt.Errorf("store: read follower status %s: %w", id, err)
	}
	return Status(status), nil
}

// Counts summarizes the store's follower records by status.
type Counts struct {
	Discovered     int
	ProfileFetched int
	ProfileFailed  int
}

// Total returns the number of known follower identifiers.
func (c Counts) Total() int {
	return c.Discovered + c.ProfileFetched + c.ProfileFailed
}

// CountByStatus returns per-status record counts.
func (s *Store) CountByStatus(ctx context.Context) (Counts, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM followers GROUP BY status`)
	if err != nil {
		return Counts{}, fmt.Errorf("store: count followers: %w", err)
	}
	defer rows.Close()

	var counts Counts
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return Counts{}, fmt.Errorf("store: scan follower count: %w", err)
		}
		switch Status(status) {
		case StatusDiscovered:
			counts.Discovered = n
		case StatusProfileFetched:
			counts.ProfileFetched = n
		case StatusProfileFailed:
			counts.ProfileFailed = n
		}
	}
	if err := rows.Err(); err != nil {
		return Counts{}, fmt.Errorf("store: iterate follower counts: %w", err)
	}

	return counts, nil
}
