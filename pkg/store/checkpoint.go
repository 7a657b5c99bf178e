package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Checkpoint is the singleton crawl-progress marker. An empty Cursor with
// ListingDone false means the listing phase has not started; ListingDone
// true means every follower-list page has been committed and only
// enrichment work may remain (enrichment needs no cursor of its own, the
// follower records' statuses are the checkpoint).
type Checkpoint struct {
	Cursor      string
	ListingDone bool
}

// LoadCheckpoint returns the saved checkpoint, or the zero value ("not
// started") when none has been saved yet.
func (s *Store) LoadCheckpoint(ctx context.Context) (Checkpoint, error) {
	var cp Checkpoint
	err := s.db.QueryRowContext(ctx,
		`SELECT cursor, listing_done FROM checkpoint WHERE id = 1`).
		Scan(&cp.Cursor, &cp.ListingDone)
	if errors.Is(err, sql.ErrNoRows) {
		return Checkpoint{}, nil
	}
	if err != nil {
		return Checkpoint{}, fmt.Errorf("store: load checkpoint: %w", err)
	}
	return cp, nil
}

// SaveCheckpoint durably replaces the checkpoint. Callers must invoke it
// only after the batch the checkpoint describes has itself been committed:
// on crash and restart the saved cursor may point at already-stored data
// (re-fetching is a safe no-op upsert) but never past data that is missing.
func (s *Store) SaveCheckpoint(ctx context.Context, cp Checkpoint) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkpoint (id, cursor, listing_done, updated_at)
		VALUES (1, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			cursor       = excluded.cursor,
			listing_done = excluded.listing_done,
			updated_at   = CURRENT_TIMESTAMP`,
		cp.Cursor, cp.ListingDone)
	if err != nil {
		return fmt.Errorf("store: save checkpoint: %w", err)
	}

	s.logger.DebugWithFields("checkpoint saved", map[string]interface{}{
		"cursor":       cp.Cursor,
		"listing_done": cp.ListingDone,
	})

	return nil
}
