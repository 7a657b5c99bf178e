package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"followcrawl/pkg/api"
	"followcrawl/pkg/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "followers.db")
	s, err := Open(path, "target_account", logger.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s
}

func testProfile(id string) *api.Profile {
	return &api.Profile{
		ID:             id,
		ScreenName:     "fan_" + id,
		DisplayName:    "Fan " + id,
		Bio:            "a bio",
		FollowersCount: 10,
		FriendsCount:   20,
		StatusesCount:  30,
	}
}

func TestUpsertFollowersIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	newCount, err := s.UpsertFollowers(ctx, []string{"1", "2", "3"})
	require.NoError(t, err)
	assert.Equal(t, 3, newCount)

	// Re-upserting the same identifiers must change nothing.
	newCount, err = s.UpsertFollowers(ctx, []string{"1", "2", "3"})
	require.NoError(t, err)
	assert.Equal(t, 0, newCount)

	counts, err := s.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, counts.Discovered)
	assert.Equal(t, 3, counts.Total())
}

func TestUpsertFollowersPartialOverlap(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertFollowers(ctx, []string{"1", "2"})
	require.NoError(t, err)

	newCount, err := s.UpsertFollowers(ctx, []string{"2", "3"})
	require.NoError(t, err)
	assert.Equal(t, 1, newCount)
}

func TestStatusNeverRegresses(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertFollowers(ctx, []string{"1", "2"})
	require.NoError(t, err)

	require.NoError(t, s.RecordProfile(ctx, "1", testProfile("1")))
	require.NoError(t, s.RecordProfileFailure(ctx, "2"))

	// The account was unfollowed and refollowed; the identifiers reappear
	// in a later listing page. Their statuses must survive the upsert.
	_, err = s.UpsertFollowers(ctx, []string{"1", "2"})
	require.NoError(t, err)

	status, err := s.FollowerStatus(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, StatusProfileFetched, status)

	status, err = s.FollowerStatus(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, StatusProfileFailed, status)
}

func TestRecordProfileLatestFetchWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertFollowers(ctx, []string{"1"})
	require.NoError(t, err)

	require.NoError(t, s.RecordProfile(ctx, "1", testProfile("1")))

	updated := testProfile("1")
	updated.DisplayName = "Renamed Fan"
	updated.FollowersCount = 99
	require.NoError(t, s.RecordProfile(ctx, "1", updated))

	var name string
	var followers int
	err = s.db.QueryRow(`SELECT display_name, followers_count FROM followers WHERE id = '1'`).
		Scan(&name, &followers)
	require.NoError(t, err)
	assert.Equal(t, "Renamed Fan", name)
	assert.Equal(t, 99, followers)
}

func TestRecordProfileUnknownFollower(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.RecordProfile(ctx, "nope", testProfile("nope"))
	assert.Error(t, err)

	err = s.RecordProfileFailure(ctx, "nope")
	assert.Error(t, err)
}

func TestCheckpointDefaultsToNotStarted(t *testing.T) {
	s := newTestStore(t)

	cp, err := s.LoadCheckpoint(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Checkpoint{}, cp)
}

func TestCheckpointSaveAndLoad(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveCheckpoint(ctx, Checkpoint{Cursor: "1590752905"}))

	cp, err := s.LoadCheckpoint(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1590752905", cp.Cursor)
	assert.False(t, cp.ListingDone)

	require.NoError(t, s.SaveCheckpoint(ctx, Checkpoint{Cursor: "0", ListingDone: true}))

	cp, err = s.LoadCheckpoint(ctx)
	require.NoError(t, err)
	assert.True(t, cp.ListingDone)
}

func TestCheckpointSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "followers.db")
	ctx := context.Background()

	s, err := Open(path, "target_account", logger.NewNopLogger())
	require.NoError(t, err)

	_, err = s.UpsertFollowers(ctx, []string{"1", "2"})
	require.NoError(t, err)
	require.NoError(t, s.SaveCheckpoint(ctx, Checkpoint{Cursor: "abc"}))
	require.NoError(t, s.Close())

	s, err = Open(path, "target_account", logger.NewNopLogger())
	require.NoError(t, err)
	defer s.Close()

	cp, err := s.LoadCheckpoint(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", cp.Cursor)

	counts, err := s.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Discovered)
}

func TestNextNeedingProfileInsertionOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertFollowers(ctx, []string{"30", "10", "20"})
	require.NoError(t, err)

	ids, err := s.NextNeedingProfile(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"30", "10", "20"}, ids)

	// Limit applies in the same order.
	ids, err = s.NextNeedingProfile(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"30", "10"}, ids)

	// Terminal records drop out of the pending set.
	require.NoError(t, s.RecordProfile(ctx, "30", testProfile("30")))
	require.NoError(t, s.RecordProfileFailure(ctx, "10"))

	ids, err = s.NextNeedingProfile(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"20"}, ids)
}

func TestSingleAccountPerStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "followers.db")

	s, err := Open(path, "first_account", logger.NewNopLogger())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open(path, "second_account", logger.NewNopLogger())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAccountMismatch))

	// Reopening for the original account still works.
	s, err = Open(path, "first_account", logger.NewNopLogger())
	require.NoError(t, err)
	s.Close()
}

func TestLockExcludesSecondProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "followers.db")

	s, err := Open(path, "target_account", logger.NewNopLogger())
	require.NoError(t, err)

	_, err = Open(path, "target_account", logger.NewNopLogger())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLocked))

	require.NoError(t, s.Close())

	// Lock is released on close.
	s, err = Open(path, "target_account", logger.NewNopLogger())
	require.NoError(t, err)
	s.Close()
}

func TestOpenExistingIgnoresLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "followers.db")
	ctx := context.Background()

	s, err := Open(path, "target_account", logger.NewNopLogger())
	require.NoError(t, err)
	defer s.Close()

	_, err = s.UpsertFollowers(ctx, []string{"1"})
	require.NoError(t, err)

	// Inspection opens succeed while the crawl holds the lock.
	ro, err := OpenExisting(path, logger.NewNopLogger())
	require.NoError(t, err)
	defer ro.Close()

	counts, err := ro.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Total())

	account, err := ro.Account()
	require.NoError(t, err)
	assert.Equal(t, "target_account", account)
}

func TestCountByStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertFollowers(ctx, []string{"1", "2", "3", "4"})
	require.NoError(t, err)

	require.NoError(t, s.RecordProfile(ctx, "1", testProfile("1")))
	require.NoError(t, s.RecordProfile(ctx, "2", testProfile("2")))
	require.NoError(t, s.RecordProfileFailure(ctx, "3"))

	counts, err := s.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{Discovered: 1, ProfileFetched: 2, ProfileFailed: 1}, counts)

	account, err := s.Account()
	require.NoError(t, err)
	assert.Equal(t, "target_account", account)
}
