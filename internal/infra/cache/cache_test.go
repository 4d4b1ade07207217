package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ImGenos/Dm-Placards/internal/core/domain"
)

func snapshot(placeID string) *domain.PlaceSnapshot {
	return &domain.PlaceSnapshot{
		Name:         "Dm Placards",
		Rating:       4.8,
		TotalRatings: 27,
		PlaceID:      placeID,
		Reviews:      []domain.Review{{AuthorName: "a", Rating: 5, Time: 100}},
	}
}

func newTestStore(t *testing.T, opts ...Option) (*Store, *MemoryKV) {
	t.Helper()
	kv := NewMemoryKV()
	return NewStore(kv, opts...), kv
}

func TestStore_RoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	store.Set(ctx, "p1", snapshot("p1"), 120*time.Millisecond)

	got, err := store.Get(ctx, "p1", false)
	require.NoError(t, err)
	assert.Equal(t, "Dm Placards", got.Name)
	assert.Equal(t, "p1", got.PlaceID)
	assert.Len(t, got.Reviews, 1)
}

func TestStore_MissOnUnknownKey(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Get(context.Background(), "nope", false)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_VersionMismatchDeleted(t *testing.T) {
	store, kv := newTestStore(t)
	ctx := context.Background()

	entry := Entry{
		Snapshot:  *snapshot("p1"),
		CreatedAt: time.Now().UnixMilli(),
		ExpiresAt: time.Now().Add(time.Hour).UnixMilli(),
		Version:   "0.9",
	}
	raw, err := json.Marshal(entry)
	require.NoError(t, err)
	require.NoError(t, kv.Set(ctx, KeyPrefix+"p1", string(raw)))

	_, err = store.Get(ctx, "p1", true)
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleted eagerly as a side effect, even with allowStale.
	_, err = kv.Get(ctx, KeyPrefix+"p1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ExpiredEntryDeletedWhenFreshRequired(t *testing.T) {
	now := time.Now()
	clock := now
	store, kv := newTestStore(t, WithClock(func() time.Time { return clock }))
	ctx := context.Background()

	store.Set(ctx, "p1", snapshot("p1"), 0)
	clock = now.Add(DefaultTTL + time.Second)

	_, err := store.Get(ctx, "p1", false)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = kv.Get(ctx, KeyPrefix+"p1")
	assert.ErrorIs(t, err, ErrNotFound, "expired entry must be deleted on read")
}

func TestStore_StaleReadAllowed(t *testing.T) {
	now := time.Now()
	clock := now
	store, _ := newTestStore(t, WithClock(func() time.Time { return clock }))
	ctx := context.Background()

	store.Set(ctx, "p1", snapshot("p1"), 0)
	clock = now.Add(DefaultTTL + time.Hour)

	got, err := store.Get(ctx, "p1", true)
	require.NoError(t, err)
	assert.Equal(t, "p1", got.PlaceID)
}

func TestStore_CorruptEntrySelfHeals(t *testing.T) {
	store, kv := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, KeyPrefix+"p1", "{not json"))

	_, err := store.Get(ctx, "p1", true)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = kv.Get(ctx, KeyPrefix+"p1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_MissingFieldsDeleted(t *testing.T) {
	store, kv := newTestStore(t)
	ctx := context.Background()

	// Structurally valid JSON missing the snapshot place ID.
	require.NoError(t, kv.Set(ctx, KeyPrefix+"p1",
		fmt.Sprintf(`{"snapshot":{},"created_at":1,"expires_at":2,"version":%q}`, Version)))

	_, err := store.Get(ctx, "p1", true)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = kv.Get(ctx, KeyPrefix+"p1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_EvictsOldestAtCapacity(t *testing.T) {
	now := time.Now()
	clock := now
	store, kv := newTestStore(t, WithClock(func() time.Time { return clock }), WithMaxEntries(3))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("p%d", i)
		store.Set(ctx, id, snapshot(id), 0)
		clock = clock.Add(time.Minute)
	}

	// Fourth write evicts p0, the oldest by creation time.
	store.Set(ctx, "p3", snapshot("p3"), 0)

	_, err := kv.Get(ctx, KeyPrefix+"p0")
	assert.ErrorIs(t, err, ErrNotFound, "oldest entry must be evicted")

	keys, err := kv.Keys(ctx, KeyPrefix)
	require.NoError(t, err)
	assert.Len(t, keys, 3)
}

func TestStore_ShouldRefresh(t *testing.T) {
	now := time.Now()
	clock := now
	store, _ := newTestStore(t, WithClock(func() time.Time { return clock }))
	ctx := context.Background()

	assert.True(t, store.ShouldRefresh(ctx, "missing"), "absent entry needs refresh")

	store.Set(ctx, "p1", snapshot("p1"), 0)
	assert.False(t, store.ShouldRefresh(ctx, "p1"), "fresh entry needs no refresh")

	clock = now.Add(DefaultTTL - RefreshWindow + time.Minute)
	assert.True(t, store.ShouldRefresh(ctx, "p1"), "entry near expiry needs refresh")
}

func TestStore_PeekKeepsExpiredEntryForStaleTier(t *testing.T) {
	now := time.Now()
	clock := now
	store, kv := newTestStore(t, WithClock(func() time.Time { return clock }))
	ctx := context.Background()

	store.Set(ctx, "p1", snapshot("p1"), 0)
	clock = now.Add(DefaultTTL + time.Minute)

	_, err := store.Peek(ctx, "p1")
	assert.ErrorIs(t, err, ErrNotFound, "expired entry is not fresh")

	// Unlike Get, Peek must not delete the expired entry.
	_, err = kv.Get(ctx, KeyPrefix+"p1")
	require.NoError(t, err)

	// The stale tier can still serve it.
	got, err := store.Get(ctx, "p1", true)
	require.NoError(t, err)
	assert.Equal(t, "p1", got.PlaceID)
}

// quotaKV rejects writes until a delete frees space, mimicking a full
// storage backend.
type quotaKV struct {
	*MemoryKV
	full bool
}

func (q *quotaKV) Set(ctx context.Context, key, value string) error {
	if q.full {
		return ErrQuotaExceeded
	}
	return q.MemoryKV.Set(ctx, key, value)
}

func (q *quotaKV) Delete(ctx context.Context, key string) error {
	q.full = false
	return q.MemoryKV.Delete(ctx, key)
}

func TestStore_QuotaExceededPurgesAndRetries(t *testing.T) {
	now := time.Now()
	clock := now
	kv := &quotaKV{MemoryKV: NewMemoryKV()}
	store := NewStore(kv, WithClock(func() time.Time { return clock }))
	ctx := context.Background()

	store.Set(ctx, "old", snapshot("old"), 0)
	clock = now.Add(DefaultTTL + time.Hour) // "old" is now expired
	kv.full = true

	// Must not panic or error out; purge of the expired entry frees
	// space and the retried write lands.
	store.Set(ctx, "p1", snapshot("p1"), 0)

	got, err := store.Get(ctx, "p1", false)
	require.NoError(t, err)
	assert.Equal(t, "p1", got.PlaceID)
}

func TestStore_QuotaExceededSwallowedWhenPurgeDoesNotHelp(t *testing.T) {
	kv := &quotaKV{MemoryKV: NewMemoryKV()}
	store := NewStore(kv)
	ctx := context.Background()

	kv.full = true
	store.Set(ctx, "p1", snapshot("p1"), 0) // nothing expired to purge

	// Write may be lost; a subsequent read simply misses.
	snapGot, err := store.Get(ctx, "p1", false)
	if err == nil {
		assert.Equal(t, "p1", snapGot.PlaceID)
	}
}

func TestStore_ClearAndInfos(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	store.Set(ctx, "p1", snapshot("p1"), 80*time.Millisecond)
	store.Set(ctx, "p2", snapshot("p2"), 0)

	infos := store.Infos(ctx)
	assert.Len(t, infos, 2)

	store.Clear(ctx, "p1")
	assert.Len(t, store.Infos(ctx), 1)

	store.ClearAll(ctx)
	assert.Empty(t, store.Infos(ctx))
}

func TestStore_ReturnedSnapshotIsACopy(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	store.Set(ctx, "p1", snapshot("p1"), 0)

	first, err := store.Get(ctx, "p1", false)
	require.NoError(t, err)
	first.Reviews[0].AuthorName = "mutated"

	second, err := store.Get(ctx, "p1", false)
	require.NoError(t, err)
	assert.Equal(t, "a", second.Reviews[0].AuthorName)
}
