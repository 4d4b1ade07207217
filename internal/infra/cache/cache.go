// Package cache stores review snapshots in a durable key-value backend
// with a fixed TTL, a format version tag and oldest-first eviction.
//
// The store is best-effort: reads self-heal by deleting corrupt, outdated
// or expired entries, and write failures never surface to the caller.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/ImGenos/Dm-Placards/internal/core/domain"
)

const (
	// Version tags the serialized entry format. Bumping it invalidates
	// every existing entry on next read.
	Version = "1.2"

	// KeyPrefix namespaces this module's entries in the shared backend.
	KeyPrefix = "dm_placards_reviews:"

	// DefaultTTL is how long an entry stays fresh.
	DefaultTTL = 24 * time.Hour

	// DefaultMaxEntries caps how many place IDs may coexist before the
	// oldest entry is evicted.
	DefaultMaxEntries = 10

	// RefreshWindow is how close to expiry an entry may get before
	// ShouldRefresh starts asking for a background revalidation.
	RefreshWindow = 2 * time.Hour
)

var (
	// ErrNotFound is returned when no usable entry exists for a key.
	ErrNotFound = errors.New("cache: entry not found")

	// ErrQuotaExceeded signals a backend refusing writes for lack of
	// space. Backends map their native error onto this sentinel.
	ErrQuotaExceeded = errors.New("cache: storage quota exceeded")
)

// KV is the durable key-value backend the store persists into.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Entry wraps a snapshot with bookkeeping. Timestamps are unix
// milliseconds.
type Entry struct {
	Snapshot  domain.PlaceSnapshot `json:"snapshot"`
	CreatedAt int64                `json:"created_at"`
	ExpiresAt int64                `json:"expires_at"`
	Version   string               `json:"version"`
	FetchMS   int64                `json:"fetch_ms,omitempty"`
}

// Info describes one stored entry for diagnostics.
type Info struct {
	PlaceID   string    `json:"place_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Stale     bool      `json:"stale"`
	FetchMS   int64     `json:"fetch_ms,omitempty"`
}

// Store validates, versions and evicts entries on top of a KV backend.
type Store struct {
	kv         KV
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	log        *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithTTL overrides the entry TTL.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithMaxEntries overrides the entry cap.
func WithMaxEntries(n int) Option {
	return func(s *Store) { s.maxEntries = n }
}

// WithClock injects a clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a store over the given backend.
func NewStore(kv KV, opts ...Option) *Store {
	s := &Store{
		kv:         kv,
		ttl:        DefaultTTL,
		maxEntries: DefaultMaxEntries,
		now:        time.Now,
		log:        slog.Default().With("component", "cache"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func key(placeID string) string {
	return KeyPrefix + placeID
}

// Get returns the snapshot for a place ID. With allowStale false an
// expired entry is a miss. Entries failing structural validation or
// carrying a different format version are deleted eagerly and reported as
// a miss.
func (s *Store) Get(ctx context.Context, placeID string, allowStale bool) (*domain.PlaceSnapshot, error) {
	raw, err := s.kv.Get(ctx, key(placeID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		s.log.Warn("cache read failed", "place_id", placeID, "error", err)
		return nil, ErrNotFound
	}

	entry, ok := s.decode(ctx, placeID, raw)
	if !ok {
		return nil, ErrNotFound
	}

	if !allowStale && s.now().UnixMilli() >= entry.ExpiresAt {
		s.log.Debug("cache entry expired", "place_id", placeID)
		s.delete(ctx, placeID)
		return nil, ErrNotFound
	}

	return entry.Snapshot.Clone(), nil
}

// Peek returns the snapshot only while the entry is fresh, without
// deleting it once expired. The orchestrator reads through Peek so an
// expired entry survives for the stale fallback tier; the eager delete of
// expired entries stays on the explicit Get path. Corrupt and
// version-mismatched entries are still removed.
func (s *Store) Peek(ctx context.Context, placeID string) (*domain.PlaceSnapshot, error) {
	entry, err := s.GetEntry(ctx, placeID)
	if err != nil {
		return nil, ErrNotFound
	}
	if s.now().UnixMilli() >= entry.ExpiresAt {
		return nil, ErrNotFound
	}
	return entry.Snapshot.Clone(), nil
}

// GetEntry returns the raw entry, stale or not, without side effects on
// freshness. Used for diagnostics and staleness decisions.
func (s *Store) GetEntry(ctx context.Context, placeID string) (*Entry, error) {
	raw, err := s.kv.Get(ctx, key(placeID))
	if err != nil {
		return nil, ErrNotFound
	}
	entry, ok := s.decode(ctx, placeID, raw)
	if !ok {
		return nil, ErrNotFound
	}
	return entry, nil
}

// decode parses and validates a raw record, deleting it on any defect.
func (s *Store) decode(ctx context.Context, placeID, raw string) (*Entry, bool) {
	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		s.log.Warn("cache entry corrupt, deleting", "place_id", placeID, "error", err)
		s.delete(ctx, placeID)
		return nil, false
	}
	if entry.Version == "" || entry.CreatedAt == 0 || entry.ExpiresAt == 0 || entry.Snapshot.PlaceID == "" {
		s.log.Warn("cache entry missing required fields, deleting", "place_id", placeID)
		s.delete(ctx, placeID)
		return nil, false
	}
	if entry.Version != Version {
		s.log.Info("cache entry version mismatch, deleting",
			"place_id", placeID, "entry_version", entry.Version, "want", Version)
		s.delete(ctx, placeID)
		return nil, false
	}
	return &entry, true
}

// Set stores a snapshot, evicting the oldest entry first when the cap is
// reached. Write failures are swallowed; on a quota failure the store
// purges expired entries once and retries the write a single time.
func (s *Store) Set(ctx context.Context, placeID string, snap *domain.PlaceSnapshot, fetchDuration time.Duration) {
	if snap == nil || placeID == "" {
		return
	}

	s.evictIfOverCapacity(ctx)

	now := s.now()
	entry := Entry{
		Snapshot:  *snap.Clone(),
		CreatedAt: now.UnixMilli(),
		ExpiresAt: now.Add(s.ttl).UnixMilli(),
		Version:   Version,
		FetchMS:   fetchDuration.Milliseconds(),
	}
	entry.Snapshot.Source = ""

	raw, err := json.Marshal(entry)
	if err != nil {
		s.log.Warn("cache entry marshal failed", "place_id", placeID, "error", err)
		return
	}

	err = s.kv.Set(ctx, key(placeID), string(raw))
	if errors.Is(err, ErrQuotaExceeded) {
		s.log.Warn("cache quota exceeded, purging expired entries", "place_id", placeID)
		s.purgeExpired(ctx)
		err = s.kv.Set(ctx, key(placeID), string(raw))
	}
	if err != nil {
		s.log.Warn("cache write failed", "place_id", placeID, "error", err)
	}
}

// ShouldRefresh reports whether the entry for a place ID is absent or
// within the refresh window of its expiry.
func (s *Store) ShouldRefresh(ctx context.Context, placeID string) bool {
	entry, err := s.GetEntry(ctx, placeID)
	if err != nil {
		return true
	}
	return s.now().UnixMilli() >= entry.ExpiresAt-RefreshWindow.Milliseconds()
}

// Clear deletes the entry for one place ID.
func (s *Store) Clear(ctx context.Context, placeID string) {
	s.delete(ctx, placeID)
}

// ClearAll deletes every entry under this module's prefix.
func (s *Store) ClearAll(ctx context.Context) {
	keys, err := s.kv.Keys(ctx, KeyPrefix)
	if err != nil {
		s.log.Warn("cache key scan failed", "error", err)
		return
	}
	for _, k := range keys {
		if err := s.kv.Delete(ctx, k); err != nil {
			s.log.Warn("cache delete failed", "key", k, "error", err)
		}
	}
}

// Infos lists stored entries for diagnostics. Corrupt entries are skipped,
// not deleted, so listing stays read-only.
func (s *Store) Infos(ctx context.Context) []Info {
	keys, err := s.kv.Keys(ctx, KeyPrefix)
	if err != nil {
		s.log.Warn("cache key scan failed", "error", err)
		return nil
	}

	nowMS := s.now().UnixMilli()
	infos := make([]Info, 0, len(keys))
	for _, k := range keys {
		raw, err := s.kv.Get(ctx, k)
		if err != nil {
			continue
		}
		var entry Entry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			continue
		}
		infos = append(infos, Info{
			PlaceID:   entry.Snapshot.PlaceID,
			CreatedAt: time.UnixMilli(entry.CreatedAt),
			ExpiresAt: time.UnixMilli(entry.ExpiresAt),
			Stale:     nowMS >= entry.ExpiresAt,
			FetchMS:   entry.FetchMS,
		})
	}
	return infos
}

// evictIfOverCapacity removes the single oldest entry (by creation time)
// when the cap is reached. One eviction per write, not a bulk sweep.
func (s *Store) evictIfOverCapacity(ctx context.Context) {
	keys, err := s.kv.Keys(ctx, KeyPrefix)
	if err != nil || len(keys) < s.maxEntries {
		return
	}

	oldestKey := ""
	oldestCreated := int64(0)
	for _, k := range keys {
		raw, err := s.kv.Get(ctx, k)
		if err != nil {
			continue
		}
		var entry Entry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			// Corrupt entries are the cheapest eviction candidates.
			s.log.Warn("evicting corrupt cache entry", "key", k)
			_ = s.kv.Delete(ctx, k)
			return
		}
		if oldestKey == "" || entry.CreatedAt < oldestCreated {
			oldestKey = k
			oldestCreated = entry.CreatedAt
		}
	}

	if oldestKey != "" {
		s.log.Info("cache at capacity, evicting oldest entry", "key", oldestKey)
		_ = s.kv.Delete(ctx, oldestKey)
	}
}

// purgeExpired deletes every already-expired entry under the prefix.
func (s *Store) purgeExpired(ctx context.Context) {
	keys, err := s.kv.Keys(ctx, KeyPrefix)
	if err != nil {
		return
	}
	nowMS := s.now().UnixMilli()
	for _, k := range keys {
		raw, err := s.kv.Get(ctx, k)
		if err != nil {
			continue
		}
		var entry Entry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil || nowMS >= entry.ExpiresAt {
			_ = s.kv.Delete(ctx, k)
		}
	}
}

func (s *Store) delete(ctx context.Context, placeID string) {
	if err := s.kv.Delete(ctx, key(placeID)); err != nil {
		s.log.Warn("cache delete failed", "place_id", placeID, "error", err)
	}
}
