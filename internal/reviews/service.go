// Package reviews orchestrates review fetching: cache lookup, connectivity
// gating, rate-limited retried fetches and the multi-tier fallback chain
// (live API, fresh cache, stale cache, fixed fallback content).
package reviews

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ImGenos/Dm-Placards/internal/core/domain"
	"github.com/ImGenos/Dm-Placards/internal/infra/cache"
)

const (
	// DefaultMinRating filters out reviews below this rating.
	DefaultMinRating = 4

	// DefaultMaxReviews caps the snapshot's review list.
	DefaultMaxReviews = 10

	// DefaultOfflineWait is how long a fetch waits for connectivity to
	// come back before giving up on the live path.
	DefaultOfflineWait = 5 * time.Second

	// fetchBudget bounds one coalesced live fetch end to end, covering
	// the offline wait, all retry attempts and their backoff delays.
	fetchBudget = 90 * time.Second
)

// Fetcher fetches a snapshot from the upstream API.
type Fetcher interface {
	PlaceDetails(ctx context.Context, placeID string) (*domain.PlaceSnapshot, error)
}

// NetworkMonitor is the connectivity surface the orchestrator needs.
type NetworkMonitor interface {
	ConnectivityChecker
	Probe(ctx context.Context) error
}

// Config holds orchestrator settings.
type Config struct {
	// PlaceID is the default place when the caller passes none.
	PlaceID string

	// APIKey is only checked for presence here; the fetcher sends it.
	APIKey string

	MinRating   float64
	MaxReviews  int
	OfflineWait time.Duration
	Retry       Policy
}

// Service is the failure-absorbing entry point for review data. Every
// state it owns is explicit: cache handle, limiter, recorder, in-flight
// group. GetPlaceDetails never fails.
type Service struct {
	cfg      Config
	fetcher  Fetcher
	store    *cache.Store
	net      NetworkMonitor
	limiter  *Limiter
	recorder *Recorder
	group    singleflight.Group
	log      *slog.Logger
}

// New wires an orchestrator. Zero-valued config fields get defaults.
func New(cfg Config, fetcher Fetcher, store *cache.Store, net NetworkMonitor) *Service {
	if cfg.MinRating == 0 {
		cfg.MinRating = DefaultMinRating
	}
	if cfg.MaxReviews == 0 {
		cfg.MaxReviews = DefaultMaxReviews
	}
	if cfg.OfflineWait == 0 {
		cfg.OfflineWait = DefaultOfflineWait
	}
	if cfg.Retry == (Policy{}) {
		cfg.Retry = DefaultPolicy
	}

	return &Service{
		cfg:      cfg,
		fetcher:  fetcher,
		store:    store,
		net:      net,
		limiter:  NewLimiter(0),
		recorder: NewRecorder(),
		log:      slog.Default().With("component", "reviews"),
	}
}

// Close releases the limiter worker.
func (s *Service) Close() {
	s.limiter.Close()
}

// GetPlaceDetails returns the review snapshot for a place. It always
// returns a usable snapshot: live data when possible, otherwise fresh
// cache, stale cache, or the fixed fallback content. It never returns an
// error.
//
// A fresh cache hit wins over the network; when the hit is close to
// expiry a background refresh is kicked off so the next caller gets
// newer data without this caller paying for it.
func (s *Service) GetPlaceDetails(ctx context.Context, placeID string) *domain.PlaceSnapshot {
	if placeID == "" {
		placeID = s.cfg.PlaceID
	}
	start := time.Now()

	if snap, err := s.store.Peek(ctx, placeID); err == nil {
		CacheEvents.WithLabelValues("hit").Inc()
		s.recorder.Record(placeID, OutcomeCache, time.Since(start))
		if s.store.ShouldRefresh(ctx, placeID) {
			go s.backgroundRefresh(placeID)
		}
		snap.Source = OutcomeCache
		return snap
	}
	CacheEvents.WithLabelValues("miss").Inc()

	if s.cfg.APIKey == "" || placeID == "" {
		s.log.Warn("missing API key or place ID, serving fallback content")
		s.recorder.Record(placeID, OutcomeFallback, time.Since(start))
		return FallbackSnapshot()
	}

	snap, err := s.fetchCoalesced(ctx, placeID)
	if err == nil {
		s.recorder.Record(placeID, OutcomeLive, time.Since(start))
		return snap
	}

	desc := domain.Classify(err, s.net == nil || s.net.Online(ctx))
	s.log.Warn("live fetch failed",
		"place_id", placeID,
		"kind", desc.Kind.String(),
		"user_message", desc.UserMessage,
		"error", err)

	if stale, serr := s.store.Get(ctx, placeID, true); serr == nil {
		CacheEvents.WithLabelValues("stale_hit").Inc()
		s.log.Warn("serving stale cached reviews", "place_id", placeID)
		s.recorder.Record(placeID, OutcomeStale, time.Since(start))
		stale.Source = OutcomeStale
		return stale
	}

	s.recorder.Record(placeID, OutcomeFallback, time.Since(start))
	return FallbackSnapshot()
}

// fetchCoalesced deduplicates concurrent fetches for the same place ID:
// callers racing on one key share a single upstream fetch. The shared
// fetch runs on a detached context so one caller's cancellation does not
// fail the others.
func (s *Service) fetchCoalesced(ctx context.Context, placeID string) (*domain.PlaceSnapshot, error) {
	v, err, _ := s.group.Do(placeID, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchBudget)
		defer cancel()
		return s.fetchLive(fctx, placeID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.PlaceSnapshot).Clone(), nil
}

// fetchLive performs one gated, rate-limited, retried upstream fetch and
// writes the result through to the cache.
func (s *Service) fetchLive(ctx context.Context, placeID string) (*domain.PlaceSnapshot, error) {
	if s.net != nil {
		if !s.net.Online(ctx) && !s.net.WaitOnline(ctx, s.cfg.OfflineWait) {
			return nil, &domain.PlacesError{Kind: domain.KindOffline, Message: "offline at fetch time"}
		}
		if err := s.net.Probe(ctx); err != nil {
			return nil, &domain.PlacesError{Kind: domain.KindNetwork, Message: "connectivity probe failed", Err: err}
		}
	}

	start := time.Now()
	var snap *domain.PlaceSnapshot

	err := Retry(ctx, s.cfg.Retry, s.net, func(ctx context.Context) error {
		var attemptErr error
		if lerr := s.limiter.Do(ctx, func() {
			got, ferr := s.fetcher.PlaceDetails(ctx, placeID)
			if ferr != nil {
				attemptErr = ferr
				return
			}
			snap = got
		}); lerr != nil {
			return lerr
		}
		return attemptErr
	})
	if err != nil {
		return nil, err
	}

	snap.Reviews = domain.SelectReviews(snap.Reviews, s.cfg.MinRating, s.cfg.MaxReviews)
	if snap.PlaceID == "" {
		snap.PlaceID = placeID
	}

	fetchDuration := time.Since(start)
	s.store.Set(ctx, placeID, snap, fetchDuration)
	CacheEvents.WithLabelValues("write").Inc()

	s.log.Info("fetched live reviews",
		"place_id", placeID,
		"reviews", len(snap.Reviews),
		"rating", snap.Rating,
		"duration", fetchDuration)

	snap.Source = OutcomeLive
	return snap, nil
}

// backgroundRefresh revalidates a near-expiry entry without blocking the
// caller that triggered it. Coalesced with any foreground fetch for the
// same key.
func (s *Service) backgroundRefresh(placeID string) {
	if s.cfg.APIKey == "" || placeID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), fetchBudget)
	defer cancel()

	if _, err := s.fetchCoalesced(ctx, placeID); err != nil {
		s.log.Debug("background refresh failed", "place_id", placeID, "error", err)
		return
	}
	s.log.Debug("background refresh completed", "place_id", placeID)
}

// GetCachedReviews reads the cache directly. With allowStale true an
// expired but structurally valid entry is returned.
func (s *Service) GetCachedReviews(ctx context.Context, placeID string, allowStale bool) (*domain.PlaceSnapshot, bool) {
	if placeID == "" {
		placeID = s.cfg.PlaceID
	}
	snap, err := s.store.Get(ctx, placeID, allowStale)
	if err != nil {
		return nil, false
	}
	return snap, true
}

// SetCachedReviews writes a snapshot into the cache. Best-effort: storage
// failures are swallowed by the store.
func (s *Service) SetCachedReviews(ctx context.Context, placeID string, snap *domain.PlaceSnapshot, fetchDuration time.Duration) {
	if placeID == "" {
		placeID = s.cfg.PlaceID
	}
	s.store.Set(ctx, placeID, snap, fetchDuration)
}

// ClearCache deletes one place's entry, or everything under the module's
// prefix when placeID is empty.
func (s *Service) ClearCache(ctx context.Context, placeID string) {
	if placeID == "" {
		s.store.ClearAll(ctx)
		return
	}
	s.store.Clear(ctx, placeID)
}

// ShouldRefreshCache reports whether the entry for a place is absent or
// close enough to expiry to warrant a refresh.
func (s *Service) ShouldRefreshCache(ctx context.Context, placeID string) bool {
	if placeID == "" {
		placeID = s.cfg.PlaceID
	}
	return s.store.ShouldRefresh(ctx, placeID)
}

// CacheInfo lists stored entries for diagnostics.
func (s *Service) CacheInfo(ctx context.Context) []cache.Info {
	return s.store.Infos(ctx)
}

// PerformanceStats returns aggregate request statistics.
func (s *Service) PerformanceStats() Stats {
	return s.recorder.Stats()
}
