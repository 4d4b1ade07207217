package reviews

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/ImGenos/Dm-Placards/internal/core/domain"
)

// Policy defines retry behavior.
type Policy struct {
	MaxRetries  int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	OfflineWait time.Duration
}

// DefaultPolicy provides sensible defaults.
var DefaultPolicy = Policy{
	MaxRetries:  3,
	BaseDelay:   1 * time.Second,
	MaxDelay:    30 * time.Second,
	OfflineWait: 10 * time.Second,
}

// ConnectivityChecker is the slice of the network monitor the retry engine
// needs.
type ConnectivityChecker interface {
	Online(ctx context.Context) bool
	WaitOnline(ctx context.Context, timeout time.Duration) bool
}

// Retry runs op with bounded retries and exponential backoff plus jitter.
// Non-retryable failures return immediately. The classifier's suggested
// delay, when present, overrides the computed backoff. Before re-attempting
// while offline, the engine waits for an online transition up to the
// policy's offline budget without consuming a retry; if that wait times
// out the call fails with an offline error.
func Retry(ctx context.Context, policy Policy, net ConnectivityChecker, op func(ctx context.Context) error) error {
	log := slog.Default().With("component", "retry")

	var lastErr error
	for attempt := 0; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		online := net == nil || net.Online(ctx)
		desc := domain.Classify(err, online)
		UpstreamErrors.WithLabelValues(desc.Kind.String()).Inc()

		if !desc.Retryable {
			return err
		}
		if attempt >= policy.MaxRetries {
			return fmt.Errorf("failed after %d attempts: %w", attempt+1, lastErr)
		}

		delay := backoffDelay(attempt, policy)
		if desc.RetryAfter > 0 {
			// The classifier's suggestion wins, bounded by the policy cap.
			delay = desc.RetryAfter
			if delay > policy.MaxDelay {
				delay = policy.MaxDelay
			}
		}

		log.Info("retrying fetch",
			"attempt", attempt+1,
			"delay", delay,
			"kind", desc.Kind.String(),
			"error", desc.Message)
		RetryAttempts.Inc()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		if net != nil && !net.Online(ctx) {
			if !net.WaitOnline(ctx, policy.OfflineWait) {
				return &domain.PlacesError{
					Kind:    domain.KindOffline,
					Message: "still offline after waiting for reconnection",
					Err:     lastErr,
				}
			}
		}
	}
}

// backoffDelay computes min(base * 2^attempt, max) plus up to 10% jitter.
func backoffDelay(attempt int, policy Policy) time.Duration {
	delay := float64(policy.BaseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(policy.MaxDelay) {
		delay = float64(policy.MaxDelay)
	}
	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}
