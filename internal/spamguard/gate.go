package spamguard

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Gate decides whether a client may post. It holds no per-client state of
// its own; concurrent calls for the same client race on the store and can
// overshoot the limit by the number of in-flight requests.
type Gate struct {
	store  Store
	policy Policy
	now    Clock
}

// NewGate creates a gate over store. The policy is validated even when
// disabled so toggling it on later cannot surprise. MessageLimit must be at
// least 2: the first request of a window is always admitted, so a limit of 1
// would behave exactly like 2.
func NewGate(store Store, policy Policy) (*Gate, error) {
	if policy.MessageLimit < MinMessageLimit || policy.Window <= 0 || policy.BanDuration <= 0 {
		return nil, fmt.Errorf("%w: limit=%d window=%s ban=%s",
			ErrInvalidPolicy, policy.MessageLimit, policy.Window, policy.BanDuration)
	}
	return &Gate{store: store, policy: policy, now: time.Now}, nil
}

// WithClock replaces the gate's time source. Returns the gate for chaining.
func (g *Gate) WithClock(now Clock) *Gate {
	g.now = now
	return g
}

// Policy returns the gate's policy.
func (g *Gate) Policy() Policy {
	return g.policy
}

// Check runs Admit at the gate clock's current time.
func (g *Gate) Check(ctx context.Context, clientID string) (Verdict, error) {
	return g.Admit(ctx, clientID, g.now())
}

// Admit evaluates one request from clientID at now.
//
// Order: an active ban rejects with Banned; a lapsed ban is deleted and
// evaluation continues. Then the window: absent or expired windows restart
// at count 1; a request that would bring the count to MessageLimit creates a
// ban and is rejected with RateLimited; anything else increments the count.
func (g *Gate) Admit(ctx context.Context, clientID string, now time.Time) (Verdict, error) {
	if !g.policy.Enabled {
		return Verdict{Decision: Allowed}, nil
	}

	ban, err := g.store.GetBan(ctx, clientID)
	if err != nil {
		return Verdict{}, fmt.Errorf("loading ban: %w", err)
	}
	if ban != nil {
		if ban.Active(now) {
			return Verdict{Decision: Banned, RetryAfter: ban.ExpiresAt.Sub(now)}, nil
		}
		if err := g.store.DeleteBan(ctx, clientID); err != nil {
			return Verdict{}, fmt.Errorf("deleting lapsed ban: %w", err)
		}
		slog.Debug("ban lapsed", slog.String("client", clientID))
	}

	window, err := g.store.GetWindow(ctx, clientID)
	if err != nil {
		return Verdict{}, fmt.Errorf("loading rate window: %w", err)
	}

	// Strictly greater: a request exactly Window after WindowStart still
	// counts against the old window.
	if window == nil || now.Sub(window.WindowStart) > g.policy.Window {
		if err := g.store.PutWindow(ctx, clientID, RateWindow{Count: 1, WindowStart: now}); err != nil {
			return Verdict{}, fmt.Errorf("starting rate window: %w", err)
		}
		return Verdict{Decision: Allowed}, nil
	}

	if window.Count+1 >= g.policy.MessageLimit {
		expiresAt := now.Add(g.policy.BanDuration)
		if err := g.store.PutBan(ctx, clientID, Ban{ExpiresAt: expiresAt}); err != nil {
			return Verdict{}, fmt.Errorf("activating ban: %w", err)
		}
		slog.Info("ban activated",
			slog.String("client", clientID),
			slog.Int("count", window.Count+1),
			slog.Time("expires_at", expiresAt),
		)
		return Verdict{Decision: RateLimited, RetryAfter: g.policy.BanDuration}, nil
	}

	if err := g.store.IncrementWindow(ctx, clientID); err != nil {
		return Verdict{}, fmt.Errorf("incrementing rate window: %w", err)
	}
	return Verdict{Decision: Allowed}, nil
}
