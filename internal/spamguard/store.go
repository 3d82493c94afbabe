package spamguard

import (
	"context"
	"time"
)

// Collection names shared by every backend: Firestore collections, Redis
// key prefixes.
const (
	WindowCollection = "spam_tracking"
	BanCollection    = "bans"
)

// Store persists RateWindow and Ban records keyed by client identifier.
// Getters return (nil, nil) when the record does not exist. No method is
// expected to be transactional with any other.
type Store interface {
	// GetWindow loads the client's window.
	GetWindow(ctx context.Context, clientID string) (*RateWindow, error)

	// PutWindow creates or overwrites the client's window.
	PutWindow(ctx context.Context, clientID string, w RateWindow) error

	// IncrementWindow atomically adds one to the client's window count.
	IncrementWindow(ctx context.Context, clientID string) error

	// GetBan loads the client's ban.
	GetBan(ctx context.Context, clientID string) (*Ban, error)

	// PutBan creates or overwrites the client's ban.
	PutBan(ctx context.Context, clientID string, b Ban) error

	// DeleteBan removes the client's ban. Deleting a missing ban is not an error.
	DeleteBan(ctx context.Context, clientID string) error
}

// Clock returns the current time. Swapped out in tests.
type Clock func() time.Time
