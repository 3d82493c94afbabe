package spamguard

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// windowDoc and banDoc mirror the documents in the spam_tracking and bans
// collections.
type windowDoc struct {
	Count            int       `firestore:"count"`
	FirstMessageTime time.Time `firestore:"firstMessageTime"`
}

type banDoc struct {
	ExpiresAt time.Time `firestore:"expiresAt"`
}

// FirestoreStore keeps one document per client in each of the two
// collections. Documents are never expired by Firestore itself; lapsed bans
// are deleted by the gate and stale windows are overwritten on reset.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore creates a store over an open client.
func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

// GetWindow implements Store.
func (s *FirestoreStore) GetWindow(ctx context.Context, clientID string) (*RateWindow, error) {
	snap, err := s.client.Collection(WindowCollection).Doc(clientID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading window document: %w", err)
	}

	var doc windowDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decoding window document: %w", err)
	}
	// A document created by a bare increment has no start time.
	if doc.FirstMessageTime.IsZero() {
		return nil, nil
	}
	return &RateWindow{Count: doc.Count, WindowStart: doc.FirstMessageTime}, nil
}

// PutWindow implements Store.
func (s *FirestoreStore) PutWindow(ctx context.Context, clientID string, w RateWindow) error {
	_, err := s.client.Collection(WindowCollection).Doc(clientID).Set(ctx, windowDoc{
		Count:            w.Count,
		FirstMessageTime: w.WindowStart,
	})
	if err != nil {
		return fmt.Errorf("writing window document: %w", err)
	}
	return nil
}

// IncrementWindow implements Store with a server-side increment transform.
func (s *FirestoreStore) IncrementWindow(ctx context.Context, clientID string) error {
	_, err := s.client.Collection(WindowCollection).Doc(clientID).Set(ctx,
		map[string]any{"count": firestore.Increment(1)},
		firestore.MergeAll,
	)
	if err != nil {
		return fmt.Errorf("incrementing window document: %w", err)
	}
	return nil
}

// GetBan implements Store.
func (s *FirestoreStore) GetBan(ctx context.Context, clientID string) (*Ban, error) {
	snap, err := s.client.Collection(BanCollection).Doc(clientID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading ban document: %w", err)
	}

	var doc banDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decoding ban document: %w", err)
	}
	return &Ban{ExpiresAt: doc.ExpiresAt}, nil
}

// PutBan implements Store.
func (s *FirestoreStore) PutBan(ctx context.Context, clientID string, b Ban) error {
	_, err := s.client.Collection(BanCollection).Doc(clientID).Set(ctx, banDoc{ExpiresAt: b.ExpiresAt})
	if err != nil {
		return fmt.Errorf("writing ban document: %w", err)
	}
	return nil
}

// DeleteBan implements Store. Firestore deletes of missing documents succeed.
func (s *FirestoreStore) DeleteBan(ctx context.Context, clientID string) error {
	if _, err := s.client.Collection(BanCollection).Doc(clientID).Delete(ctx); err != nil {
		return fmt.Errorf("deleting ban document: %w", err)
	}
	return nil
}
