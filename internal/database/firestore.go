package database

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/keyxmakerx/chatboard/internal/config"
)

// NewFirestore opens a Firestore client from the service account fields in
// cfg and runs a one-document read to verify credentials.
func NewFirestore(ctx context.Context, cfg config.FirestoreConfig) (*firestore.Client, error) {
	creds, err := cfg.CredentialsJSON()
	if err != nil {
		return nil, fmt.Errorf("building firestore credentials: %w", err)
	}

	client, err := firestore.NewClient(ctx, cfg.ProjectID, option.WithCredentialsJSON(creds))
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := PingFirestore(pingCtx, client); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// PingFirestore reads at most one message document. An empty collection is
// a successful ping.
func PingFirestore(ctx context.Context, client *firestore.Client) error {
	iter := client.Collection("messages").Limit(1).Documents(ctx)
	defer iter.Stop()

	if _, err := iter.Next(); err != nil && err != iterator.Done {
		return fmt.Errorf("pinging firestore: %w", err)
	}
	return nil
}
