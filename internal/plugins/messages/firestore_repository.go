package messages

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
)

// firestoreRepository implements MessageRepository over the messages
// collection. Timestamps are assigned by the server.
type firestoreRepository struct {
	client *firestore.Client
}

// NewFirestoreRepository creates a repository over an open client.
func NewFirestoreRepository(client *firestore.Client) MessageRepository {
	return &firestoreRepository{client: client}
}

// Append adds a document with an auto-generated ID. The commit time of the
// write is the value the server stored for the timestamp transform.
func (r *firestoreRepository) Append(ctx context.Context, m *Message) error {
	ref, result, err := r.client.Collection(Collection).Add(ctx, map[string]any{
		"text":      m.Text,
		"username":  m.Username,
		"avatar":    m.Avatar,
		"timestamp": firestore.ServerTimestamp,
		"ip":        m.IP,
	})
	if err != nil {
		return fmt.Errorf("adding message document: %w", err)
	}

	m.ID = ref.ID
	if result != nil && !result.UpdateTime.IsZero() {
		ts := result.UpdateTime.UTC()
		m.Timestamp = &ts
	}
	return nil
}

// List reads the whole collection ordered by timestamp. Field access is
// loose on purpose: older documents may lack avatar or ip.
func (r *firestoreRepository) List(ctx context.Context) ([]Message, error) {
	docs, err := r.client.Collection(Collection).
		OrderBy("timestamp", firestore.Asc).
		Documents(ctx).
		GetAll()
	if err != nil {
		return nil, fmt.Errorf("listing message documents: %w", err)
	}

	out := make([]Message, 0, len(docs))
	for _, doc := range docs {
		data := doc.Data()
		m := Message{
			ID:       doc.Ref.ID,
			Text:     stringField(data, "text"),
			Username: stringField(data, "username"),
			Avatar:   stringField(data, "avatar"),
			IP:       stringField(data, "ip"),
		}
		if ts, ok := data["timestamp"].(time.Time); ok {
			ts = ts.UTC()
			m.Timestamp = &ts
		}
		out = append(out, m)
	}
	return out, nil
}

// stringField returns data[key] if it is a string, otherwise "".
func stringField(data map[string]any, key string) string {
	s, _ := data[key].(string)
	return s
}
