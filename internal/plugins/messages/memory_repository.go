package messages

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memoryRepository keeps messages in a slice. Development and tests only.
type memoryRepository struct {
	mu       sync.Mutex
	messages []Message
	now      func() time.Time
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() MessageRepository {
	return &memoryRepository{now: time.Now}
}

// Append implements MessageRepository.
func (r *memoryRepository) Append(_ context.Context, m *Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	ts := r.now().UTC()
	m.Timestamp = &ts
	r.messages = append(r.messages, *m)
	return nil
}

// List implements MessageRepository. The stable sort keeps insertion order
// for equal timestamps even if the clock stepped backwards.
func (r *memoryRepository) List(_ context.Context) ([]Message, error) {
	r.mu.Lock()
	out := slices.Clone(r.messages)
	r.mu.Unlock()

	slices.SortStableFunc(out, func(a, b Message) int {
		return a.Timestamp.Compare(*b.Timestamp)
	})
	return out, nil
}
