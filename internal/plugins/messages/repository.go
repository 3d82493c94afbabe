package messages

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MessageRepository defines the data access contract for messages.
// All query code lives in the concrete implementations.
type MessageRepository interface {
	// Append stores a new message, assigning its ID and server timestamp.
	Append(ctx context.Context, m *Message) error

	// List returns every message, oldest first. Messages with equal
	// timestamps keep insertion order.
	List(ctx context.Context) ([]Message, error)
}

// mariaDBRepository implements MessageRepository with MariaDB queries.
type mariaDBRepository struct {
	db *sql.DB
}

// NewMariaDBRepository creates a new repository backed by the given DB pool.
func NewMariaDBRepository(db *sql.DB) MessageRepository {
	return &mariaDBRepository{db: db}
}

// Append inserts a message. The auto-increment seq column records insertion
// order for ties on created_at.
func (r *mariaDBRepository) Append(ctx context.Context, m *Message) error {
	query := `INSERT INTO messages (id, text, username, avatar, ip, created_at)
	          VALUES (?, ?, ?, ?, ?, ?)`

	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := time.Now().UTC()

	if _, err := r.db.ExecContext(ctx, query,
		m.ID, m.Text, m.Username, m.Avatar, m.IP, now,
	); err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}

	m.Timestamp = &now
	return nil
}

// List returns all messages ordered by creation time.
func (r *mariaDBRepository) List(ctx context.Context) ([]Message, error) {
	query := `SELECT id, text, username, avatar, ip, created_at
	          FROM messages
	          ORDER BY created_at ASC, seq ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var createdAt sql.NullTime
		if err := rows.Scan(&m.ID, &m.Text, &m.Username, &m.Avatar, &m.IP, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		if createdAt.Valid {
			t := createdAt.Time.UTC()
			m.Timestamp = &t
		}
		out = append(out, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}
	return out, nil
}
