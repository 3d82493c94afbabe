// Package messages is the message board plugin: it lists messages and
// accepts new ones behind the spam guard. Handlers bind and render, the
// service owns validation and policy, repositories own persistence.
//
// Messages are append-only. Text, username and avatar are escaped once on
// the way in and returned verbatim on the way out.
package messages

import "time"

// Field limits, in characters, measured before escaping.
const (
	MaxTextLength     = 100
	MaxUsernameLength = 10
	MaxAvatarLength   = 100
)

// Defaults applied to absent optional fields.
const (
	// DefaultUsername is used when a post has no username.
	DefaultUsername = "Anonymous"

	// DefaultAvatar is the placeholder glyph used when a post has no avatar.
	DefaultAvatar = "👤"

	// UnavailableOrigin is shown for stored messages without an origin.
	UnavailableOrigin = "unavailable"
)

// Collection is the Firestore collection and MariaDB table name.
const Collection = "messages"

// Message is one stored board message. Timestamp is nil when the store has
// not resolved a server timestamp for the record.
type Message struct {
	ID        string
	Text      string
	Username  string
	Avatar    string
	Timestamp *time.Time
	IP        string
}

// PostInput is the JSON body of POST /messages.
type PostInput struct {
	Text     string `json:"text"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// MessageResponse is the JSON shape of a listed message.
type MessageResponse struct {
	ID        string  `json:"id"`
	Text      string  `json:"text"`
	Username  string  `json:"username"`
	Avatar    string  `json:"avatar,omitempty"`
	Timestamp *string `json:"timestamp"`
	IP        string  `json:"ip"`
}

// timestampLayout is ISO-8601 in UTC with millisecond precision, the
// format browser clients get from Date.prototype.toISOString.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// ToResponse converts a stored message for the JSON API, filling in
// display fallbacks for records written without them.
func (m Message) ToResponse() MessageResponse {
	resp := MessageResponse{
		ID:       m.ID,
		Text:     m.Text,
		Username: m.Username,
		Avatar:   m.Avatar,
		IP:       m.IP,
	}
	if resp.Username == "" {
		resp.Username = DefaultUsername
	}
	if resp.IP == "" {
		resp.IP = UnavailableOrigin
	}
	if m.Timestamp != nil {
		ts := m.Timestamp.UTC().Format(timestampLayout)
		resp.Timestamp = &ts
	}
	return resp
}

// SentResponse is the body returned for an accepted post.
type SentResponse struct {
	Message string `json:"message"`
}
