package messages

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/keyxmakerx/chatboard/internal/apperror"
	"github.com/keyxmakerx/chatboard/internal/identity"
	"github.com/keyxmakerx/chatboard/internal/sanitize"
	"github.com/keyxmakerx/chatboard/internal/spamguard"
)

// Gatekeeper decides whether a client may post right now.
// *spamguard.Gate satisfies it.
type Gatekeeper interface {
	Check(ctx context.Context, clientID string) (spamguard.Verdict, error)
	Policy() spamguard.Policy
}

// MessageService handles business logic for the board.
type MessageService interface {
	// List returns every stored message, oldest first.
	List(ctx context.Context) ([]Message, error)

	// Post validates, admits and stores a message from the client at
	// clientAddr. The returned message is what was persisted.
	Post(ctx context.Context, input PostInput, clientAddr string) (*Message, error)
}

// messageService implements MessageService.
type messageService struct {
	repo      MessageRepository
	gate      Gatekeeper
	resolver  *identity.Resolver
	sanitizer *sanitize.Sanitizer
}

// NewMessageService creates a new message service.
func NewMessageService(repo MessageRepository, gate Gatekeeper, resolver *identity.Resolver, sanitizer *sanitize.Sanitizer) MessageService {
	return &messageService{
		repo:      repo,
		gate:      gate,
		resolver:  resolver,
		sanitizer: sanitizer,
	}
}

// List returns all messages.
func (s *messageService) List(ctx context.Context) ([]Message, error) {
	msgs, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperror.NewInfrastructure("Failed to load messages", err)
	}
	return msgs, nil
}

// Post runs field validation first so a rejected body never touches the
// tracking records, then consults the gate, then appends.
func (s *messageService) Post(ctx context.Context, input PostInput, clientAddr string) (*Message, error) {
	if input.Text == "" {
		return nil, apperror.NewBadRequest("No text provided")
	}

	text, err := s.field(input.Text, MaxTextLength, "Message")
	if err != nil {
		return nil, err
	}
	username, err := s.field(sanitize.Default(input.Username, DefaultUsername), MaxUsernameLength, "Username")
	if err != nil {
		return nil, err
	}
	avatar, err := s.field(sanitize.Default(input.Avatar, DefaultAvatar), MaxAvatarLength, "Avatar")
	if err != nil {
		return nil, err
	}

	clientID := s.resolver.Key(clientAddr)

	verdict, err := s.gate.Check(ctx, clientID)
	if err != nil {
		return nil, apperror.NewInfrastructure("Failed to send message", err)
	}

	switch verdict.Decision {
	case spamguard.Banned:
		return nil, apperror.NewForbidden("You are temporarily blocked for spamming. Please try again later.").
			WithRetryAfter(verdict.RetryAfter.Seconds())
	case spamguard.RateLimited:
		msg := fmt.Sprintf("Too many messages sent. You are now blocked for %s.",
			humanDuration(s.gate.Policy().BanDuration))
		return nil, apperror.NewTooManyRequests(msg).
			WithRetryAfter(verdict.RetryAfter.Seconds())
	}

	m := &Message{
		Text:     text,
		Username: username,
		Avatar:   avatar,
		IP:       s.resolver.Origin(clientID),
	}
	if err := s.repo.Append(ctx, m); err != nil {
		return nil, apperror.NewInfrastructure("Failed to send message", err)
	}

	slog.Debug("message posted",
		slog.String("id", m.ID),
		slog.String("client", clientID),
	)
	return m, nil
}

// field length-checks and escapes one input value, mapping a length
// violation to a 400 naming the field.
func (s *messageService) field(value string, maxLen int, label string) (string, error) {
	out, err := s.sanitizer.Field(value, maxLen)
	if err != nil {
		if errors.Is(err, sanitize.ErrTooLong) {
			return "", apperror.NewBadRequest(
				fmt.Sprintf("%s too long (max %d characters)", label, maxLen))
		}
		return "", apperror.NewBadRequest(fmt.Sprintf("Invalid %s", label))
	}
	return out, nil
}

// humanDuration renders whole minutes as "5 minutes" and anything else as
// rounded seconds.
func humanDuration(d time.Duration) string {
	if d >= time.Minute && d%time.Minute == 0 {
		n := int(d / time.Minute)
		if n == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", n)
	}
	n := int(d.Round(time.Second) / time.Second)
	if n == 1 {
		return "1 second"
	}
	return fmt.Sprintf("%d seconds", n)
}
