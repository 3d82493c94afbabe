package messages

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/chatboard/internal/apperror"
	"github.com/keyxmakerx/chatboard/internal/middleware"
	"github.com/keyxmakerx/chatboard/internal/templates/pages"
)

// Handler handles HTTP requests for the board. Handlers are thin: they
// bind the request, call the service, and shape the response.
type Handler struct {
	service MessageService
}

// NewHandler creates a new messages handler with the given service.
func NewHandler(service MessageService) *Handler {
	return &Handler{service: service}
}

// List returns every message as a JSON array (GET /messages).
func (h *Handler) List(c echo.Context) error {
	msgs, err := h.service.List(c.Request().Context())
	if err != nil {
		return err
	}

	out := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ToResponse())
	}
	return c.JSON(http.StatusOK, out)
}

// Post accepts a new message (POST /messages). The client address comes
// from Echo's IPExtractor, configured from the identity resolver.
func (h *Handler) Post(c echo.Context) error {
	var input PostInput
	if err := c.Bind(&input); err != nil {
		return apperror.NewBadRequest("Invalid request body")
	}

	if _, err := h.service.Post(c.Request().Context(), input, c.RealIP()); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, SentResponse{Message: "sent"})
}

// Preflight answers OPTIONS /messages with an empty 200. The CORS
// middleware normally handles it first.
func (h *Handler) Preflight(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

// Board renders the read-only HTML view of the board (GET /).
func (h *Handler) Board(c echo.Context) error {
	msgs, err := h.service.List(c.Request().Context())
	if err != nil {
		return err
	}

	entries := make([]pages.BoardEntry, 0, len(msgs))
	for _, m := range msgs {
		resp := m.ToResponse()
		entry := pages.BoardEntry{
			Text:     resp.Text,
			Username: resp.Username,
			Avatar:   resp.Avatar,
			Origin:   resp.IP,
		}
		if resp.Timestamp != nil {
			entry.Timestamp = *resp.Timestamp
		}
		entries = append(entries, entry)
	}
	return middleware.Render(c, http.StatusOK, pages.Board(entries))
}
