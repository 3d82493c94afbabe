package messages

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes sets up the board routes on the given Echo instance.
// Other methods on /messages fall through to Echo's 405 handler.
func RegisterRoutes(e *echo.Echo, h *Handler) {
	e.GET("/messages", h.List)
	e.POST("/messages", h.Post)
	e.OPTIONS("/messages", h.Preflight)

	e.GET("/", h.Board)
}
