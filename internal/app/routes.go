package app

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/chatboard/internal/middleware"
	"github.com/keyxmakerx/chatboard/internal/plugins/messages"
	"github.com/keyxmakerx/chatboard/internal/sanitize"
	"github.com/keyxmakerx/chatboard/internal/templates/layouts"
)

// RegisterRoutes sets up all application routes: the health check here and
// the board routes through the messages plugin.
func (a *App) RegisterRoutes() {
	e := a.Echo

	middleware.LayoutInjector = func(c echo.Context, ctx context.Context) context.Context {
		ctx = layouts.SetBaseURL(ctx, a.Config.BaseURL)
		return layouts.SetActivePath(ctx, c.Request().URL.Path)
	}

	e.GET("/healthz", a.healthz)

	svc := messages.NewMessageService(
		a.Backends.Messages,
		a.Gate,
		a.Resolver,
		sanitize.New(sanitize.Mode(a.Config.HTTP.SanitizeMode)),
	)
	messages.RegisterRoutes(e, messages.NewHandler(svc))
}

// healthz pings every open backend. It answers 503 when any check fails.
func (a *App) healthz(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string)
	for name, err := range a.Backends.Ping(ctx) {
		if err != nil {
			status = http.StatusServiceUnavailable
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}

	body := map[string]any{
		"status":  "ok",
		"backend": a.Config.Backend,
		"checks":  checks,
	}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	return c.JSON(status, body)
}
