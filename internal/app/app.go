// Package app is the application bootstrap and dependency injection root.
// It holds the shared infrastructure (backends, identity resolver, spam
// gate, Echo instance) and wires the message board into it.
package app

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/chatboard/internal/apperror"
	"github.com/keyxmakerx/chatboard/internal/config"
	"github.com/keyxmakerx/chatboard/internal/identity"
	"github.com/keyxmakerx/chatboard/internal/middleware"
	"github.com/keyxmakerx/chatboard/internal/spamguard"
	"github.com/keyxmakerx/chatboard/internal/templates/pages"
)

// App holds all shared dependencies and the Echo HTTP server instance.
// Created once at startup in main.go and used to register all routes.
type App struct {
	// Config holds the loaded application configuration.
	Config *config.Config

	// Backends holds the open storage clients and the stores built on them.
	Backends *Backends

	// Resolver derives client identifiers from requests.
	Resolver *identity.Resolver

	// Gate is the spam guard consulted before every post.
	Gate *spamguard.Gate

	// Echo is the HTTP server instance.
	Echo *echo.Echo
}

// New creates a new App over the given backends and configures the Echo
// server with global middleware and error handling.
func New(cfg *config.Config, backends *Backends) (*App, error) {
	gate, err := spamguard.NewGate(backends.Spam, spamPolicy(cfg))
	if err != nil {
		return nil, fmt.Errorf("creating spam gate: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	resolver := identity.NewResolver(identity.Config{
		Hash:           cfg.Identity.Hash,
		HashKey:        cfg.Identity.HashKey,
		ExemptHash:     cfg.Identity.ExemptHash,
		TrustedProxies: cfg.Identity.TrustedProxies,
	})

	// c.RealIP() resolves through the same rules the spam guard keys on.
	middleware.TrustedProxies(e, resolver)

	app := &App{
		Config:   cfg,
		Backends: backends,
		Resolver: resolver,
		Gate:     gate,
		Echo:     e,
	}

	app.setupMiddleware()
	e.HTTPErrorHandler = app.errorHandler

	return app, nil
}

// spamPolicy converts the spam guard settings.
func spamPolicy(cfg *config.Config) spamguard.Policy {
	return spamguard.Policy{
		Enabled:      cfg.SpamGuard.Enabled,
		MessageLimit: cfg.SpamGuard.MessageLimit,
		Window:       cfg.SpamGuard.Window,
		BanDuration:  cfg.SpamGuard.BanDuration,
	}
}

// setupMiddleware registers global middleware on the Echo instance.
// The request logger is outermost so it sees the final status of every
// response, recovered panics included.
func (a *App) setupMiddleware() {
	a.Echo.Use(middleware.RequestLogger())
	a.Echo.Use(middleware.Recovery())
	a.Echo.Use(middleware.SecurityHeaders())

	// CORS headers are set before the handler runs so error responses carry
	// them too.
	a.Echo.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:  a.Config.HTTP.AllowedOrigins,
		PreflightStatus: http.StatusOK,
	}))

	a.Echo.Use(middleware.Throttle(a.Config.HTTP.ThrottleRPS, a.Config.HTTP.ThrottleBurst))
}

// errorHandler is the custom Echo error handler. API requests get
// {"error": message}, plus "details" for infrastructure failures when
// enabled. Browser requests get an HTML error page.
func (a *App) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	err = fromEchoError(err)

	var details string
	var retryAfter int

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		details = appErr.Details
		retryAfter = appErr.RetryAfter

		if appErr.Internal != nil {
			slog.Error("internal error",
				slog.String("type", appErr.Type),
				slog.String("message", appErr.Message),
				slog.Any("internal", appErr.Internal),
				slog.String("path", c.Request().URL.Path),
			)
		}
	} else {
		slog.Error("unhandled error",
			slog.Any("error", err),
			slog.String("path", c.Request().URL.Path),
		)
	}

	code := apperror.SafeCode(err)
	message := apperror.SafeMessage(err)

	if retryAfter > 0 {
		c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter))
	}

	if isAPIRequest(c) {
		if c.Request().Method == http.MethodHead {
			c.NoContent(code)
			return
		}
		body := map[string]string{"error": message}
		if details != "" && a.Config.HTTP.ErrorDetails {
			body["details"] = details
		}
		c.JSON(code, body)
		return
	}

	middleware.Render(c, code, pages.ErrorPage(code, message))
}

// fromEchoError converts Echo's own errors (404 and 405 from the router,
// binder failures) into AppErrors. Other errors pass through unchanged.
func fromEchoError(err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	var echoErr *echo.HTTPError
	if !errors.As(err, &echoErr) {
		return err
	}

	message := defaultErrorMessage(echoErr.Code)
	switch echoErr.Code {
	case http.StatusNotFound:
		return apperror.NewNotFound(message)
	case http.StatusMethodNotAllowed:
		return apperror.NewMethodNotAllowed(message)
	case http.StatusBadRequest:
		return apperror.NewBadRequest(message)
	default:
		return &apperror.AppError{
			Code:     echoErr.Code,
			Type:     "http_error",
			Message:  message,
			Internal: echoErr.Internal,
		}
	}
}

// defaultErrorMessage returns the client message for errors that did not
// carry one.
func defaultErrorMessage(code int) string {
	switch code {
	case http.StatusBadRequest:
		return "Invalid request"
	case http.StatusForbidden:
		return "Forbidden"
	case http.StatusNotFound:
		return "Not found"
	case http.StatusMethodNotAllowed:
		return "Method not allowed"
	case http.StatusRequestEntityTooLarge:
		return "Request body too large"
	case http.StatusUnsupportedMediaType:
		return "Unsupported content type"
	case http.StatusTooManyRequests:
		return "Too many requests. Please slow down."
	case http.StatusServiceUnavailable:
		return "Service temporarily unavailable"
	default:
		return "An unexpected error occurred"
	}
}

// isAPIRequest reports whether the client expects JSON. The board's API
// paths always do; elsewhere only browsers asking for HTML get a page.
func isAPIRequest(c echo.Context) bool {
	path := c.Request().URL.Path
	if strings.HasPrefix(path, "/messages") || path == "/healthz" {
		return true
	}
	return !strings.Contains(c.Request().Header.Get(echo.HeaderAccept), echo.MIMETextHTML)
}

// Start begins listening for HTTP requests on the configured port.
func (a *App) Start() error {
	addr := fmt.Sprintf(":%d", a.Config.Port)
	slog.Info("starting chatboard server",
		slog.String("addr", addr),
		slog.String("env", a.Config.Env),
		slog.String("backend", a.Config.Backend),
	)
	return a.Echo.Start(addr)
}
