package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Methods and headers advertised to browsers. The board only speaks JSON
// over GET and POST.
var (
	corsAllowMethods = strings.Join([]string{
		http.MethodGet,
		http.MethodPost,
		http.MethodOptions,
	}, ", ")
	corsAllowHeaders = "Content-Type"
)

// CORSConfig holds configuration for the CORS middleware.
type CORSConfig struct {
	// AllowedOrigins is the list of origins permitted to make cross-origin
	// requests. ["*"] answers every request with a wildcard origin.
	AllowedOrigins []string

	// AllowCredentials adds Access-Control-Allow-Credentials. Ignored for
	// wildcard origins.
	AllowCredentials bool

	// PreflightStatus is the status code for OPTIONS requests.
	// Defaults to 200.
	PreflightStatus int
}

// CORS returns middleware that sets Cross-Origin Resource Sharing headers.
//
// With a wildcard origin the headers go on every response, error responses
// included, whether or not the request carried an Origin header. With an
// allow-list they are only set for listed origins. OPTIONS requests are
// answered directly with an empty body.
func CORS(cfg CORSConfig) echo.MiddlewareFunc {
	allowAll := false
	originSet := make(map[string]bool)
	for _, o := range cfg.AllowedOrigins {
		if o == "*" {
			allowAll = true
		}
		originSet[o] = true
	}

	if allowAll && cfg.AllowCredentials {
		slog.Warn("CORS misconfiguration: AllowedOrigins=['*'] with AllowCredentials=true; credentials will not be sent")
		cfg.AllowCredentials = false
	}
	if cfg.PreflightStatus == 0 {
		cfg.PreflightStatus = http.StatusOK
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			h := c.Response().Header()
			origin := req.Header.Get("Origin")

			switch {
			case allowAll:
				h.Set(echo.HeaderAccessControlAllowOrigin, "*")
			case origin != "" && originSet[origin]:
				h.Set(echo.HeaderAccessControlAllowOrigin, origin)
				h.Add(echo.HeaderVary, echo.HeaderOrigin)
				if cfg.AllowCredentials {
					h.Set(echo.HeaderAccessControlAllowCredentials, "true")
				}
			default:
				return next(c)
			}

			h.Set(echo.HeaderAccessControlAllowMethods, corsAllowMethods)
			h.Set(echo.HeaderAccessControlAllowHeaders, corsAllowHeaders)

			if req.Method == http.MethodOptions {
				return c.NoContent(cfg.PreflightStatus)
			}
			return next(c)
		}
	}
}
