package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// AddressResolver reports the client address of a request.
// *identity.Resolver satisfies it.
type AddressResolver interface {
	ClientAddress(req *http.Request) string
}

// TrustedProxies points Echo's IPExtractor at the resolver so c.RealIP(),
// the request log and the throttle all see the same client address the
// spam guard keys on.
func TrustedProxies(e *echo.Echo, resolver AddressResolver) {
	e.IPExtractor = resolver.ClientAddress
}
