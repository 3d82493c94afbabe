package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/chatboard/internal/apperror"
)

func throttleRequest(mw echo.MiddlewareFunc, remoteAddr string) error {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/messages", nil)
	req.RemoteAddr = remoteAddr
	c := e.NewContext(req, httptest.NewRecorder())
	return mw(func(c echo.Context) error { return nil })(c)
}

func TestThrottle_BurstThenReject(t *testing.T) {
	mw := Throttle(0.001, 3)

	for i := 0; i < 3; i++ {
		if err := throttleRequest(mw, "10.0.0.1:1234"); err != nil {
			t.Fatalf("request %d: unexpected error %v", i+1, err)
		}
	}

	err := throttleRequest(mw, "10.0.0.1:1234")
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %v", err)
	}
	if appErr.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", appErr.Code)
	}
	if appErr.RetryAfter < 1 {
		t.Errorf("expected Retry-After hint, got %d", appErr.RetryAfter)
	}
}

func TestThrottle_PerClient(t *testing.T) {
	mw := Throttle(0.001, 1)

	if err := throttleRequest(mw, "10.0.0.1:1"); err != nil {
		t.Fatalf("first client: %v", err)
	}
	if err := throttleRequest(mw, "10.0.0.2:1"); err != nil {
		t.Fatalf("second client should have its own bucket: %v", err)
	}
	if err := throttleRequest(mw, "10.0.0.1:1"); err == nil {
		t.Fatal("expected first client to be throttled")
	}
}

func TestThrottle_DisabledPassesThrough(t *testing.T) {
	mw := Throttle(0, 0)
	for i := 0; i < 100; i++ {
		if err := throttleRequest(mw, "10.0.0.1:1"); err != nil {
			t.Fatalf("disabled throttle rejected request %d: %v", i+1, err)
		}
	}
}
