package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestNewInfrastructure_DetailsFromRootCause(t *testing.T) {
	root := errors.New("rpc error: deadline exceeded")
	err := NewInfrastructure("Failed to load messages", fmt.Errorf("listing messages: %w", root))

	if err.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", err.Code)
	}
	if err.Details != "rpc error: deadline exceeded" {
		t.Errorf("unexpected details %q", err.Details)
	}
	if !errors.Is(err, root) {
		t.Error("expected errors.Is to reach the root cause")
	}
}

func TestWithRetryAfter_RoundsUp(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{0, 0},
		{1, 1},
		{1.2, 2},
		{299.999, 300},
	}
	for _, tt := range tests {
		got := NewForbidden("banned").WithRetryAfter(tt.in).RetryAfter
		if got != tt.want {
			t.Errorf("WithRetryAfter(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestSafeCode(t *testing.T) {
	if got := SafeCode(NewTooManyRequests("slow down")); got != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", got)
	}
	wrapped := fmt.Errorf("posting: %w", NewBadRequest("no text"))
	if got := SafeCode(wrapped); got != http.StatusBadRequest {
		t.Errorf("expected 400 through wrapping, got %d", got)
	}
	if got := SafeCode(errors.New("boom")); got != http.StatusInternalServerError {
		t.Errorf("expected 500 for plain error, got %d", got)
	}
	if got := SafeMessage(errors.New("boom")); got != "An unexpected error occurred" {
		t.Errorf("unexpected safe message %q", got)
	}
}
