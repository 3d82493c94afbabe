package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/chatboard/internal/apperror"
	"github.com/keyxmakerx/chatboard/internal/config"
	"github.com/keyxmakerx/chatboard/internal/plugins/messages"
	"github.com/keyxmakerx/chatboard/internal/spamguard"
)

var t0 = time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		Env:     "development",
		Port:    8080,
		Backend: config.BackendMemory,
		SpamGuard: config.SpamGuardConfig{
			Enabled:      true,
			MessageLimit: 5,
			Window:       60 * time.Second,
			BanDuration:  5 * time.Minute,
		},
		HTTP: config.HTTPConfig{
			AllowedOrigins: []string{"*"},
			SanitizeMode:   "escape",
			ErrorDetails:   true,
		},
	}
}

// testApp wires an App over the in-memory backend with a controllable clock.
type testApp struct {
	*App
	now time.Time
}

func newTestApp(t *testing.T, cfg *config.Config, backends *Backends) *testApp {
	t.Helper()
	if backends == nil {
		var err error
		backends, err = OpenBackends(context.Background(), cfg)
		if err != nil {
			t.Fatalf("OpenBackends: %v", err)
		}
	}
	a, err := New(cfg, backends)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a.RegisterRoutes()

	ta := &testApp{App: a, now: t0}
	a.Gate.WithClock(func() time.Time { return ta.now })
	return ta
}

func (ta *testApp) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.RemoteAddr = "192.0.2.10:51000"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ta.Echo.ServeHTTP(rec, req)
	return rec
}

func (ta *testApp) post(text string, headers map[string]string) *httptest.ResponseRecorder {
	body, _ := json.Marshal(map[string]string{"text": text})
	return ta.do(http.MethodPost, "/messages", string(body), headers)
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding error body %q: %v", rec.Body.String(), err)
	}
	return body
}

// failingRepo is a message repository whose every call fails.
type failingRepo struct{ err error }

func (r failingRepo) Append(context.Context, *messages.Message) error   { return r.err }
func (r failingRepo) List(context.Context) ([]messages.Message, error) { return nil, r.err }

func TestBanCycle(t *testing.T) {
	ta := newTestApp(t, testConfig(), nil)

	for i := 1; i <= 4; i++ {
		if rec := ta.post("hello", nil); rec.Code != http.StatusOK {
			t.Fatalf("post %d: expected 200, got %d %s", i, rec.Code, rec.Body.String())
		}
	}

	rec := ta.post("hello", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("post 5: expected 429, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "300" {
		t.Errorf("expected Retry-After 300, got %q", got)
	}
	if msg := decodeError(t, rec)["error"]; !strings.Contains(msg, "5 minutes") {
		t.Errorf("unexpected error message %q", msg)
	}

	ta.now = t0.Add(4 * time.Minute)
	rec = ta.post("hello", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("during ban: expected 403, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "60" {
		t.Errorf("expected Retry-After 60, got %q", got)
	}

	ta.now = t0.Add(6 * time.Minute)
	if rec := ta.post("hello", nil); rec.Code != http.StatusOK {
		t.Fatalf("after ban: expected 200, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestBanCycle_ClientsAreIndependent(t *testing.T) {
	ta := newTestApp(t, testConfig(), nil)
	a := map[string]string{"X-Forwarded-For": "198.51.100.1"}
	b := map[string]string{"X-Forwarded-For": "198.51.100.2, 10.0.0.1"}

	for i := 0; i < 5; i++ {
		ta.post("spam", a)
	}
	if rec := ta.post("spam", a); rec.Code != http.StatusForbidden {
		t.Fatalf("expected first client banned, got %d", rec.Code)
	}
	if rec := ta.post("hello", b); rec.Code != http.StatusOK {
		t.Fatalf("expected second client unaffected, got %d", rec.Code)
	}
}

func TestSpamGuardDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.SpamGuard.Enabled = false
	ta := newTestApp(t, cfg, nil)

	for i := 1; i <= 20; i++ {
		if rec := ta.post("hello", nil); rec.Code != http.StatusOK {
			t.Fatalf("post %d: expected 200 with guard disabled, got %d", i, rec.Code)
		}
	}
}

func TestListAfterPosts(t *testing.T) {
	ta := newTestApp(t, testConfig(), nil)

	ta.post(`<script>alert("x")</script>`, nil)
	ta.post("second", nil)

	rec := ta.do(http.MethodGet, "/messages", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var got []messages.MessageResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
	if got[0].Text != "&lt;script&gt;alert(&quot;x&quot;)&lt;/script&gt;" {
		t.Errorf("unexpected stored text %q", got[0].Text)
	}
	if got[1].Text != "second" {
		t.Errorf("expected insertion order, got %q second", got[1].Text)
	}
	if got[0].Username != messages.DefaultUsername || got[0].Avatar != messages.DefaultAvatar {
		t.Errorf("expected defaults, got %q / %q", got[0].Username, got[0].Avatar)
	}
	if got[0].IP != "192.0.2.10" {
		t.Errorf("expected peer address as origin, got %q", got[0].IP)
	}
	if got[0].Timestamp == nil || !strings.HasSuffix(*got[0].Timestamp, "Z") {
		t.Errorf("expected UTC timestamp, got %v", got[0].Timestamp)
	}
}

func TestValidationErrors(t *testing.T) {
	ta := newTestApp(t, testConfig(), nil)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing text", `{"username":"bob"}`, "No text provided"},
		{"empty body", `{}`, "No text provided"},
		{"text too long", `{"text":"` + strings.Repeat("a", 101) + `"}`, "Message too long (max 100 characters)"},
		{"username too long", `{"text":"hi","username":"abcdefghijk"}`, "Username too long (max 10 characters)"},
		{"malformed", `{"text":`, "Invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ta.do(http.MethodPost, "/messages", tt.body, nil)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			if got := decodeError(t, rec)["error"]; got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}

	// Rejected posts never count toward the window.
	for i := 1; i <= 4; i++ {
		if rec := ta.post("ok", nil); rec.Code != http.StatusOK {
			t.Fatalf("post %d after rejections: expected 200, got %d", i, rec.Code)
		}
	}
}

func TestMethodNotAllowed(t *testing.T) {
	ta := newTestApp(t, testConfig(), nil)

	for _, method := range []string{http.MethodPut, http.MethodDelete, http.MethodPatch} {
		rec := ta.do(method, "/messages", "", nil)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s: expected 405, got %d", method, rec.Code)
			continue
		}
		if got := decodeError(t, rec)["error"]; got != "Method not allowed" {
			t.Errorf("%s: unexpected error %q", method, got)
		}
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
			t.Errorf("%s: expected CORS header on 405, got %q", method, got)
		}
	}
}

func TestPreflight(t *testing.T) {
	ta := newTestApp(t, testConfig(), nil)

	rec := ta.do(http.MethodOptions, "/messages", "", map[string]string{"Origin": "https://example.com"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("expected empty body, got %q", rec.Body.String())
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST, OPTIONS" {
		t.Errorf("unexpected methods %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type" {
		t.Errorf("unexpected headers %q", got)
	}
}

func TestInfrastructureErrors(t *testing.T) {
	backends := &Backends{
		Messages: failingRepo{err: errors.New("deadline exceeded")},
		Spam:     spamguard.NewMemoryStore(),
	}
	ta := newTestApp(t, testConfig(), backends)

	rec := ta.do(http.MethodGet, "/messages", "", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	body := decodeError(t, rec)
	if body["error"] != "Failed to load messages" || body["details"] != "deadline exceeded" {
		t.Errorf("unexpected body %v", body)
	}

	rec = ta.post("hi", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if got := decodeError(t, rec)["error"]; got != "Failed to send message" {
		t.Errorf("unexpected error %q", got)
	}
}

func TestInfrastructureErrors_DetailsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.HTTP.ErrorDetails = false
	backends := &Backends{
		Messages: failingRepo{err: errors.New("deadline exceeded")},
		Spam:     spamguard.NewMemoryStore(),
	}
	ta := newTestApp(t, cfg, backends)

	body := decodeError(t, ta.do(http.MethodGet, "/messages", "", nil))
	if _, ok := body["details"]; ok {
		t.Errorf("expected no details, got %v", body)
	}
}

func TestNotFound(t *testing.T) {
	ta := newTestApp(t, testConfig(), nil)

	rec := ta.do(http.MethodGet, "/nope", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if got := decodeError(t, rec)["error"]; got != "Not found" {
		t.Errorf("unexpected error %q", got)
	}

	rec = ta.do(http.MethodGet, "/nope", "", map[string]string{"Accept": "text/html"})
	if !strings.Contains(rec.Body.String(), "<html") {
		t.Errorf("expected HTML error page for browsers, got %q", rec.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	ta := newTestApp(t, testConfig(), nil)

	rec := ta.do(http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["status"] != "ok" || body["backend"] != config.BackendMemory {
		t.Errorf("unexpected body %v", body)
	}
}

func TestBoardPage(t *testing.T) {
	cfg := testConfig()
	cfg.BaseURL = "https://board.example"
	ta := newTestApp(t, cfg, nil)
	ta.post("visible on the board", nil)

	rec := ta.do(http.MethodGet, "/", "", map[string]string{"Accept": "text/html"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "visible on the board") {
		t.Error("expected message on the board page")
	}
	if !strings.Contains(body, `href="https://board.example/"`) {
		t.Errorf("expected canonical link from base URL, got %s", body)
	}
	if rec.Header().Get("Content-Security-Policy") == "" {
		t.Error("expected security headers")
	}
}

func TestNew_RejectsInvalidPolicy(t *testing.T) {
	cfg := testConfig()
	cfg.SpamGuard.MessageLimit = 0
	backends, _ := OpenBackends(context.Background(), cfg)

	if _, err := New(cfg, backends); err == nil {
		t.Fatal("expected error for invalid policy")
	}
}

func TestOpenBackends_UnknownBackend(t *testing.T) {
	cfg := testConfig()
	cfg.Backend = "cassandra"

	if _, err := OpenBackends(context.Background(), cfg); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestFromEchoError(t *testing.T) {
	tests := []struct {
		in       error
		wantCode int
		wantType string
		wantMsg  string
	}{
		{echo.ErrNotFound, http.StatusNotFound, "not_found", "Not found"},
		{echo.ErrMethodNotAllowed, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed"},
		{echo.NewHTTPError(http.StatusBadRequest, "syntax error"), http.StatusBadRequest, "bad_request", "Invalid request"},
		{echo.ErrUnsupportedMediaType, http.StatusUnsupportedMediaType, "http_error", "Unsupported content type"},
	}
	for _, tt := range tests {
		err := fromEchoError(tt.in)
		var appErr *apperror.AppError
		if !errors.As(err, &appErr) {
			t.Fatalf("%v: expected *apperror.AppError, got %T", tt.in, err)
		}
		if appErr.Code != tt.wantCode || appErr.Type != tt.wantType || appErr.Message != tt.wantMsg {
			t.Errorf("%v: got %d %q %q", tt.in, appErr.Code, appErr.Type, appErr.Message)
		}
		if apperror.SafeCode(err) != tt.wantCode || apperror.SafeMessage(err) != tt.wantMsg {
			t.Errorf("%v: SafeCode/SafeMessage disagree with the converted error", tt.in)
		}
	}

	plain := errors.New("boom")
	if got := fromEchoError(plain); got != plain {
		t.Errorf("expected plain errors to pass through, got %v", got)
	}
	bad := apperror.NewBadRequest("No text provided")
	if got := fromEchoError(bad); got != error(bad) {
		t.Errorf("expected AppErrors to pass through, got %v", got)
	}
}
