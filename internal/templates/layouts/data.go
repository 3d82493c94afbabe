// data.go provides typed context helpers for passing layout data from
// middleware to templates. Only simple types are stored.
//
// Data flow: Echo Context → LayoutInjector → Go Context → template
package layouts

import "context"

// ctxKey is a private type for context keys to prevent collisions.
type ctxKey string

const (
	keyBaseURL    ctxKey = "layout_base_url"
	keyActivePath ctxKey = "layout_active_path"
)

// SetBaseURL stores the public base URL of the board.
func SetBaseURL(ctx context.Context, url string) context.Context {
	return context.WithValue(ctx, keyBaseURL, url)
}

// GetBaseURL returns the public base URL, or "" if not set.
func GetBaseURL(ctx context.Context) string {
	v, _ := ctx.Value(keyBaseURL).(string)
	return v
}

// SetActivePath stores the request path being rendered.
func SetActivePath(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, keyActivePath, path)
}

// GetActivePath returns the request path, or "/" if not set.
func GetActivePath(ctx context.Context) string {
	if v, ok := ctx.Value(keyActivePath).(string); ok && v != "" {
		return v
	}
	return "/"
}
