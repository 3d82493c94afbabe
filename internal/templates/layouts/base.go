package layouts

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

const baseStyle = `body{font-family:system-ui,sans-serif;max-width:42rem;margin:2rem auto;padding:0 1rem;color:#222}` +
	`ul{list-style:none;padding:0}li{border-bottom:1px solid #eee;padding:.5rem 0}` +
	`.meta{color:#777;font-size:.8rem}.avatar{margin-right:.4rem}.empty{color:#777}`

// Base wraps body in the HTML document shell. The canonical link is only
// emitted when a base URL was injected into the context.
func Base(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w,
			`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`+
				`<meta name="viewport" content="width=device-width, initial-scale=1">`+
				`<title>%s</title><style>%s</style>`,
			templ.EscapeString(title), baseStyle,
		); err != nil {
			return err
		}
		if base := GetBaseURL(ctx); base != "" {
			href := base + GetActivePath(ctx)
			if _, err := fmt.Fprintf(w, `<link rel="canonical" href="%s">`, templ.EscapeString(href)); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, `</head><body>`); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</body></html>`)
		return err
	})
}
