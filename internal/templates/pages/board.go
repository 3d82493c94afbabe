// Package pages holds the server-rendered views of the board.
package pages

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"

	"github.com/a-h/templ"

	"github.com/keyxmakerx/chatboard/internal/templates/layouts"
)

// BoardEntry is one rendered message. Text, Username and Avatar may be
// stored escaped or raw; both display as the same text.
type BoardEntry struct {
	Text      string
	Username  string
	Avatar    string
	Origin    string
	Timestamp string
}

// Board renders the message list, oldest first.
func Board(entries []BoardEntry) templ.Component {
	body := templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<h1>Message board</h1>`); err != nil {
			return err
		}
		if len(entries) == 0 {
			_, err := io.WriteString(w, `<p class="empty">No messages yet.</p>`)
			return err
		}
		if _, err := io.WriteString(w, `<ul>`); err != nil {
			return err
		}
		for _, e := range entries {
			if _, err := fmt.Fprintf(w,
				`<li><span class="avatar">%s</span><strong>%s</strong> %s<div class="meta">%s · %s</div></li>`,
				storedText(e.Avatar), storedText(e.Username), storedText(e.Text),
				templ.EscapeString(e.Timestamp), templ.EscapeString(e.Origin),
			); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</ul>`)
		return err
	})
	return layouts.Base("Message board", body)
}

// storedText escapes a stored field for HTML exactly once. Values written
// by this service are already entity-escaped; older records may not be.
func storedText(v string) string {
	return templ.EscapeString(html.UnescapeString(v))
}

// ErrorPage renders a plain error page for browser requests.
func ErrorPage(code int, message string) templ.Component {
	body := templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<h1>%d %s</h1><p>%s</p><p><a href="/">Back to the board</a></p>`,
			code, templ.EscapeString(http.StatusText(code)), templ.EscapeString(message))
		return err
	})
	return layouts.Base(fmt.Sprintf("%d %s", code, http.StatusText(code)), body)
}
