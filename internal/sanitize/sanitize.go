// Package sanitize bounds and neutralizes user-supplied text before it is
// stored. Escaping happens once, on the way in; stored text is served back
// verbatim and never escaped a second time.
//
// Two modes exist. Escape (the default) keeps the text intact and replaces
// the five HTML-significant characters with entities. Strict uses
// bluemonday's StrictPolicy to drop markup entirely before escaping what is
// left.
package sanitize

import (
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
)

// Mode selects how markup is neutralized.
type Mode string

const (
	// ModeEscape replaces & < > " ' with entities.
	ModeEscape Mode = "escape"

	// ModeStrict strips all tags, then escapes.
	ModeStrict Mode = "strict"
)

// ErrTooLong is wrapped by every LengthError.
var ErrTooLong = errors.New("value too long")

// LengthError reports a value longer than its limit, in characters.
type LengthError struct {
	Max    int
	Length int
}

// Error implements the error interface.
func (e *LengthError) Error() string {
	return fmt.Sprintf("%d characters exceeds the maximum of %d", e.Length, e.Max)
}

// Unwrap lets errors.Is match ErrTooLong.
func (e *LengthError) Unwrap() error {
	return ErrTooLong
}

// escaper covers exactly the five characters that matter in HTML text and
// attribute context. html.EscapeString uses numeric entities for quotes,
// which clients rendering the board do not expect.
var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

// validate is shared; validator.Validate caches parsed tags and is safe for
// concurrent use.
var validate = validator.New()

var (
	strictPolicy     *bluemonday.Policy
	strictPolicyOnce sync.Once
)

// getStrictPolicy returns the shared strict policy, initializing it on first call.
func getStrictPolicy() *bluemonday.Policy {
	strictPolicyOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()
	})
	return strictPolicy
}

// Sanitizer applies length bounds and markup neutralization.
type Sanitizer struct {
	mode Mode
}

// New creates a Sanitizer. Unknown modes fall back to ModeEscape.
func New(mode Mode) *Sanitizer {
	if mode != ModeStrict {
		mode = ModeEscape
	}
	return &Sanitizer{mode: mode}
}

// Field checks value against maxLen characters and returns it neutralized
// for storage. The length is measured on the raw input, before escaping.
func (s *Sanitizer) Field(value string, maxLen int) (string, error) {
	if err := CheckLength(value, maxLen); err != nil {
		return "", err
	}
	if s.mode == ModeStrict {
		// Re-encode bluemonday's output with the same entity set as escape mode.
		return EscapeHTML(html.UnescapeString(getStrictPolicy().Sanitize(value))), nil
	}
	return EscapeHTML(value), nil
}

// Field sanitizes with the default escape mode.
func Field(value string, maxLen int) (string, error) {
	return New(ModeEscape).Field(value, maxLen)
}

// CheckLength returns a *LengthError when value has more than maxLen
// characters (Unicode code points).
func CheckLength(value string, maxLen int) error {
	if err := validate.Var(value, fmt.Sprintf("max=%d", maxLen)); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return &LengthError{Max: maxLen, Length: len([]rune(value))}
		}
		return fmt.Errorf("checking length: %w", err)
	}
	return nil
}

// Default returns fallback when value is empty or only whitespace.
func Default(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

// EscapeHTML escapes & < > " and ' as HTML entities.
func EscapeHTML(s string) string {
	return escaper.Replace(s)
}
