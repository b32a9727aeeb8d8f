package session

import (
	"net/http"
	"strings"
)

// CookieName is the browser-facing name of the session token cookie.
const CookieName = "session_id"

// TokenExtractor pulls a candidate token out of a request, returning ""
// when its transport carries none.
type TokenExtractor func(r *http.Request) string

// FromCookie extracts the token from the named cookie.
func FromCookie(name string) TokenExtractor {
	return func(r *http.Request) string {
		c, err := r.Cookie(name)
		if err != nil {
			return ""
		}
		return c.Value
	}
}

// FromBearer extracts the token from an Authorization: Bearer header.
func FromBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}

// DefaultExtractors is the ordered transport list: cookie first, then the
// bearer header. The cookie wins when both are present.
var DefaultExtractors = []TokenExtractor{FromCookie(CookieName), FromBearer}

// ExtractToken tries each extractor in order and returns the first
// non-empty result. Adding a transport means appending an extractor, not
// touching callers.
func ExtractToken(r *http.Request, extractors ...TokenExtractor) string {
	if len(extractors) == 0 {
		extractors = DefaultExtractors
	}
	for _, ex := range extractors {
		if token := ex(r); token != "" {
			return token
		}
	}
	return ""
}
