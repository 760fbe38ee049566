package security

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/noah-isme/toko-cart/internal/common"
)

// CSRF guards cart sessions carried by cookie using the double-submit technique.
// Requests that name their session in a header are exempt: browsers cannot
// attach custom headers cross-site without a CORS preflight.
type CSRF struct {
	Header        string
	SessionHeader string
	SessionCookie string
}

// Middleware enforces that unsafe requests riding on a session cookie include a
// token header matching the token cookie.
func (c CSRF) Middleware(next http.Handler) http.Handler {
	headerName := strings.TrimSpace(c.Header)
	if headerName == "" {
		headerName = "X-CSRF-Token"
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
			next.ServeHTTP(w, r)
			return
		}
		if c.SessionHeader != "" && strings.TrimSpace(r.Header.Get(c.SessionHeader)) != "" {
			next.ServeHTTP(w, r)
			return
		}
		if c.SessionCookie != "" {
			if _, err := r.Cookie(c.SessionCookie); err != nil {
				next.ServeHTTP(w, r)
				return
			}
		}

		token := strings.TrimSpace(r.Header.Get(headerName))
		if token == "" {
			forbidden(w, "missing csrf token")
			return
		}
		cookie, err := r.Cookie(headerName)
		if err != nil || strings.TrimSpace(cookie.Value) == "" {
			forbidden(w, "missing csrf cookie")
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(cookie.Value)) != 1 {
			forbidden(w, "invalid csrf token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func forbidden(w http.ResponseWriter, msg string) {
	common.JSONError(w, http.StatusForbidden, "CSRF", msg, nil)
}
