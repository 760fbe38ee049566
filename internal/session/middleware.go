package session

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type contextKey string

const sessionContextKey contextKey = "cart.session"

// DefaultHeader carries the cart session identifier between client and server.
const DefaultHeader = "X-Cart-Session"

// DefaultCookie is consulted when the header is absent.
const DefaultCookie = "cart_session"

// maxIDLength bounds client-supplied identifiers since they become storage keys.
const maxIDLength = 128

// Resolver resolves cart session identifiers from HTTP requests, minting a new
// one when the client has none.
type Resolver struct {
	HeaderName string
	CookieName string
	NewID      func() string
}

// NewResolver returns a resolver using the provided header name. If headerName is
// empty, DefaultHeader is used.
func NewResolver(headerName string) *Resolver {
	if strings.TrimSpace(headerName) == "" {
		headerName = DefaultHeader
	}
	return &Resolver{HeaderName: headerName, CookieName: DefaultCookie, NewID: uuid.NewString}
}

// Middleware resolves the session, echoes it in the response header and injects
// it into the context passed downstream.
func (r *Resolver) Middleware(next http.Handler) http.Handler {
	if r == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id := r.Resolve(req)
		if id == "" {
			id = r.mint()
		}
		w.Header().Set(r.header(), id)
		next.ServeHTTP(w, req.WithContext(WithSession(req.Context(), id)))
	})
}

// Resolve returns the session identifier supplied by the client, or "" when none
// or an unusable one was sent.
func (r *Resolver) Resolve(req *http.Request) string {
	if r == nil || req == nil {
		return ""
	}
	if id := sanitize(req.Header.Get(r.header())); id != "" {
		return id
	}
	if r.CookieName != "" {
		if c, err := req.Cookie(r.CookieName); err == nil {
			return sanitize(c.Value)
		}
	}
	return ""
}

func (r *Resolver) header() string {
	if r.HeaderName == "" {
		return DefaultHeader
	}
	return r.HeaderName
}

func (r *Resolver) mint() string {
	if r.NewID != nil {
		return r.NewID()
	}
	return uuid.NewString()
}

func sanitize(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || len(id) > maxIDLength {
		return ""
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return ""
		}
	}
	return id
}

// WithSession stores the session identifier inside the context.
func WithSession(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, sessionContextKey, id)
}

// FromContext extracts the session identifier from the context if available.
func FromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(sessionContextKey).(string)
	if !ok {
		return "", false
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return "", false
	}
	return id, true
}
