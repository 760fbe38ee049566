package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMiddlewareUsesHeader(t *testing.T) {
	resolver := NewResolver("")
	var seen string
	handler := resolver.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set(DefaultHeader, "abc-123")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, "abc-123", seen)
	require.Equal(t, "abc-123", rr.Header().Get(DefaultHeader))
}

func TestMiddlewareFallsBackToCookie(t *testing.T) {
	resolver := NewResolver("X-Session")
	var seen string
	handler := resolver.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCookie, Value: "from_cookie"})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, "from_cookie", seen)
	require.Equal(t, "from_cookie", rr.Header().Get("X-Session"))
}

func TestMiddlewareMintsWhenMissingOrInvalid(t *testing.T) {
	resolver := NewResolver("")
	resolver.NewID = func() string { return "minted" }
	var seen string
	handler := resolver.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set(DefaultHeader, "../../etc/passwd")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, "minted", seen)
	require.Equal(t, "minted", rr.Header().Get(DefaultHeader))
}

func TestFromContextEmpty(t *testing.T) {
	_, ok := FromContext(WithSession(context.Background(), "  "))
	require.False(t, ok)
}
