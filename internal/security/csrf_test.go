package security

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func cartCSRF() http.Handler {
	csrf := CSRF{Header: "X-CSRF-Token", SessionHeader: "X-Cart-Session", SessionCookie: "cart_session"}
	return csrf.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
}

func TestCSRFBlocksCookieSessionWithoutToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/confirm", nil)
	req.AddCookie(&http.Cookie{Name: "cart_session", Value: "s1"})
	rr := httptest.NewRecorder()
	cartCSRF().ServeHTTP(rr, req)
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestCSRFAllowsMatchingToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/confirm", nil)
	req.AddCookie(&http.Cookie{Name: "cart_session", Value: "s1"})
	req.AddCookie(&http.Cookie{Name: "X-CSRF-Token", Value: "secure-token"})
	req.Header.Set("X-CSRF-Token", "secure-token")
	rr := httptest.NewRecorder()
	cartCSRF().ServeHTTP(rr, req)
	require.Equal(t, http.StatusAccepted, rr.Code)
}

func TestCSRFRejectsMismatchedToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/confirm", nil)
	req.AddCookie(&http.Cookie{Name: "cart_session", Value: "s1"})
	req.AddCookie(&http.Cookie{Name: "X-CSRF-Token", Value: "secure-token"})
	req.Header.Set("X-CSRF-Token", "other-token!")
	rr := httptest.NewRecorder()
	cartCSRF().ServeHTTP(rr, req)
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestCSRFSkipsHeaderSessionsAndSafeMethods(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", nil)
	req.AddCookie(&http.Cookie{Name: "cart_session", Value: "s1"})
	req.Header.Set("X-Cart-Session", "s1")
	rr := httptest.NewRecorder()
	cartCSRF().ServeHTTP(rr, req)
	require.Equal(t, http.StatusAccepted, rr.Code)

	rr = httptest.NewRecorder()
	get := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	get.AddCookie(&http.Cookie{Name: "cart_session", Value: "s1"})
	cartCSRF().ServeHTTP(rr, get)
	require.Equal(t, http.StatusAccepted, rr.Code)

	rr = httptest.NewRecorder()
	cartCSRF().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", nil))
	require.Equal(t, http.StatusAccepted, rr.Code)
}
