package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJSONErrorShape(t *testing.T) {
	rr := httptest.NewRecorder()
	JSONError(rr, http.StatusConflict, "EMPTY_CART", "cart is empty", nil)

	require.Equal(t, http.StatusConflict, rr.Code)
	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	var body struct {
		Error ErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "EMPTY_CART", body.Error.Code)
	require.Equal(t, "cart is empty", body.Error.Message)
}

func TestDataEnvelope(t *testing.T) {
	rr := httptest.NewRecorder()
	Data(rr, http.StatusCreated, map[string]int{"itemCount": 3})

	require.Equal(t, http.StatusCreated, rr.Code)
	require.JSONEq(t, `{"data":{"itemCount":3}}`, rr.Body.String())
}

func TestAppErrorUnwrap(t *testing.T) {
	base := errors.New("boom")
	err := NewAppError("INVALID_ITEM", "bad item", http.StatusBadRequest, base)
	require.ErrorIs(t, err, base)
	require.Equal(t, "bad item: boom", err.Error())

	found, ok := AsAppError(fmt.Errorf("wrapped: %w", err))
	require.True(t, ok)
	require.Same(t, err, found)

	_, ok = AsAppError(base)
	require.False(t, ok)
}

func TestWriteAppErrorDefaults(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteAppError(rr, (&AppError{Message: "nope"}).WithDetails(map[string]string{"price": "gte"}))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.JSONEq(t, `{"error":{"code":"BAD_REQUEST","message":"nope","details":{"price":"gte"}}}`, rr.Body.String())
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.9:4321"
	require.Equal(t, "10.0.0.9", ClientIP(req))

	req.Header.Set("X-Real-IP", "192.0.2.7")
	require.Equal(t, "192.0.2.7", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	require.Equal(t, "203.0.113.5", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "garbage")
	require.Equal(t, "192.0.2.7", ClientIP(req))
}
