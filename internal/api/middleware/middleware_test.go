package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The WebSocket upgrade takes over the connection via http.Hijacker, so the
// metrics wrapper must pass the capability through instead of masking it.
func TestMetricsWriterSupportsHijack(t *testing.T) {
	handler := Metrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		if !ok {
			http.Error(w, "not hijackable", http.StatusInternalServerError)
			return
		}
		conn, rw, err := hj.Hijack()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer conn.Close()
		rw.WriteString("HTTP/1.1 204 No Content\r\nConnection: close\r\n\r\n")
		rw.Flush()
	}))

	srv := httptest.NewServer(handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/ws/notifications")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestMetricsWriterCapturesStatus(t *testing.T) {
	handler := Metrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestUserKeyDoesNotLeakToken(t *testing.T) {
	const token = "deadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef"

	r := httptest.NewRequest(http.MethodPost, "/interests", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	key := userKey(r)
	assert.True(t, strings.HasPrefix(key, "token:"))
	assert.NotContains(t, key, token)

	// Deterministic per token, distinct across tokens.
	assert.Equal(t, key, userKey(r))

	other := httptest.NewRequest(http.MethodPost, "/interests", nil)
	other.Header.Set("Authorization", "Bearer "+strings.Repeat("ab", 32))
	assert.NotEqual(t, key, userKey(other))
}

func TestUserKeyFallsBackToIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/interests", nil)
	r.RemoteAddr = "203.0.113.9:4444"
	assert.Equal(t, "ip:203.0.113.9", userKey(r))
}
