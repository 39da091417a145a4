package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		trustProxy bool
		want       string
	}{
		{
			name:       "remote addr with port",
			remoteAddr: "192.0.2.1:54321",
			want:       "192.0.2.1",
		},
		{
			name:       "proxy headers ignored without trust",
			remoteAddr: "192.0.2.1:54321",
			headers:    map[string]string{"X-Real-IP": "198.51.100.7"},
			want:       "192.0.2.1",
		},
		{
			name:       "x-real-ip wins when trusted",
			remoteAddr: "192.0.2.1:54321",
			headers:    map[string]string{"X-Real-IP": "198.51.100.7"},
			trustProxy: true,
			want:       "198.51.100.7",
		},
		{
			name:       "x-forwarded-for first hop",
			remoteAddr: "192.0.2.1:54321",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.7, 203.0.113.9"},
			trustProxy: true,
			want:       "198.51.100.7",
		},
		{
			name:       "garbage header falls back to remote addr",
			remoteAddr: "192.0.2.1:54321",
			headers:    map[string]string{"X-Real-IP": "not-an-ip"},
			trustProxy: true,
			want:       "192.0.2.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientIP(r, tt.trustProxy))
		})
	}
}

func TestIsSecure(t *testing.T) {
	t.Run("plain request", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "http://example.com/api", nil)
		assert.False(t, isSecure(r, false))
	})

	t.Run("tls request", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "https://example.com/api", nil)
		assert.True(t, isSecure(r, false))
	})

	t.Run("forwarded proto needs trust", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "http://example.com/api", nil)
		r.Header.Set("X-Forwarded-Proto", "https")
		assert.False(t, isSecure(r, false))
		assert.True(t, isSecure(r, true))
	})
}

func TestRateLimiterBurst(t *testing.T) {
	rl := newRateLimiter(0, 2)

	assert.True(t, rl.allow("10.0.0.1"))
	assert.True(t, rl.allow("10.0.0.1"))
	assert.False(t, rl.allow("10.0.0.1"))

	// A different address has its own bucket.
	assert.True(t, rl.allow("10.0.0.2"))
}
