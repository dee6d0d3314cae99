package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(time.Minute, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("ip:1.2.3.4"), "request %d should pass", i+1)
	}
	assert.False(t, rl.Allow("ip:1.2.3.4"))

	// other keys have their own budget
	assert.True(t, rl.Allow("ip:5.6.7.8"))
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1:1234", ClientIP(r))

	r.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.1")
	assert.Equal(t, "198.51.100.7", ClientIP(r))

	r.Header.Set("CF-Connecting-IP", "203.0.113.9")
	assert.Equal(t, "203.0.113.9", ClientIP(r))
}
