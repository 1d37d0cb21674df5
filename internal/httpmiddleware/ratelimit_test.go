package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterExhaustsBurst(t *testing.T) {
	rl := NewRateLimiter(3)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.take("10.0.0.1"), "request %d should pass", i)
	}
	assert.False(t, rl.take("10.0.0.1"))

	// a different client has its own budget
	assert.True(t, rl.take("10.0.0.2"))
}

func TestRateLimiterRefillsOverTime(t *testing.T) {
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(60)
	rl.now = func() time.Time { return clock }

	for i := 0; i < 60; i++ {
		require.True(t, rl.take("10.0.0.1"))
	}
	require.False(t, rl.take("10.0.0.1"))

	// one second at 60/min buys back exactly one request
	clock = clock.Add(time.Second)
	assert.True(t, rl.take("10.0.0.1"))
	assert.False(t, rl.take("10.0.0.1"))

	// a long pause refills to the burst cap, not beyond
	clock = clock.Add(time.Hour)
	for i := 0; i < 60; i++ {
		require.True(t, rl.take("10.0.0.1"))
	}
	assert.False(t, rl.take("10.0.0.1"))
}

func TestRateLimiterMiddlewareRejectsWith429(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(NewRateLimiter(1).Middleware())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func() int {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "10.0.0.9:4321"
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do())
	assert.Equal(t, http.StatusTooManyRequests, do())
}
