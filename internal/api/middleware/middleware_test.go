package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func setupTestRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(handlers...)
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "success"})
	})
	return router
}

func do(router *gin.Engine, method, remote string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/test", nil)
	if remote != "" {
		req.RemoteAddr = remote
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCORS(t *testing.T) {
	router := setupTestRouter(CORS(DefaultCORSConfig()))

	tests := []struct {
		name           string
		method         string
		origin         string
		wantStatus     int
		wantCORSHeader bool
	}{
		{
			name:           "simple GET request with origin",
			method:         "GET",
			origin:         "http://localhost:3000",
			wantStatus:     http.StatusOK,
			wantCORSHeader: true,
		},
		{
			name:           "preflight OPTIONS request",
			method:         "OPTIONS",
			origin:         "http://localhost:3000",
			wantStatus:     http.StatusNoContent,
			wantCORSHeader: true,
		},
		{
			name:       "no origin header",
			method:     "GET",
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.origin != "" {
				headers["Origin"] = tt.origin
			}
			w := do(router, tt.method, "", headers)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCORSHeader {
				assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Origin"))
			} else {
				assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
			}
		})
	}
}

func TestCORSRestrictedOrigin(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowOrigins = []string{"https://app.example.com"}
	router := setupTestRouter(CORS(cfg))

	w := do(router, "GET", "", map[string]string{"Origin": "https://app.example.com"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	w = do(router, "GET", "", map[string]string{"Origin": "https://evil.test"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCORSWildcardOmitsCredentials(t *testing.T) {
	router := setupTestRouter(CORS(DefaultCORSConfig()))

	w := do(router, "GET", "", map[string]string{"Origin": "http://foo.test"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))

	w = do(router, "OPTIONS", "", map[string]string{
		"Origin":                        "http://foo.test",
		"Access-Control-Request-Method": "POST",
	})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestRateLimit(t *testing.T) {
	router := setupTestRouter(RateLimit(RateLimitConfig{RequestsPerSecond: 2, Burst: 2}))

	for i := 0; i < 2; i++ {
		w := do(router, "GET", "192.168.1.1:1234", nil)
		assert.Equal(t, http.StatusOK, w.Code, "request %d should succeed", i+1)
	}

	w := do(router, "GET", "192.168.1.1:1234", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestRateLimitDifferentClients(t *testing.T) {
	router := setupTestRouter(RateLimit(RateLimitConfig{RequestsPerSecond: 1, Burst: 1}))

	assert.Equal(t, http.StatusOK, do(router, "GET", "192.168.1.1:1234", nil).Code)
	assert.Equal(t, http.StatusOK, do(router, "GET", "192.168.1.2:1234", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(router, "GET", "192.168.1.1:1234", nil).Code)
}

func TestLimiterRefillsWithClock(t *testing.T) {
	clock := clockwork.NewFakeClock()
	limiter := NewLimiter(RateLimitConfig{RequestsPerSecond: 1, Burst: 1}, clock)

	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.False(t, limiter.Allow("10.0.0.1"))

	clock.Advance(time.Second)
	assert.True(t, limiter.Allow("10.0.0.1"))
}

func TestLimiterEvictsIdleClients(t *testing.T) {
	clock := clockwork.NewFakeClock()
	limiter := NewLimiter(RateLimitConfig{RequestsPerSecond: 1, Burst: 1, IdleTTL: time.Minute}, clock)

	limiter.Allow("10.0.0.1")
	limiter.Allow("10.0.0.2")
	require.Equal(t, 2, limiter.Len())

	clock.Advance(30 * time.Second)
	limiter.Allow("10.0.0.2")
	clock.Advance(40 * time.Second)
	limiter.Allow("10.0.0.3")

	assert.Equal(t, 2, limiter.Len())
}

func TestGlobalRateLimit(t *testing.T) {
	router := setupTestRouter(GlobalRateLimit(RateLimitConfig{RequestsPerSecond: 2, Burst: 2}))

	assert.Equal(t, http.StatusOK, do(router, "GET", "192.168.1.1:1234", nil).Code)
	assert.Equal(t, http.StatusOK, do(router, "GET", "192.168.1.2:1234", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(router, "GET", "192.168.1.3:1234", nil).Code)
}

func TestRequestID(t *testing.T) {
	router := setupTestRouter(RequestID())

	w := do(router, "GET", "", nil)
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)

	w = do(router, "GET", "", map[string]string{RequestIDHeader: "abc-123"})
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestAccessLog(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	router := setupTestRouter(RequestID(), AccessLog(zap.New(core)))
	router.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	do(router, "GET", "", map[string]string{RequestIDHeader: "rid-1"})

	req := httptest.NewRequest("GET", "/boom", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	served := logs.FilterMessage("Request served").All()
	require.Len(t, served, 1)
	assert.Equal(t, "rid-1", served[0].ContextMap()["request_id"])
	assert.Equal(t, int64(http.StatusOK), served[0].ContextMap()["status"])

	assert.Equal(t, 1, logs.FilterMessage("Request failed").Len())
}

func TestDefaultConfigs(t *testing.T) {
	cors := DefaultCORSConfig()
	assert.Contains(t, cors.AllowOrigins, "*")
	assert.Contains(t, cors.AllowMethods, "DELETE")
	assert.Contains(t, cors.AllowHeaders, RequestIDHeader)
	assert.Equal(t, 12*time.Hour, cors.MaxAge)

	rl := DefaultRateLimitConfig()
	assert.Equal(t, 100, rl.RequestsPerSecond)
	assert.Equal(t, 200, rl.Burst)
	assert.Equal(t, 10*time.Minute, rl.IdleTTL)
}

func BenchmarkRateLimit(b *testing.B) {
	router := setupTestRouter(RateLimit(DefaultRateLimitConfig()))
	req := httptest.NewRequest("GET", "/test", nil)
	req.RemoteAddr = "192.168.1.1:1234"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		router.ServeHTTP(httptest.NewRecorder(), req)
	}
}
