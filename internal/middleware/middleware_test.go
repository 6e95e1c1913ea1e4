package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcs-project/arcs-core/internal/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(mw gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw)
	r.GET("/thing", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"request_id": GetRequestID(c)})
	})
	return r
}

func TestCORS_SetsHeadersAndPassesThrough(t *testing.T) {
	r := newTestRouter(CORS())

	req := httptest.NewRequest(http.MethodGet, "/thing", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestCORS_ShortCircuitsPreflight(t *testing.T) {
	r := newTestRouter(CORS())

	req := httptest.NewRequest(http.MethodOptions, "/thing", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRequestID_GeneratesWhenAbsent(t *testing.T) {
	r := newTestRouter(RequestID())

	req := httptest.NewRequest(http.MethodGet, "/thing", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	id := w.Header().Get(requestIDHeader)
	assert.NotEmpty(t, id)
}

func TestRequestID_ReusesIncoming(t *testing.T) {
	r := newTestRouter(RequestID())

	req := httptest.NewRequest(http.MethodGet, "/thing", nil)
	req.Header.Set(requestIDHeader, "caller-supplied-id")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "caller-supplied-id", w.Header().Get(requestIDHeader))
}

func TestGetRequestID_EmptyWithoutMiddleware(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, "", GetRequestID(c))
}

func TestRateLimit_AllowsWithinBurstThenRejects(t *testing.T) {
	cfg := config.RateLimitConfig{RequestsPerMinute: 60, Burst: 1}
	r := newTestRouter(RateLimit(cfg))

	req := httptest.NewRequest(http.MethodGet, "/thing", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	w1 := httptest.NewRecorder()
	r.ServeHTTP(w1, req)
	assert.Equal(t, http.StatusOK, w1.Code)

	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req)
	assert.Equal(t, http.StatusTooManyRequests, w2.Code)
	assert.Equal(t, "0", w2.Header().Get("X-Rate-Limit-Remaining"))
}

func TestRateLimit_SeparateClientsHaveSeparateBuckets(t *testing.T) {
	cfg := config.RateLimitConfig{RequestsPerMinute: 60, Burst: 1}
	r := newTestRouter(RateLimit(cfg))

	req1 := httptest.NewRequest(http.MethodGet, "/thing", nil)
	req1.RemoteAddr = "10.0.0.2:1234"
	w1 := httptest.NewRecorder()
	r.ServeHTTP(w1, req1)
	assert.Equal(t, http.StatusOK, w1.Code)

	req2 := httptest.NewRequest(http.MethodGet, "/thing", nil)
	req2.RemoteAddr = "10.0.0.3:1234"
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req2)
	assert.Equal(t, http.StatusOK, w2.Code)
}

func TestEntityRateLimit_RejectsOverBurstForSameEntity(t *testing.T) {
	cfg := config.RateLimitConfig{RequestsPerMinute: 60, Burst: 1}
	r := gin.New()
	r.Use(EntityRateLimit(cfg))
	r.GET("/entities/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{})
	})

	req := httptest.NewRequest(http.MethodGet, "/entities/e1", nil)

	w1 := httptest.NewRecorder()
	r.ServeHTTP(w1, req)
	assert.Equal(t, http.StatusOK, w1.Code)

	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req)
	assert.Equal(t, http.StatusTooManyRequests, w2.Code)
}
