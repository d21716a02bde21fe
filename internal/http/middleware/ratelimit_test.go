package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRateLimitFallsBackToLocal(t *testing.T) {
	local.reset()
	defer local.reset()

	r := gin.New()
	r.GET("/limited", RateLimit(2, time.Minute), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/limited", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	if codes[0] != http.StatusNoContent || codes[1] != http.StatusNoContent {
		t.Fatalf("expected first two requests allowed, got %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Fatalf("expected third request blocked, got %d", codes[2])
	}
}

func TestRateLimitSeparatesClients(t *testing.T) {
	local.reset()
	defer local.reset()

	r := gin.New()
	r.GET("/limited", RateLimit(1, time.Minute), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	for _, addr := range []string{"10.0.0.1:1", "10.0.0.2:1"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/limited", nil)
		req.RemoteAddr = addr
		r.ServeHTTP(w, req)
		if w.Code != http.StatusNoContent {
			t.Fatalf("client %s: expected 204 got %d", addr, w.Code)
		}
	}
}

func TestUserRateLimitRequiresUser(t *testing.T) {
	r := gin.New()
	r.GET("/sync", UserRateLimit(5, time.Minute), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sync", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", w.Code)
	}
}

func TestUserRateLimitPerUser(t *testing.T) {
	local.reset()
	defer local.reset()

	r := gin.New()
	r.GET("/sync", func(c *gin.Context) {
		c.Set("user_id", int64(7))
		c.Next()
	}, UserRateLimit(1, time.Minute), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/sync", nil))
	second := httptest.NewRecorder()
	r.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/sync", nil))

	if first.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", first.Code)
	}
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", second.Code)
	}
	if second.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("expected remaining 0, got %q", second.Header().Get("X-RateLimit-Remaining"))
	}
}
