package server

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartscan/internal/ratelimit"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("test"))
	})
}

func TestLoggingMiddleware(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	t.Run("Success", func(t *testing.T) {
		logs.Reset()
		req := httptest.NewRequest("GET", "/test", nil)
		w := httptest.NewRecorder()

		LoggingMiddleware(logger)(okHandler()).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "test", w.Body.String())
		assert.Contains(t, logs.String(), "level=INFO")
		assert.Contains(t, logs.String(), "path=/test")
		assert.Contains(t, logs.String(), "status=200")
	})

	t.Run("ForwardedForLoggedSeparately", func(t *testing.T) {
		logs.Reset()
		req := httptest.NewRequest("GET", "/test", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		req.Header.Set("X-Forwarded-For", "203.0.113.7")

		LoggingMiddleware(logger)(okHandler()).ServeHTTP(httptest.NewRecorder(), req)

		assert.Contains(t, logs.String(), "client=10.0.0.1")
		assert.Contains(t, logs.String(), "forwarded_for=203.0.113.7")
	})

	t.Run("ClientError", func(t *testing.T) {
		logs.Reset()
		notFound := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		LoggingMiddleware(logger)(notFound).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/missing", nil))

		assert.Contains(t, logs.String(), "level=WARN")
		assert.Contains(t, logs.String(), "status=404")
	})
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	t.Run("Generated", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

		assert.Len(t, seen, 36)
		assert.Equal(t, seen, w.Header().Get("X-Request-ID"))
	})

	t.Run("FromClient", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("X-Request-ID", "scanner-42")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, "scanner-42", seen)
		assert.Equal(t, "scanner-42", w.Header().Get("X-Request-ID"))
	})

	assert.Empty(t, RequestID(httptest.NewRequest("GET", "/", nil).Context()))
}

func TestCORSMiddleware(t *testing.T) {
	called := false
	handler := CORSMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("Normal request", func(t *testing.T) {
		called = false
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("POST", "/api/scan", nil))

		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
		assert.True(t, called)
	})

	t.Run("OPTIONS request", func(t *testing.T) {
		called = false
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("OPTIONS", "/api/scan", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.False(t, called, "preflight should not reach the handler")
	})
}

func TestRecoveryMiddleware(t *testing.T) {
	var logs bytes.Buffer
	panicHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	})

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()

	require.NotPanics(t, func() {
		RecoveryMiddleware(slog.New(slog.NewTextHandler(&logs, nil)))(panicHandler).ServeHTTP(w, req)
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Internal Server Error")
	assert.Contains(t, logs.String(), "test panic")
}

func TestContentTypeMiddleware(t *testing.T) {
	handler := ContentTypeMiddleware(okHandler())

	tests := []struct {
		path        string
		expectJSON  bool
		description string
	}{
		{"/api/scans", true, "API route should get JSON content type"},
		{"/api/health", true, "API health route should get JSON content type"},
		{"/", false, "Non-API route should not get JSON content type"},
		{"/metrics", false, "Metrics route should not get JSON content type"},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest("GET", tt.path, nil))

			if tt.expectJSON {
				assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			} else {
				assert.NotEqual(t, "application/json", w.Header().Get("Content-Type"))
			}
		})
	}
}

func TestSecurityMiddleware(t *testing.T) {
	w := httptest.NewRecorder()
	SecurityMiddleware(okHandler()).ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

	expectedHeaders := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"X-XSS-Protection":       "1; mode=block",
	}

	for header, expectedValue := range expectedHeaders {
		assert.Equal(t, expectedValue, w.Header().Get(header), header)
	}
}

type limitConfig struct {
	disabled bool
	rps      float64
	burst    int
}

func (c limitConfig) GetDisableRateLimit() bool { return c.disabled }
func (c limitConfig) GetRateLimitRPS() float64  { return c.rps }
func (c limitConfig) GetRateLimitBurst() int    { return c.burst }

func TestRateLimitMiddleware(t *testing.T) {
	t.Run("BlocksAfterBurst", func(t *testing.T) {
		limiter := ratelimit.NewClientLimiter(limitConfig{rps: 0.1, burst: 2})
		handler := RateLimitMiddleware(limiter, false, quietLogger())(okHandler())

		request := func(ip string) *httptest.ResponseRecorder {
			req := httptest.NewRequest("POST", "/api/scan", nil)
			req.RemoteAddr = ip + ":5555"
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			return w
		}

		assert.Equal(t, http.StatusOK, request("10.0.0.1").Code)
		assert.Equal(t, http.StatusOK, request("10.0.0.1").Code)

		w := request("10.0.0.1")
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "10", w.Header().Get("Retry-After"))
		assert.Contains(t, w.Body.String(), `"detail":"Rate limit exceeded`)

		// Other clients have their own bucket
		assert.Equal(t, http.StatusOK, request("10.0.0.2").Code)
	})

	t.Run("RotatingForwardedForStillLimited", func(t *testing.T) {
		limiter := ratelimit.NewClientLimiter(limitConfig{rps: 0.1, burst: 1})
		handler := RateLimitMiddleware(limiter, false, quietLogger())(okHandler())

		allowed := 0
		for i := 0; i < 50; i++ {
			req := httptest.NewRequest("POST", "/api/scan", nil)
			req.RemoteAddr = "203.0.113.7:40000"
			req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i))
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			if w.Code == http.StatusOK {
				allowed++
			}
		}

		assert.Equal(t, 1, allowed)
		assert.Equal(t, 1, limiter.Size(), "one bucket for the single peer")
	})

	t.Run("TrustedProxyUsesForwardedFor", func(t *testing.T) {
		limiter := ratelimit.NewClientLimiter(limitConfig{rps: 0.1, burst: 1})
		handler := RateLimitMiddleware(limiter, true, quietLogger())(okHandler())

		request := func(forwardedFor string) int {
			req := httptest.NewRequest("POST", "/api/scan", nil)
			req.RemoteAddr = "10.0.0.1:8080"
			req.Header.Set("X-Forwarded-For", forwardedFor)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			return w.Code
		}

		assert.Equal(t, http.StatusOK, request("198.51.100.1"))
		assert.Equal(t, http.StatusTooManyRequests, request("198.51.100.1"))
		assert.Equal(t, http.StatusOK, request("198.51.100.2"))
	})

	t.Run("Disabled", func(t *testing.T) {
		limiter := ratelimit.NewClientLimiter(limitConfig{disabled: true, rps: 0.1, burst: 1})
		handler := RateLimitMiddleware(limiter, false, quietLogger())(okHandler())

		for i := 0; i < 5; i++ {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest("POST", "/api/scan", nil))
			assert.Equal(t, http.StatusOK, w.Code)
		}
	})
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		trustProxy bool
		expected   string
	}{
		{"RemoteAddr", nil, "192.168.1.5:43210", false, "192.168.1.5"},
		{"ForwardedForIgnoredByDefault", map[string]string{"X-Forwarded-For": "203.0.113.7"}, "10.0.0.1:80", false, "10.0.0.1"},
		{"RealIPIgnoredByDefault", map[string]string{"X-Real-IP": "198.51.100.3"}, "10.0.0.1:80", false, "10.0.0.1"},
		{"ForwardedFor", map[string]string{"X-Forwarded-For": "203.0.113.7"}, "10.0.0.1:80", true, "203.0.113.7"},
		{"ForwardedForChain", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.2"}, "10.0.0.1:80", true, "203.0.113.7"},
		{"RealIP", map[string]string{"X-Real-IP": " 198.51.100.3 "}, "10.0.0.1:80", true, "198.51.100.3"},
		{"TrustedWithoutHeaders", nil, "10.0.0.1:80", true, "10.0.0.1"},
		{"NoPort", nil, "localhost", false, "localhost"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.expected, getClientIP(req, tt.trustProxy))
		})
	}
}

func TestChain(t *testing.T) {
	var callOrder []string

	record := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				callOrder = append(callOrder, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callOrder = append(callOrder, "handler")
	})

	Chain(handler, record("middleware1"), record("middleware2")).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/test", nil))

	assert.Equal(t, []string{"middleware1", "middleware2", "handler"}, callOrder)
}

func TestIsAPIRoute(t *testing.T) {
	tests := []struct {
		path     string
		expected bool
	}{
		{"/api/scans", true},
		{"/api/health", true},
		{"/api", false}, // Too short
		{"/apis/other", false},
		{"/", false},
		{"/scans", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.expected, isAPIRoute(tt.path))
		})
	}
}

func TestResponseWriter(t *testing.T) {
	w := httptest.NewRecorder()
	wrapper := &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}

	assert.Equal(t, http.StatusOK, wrapper.statusCode)

	wrapper.WriteHeader(http.StatusNotFound)
	assert.Equal(t, http.StatusNotFound, wrapper.statusCode)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
