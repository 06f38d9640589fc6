package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/aviation-weather-service/internal/category"
	"github.com/kjstillabower/aviation-weather-service/internal/observability"
	"github.com/kjstillabower/aviation-weather-service/internal/service"
)

func newMiddlewareRouter(t *testing.T, forecast *mockForecast, limiter *rate.Limiter, timeout time.Duration) *mux.Router {
	t.Helper()
	metarSource := &mockMETAR{reports: map[string]string{
		"KSFO": "KSFO 251756Z 28015KT 10SM BKN035 18/12 A3001",
	}}
	if forecast == nil {
		forecast = &mockForecast{}
	}
	weatherService := service.NewWeatherService(metarSource, forecast, nil, category.DefaultThresholds())

	logger := zap.NewNop()
	handler := NewHandler(weatherService, nil, logger, limiter, false)

	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)

	weatherRouter := router.NewRoute().Subrouter()
	weatherRouter.Use(RateLimitMiddleware(limiter))
	if timeout > 0 {
		weatherRouter.Use(TimeoutMiddleware(timeout))
	}
	weatherRouter.HandleFunc("/conditions", handler.GetStationConditionsBatch).Methods("GET")
	weatherRouter.HandleFunc("/conditions/{station}", handler.GetStationConditions).Methods("GET")
	weatherRouter.HandleFunc("/windows", handler.GetDepartureWindows).Methods("GET")

	router.HandleFunc("/health", handler.GetHealth).Methods("GET")
	return router
}

// TestMiddleware_ThroughHandler verifies the full chain serves a station
// request and stamps a generated correlation ID.
func TestMiddleware_ThroughHandler(t *testing.T) {
	router := newMiddlewareRouter(t, nil, nil, 0)

	req := httptest.NewRequest("GET", "/conditions/KSFO", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if w.Header().Get("X-Correlation-ID") == "" {
		t.Error("X-Correlation-ID header missing")
	}
}

// TestMiddleware_CorrelationIDPropagated verifies a client-supplied
// correlation ID is echoed back unchanged.
func TestMiddleware_CorrelationIDPropagated(t *testing.T) {
	router := newMiddlewareRouter(t, nil, nil, 0)

	req := httptest.NewRequest("GET", "/conditions/KSFO", nil)
	req.Header.Set("X-Correlation-ID", "client-provided-id")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Correlation-ID"); got != "client-provided-id" {
		t.Errorf("X-Correlation-ID = %q, want client-provided-id", got)
	}
}

// TestTimeoutMiddleware_CancelsContextAfterTimeout verifies a slow
// forecast upstream is cut off by the request deadline.
func TestTimeoutMiddleware_CancelsContextAfterTimeout(t *testing.T) {
	forecast := &mockForecast{block: make(chan struct{})}
	defer close(forecast.block)

	router := newMiddlewareRouter(t, forecast, nil, 50*time.Millisecond)

	req := httptest.NewRequest("GET", "/windows?lat=37.62&lon=-122.37", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 (timeout surfaces as upstream error)", w.Code)
	}
}

// TestRateLimitMiddleware_Returns429WhenExceeded verifies the token
// bucket denies the third request and the 429 body carries RATE_LIMITED.
func TestRateLimitMiddleware_Returns429WhenExceeded(t *testing.T) {
	limiter := rate.NewLimiter(1, 2)
	router := newMiddlewareRouter(t, nil, limiter, 0)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("GET", "/conditions/KSFO", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if i < 2 {
			if w.Code != http.StatusOK {
				t.Errorf("request %d: status = %d, want 200", i, w.Code)
			}
			continue
		}
		if w.Code != http.StatusTooManyRequests {
			t.Errorf("request %d: status = %d, want 429", i, w.Code)
		}
		var resp errorResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("decode 429 response: %v", err)
		}
		if resp.Error.Code != "RATE_LIMITED" {
			t.Errorf("error.code = %q, want RATE_LIMITED", resp.Error.Code)
		}
	}
}

// TestRateLimitMiddleware_NilLimiterPassesThrough verifies a nil limiter
// disables rate limiting entirely.
func TestRateLimitMiddleware_NilLimiterPassesThrough(t *testing.T) {
	router := newMiddlewareRouter(t, nil, nil, 0)

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest("GET", "/conditions/KSFO", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want 200 (nil limiter should allow)", i, w.Code)
		}
	}
}

// TestMiddleware_HealthNotRateLimited verifies health stays outside the
// rate-limited subrouter.
func TestMiddleware_HealthNotRateLimited(t *testing.T) {
	limiter := rate.NewLimiter(0, 0) // denies everything
	router := newMiddlewareRouter(t, nil, limiter, 0)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code == http.StatusTooManyRequests {
		t.Error("health returned 429, want health exempt from rate limiting")
	}
}

// TestMiddleware_MetricsRoute verifies the metrics endpoint serves
// through the chain.
func TestMiddleware_MetricsRoute(t *testing.T) {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(zap.NewNop()))
	router.Use(MetricsMiddleware)
	router.Handle("/metrics", observability.MetricsHandler())

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

// TestGetRoute verifies route templating keeps metric cardinality low.
func TestGetRoute(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/health", "/health"},
		{"/metrics", "/metrics"},
		{"/conditions", "/conditions"},
		{"/conditions/KSFO", "/conditions/{station}"},
		{"/windows", "/windows"},
		{"/current/Half Moon Bay", "/current/{location}"},
		{"/other", "/other"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "http://example.com/", nil)
		req.URL.Path = tt.path
		if got := getRoute(req); got != tt.want {
			t.Errorf("getRoute(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
