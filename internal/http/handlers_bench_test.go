package http

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/aviation-weather-service/internal/category"
	"github.com/kjstillabower/aviation-weather-service/internal/models"
	"github.com/kjstillabower/aviation-weather-service/internal/service"
)

func benchmarkRouter(metarSource *mockMETAR, forecast *mockForecast, limiter *rate.Limiter) *mux.Router {
	if metarSource == nil {
		metarSource = &mockMETAR{reports: map[string]string{
			"KSFO": "KSFO 251756Z 28015KT 10SM BKN035 18/12 A3001",
		}}
	}
	if forecast == nil {
		forecast = &mockForecast{}
	}
	weatherService := service.NewWeatherService(metarSource, forecast, nil, category.DefaultThresholds())
	handler := NewHandler(weatherService, nil, zap.NewNop(), limiter, false)

	router := mux.NewRouter()
	router.Use(RateLimitMiddleware(limiter))
	router.HandleFunc("/conditions/{station}", handler.GetStationConditions)
	router.HandleFunc("/windows", handler.GetDepartureWindows)
	router.HandleFunc("/health", handler.GetHealth)
	return router
}

// BenchmarkHandler_StationConditions measures the full parse-classify
// pipeline behind the station route.
func BenchmarkHandler_StationConditions(b *testing.B) {
	router := benchmarkRouter(nil, nil, nil)
	req := httptest.NewRequest("GET", "/conditions/KSFO", nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
	}
}

// BenchmarkHandler_StationConditions_ValidationError measures the
// rejection fast path.
func BenchmarkHandler_StationConditions_ValidationError(b *testing.B) {
	router := benchmarkRouter(nil, nil, nil)
	req := httptest.NewRequest("GET", "/conditions/X", nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
	}
}

// BenchmarkHandler_DepartureWindows measures window scoring over a
// day-sized forecast series.
func BenchmarkHandler_DepartureWindows(b *testing.B) {
	base := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	hourly := make([]models.HourlyPoint, 24)
	for i := range hourly {
		hourly[i] = models.HourlyPoint{
			Time:            base.Add(time.Duration(i) * time.Hour),
			VisibilityM:     models.Ptr(16093.4),
			CloudCoverPct:   models.Ptr(float64(i * 4)),
			PrecipitationMm: models.Ptr(0.1),
			WindSpeedKt:     models.Ptr(12.0),
		}
	}
	router := benchmarkRouter(nil, &mockForecast{hourly: hourly}, nil)
	req := httptest.NewRequest("GET", "/windows?lat=37.62&lon=-122.37&hours=24&window=3&max=5", nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
	}
}

// BenchmarkHandler_RateLimited measures the denial path.
func BenchmarkHandler_RateLimited(b *testing.B) {
	limiter := rate.NewLimiter(0, 0)
	router := benchmarkRouter(nil, nil, limiter)
	req := httptest.NewRequest("GET", "/conditions/KSFO", nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
	}
}

// BenchmarkHandler_GetHealth measures the health computation.
func BenchmarkHandler_GetHealth(b *testing.B) {
	router := benchmarkRouter(nil, nil, nil)
	req := httptest.NewRequest("GET", "/health", nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
	}
}
