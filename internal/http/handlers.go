package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/aviation-weather-service/internal/client"
	"github.com/kjstillabower/aviation-weather-service/internal/degraded"
	"github.com/kjstillabower/aviation-weather-service/internal/lifecycle"
	"github.com/kjstillabower/aviation-weather-service/internal/service"
	"github.com/kjstillabower/aviation-weather-service/internal/traffic"
	"github.com/kjstillabower/aviation-weather-service/internal/validation"
)

// Window query bounds. hours defaults to a full day of forecast; the
// window size and result count keep responses small.
const (
	defaultForecastHours  = 24
	defaultWindowSize     = 3
	defaultMaxResults     = 5
	maxWindowQueryResults = 20
)

// HealthConfig holds lifecycle thresholds for the health handler.
type HealthConfig struct {
	RateLimitRPS     int
	RateLimitBurst   int // 0 when rate limiter disabled
	DegradedWindow   time.Duration
	DegradedErrorPct int
	MinimumLifespan  time.Duration
	StartTime        time.Time
	// CachePing, when set, is called to check cache reachability. Used when backend is memcached.
	CachePing func() error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	weatherService   *service.WeatherService
	healthConfig     *HealthConfig
	logger           *zap.Logger
	rateLimiter      *rate.Limiter
	currentEnabled   bool
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. currentEnabled controls whether the
// /current route is registered and reported in health checks.
func NewHandler(
	weatherService *service.WeatherService,
	healthConfig *HealthConfig,
	logger *zap.Logger,
	rateLimiter *rate.Limiter,
	currentEnabled bool,
) *Handler {
	return &Handler{
		weatherService: weatherService,
		healthConfig:   healthConfig,
		logger:         logger,
		rateLimiter:    rateLimiter,
		currentEnabled: currentEnabled,
	}
}

// GetStationConditions handles GET /conditions/{station}. Missing or
// unfetchable reports come back as UNKNOWN rather than an error, so this
// route only fails on invalid input.
func (h *Handler) GetStationConditions(w http.ResponseWriter, r *http.Request) {
	station, err := validation.ValidateStation(mux.Vars(r)["station"])
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_STATION", err.Error())
		return
	}

	result := h.weatherService.StationConditions(r.Context(), station)
	traffic.RecordSuccess()
	writeJSON(w, http.StatusOK, result)
}

// GetStationConditionsBatch handles GET /conditions?stations=A,B,C.
func (h *Handler) GetStationConditionsBatch(w http.ResponseWriter, r *http.Request) {
	stations, err := validation.ValidateStations(r.URL.Query().Get("stations"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_STATION", err.Error())
		return
	}

	results := h.weatherService.StationConditionsBatch(r.Context(), stations)
	traffic.RecordSuccess()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(results),
		"stations": results,
	})
}

// GetDepartureWindows handles GET /windows?lat=&lon=&hours=&window=&max=.
func (h *Handler) GetDepartureWindows(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_COORDINATES", "lat must be a number")
		return
	}
	lon, err := strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_COORDINATES", "lon must be a number")
		return
	}
	if err := validation.ValidateCoordinates(lat, lon); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_COORDINATES", err.Error())
		return
	}

	hours, err := queryInt(q.Get("hours"), defaultForecastHours)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_RANGE", "hours must be an integer")
		return
	}
	windowSize, err := queryInt(q.Get("window"), defaultWindowSize)
	if err != nil || windowSize < 1 {
		writeError(w, r, http.StatusBadRequest, "INVALID_RANGE", "window must be a positive integer")
		return
	}
	maxResults, err := queryInt(q.Get("max"), defaultMaxResults)
	if err != nil || maxResults < 1 {
		writeError(w, r, http.StatusBadRequest, "INVALID_RANGE", "max must be a positive integer")
		return
	}
	if maxResults > maxWindowQueryResults {
		maxResults = maxWindowQueryResults
	}

	windows, err := h.weatherService.BestDepartureWindows(r.Context(), lat, lon, hours, windowSize, maxResults)
	if err != nil {
		if errors.Is(err, client.ErrInvalidForecastRange) {
			writeError(w, r, http.StatusBadRequest, "INVALID_RANGE", "hours must be between 1 and 168")
			return
		}
		traffic.RecordError()
		writeServiceError(w, r, err)
		return
	}
	traffic.RecordSuccess()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"latitude":  lat,
		"longitude": lon,
		"count":     len(windows),
		"windows":   windows,
	})
}

// GetCurrentConditions handles GET /current/{location}. Registered only
// when a current-weather API key is configured.
func (h *Handler) GetCurrentConditions(w http.ResponseWriter, r *http.Request) {
	location, err := validation.ValidateLocation(mux.Vars(r)["location"], 2, 100)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_LOCATION", err.Error())
		return
	}

	result, err := h.weatherService.CurrentConditions(r.Context(), location)
	if err != nil {
		if errors.Is(err, client.ErrLocationNotFound) {
			writeError(w, r, http.StatusNotFound, "LOCATION_NOT_FOUND", "location not found: "+location)
			return
		}
		traffic.RecordError()
		writeServiceError(w, r, err)
		return
	}
	traffic.RecordSuccess()
	writeJSON(w, http.StatusOK, result)
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := map[string]string{
		"metarApi":    "healthy",
		"forecastApi": "healthy",
	}
	if result.status == "degraded" {
		checks["metarApi"] = "unhealthy"
		checks["forecastApi"] = "unhealthy"
	}
	if h.currentEnabled {
		checks["currentApi"] = checks["forecastApi"]
	}
	if h.healthConfig != nil && h.healthConfig.CachePing != nil {
		if h.healthConfig.CachePing() == nil {
			checks["cache"] = "healthy"
		} else {
			checks["cache"] = "unhealthy"
		}
	}

	window := 60 * time.Second
	if h.healthConfig != nil && h.healthConfig.DegradedWindow > 0 {
		window = h.healthConfig.DegradedWindow
	}
	resp := map[string]interface{}{
		"status":  result.status,
		"service": "aviation-weather-service",
		"version": "dev",
		"checks":  checks,
		"traffic": map[string]interface{}{
			"requests_in_window": traffic.RequestCount(window),
			"denials_in_window":  traffic.DenialCount(window),
			"window":             window.String(),
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(result.statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

// computeHealthStatus determines the current health status by evaluating
// conditions in priority order: shutting-down > degraded > healthy.
func (h *Handler) computeHealthStatus() healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if h.healthConfig != nil && h.healthConfig.DegradedWindow > 0 && h.healthConfig.DegradedErrorPct > 0 {
		errors, total := degraded.ErrorRate(h.healthConfig.DegradedWindow)
		if total > 0 {
			pct := float64(errors) * 100 / float64(total)
			if pct >= float64(h.healthConfig.DegradedErrorPct) {
				return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
			}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// queryInt parses an optional integer query parameter.
func queryInt(s string, defaultVal int) (int, error) {
	if s == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(s)
}

// writeJSON writes a JSON response with the specified HTTP status code.
// Sets Content-Type header to application/json and encodes the provided value.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	corrID := ""
	if v := r.Context().Value("correlation_id"); v != nil {
		corrID = v.(string)
	}
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": corrID,
		},
	})
}

// writeServiceError writes a 503 Service Unavailable error response for upstream failures.
// Logs the underlying error at DEBUG level if logger is available in request context.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "Unable to fetch weather data")
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		logger.Debug("upstream error",
			zap.Error(err),
			zap.String("errorCategory", string(client.CategorizeError(err))))
	}
}
