package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/kjstillabower/aviation-weather-service/internal/cache"
	"github.com/kjstillabower/aviation-weather-service/internal/models"
	"github.com/kjstillabower/aviation-weather-service/internal/observability"
)

const (
	forecastCacheTTL  = 30 * time.Minute
	maxForecastHours  = 168
	hourlyTimeLayout  = "2006-01-02T15:04"
	forecastVariables = "visibility,cloudcover,precipitation,windspeed_10m"
)

// ForecastClient fetches hourly forecast series from the open forecast
// endpoint. Calls go through a circuit breaker so a dead upstream fails
// fast; results are cached for thirty minutes with stale fallback.
type ForecastClient struct {
	baseURL string
	client  *http.Client
	cache   cache.Cache[string]
	breaker *gobreaker.CircuitBreaker
	ttl     time.Duration
}

func NewForecastClient(baseURL string, timeout time.Duration, store cache.Cache[string]) *ForecastClient {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "forecast",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				observability.BreakerOpenTotal.Inc()
			}
		},
	})
	return &ForecastClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		cache:   store,
		breaker: breaker,
		ttl:     forecastCacheTTL,
	}
}

// Hourly returns up to hours of forecast points for a coordinate,
// ordered by time ascending. On upstream failure a stale cached series
// is served if one exists; otherwise the error surfaces as
// ErrForecastUnavailable with the cause attached.
func (c *ForecastClient) Hourly(ctx context.Context, latitude, longitude float64, hours int) ([]models.HourlyPoint, error) {
	if hours < 1 || hours > maxForecastHours {
		return nil, fmt.Errorf("%w: %d (want 1-%d)", ErrInvalidForecastRange, hours, maxForecastHours)
	}

	key := fmt.Sprintf("forecast:%.4f:%.4f:%d", latitude, longitude, hours)
	raw, err := c.cache.GetOrSet(ctx, key, c.ttl, func(ctx context.Context) (string, error) {
		result, err := c.breaker.Execute(func() (interface{}, error) {
			return c.fetchHourly(ctx, latitude, longitude, hours)
		})
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrForecastUnavailable, err)
		}
		encoded, err := json.Marshal(result)
		if err != nil {
			return "", fmt.Errorf("encode forecast: %w", err)
		}
		return string(encoded), nil
	}, true)
	if err != nil {
		return nil, err
	}

	var points []models.HourlyPoint
	if err := json.Unmarshal([]byte(raw), &points); err != nil {
		return nil, fmt.Errorf("decode cached forecast: %w", err)
	}
	return points, nil
}

// openMeteoResponse carries the parallel time-indexed arrays the
// forecast endpoint returns. Pointer elements tolerate JSON nulls.
type openMeteoResponse struct {
	Hourly struct {
		Time          []string   `json:"time"`
		Visibility    []*float64 `json:"visibility"`
		CloudCover    []*float64 `json:"cloudcover"`
		Precipitation []*float64 `json:"precipitation"`
		WindSpeed10m  []*float64 `json:"windspeed_10m"`
	} `json:"hourly"`
}

func (c *ForecastClient) fetchHourly(ctx context.Context, latitude, longitude float64, hours int) ([]models.HourlyPoint, error) {
	start := time.Now()

	base, err := url.Parse(c.baseURL + "/forecast")
	if err != nil {
		return nil, fmt.Errorf("invalid forecast URL: %w", err)
	}
	params := url.Values{}
	params.Set("latitude", fmt.Sprintf("%.4f", latitude))
	params.Set("longitude", fmt.Sprintf("%.4f", longitude))
	params.Set("hourly", forecastVariables)
	params.Set("windspeed_unit", "kn")
	params.Set("timezone", "UTC")
	params.Set("forecast_days", fmt.Sprintf("%d", forecastDays(hours)))
	base.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", base.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if corrID := extractCorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues(observability.SourceForecast, "error").Inc()
		observability.UpstreamDuration.WithLabelValues(observability.SourceForecast, "error").Observe(time.Since(start).Seconds())
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	status := statusLabel(resp.StatusCode)
	observability.UpstreamCallsTotal.WithLabelValues(observability.SourceForecast, status).Inc()
	observability.UpstreamDuration.WithLabelValues(observability.SourceForecast, status).Observe(time.Since(start).Seconds())

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	var apiResp openMeteoResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	return mapHourly(apiResp, hours)
}

// forecastDays requests enough whole days to cover the hour horizon,
// capped at the endpoint's seven-day free tier.
func forecastDays(hours int) int {
	days := hours/24 + 2
	if days > 7 {
		days = 7
	}
	return days
}

// mapHourly zips the parallel arrays into points, truncated to the
// requested horizon. Array length mismatches leave the short fields
// absent rather than failing the whole series.
func mapHourly(resp openMeteoResponse, hours int) ([]models.HourlyPoint, error) {
	h := resp.Hourly
	if len(h.Time) == 0 {
		return nil, fmt.Errorf("%w: empty hourly series", ErrUpstreamFailure)
	}

	n := len(h.Time)
	if n > hours {
		n = hours
	}

	points := make([]models.HourlyPoint, 0, n)
	for i := 0; i < n; i++ {
		ts, err := time.Parse(hourlyTimeLayout, h.Time[i])
		if err != nil {
			return nil, fmt.Errorf("parse hourly timestamp %q: %w", h.Time[i], err)
		}
		points = append(points, models.HourlyPoint{
			Time:            ts.UTC(),
			VisibilityM:     at(h.Visibility, i),
			CloudCoverPct:   at(h.CloudCover, i),
			PrecipitationMm: at(h.Precipitation, i),
			WindSpeedKt:     at(h.WindSpeed10m, i),
		})
	}
	return points, nil
}

func at(values []*float64, i int) *float64 {
	if i >= len(values) {
		return nil
	}
	return values[i]
}
