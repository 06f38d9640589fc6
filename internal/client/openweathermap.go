package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kjstillabower/aviation-weather-service/internal/cache"
	"github.com/kjstillabower/aviation-weather-service/internal/category"
	"github.com/kjstillabower/aviation-weather-service/internal/models"
	"github.com/kjstillabower/aviation-weather-service/internal/observability"
)

const (
	currentCacheTTL = 15 * time.Minute
	mphToKnots      = 0.868976
)

// CurrentWeatherClient fetches point weather from the keyed
// current-weather API, for locations without METAR coverage. The API key
// is a deployment concern: construction fails without one, there is no
// runtime fallback.
type CurrentWeatherClient struct {
	apiKey         string
	apiURL         string
	timeout        time.Duration
	client         *http.Client
	cache          cache.Cache[string]
	ttl            time.Duration
	retryAttempts  int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
}

func NewCurrentWeatherClient(apiKey, apiURL string, timeout time.Duration, store cache.Cache[string]) (*CurrentWeatherClient, error) {
	return NewCurrentWeatherClientWithRetry(apiKey, apiURL, timeout, store, 3, 100*time.Millisecond, 2*time.Second)
}

func NewCurrentWeatherClientWithRetry(apiKey, apiURL string, timeout time.Duration, store cache.Cache[string], retryAttempts int, retryBaseDelay, retryMaxDelay time.Duration) (*CurrentWeatherClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}
	if len(apiKey) < 10 {
		return nil, fmt.Errorf("%w: API key appears invalid (too short)", ErrInvalidAPIKey)
	}

	return &CurrentWeatherClient{
		apiKey:         apiKey,
		apiURL:         apiURL,
		timeout:        timeout,
		cache:          store,
		ttl:            currentCacheTTL,
		retryAttempts:  retryAttempts,
		retryBaseDelay: retryBaseDelay,
		retryMaxDelay:  retryMaxDelay,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type openWeatherResponse struct {
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
		Deg   int     `json:"deg"`
	} `json:"wind"`
	Clouds struct {
		All float64 `json:"all"`
	} `json:"clouds"`
	Visibility float64 `json:"visibility"`
	Name       string  `json:"name"`
}

// GetCurrent returns standardized current conditions for a location.
// Fresh results are cached for fifteen minutes; on failure a stale
// cached value is served if present, else the error surfaces as
// ErrCurrentUnavailable with the cause attached.
func (c *CurrentWeatherClient) GetCurrent(ctx context.Context, location string) (models.CurrentConditions, error) {
	key := "current:" + strings.ToLower(strings.TrimSpace(location))

	raw, err := c.cache.GetOrSet(ctx, key, c.ttl, func(ctx context.Context) (string, error) {
		conditions, err := c.getWithRetry(ctx, location)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrCurrentUnavailable, err)
		}
		encoded, err := json.Marshal(conditions)
		if err != nil {
			return "", fmt.Errorf("encode current conditions: %w", err)
		}
		return string(encoded), nil
	}, true)
	if err != nil {
		return models.CurrentConditions{}, err
	}

	var conditions models.CurrentConditions
	if err := json.Unmarshal([]byte(raw), &conditions); err != nil {
		return models.CurrentConditions{}, fmt.Errorf("decode cached current conditions: %w", err)
	}
	return conditions, nil
}

func (c *CurrentWeatherClient) getWithRetry(ctx context.Context, location string) (models.CurrentConditions, error) {
	var lastErr error

	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if attempt > 0 {
			observability.UpstreamRetriesTotal.Inc()
			delay := c.calculateBackoff(attempt)
			select {
			case <-ctx.Done():
				return models.CurrentConditions{}, ctx.Err()
			case <-time.After(delay):
			}
		}

		result, err := c.callAPI(ctx, location)
		if err == nil {
			return result, nil
		}

		lastErr = err
		if !c.isRetryable(err) {
			return models.CurrentConditions{}, err
		}
	}

	return models.CurrentConditions{}, fmt.Errorf("exhausted retries: %w", lastErr)
}

func (c *CurrentWeatherClient) callAPI(ctx context.Context, location string) (models.CurrentConditions, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, location)
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues(observability.SourceCurrent, "error").Inc()
		return models.CurrentConditions{}, fmt.Errorf("build request: %w", err)
	}

	if corrID := extractCorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.UpstreamCallsTotal.WithLabelValues(observability.SourceCurrent, "error").Inc()
		observability.UpstreamDuration.WithLabelValues(observability.SourceCurrent, "error").Observe(duration)

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return models.CurrentConditions{}, fmt.Errorf("request timeout: %w", err)
		}
		return models.CurrentConditions{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	duration := time.Since(start).Seconds()
	status := statusLabel(resp.StatusCode)
	observability.UpstreamCallsTotal.WithLabelValues(observability.SourceCurrent, status).Inc()
	observability.UpstreamDuration.WithLabelValues(observability.SourceCurrent, status).Observe(duration)

	if err := c.handleErrorResponse(resp); err != nil {
		return models.CurrentConditions{}, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.CurrentConditions{}, fmt.Errorf("read response body: %w", err)
	}

	var apiResp openWeatherResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return models.CurrentConditions{}, fmt.Errorf("parse response: %w", err)
	}

	return c.mapResponse(apiResp), nil
}

func (c *CurrentWeatherClient) isRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrRateLimited) {
		return true
	}
	if errors.Is(err, ErrUpstreamFailure) {
		return true
	}

	errStr := err.Error()
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "context deadline exceeded") || strings.Contains(errStr, "context canceled") {
		return true
	}

	return false
}

func (c *CurrentWeatherClient) calculateBackoff(attempt int) time.Duration {
	delay := float64(c.retryBaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(c.retryMaxDelay) {
		delay = float64(c.retryMaxDelay)
	}

	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}

func (c *CurrentWeatherClient) buildRequest(ctx context.Context, location string) (*http.Request, error) {
	baseURL, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	params := url.Values{}
	params.Set("q", location)
	params.Set("appid", c.apiKey)
	params.Set("units", "imperial")
	baseURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *CurrentWeatherClient) handleErrorResponse(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: rejected by upstream", ErrInvalidAPIKey)
	case http.StatusNotFound:
		return fmt.Errorf("%w", ErrLocationNotFound)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w", ErrRateLimited)
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}

	return nil
}

// mapResponse standardizes the upstream payload into aviation units:
// wind mph to knots, visibility meters to statute miles, ceiling
// estimated from cloud cover.
func (c *CurrentWeatherClient) mapResponse(apiResp openWeatherResponse) models.CurrentConditions {
	conditions := ""
	if len(apiResp.Weather) > 0 {
		conditions = apiResp.Weather[0].Main
		if apiResp.Weather[0].Description != "" {
			conditions = apiResp.Weather[0].Description
		}
	}

	return models.CurrentConditions{
		Conditions:       conditions,
		TemperatureF:     int(math.Round(apiResp.Main.Temp)),
		WindSpeedKt:      int(math.Round(apiResp.Wind.Speed * mphToKnots)),
		WindDirectionDeg: apiResp.Wind.Deg,
		VisibilitySM:     apiResp.Visibility / 1609.34,
		CeilingFt:        category.CeilingFromCloudCover(&apiResp.Clouds.All),
		Timestamp:        time.Now(),
	}
}

func extractCorrelationID(ctx context.Context) string {
	if corrIDVal := ctx.Value("correlation_id"); corrIDVal != nil {
		if corrID, ok := corrIDVal.(string); ok {
			return corrID
		}
	}
	return ""
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}

// ValidateAPIKey issues a probe request so a bad key fails deployment
// at startup instead of on the first user query.
func (c *CurrentWeatherClient) ValidateAPIKey(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := c.buildRequest(ctx, "London")
	if err != nil {
		return fmt.Errorf("build validation request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("validation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: API key is invalid or not activated", ErrInvalidAPIKey)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("validation failed: HTTP %d", resp.StatusCode)
	}

	return nil
}
