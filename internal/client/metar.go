package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kjstillabower/aviation-weather-service/internal/cache"
	"github.com/kjstillabower/aviation-weather-service/internal/observability"
)

const metarCacheTTL = 300 * time.Second

// METARClient fetches raw METAR reports from the aviation weather data
// endpoint. All transport failures are absorbed here: callers receive
// the report, a stale cached copy, or absence — never a transport error.
type METARClient struct {
	baseURL string
	client  *http.Client
	cache   cache.Cache[string]
	ttl     time.Duration
}

func NewMETARClient(baseURL string, timeout time.Duration, store cache.Cache[string]) *METARClient {
	return &METARClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		cache:   store,
		ttl:     metarCacheTTL,
	}
}

// FetchRaw returns the raw report for one station, or nil when the
// upstream has no data for it. Results are cached for five minutes; on
// upstream failure a stale cached report is served instead of an error.
func (c *METARClient) FetchRaw(ctx context.Context, stationID string) *string {
	id := strings.ToUpper(strings.TrimSpace(stationID))
	key := metarKey(id)

	raw, err := c.cache.GetOrSet(ctx, key, c.ttl, func(ctx context.Context) (string, error) {
		lines, err := c.fetchLines(ctx, []string{id})
		if err != nil {
			return "", err
		}
		line, ok := lines[id]
		if !ok {
			return "", fmt.Errorf("%w: %s", errNoReport, id)
		}
		return line, nil
	}, true)
	if err != nil {
		return nil
	}
	return &raw
}

// FetchRawBatch returns raw reports for a set of stations, nil entries
// for stations without data. Inputs are deduplicated and uppercased.
// Cache misses are combined into a single upstream request; stations the
// response omits, or the whole batch on upstream failure, fall back
// independently to their stale cache entries. Never fails.
func (c *METARClient) FetchRawBatch(ctx context.Context, stationIDs []string) map[string]*string {
	results := make(map[string]*string)
	var misses []string
	for _, raw := range stationIDs {
		id := strings.ToUpper(strings.TrimSpace(raw))
		if id == "" {
			continue
		}
		if _, seen := results[id]; seen {
			continue
		}
		if v, ok := c.cache.Get(metarKey(id)); ok {
			observability.CacheHitsTotal.WithLabelValues("metar").Inc()
			results[id] = &v
			continue
		}
		results[id] = nil
		misses = append(misses, id)
	}

	if len(misses) == 0 {
		return results
	}

	lines, err := c.fetchLines(ctx, misses)
	for _, id := range misses {
		if err == nil {
			if line, ok := lines[id]; ok {
				c.cache.Set(metarKey(id), line, c.ttl)
				v := line
				results[id] = &v
				continue
			}
		}
		// Upstream failed or had no line for this station; each station
		// degrades to its own stale entry if one exists.
		if stale, ok := c.cache.GetStale(metarKey(id)); ok {
			observability.CacheStaleServesTotal.WithLabelValues("metar").Inc()
			results[id] = &stale
		}
	}
	return results
}

// fetchLines issues one upstream request for the given stations and
// returns a map of station to its report line. HTTP 204 means the
// upstream has no data for any of them: an empty map, not an error.
func (c *METARClient) fetchLines(ctx context.Context, ids []string) (map[string]string, error) {
	start := time.Now()

	base, err := url.Parse(c.baseURL + "/metar")
	if err != nil {
		return nil, fmt.Errorf("invalid METAR URL: %w", err)
	}
	params := url.Values{}
	params.Set("ids", strings.Join(ids, ","))
	params.Set("format", "raw")
	base.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", base.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if corrID := extractCorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues(observability.SourceMETAR, "error").Inc()
		observability.UpstreamDuration.WithLabelValues(observability.SourceMETAR, "error").Observe(time.Since(start).Seconds())
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	status := statusLabel(resp.StatusCode)
	observability.UpstreamCallsTotal.WithLabelValues(observability.SourceMETAR, status).Inc()
	observability.UpstreamDuration.WithLabelValues(observability.SourceMETAR, status).Observe(time.Since(start).Seconds())

	if resp.StatusCode == http.StatusNoContent {
		return map[string]string{}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return matchLines(string(body), ids), nil
}

// matchLines pairs each response line with the requested station whose
// identifier leads the line. Lines for stations nobody asked about are
// dropped.
func matchLines(body string, ids []string) map[string]string {
	requested := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		requested[id] = struct{}{}
	}

	lines := make(map[string]string)
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		station := strings.ToUpper(fields[0])
		if _, ok := requested[station]; ok {
			lines[station] = line
		}
	}
	return lines
}

func metarKey(id string) string {
	return "metar:" + id
}
