package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kjstillabower/aviation-weather-service/internal/cache"
)

// newMETARTestServer serves canned report lines for the stations it
// knows, 204 when none of the requested stations match.
func newMETARTestServer(t *testing.T, reports map[string]string, calls *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			*calls++
		}
		if r.URL.Path != "/metar" {
			http.NotFound(w, r)
			return
		}
		var lines []string
		for _, id := range strings.Split(r.URL.Query().Get("ids"), ",") {
			if line, ok := reports[id]; ok {
				lines = append(lines, line)
			}
		}
		if len(lines) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Write([]byte(strings.Join(lines, "\n")))
	}))
}

// TestFetchRaw_ReturnsReport verifies the single-station happy path,
// including lowercase input normalization.
func TestFetchRaw_ReturnsReport(t *testing.T) {
	srv := newMETARTestServer(t, map[string]string{
		"KSFO": "KSFO 141756Z 27015KT 10SM FEW015 14/09 A3012",
	}, nil)
	defer srv.Close()

	c := NewMETARClient(srv.URL, time.Second, cache.NewStore[string]())

	got := c.FetchRaw(context.Background(), "ksfo")
	if got == nil {
		t.Fatal("FetchRaw returned nil, want report")
	}
	if !strings.HasPrefix(*got, "KSFO") {
		t.Errorf("FetchRaw = %q, want KSFO report", *got)
	}
}

// TestFetchRaw_NoContent verifies that upstream 204 yields absence, not
// an error or a cached empty string.
func TestFetchRaw_NoContent(t *testing.T) {
	srv := newMETARTestServer(t, nil, nil)
	defer srv.Close()

	store := cache.NewStore[string]()
	c := NewMETARClient(srv.URL, time.Second, store)

	if got := c.FetchRaw(context.Background(), "KZZZ"); got != nil {
		t.Errorf("FetchRaw = %q, want nil for 204", *got)
	}
	if _, ok := store.GetStale(metarKey("KZZZ")); ok {
		t.Error("absence should not be cached")
	}
}

// TestFetchRaw_CachesResult verifies that a second fetch within the TTL
// does not hit upstream.
func TestFetchRaw_CachesResult(t *testing.T) {
	var calls int
	srv := newMETARTestServer(t, map[string]string{
		"KBOS": "KBOS 011954Z 09012KT 10SM CLR 22/14 A2992",
	}, &calls)
	defer srv.Close()

	c := NewMETARClient(srv.URL, time.Second, cache.NewStore[string]())

	c.FetchRaw(context.Background(), "KBOS")
	c.FetchRaw(context.Background(), "KBOS")
	if calls != 1 {
		t.Errorf("upstream calls = %d, want 1 (second fetch served from cache)", calls)
	}
}

// TestFetchRaw_ServesStaleOnFailure verifies the stale fallback: a
// previously cached report survives an upstream outage.
func TestFetchRaw_ServesStaleOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := cache.NewStore[string]()
	// Seed an already-expired entry.
	store.Set(metarKey("KSEA"), "KSEA 012053Z 18008KT 10SM OVC035 15/11 A3010", -time.Second)

	c := NewMETARClient(srv.URL, time.Second, store)

	got := c.FetchRaw(context.Background(), "KSEA")
	if got == nil {
		t.Fatal("FetchRaw = nil, want stale report on upstream failure")
	}
	if !strings.HasPrefix(*got, "KSEA") {
		t.Errorf("FetchRaw = %q, want stale KSEA report", *got)
	}
}

// TestFetchRaw_FailureWithoutStale verifies that with no cached copy an
// upstream failure degrades to absence, never an error surfaced upward.
func TestFetchRaw_FailureWithoutStale(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewMETARClient(srv.URL, time.Second, cache.NewStore[string]())

	if got := c.FetchRaw(context.Background(), "KORD"); got != nil {
		t.Errorf("FetchRaw = %q, want nil", *got)
	}
}

// TestFetchRawBatch_SingleUpstreamCall verifies that all cache misses
// are combined into one request and each station gets its own line.
func TestFetchRawBatch_SingleUpstreamCall(t *testing.T) {
	var calls int
	srv := newMETARTestServer(t, map[string]string{
		"KSFO": "KSFO 141756Z 27015KT 10SM 14/09 A3012",
		"KBOS": "KBOS 011954Z 09012KT 10SM CLR 22/14 A2992",
	}, &calls)
	defer srv.Close()

	c := NewMETARClient(srv.URL, time.Second, cache.NewStore[string]())

	got := c.FetchRawBatch(context.Background(), []string{"ksfo", "KBOS", "KSFO", "KZZZ"})
	if calls != 1 {
		t.Errorf("upstream calls = %d, want 1", calls)
	}
	if len(got) != 3 {
		t.Fatalf("result has %d stations, want 3 (deduplicated)", len(got))
	}
	if got["KSFO"] == nil || !strings.HasPrefix(*got["KSFO"], "KSFO") {
		t.Error("missing KSFO report")
	}
	if got["KBOS"] == nil || !strings.HasPrefix(*got["KBOS"], "KBOS") {
		t.Error("missing KBOS report")
	}
	if got["KZZZ"] != nil {
		t.Errorf("KZZZ = %q, want nil (no upstream line)", *got["KZZZ"])
	}
}

// TestFetchRawBatch_CacheHitsSkipUpstream verifies that fully cached
// batches issue no upstream call at all.
func TestFetchRawBatch_CacheHitsSkipUpstream(t *testing.T) {
	var calls int
	srv := newMETARTestServer(t, nil, &calls)
	defer srv.Close()

	store := cache.NewStore[string]()
	store.Set(metarKey("KSFO"), "KSFO 141756Z 27015KT 10SM 14/09 A3012", time.Minute)

	c := NewMETARClient(srv.URL, time.Second, store)

	got := c.FetchRawBatch(context.Background(), []string{"KSFO"})
	if calls != 0 {
		t.Errorf("upstream calls = %d, want 0", calls)
	}
	if got["KSFO"] == nil {
		t.Error("cached KSFO report missing from batch result")
	}
}

// TestFetchRawBatch_PerStationStaleFallback verifies that on total
// upstream failure each station independently falls back to its stale
// entry or absence.
func TestFetchRawBatch_PerStationStaleFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	store := cache.NewStore[string]()
	store.Set(metarKey("KSEA"), "KSEA 012053Z 18008KT 10SM OVC035 15/11 A3010", -time.Second)

	c := NewMETARClient(srv.URL, time.Second, store)

	got := c.FetchRawBatch(context.Background(), []string{"KSEA", "KPDX"})
	if got["KSEA"] == nil {
		t.Error("KSEA should fall back to its stale entry")
	}
	if got["KPDX"] != nil {
		t.Errorf("KPDX = %q, want nil (no stale entry)", *got["KPDX"])
	}
}

// TestMatchLines verifies leading-token matching, including unrequested
// and blank lines being dropped.
func TestMatchLines(t *testing.T) {
	body := "KSFO 141756Z 27015KT\n\nKBOS 011954Z 09012KT\nKLAX 010000Z 25010KT\n"
	got := matchLines(body, []string{"KSFO", "KBOS"})
	if len(got) != 2 {
		t.Fatalf("matched %d lines, want 2", len(got))
	}
	if _, ok := got["KLAX"]; ok {
		t.Error("unrequested KLAX line should be dropped")
	}
}
