package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type recordingFetcher struct {
	mu    sync.Mutex
	calls [][]string
}

func (f *recordingFetcher) FetchRawBatch(ctx context.Context, stationIDs []string) map[string]*string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, stationIDs)
	out := make(map[string]*string, len(stationIDs))
	for _, id := range stationIDs {
		raw := id + " 251756Z 28015KT 10SM CLR 18/12 A3001"
		out[id] = &raw
	}
	return out
}

func (f *recordingFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// TestWarmer_RunOncePrefetchesAllStations verifies one warming cycle
// issues a single batch fetch covering the full station list.
func TestWarmer_RunOncePrefetchesAllStations(t *testing.T) {
	fetcher := &recordingFetcher{}
	warmer := NewWarmer(fetcher, []string{"KSFO", "KBOS", "KSEA"}, time.Minute, zap.NewNop())

	warmer.runOnce()

	if fetcher.callCount() != 1 {
		t.Fatalf("fetch calls = %d, want 1 batch", fetcher.callCount())
	}
	if got := len(fetcher.calls[0]); got != 3 {
		t.Errorf("batch size = %d, want 3", got)
	}
}

// TestWarmer_StartWithoutStations verifies an empty station list is a
// no-op rather than an error.
func TestWarmer_StartWithoutStations(t *testing.T) {
	fetcher := &recordingFetcher{}
	warmer := NewWarmer(fetcher, nil, time.Minute, zap.NewNop())
	defer warmer.Stop()

	if err := warmer.Start(); err != nil {
		t.Fatalf("Start() error = %v, want nil for empty list", err)
	}
	if fetcher.callCount() != 0 {
		t.Errorf("fetch calls = %d, want 0", fetcher.callCount())
	}
}

// TestWarmer_StartAndStop verifies the scheduler starts and stops
// cleanly with a configured list.
func TestWarmer_StartAndStop(t *testing.T) {
	fetcher := &recordingFetcher{}
	warmer := NewWarmer(fetcher, []string{"KSFO"}, time.Hour, zap.NewNop())

	if err := warmer.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	warmer.Stop()
}
