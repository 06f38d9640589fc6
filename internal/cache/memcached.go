package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

const keyPrefix = "avwx:"

// staleHorizon is how long past logical expiry an entry remains physically
// stored in memcached and available for stale reads.
const staleHorizon = 24 * time.Hour

// envelope wraps a cached value with its logical TTL. Memcached evicts on
// its own expiration, so the logical TTL lives inside the value and the
// physical expiration is pushed out by staleHorizon to keep stale reads
// working.
type envelope struct {
	Value    string `json:"value"`
	StoredAt int64  `json:"storedAt"` // unix seconds
	TTLSec   int64  `json:"ttlSeconds"`
}

// MemcachedStore implements Cache[string] on memcached, for deployments
// where several replicas should share one raw-report cache.
type MemcachedStore struct {
	client  *memcache.Client
	flights flightGroup[string]
}

// NewMemcachedStore creates a MemcachedStore. addrs is a comma-separated
// server list (e.g. "localhost:11211" or "host1:11211,host2:11211").
// timeout and maxIdleConns use package defaults when zero.
func NewMemcachedStore(addrs string, timeout time.Duration, maxIdleConns int) (*MemcachedStore, error) {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	return &MemcachedStore{client: client}, nil
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

func (m *MemcachedStore) key(k string) string {
	return keyPrefix + k
}

// fetch reads and decodes the envelope for key. Memcached errors are
// treated as misses; the fetch layer degrades rather than failing on a
// cache outage.
func (m *MemcachedStore) fetch(key string) (envelope, bool) {
	item, err := m.client.Get(m.key(key))
	if err != nil {
		return envelope{}, false
	}
	var env envelope
	if err := json.Unmarshal(item.Value, &env); err != nil {
		return envelope{}, false
	}
	return env, true
}

// Get returns the value for key if present and logically fresh.
func (m *MemcachedStore) Get(key string) (string, bool) {
	env, ok := m.fetch(key)
	if !ok {
		return "", false
	}
	if time.Now().Unix()-env.StoredAt > env.TTLSec {
		return "", false
	}
	return env.Value, true
}

// GetStale returns the value for key regardless of logical expiry. Entries
// older than staleHorizon have been evicted by memcached itself.
func (m *MemcachedStore) GetStale(key string) (string, bool) {
	env, ok := m.fetch(key)
	if !ok {
		return "", false
	}
	return env.Value, true
}

// Set stores value under key. Write errors are dropped: a failed cache
// write only costs a future upstream call.
func (m *MemcachedStore) Set(key string, value string, ttl time.Duration) {
	env := envelope{
		Value:    value,
		StoredAt: time.Now().Unix(),
		TTLSec:   int64(ttl.Seconds()),
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return
	}
	expSec := int32((ttl + staleHorizon).Seconds())
	const maxRelativeExp = 30 * 24 * 60 * 60 // memcached treats larger values as unix timestamps
	if expSec <= 0 || expSec > maxRelativeExp {
		expSec = maxRelativeExp
	}
	_ = m.client.Set(&memcache.Item{
		Key:        m.key(key),
		Value:      raw,
		Expiration: expSec,
	})
}

// GetOrSet mirrors Store.GetOrSet: fresh hit, else single-flight compute,
// else stale fallback when allowed.
func (m *MemcachedStore) GetOrSet(ctx context.Context, key string, ttl time.Duration, compute func(context.Context) (string, error), allowStaleOnError bool) (string, error) {
	if v, ok := m.Get(key); ok {
		return v, nil
	}
	v, err := m.flights.do(ctx, key, func() (string, error) {
		if v, ok := m.Get(key); ok {
			return v, nil
		}
		v, err := compute(ctx)
		if err != nil {
			return "", err
		}
		m.Set(key, v, ttl)
		return v, nil
	})
	if err != nil {
		if allowStaleOnError {
			if stale, ok := m.GetStale(key); ok {
				return stale, nil
			}
		}
		return "", err
	}
	return v, nil
}

// Delete removes key.
func (m *MemcachedStore) Delete(key string) {
	_ = m.client.Delete(m.key(key))
}

// Ping checks if memcached is reachable. Used for health checks.
func (m *MemcachedStore) Ping() error {
	return m.client.Ping()
}

// Close closes the memcached client connections. Call during shutdown.
func (m *MemcachedStore) Close() error {
	return m.client.Close()
}
