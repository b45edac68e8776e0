package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/clientops/pkg/observability"
)

// Memory is a process-local LRU with per-entry expiry
type Memory struct {
	lru     *lru.LRU[string, []byte]
	metrics *observability.Metrics
}

// NewMemory creates a local cache holding at most size entries for ttl each
func NewMemory(size int, ttl time.Duration, metrics *observability.Metrics) *Memory {
	if size < 1 {
		size = 16
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{
		lru:     lru.NewLRU[string, []byte](size, nil, ttl),
		metrics: metrics,
	}
}

// Get returns the stored bytes or ErrMiss
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.lru.Get(key)
	m.metrics.RecordCache("memory", ok)
	if !ok {
		return nil, ErrMiss
	}
	return v, nil
}

// Set stores value under key
func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.lru.Add(key, value)
	return nil
}

// Delete removes key
func (m *Memory) Delete(_ context.Context, key string) error {
	m.lru.Remove(key)
	return nil
}

// Len returns the number of live entries
func (m *Memory) Len() int {
	return m.lru.Len()
}
