package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// MemoryStore keeps hit timestamps in process memory. Run sweeps idle keys.
type MemoryStore struct {
	mu   sync.Mutex
	hits map[string][]time.Time
	// widest window seen, used by Sweep
	window time.Duration
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{hits: make(map[string][]time.Time)}
}

func (s *MemoryStore) Hit(ctx context.Context, key string, now time.Time, limit int, window time.Duration) (bool, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if window > s.window {
		s.window = window
	}

	hits := live(s.hits[key], now, window)
	if len(hits) >= limit {
		s.hits[key] = hits
		return false, hits[0], nil
	}
	s.hits[key] = append(hits, now)
	return true, time.Time{}, nil
}

// Sweep drops expired hits and forgets keys with none left.
func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, hits := range s.hits {
		hits = live(hits, now, s.window)
		if len(hits) == 0 {
			delete(s.hits, key)
			removed++
			continue
		}
		s.hits[key] = hits
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (s *MemoryStore) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if removed := s.Sweep(now); removed > 0 {
				log.Debug().Int("keys", removed).Msg("rate limit sweep")
			}
		}
	}
}

func (s *MemoryStore) keys() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.hits)
}

// live returns the suffix of hits younger than window. hits is ordered oldest
// first.
func live(hits []time.Time, now time.Time, window time.Duration) []time.Time {
	i := 0
	for i < len(hits) && now.Sub(hits[i]) >= window {
		i++
	}
	return hits[i:]
}
