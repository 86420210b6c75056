package engine

import (
	"time"

	"github.com/fyrsmithlabs/shiftd/internal/generator"
	"github.com/fyrsmithlabs/shiftd/internal/schedule"
)

// cacheKey identifies a prediction cache entry by month and generation
// time, matching the request/result pairing the dashboards expect.
type cacheKey struct {
	month       schedule.Month
	generatedAt int64
}

// cacheEntry is immutable once inserted; eviction is the only mutation.
type cacheEntry struct {
	result    *generator.Result
	createdAt time.Time
}

// cacheResult inserts a generation result. Caller holds e.mu.
func (e *Engine) cacheResult(res *generator.Result, now time.Time) {
	key := cacheKey{month: res.Period.Month, generatedAt: now.UnixNano()}
	e.cache[key] = cacheEntry{result: res, createdAt: now}
}

// cachedResult returns the freshest unexpired entry for month, if any.
// Caller holds e.mu.
func (e *Engine) cachedResult(month schedule.Month, now time.Time) (*generator.Result, bool) {
	var (
		best    *generator.Result
		bestAge int64 = -1
	)
	for key, entry := range e.cache {
		if key.month != month {
			continue
		}
		if now.Sub(entry.createdAt) > e.cfg.CacheRetention {
			continue
		}
		if key.generatedAt > bestAge {
			bestAge = key.generatedAt
			best = entry.result
		}
	}
	return best, best != nil
}

// cleanupCache sweeps the whole cache, deleting entries past retention.
// Returns how many entries were evicted. Caller holds e.mu.
func (e *Engine) cleanupCache(now time.Time) int {
	evicted := 0
	for key, entry := range e.cache {
		if now.Sub(entry.createdAt) > e.cfg.CacheRetention {
			delete(e.cache, key)
			evicted++
		}
	}
	e.cacheEvicted += evicted
	return evicted
}
