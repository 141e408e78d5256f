package funds

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/L-yifan/Gold-Fund-monitor/internal/observ"
)

const (
	staleMark   = "(cached)"
	expiredMark = "(expired)"

	refreshTimeout = 30 * time.Second
)

type entry struct {
	fund      Fund
	fetchedAt time.Time
}

// Cache holds per-code fund estimates with a fresh/stale TTL pair. Reads
// classify entries under the lock; every network fetch runs outside it.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]entry
	refreshing bool // guard: one async batch refresh in flight at most

	fetcher Fetcher
	fresh   time.Duration
	stale   time.Duration
	workers int64
	now     func() time.Time
}

func NewCache(fetcher Fetcher, fresh, stale time.Duration, workers int) *Cache {
	if workers <= 0 {
		workers = 1
	}
	return &Cache{
		entries: make(map[string]entry),
		fetcher: fetcher,
		fresh:   fresh,
		stale:   stale,
		workers: int64(workers),
		now:     time.Now,
	}
}

// GetMany returns one Fund per requested code, in request order, never
// omitting a key. Fresh entries are reused. In fast mode a stale entry
// is returned annotated and its code queued for one async refresh.
// Everything else is fetched synchronously through the worker pool; a
// failed fetch falls back to the prior entry annotated as expired, or to
// a placeholder record when no prior data exists.
func (c *Cache) GetMany(ctx context.Context, codes []string, fast bool) []Fund {
	results := make(map[string]Fund, len(codes))
	queued := make(map[string]struct{})
	var toFetch, toRefresh []string

	c.mu.Lock()
	now := c.now()
	for _, code := range codes {
		if _, seen := results[code]; seen {
			continue
		}
		if _, seen := queued[code]; seen {
			continue
		}
		e, ok := c.entries[code]
		age := now.Sub(e.fetchedAt)
		switch {
		case ok && age < c.fresh:
			results[code] = e.fund
			observ.IncCounter("fund_cache_hits_total", nil)
		case ok && fast && age < c.stale:
			results[code] = markSource(e.fund, staleMark)
			toRefresh = append(toRefresh, code)
			observ.IncCounter("fund_cache_stale_hits_total", nil)
		default:
			queued[code] = struct{}{}
			toFetch = append(toFetch, code)
			observ.IncCounter("fund_cache_misses_total", nil)
		}
	}
	c.mu.Unlock()

	if len(toFetch) > 0 {
		fetched := c.fetchBatch(ctx, toFetch)
		c.mu.Lock()
		for _, code := range toFetch {
			if f := fetched[code]; f != nil {
				c.entries[code] = entry{fund: *f, fetchedAt: c.now()}
				results[code] = *f
				continue
			}
			if old, ok := c.entries[code]; ok {
				results[code] = markSource(old.fund, expiredMark)
			} else {
				results[code] = placeholder(code)
			}
		}
		c.mu.Unlock()
	}

	if fast && len(toRefresh) > 0 {
		c.ScheduleRefresh(toRefresh)
	}

	out := make([]Fund, 0, len(codes))
	seen := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, results[code])
	}
	return out
}

// FetchNow fetches one code synchronously, bypassing the TTL check, and
// stores the result on success. Used to validate codes before watchlist
// insertion.
func (c *Cache) FetchNow(ctx context.Context, code string) (*Fund, error) {
	f, err := c.fetcher.FetchFund(ctx, code)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.entries[code] = entry{fund: *f, fetchedAt: c.now()}
	c.mu.Unlock()
	return f, nil
}

// Remove drops a code's entry, typically after watchlist deletion.
func (c *Cache) Remove(code string) {
	c.mu.Lock()
	delete(c.entries, code)
	c.mu.Unlock()
}

// ScheduleRefresh launches one background batch refresh for codes. While
// a refresh is already in flight the call is a no-op, so concurrent
// stale reads cannot pile up refresh storms.
func (c *Cache) ScheduleRefresh(codes []string) bool {
	c.mu.Lock()
	if c.refreshing {
		c.mu.Unlock()
		observ.IncCounter("fund_refresh_dedup_total", nil)
		return false
	}
	c.refreshing = true
	c.mu.Unlock()

	go func() {
		// The guard must clear on every exit path or background
		// refresh wedges permanently.
		defer func() {
			c.mu.Lock()
			c.refreshing = false
			c.mu.Unlock()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()

		fetched := c.fetchBatch(ctx, codes)
		updated := 0
		c.mu.Lock()
		for code, f := range fetched {
			if f != nil {
				c.entries[code] = entry{fund: *f, fetchedAt: c.now()}
				updated++
			}
		}
		c.mu.Unlock()
		observ.Log("fund_refresh_done", map[string]any{"requested": len(codes), "updated": updated})
	}()
	return true
}

// fetchBatch fetches codes concurrently, bounded by the worker pool
// size. A missing or nil map value means that code's fetch failed.
func (c *Cache) fetchBatch(ctx context.Context, codes []string) map[string]*Fund {
	sem := semaphore.NewWeighted(c.workers)
	out := make(map[string]*Fund, len(codes))
	var outMu sync.Mutex
	var wg sync.WaitGroup

	for _, code := range codes {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(code string) {
			defer wg.Done()
			defer sem.Release(1)
			f, err := c.fetcher.FetchFund(ctx, code)
			if err != nil {
				observ.IncCounter("fund_fetch_failures_total", nil)
				observ.Log("fund_fetch_failed", map[string]any{"code": code, "error": err.Error()})
				f = nil
			}
			outMu.Lock()
			out[code] = f
			outMu.Unlock()
		}(code)
	}
	wg.Wait()
	return out
}

// markSource appends the marker to the fund's source exactly once.
func markSource(f Fund, mark string) Fund {
	if !strings.Contains(f.Source, mark) {
		f.Source += mark
	}
	return f
}

func placeholder(code string) Fund {
	return Fund{
		Code:    code,
		Name:    "load failed",
		TimeStr: "--",
		Source:  "error",
	}
}
