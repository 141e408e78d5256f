package quotes

import (
	"context"
	"time"

	"github.com/L-yifan/Gold-Fund-monitor/internal/observ"
)

// Fetcher walks the registry in priority order and returns the first
// adapter success. Priority order is a preference list, not an
// aggregate: later sources are never consulted once one succeeds.
type Fetcher struct {
	registry *Registry
	adapters map[string]Adapter // keyed by source type
}

// Attempt summarizes one failover pass for logging and tests.
type Attempt struct {
	Tried  int
	Muted  int
	Failed int
}

func NewFetcher(registry *Registry, adapters ...Adapter) *Fetcher {
	m := make(map[string]Adapter, len(adapters))
	for _, a := range adapters {
		m[a.Type()] = a
	}
	return &Fetcher{registry: registry, adapters: m}
}

// Fetch returns the first successful Quote, or one of the terminal
// errors (ErrNoEnabledSources, ErrAllSourcesMuted, ErrAllSourcesFailed).
func (f *Fetcher) Fetch(ctx context.Context) (*Quote, error) {
	q, _, err := f.FetchStats(ctx)
	return q, err
}

// FetchStats is Fetch plus the per-pass attempt counters.
func (f *Fetcher) FetchStats(ctx context.Context) (*Quote, Attempt, error) {
	var at Attempt

	enabled := f.registry.Enabled()
	if len(enabled) == 0 {
		return nil, at, ErrNoEnabledSources
	}

	for _, src := range enabled {
		if f.registry.Muted(src) {
			at.Muted++
			continue
		}
		adapter, ok := f.adapters[src.Type]
		if !ok {
			observ.Log("source_no_adapter", map[string]any{"source": src.Name, "type": src.Type})
			continue
		}

		// The network call runs outside any shared lock; only the
		// breaker update afterwards is synchronized.
		at.Tried++
		start := time.Now()
		callCtx, cancel := context.WithTimeout(ctx, src.Timeout)
		q, err := adapter.Fetch(callCtx)
		cancel()
		observ.RecordDuration("source_fetch_latency", time.Since(start), map[string]string{"source": src.Name})

		if err != nil {
			at.Failed++
			f.registry.RecordFailure(src)
			observ.IncCounter("source_fetch_failures_total", map[string]string{"source": src.Name})
			observ.Log("source_fetch_failed", map[string]any{"source": src.Name, "error": err.Error()})
			continue
		}

		f.registry.RecordSuccess(src)
		q.Source = src.Name
		observ.IncCounter("source_fetch_success_total", map[string]string{"source": src.Name})
		return q, at, nil
	}

	if at.Muted == len(enabled) {
		return nil, at, ErrAllSourcesMuted
	}
	return nil, at, ErrAllSourcesFailed
}
