package history

import (
	"context"
	"time"

	"github.com/L-yifan/Gold-Fund-monitor/internal/observ"
	"github.com/L-yifan/Gold-Fund-monitor/internal/quotes"
)

// marketCalendar reports whether the market is trading right now.
type marketCalendar interface {
	IsOpen(t time.Time) bool
}

// Poller samples the gold price on a fixed cadence and appends each
// sample to the buffer. Failed cycles back off, closed-market cycles
// slow down, and a panic inside one cycle never kills the loop.
type Poller struct {
	Fetch        func(ctx context.Context) (*quotes.Quote, error)
	Buffer       *Buffer
	Persist      func()
	Calendar     marketCalendar
	Interval     time.Duration
	ErrorBackoff time.Duration
	IdleInterval time.Duration
}

// Run loops until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	observ.Log("poller_started", map[string]any{
		"interval_s": p.Interval.Seconds(),
	})
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			observ.Log("poller_stopped", nil)
			return
		case <-timer.C:
		}
		timer.Reset(p.cycle(ctx))
	}
}

// cycle runs one poll and returns the delay until the next.
func (p *Poller) cycle(ctx context.Context) (next time.Duration) {
	next = p.Interval
	defer func() {
		if r := recover(); r != nil {
			observ.Log("poller_panic", map[string]any{"panic": r})
			observ.IncCounter("poller_panics_total", nil)
			next = p.ErrorBackoff
		}
	}()

	if p.Calendar != nil && !p.Calendar.IsOpen(time.Now()) {
		return p.IdleInterval
	}

	start := time.Now()
	q, err := p.Fetch(ctx)
	observ.RecordDuration("poll_cycle", time.Since(start), nil)
	if err != nil {
		observ.Log("poll_fetch_failed", map[string]any{"error": err.Error()})
		observ.IncCounter("poll_errors_total", nil)
		return p.Interval
	}

	p.Buffer.Append(*q)
	observ.SetGauge("history_buffer_size", float64(p.Buffer.Len()), nil)
	if p.Persist != nil {
		p.Persist()
	}
	return p.Interval
}
