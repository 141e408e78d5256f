package quotes

import (
	"sync"
	"time"

	"github.com/L-yifan/Gold-Fund-monitor/internal/config"
	"github.com/L-yifan/Gold-Fund-monitor/internal/observ"
)

// SourceState is one registered source plus its mutable breaker fields.
// Breaker fields are only written by the Registry under its lock.
type SourceState struct {
	Name    string
	Type    string
	Enabled bool
	Timeout time.Duration

	failCount int
	muteUntil time.Time // zero = not muted
}

// SourceStatus is the read-only view served on /api/status.
type SourceStatus struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Enabled   bool   `json:"enabled"`
	FailCount int    `json:"fail_count"`
	MutedFor  string `json:"muted_for,omitempty"`
}

// Registry holds the ordered source list and applies the circuit-breaker
// policy: MaxFailCount consecutive failures mute a source for
// MuteDuration, after which the next fetch probes it directly.
type Registry struct {
	mu           sync.Mutex
	sources      []*SourceState
	maxFailCount int
	muteDuration time.Duration
	now          func() time.Time
}

func NewRegistry(sources []config.Source, breaker config.Breaker) *Registry {
	r := &Registry{
		maxFailCount: breaker.MaxFailCount,
		muteDuration: time.Duration(breaker.MuteDurationSeconds) * time.Second,
		now:          time.Now,
	}
	for _, s := range sources {
		r.sources = append(r.sources, &SourceState{
			Name:    s.Name,
			Type:    s.Type,
			Enabled: s.Enabled,
			Timeout: s.Timeout(),
		})
	}
	return r
}

// Enabled returns enabled sources in configured priority order.
func (r *Registry) Enabled() []*SourceState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*SourceState, 0, len(r.sources))
	for _, s := range r.sources {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

// Muted reports whether the source is inside its mute window.
func (r *Registry) Muted(s *SourceState) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !s.muteUntil.IsZero() && r.now().Before(s.muteUntil)
}

// RecordSuccess resets the breaker regardless of prior failure count.
func (r *Registry) RecordSuccess(s *SourceState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.failCount = 0
	s.muteUntil = time.Time{}
}

// RecordFailure counts one failure. Reaching maxFailCount trips the
// breaker and resets the count, so re-muting requires a fresh run of
// failures after the cooldown.
func (r *Registry) RecordFailure(s *SourceState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.failCount++
	if s.failCount >= r.maxFailCount {
		s.muteUntil = r.now().Add(r.muteDuration)
		s.failCount = 0
		observ.IncCounter("source_breaker_trips_total", map[string]string{"source": s.Name})
		observ.Log("source_muted", map[string]any{
			"source":     s.Name,
			"mute_until": s.muteUntil.Format(time.RFC3339),
		})
	}
}

// Status snapshots all sources for status reporting.
func (r *Registry) Status() []SourceStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	out := make([]SourceStatus, 0, len(r.sources))
	for _, s := range r.sources {
		st := SourceStatus{Name: s.Name, Type: s.Type, Enabled: s.Enabled, FailCount: s.failCount}
		if !s.muteUntil.IsZero() && now.Before(s.muteUntil) {
			st.MutedFor = s.muteUntil.Sub(now).Truncate(time.Second).String()
		}
		out = append(out, st)
	}
	return out
}
