package history

import (
	"math"
	"sync"

	"github.com/L-yifan/Gold-Fund-monitor/internal/quotes"
)

// Buffer is a fixed-capacity ring of price samples. Appending past
// capacity drops the oldest entry.
type Buffer struct {
	mu   sync.Mutex
	data []quotes.Quote
	head int
	size int
}

func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{data: make([]quotes.Quote, capacity)}
}

func (b *Buffer) Append(q quotes.Quote) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[(b.head+b.size)%len(b.data)] = q
	if b.size < len(b.data) {
		b.size++
	} else {
		b.head = (b.head + 1) % len(b.data)
	}
}

// Snapshot returns the samples oldest-first.
func (b *Buffer) Snapshot() []quotes.Quote {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]quotes.Quote, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.data[(b.head+i)%len(b.data)]
	}
	return out
}

// Latest returns the newest sample, nil when empty.
func (b *Buffer) Latest() *quotes.Quote {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.size == 0 {
		return nil
	}
	q := b.data[(b.head+b.size-1)%len(b.data)]
	return &q
}

// PruneBefore drops samples with a timestamp strictly before cutoff.
func (b *Buffer) PruneBefore(cutoff float64) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	dropped := 0
	for b.size > 0 && b.data[b.head].Timestamp < cutoff {
		b.head = (b.head + 1) % len(b.data)
		b.size--
		dropped++
	}
	return dropped
}

// Replace swaps in loaded samples at startup, keeping the newest when
// they exceed capacity.
func (b *Buffer) Replace(samples []quotes.Quote) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(samples) > len(b.data) {
		samples = samples[len(samples)-len(b.data):]
	}
	copy(b.data, samples)
	b.head = 0
	b.size = len(samples)
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Summary aggregates the samples of the last 24 hours.
type Summary struct {
	High24h    float64 `json:"high_24h"`
	Low24h     float64 `json:"low_24h"`
	Avg24h     float64 `json:"avg_24h"`
	Volatility float64 `json:"volatility"`
	Count      int     `json:"count"`
}

// Summarize aggregates samples newer than now-24h. Volatility is the
// high-low range of the window, not a deviation measure. Zero values
// when nothing qualifies.
func (b *Buffer) Summarize(now float64) Summary {
	cutoff := now - 24*3600
	var s Summary
	var sum float64
	for _, q := range b.Snapshot() {
		if q.Timestamp < cutoff {
			continue
		}
		if s.Count == 0 || q.Price > s.High24h {
			s.High24h = q.Price
		}
		if s.Count == 0 || q.Price < s.Low24h {
			s.Low24h = q.Price
		}
		sum += q.Price
		s.Count++
	}
	if s.Count > 0 {
		s.Avg24h = math.Round(sum/float64(s.Count)*100) / 100
		s.Volatility = math.Round((s.High24h-s.Low24h)*100) / 100
	}
	return s
}
