package records

import (
	"math"
	"sync"
	"time"
)

// Record is one manually captured price observation.
type Record struct {
	Price     float64 `json:"price"`
	BuyPrice  float64 `json:"buy_price,omitempty"`
	Profit    float64 `json:"profit"`
	Timestamp float64 `json:"timestamp"`
	TimeStr   string  `json:"time_str"`
	Note      string  `json:"note,omitempty"`
}

// AlertSettings holds the user's price alert thresholds.
type AlertSettings struct {
	High                 float64 `json:"high"`
	Low                  float64 `json:"low"`
	Enabled              bool    `json:"enabled"`
	TradingEventsEnabled bool    `json:"trading_events_enabled"`
}

// Store keeps manual records and alert settings behind one mutex.
type Store struct {
	mu       sync.Mutex
	records  []Record
	alerts   AlertSettings
	now      func() time.Time
	onChange func()
}

func NewStore() *Store {
	return &Store{now: time.Now}
}

func (s *Store) OnChange(fn func()) { s.onChange = fn }

// Add stamps and appends one record, computing profit against the buy
// price when one is given.
func (s *Store) Add(price, buyPrice float64, note string) Record {
	t := s.now()
	r := Record{
		Price:     price,
		BuyPrice:  buyPrice,
		Timestamp: float64(t.Unix()),
		TimeStr:   t.Format("2006-01-02 15:04:05"),
		Note:      note,
	}
	if buyPrice > 0 {
		r.Profit = math.Round((price-buyPrice)*100) / 100
	}

	s.mu.Lock()
	s.records = append(s.records, r)
	s.mu.Unlock()

	s.changed()
	return r
}

// All returns the records newest-first.
func (s *Store) All() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	for i, r := range s.records {
		out[len(s.records)-1-i] = r
	}
	return out
}

// Clear drops every record and returns how many were removed.
func (s *Store) Clear() int {
	s.mu.Lock()
	n := len(s.records)
	s.records = nil
	s.mu.Unlock()

	if n > 0 {
		s.changed()
	}
	return n
}

// Prune drops records older than keepDays. Returns the number removed.
func (s *Store) Prune(keepDays int) int {
	if keepDays <= 0 {
		return 0
	}
	cutoff := float64(s.now().AddDate(0, 0, -keepDays).Unix())

	s.mu.Lock()
	kept := s.records[:0]
	for _, r := range s.records {
		if r.Timestamp >= cutoff {
			kept = append(kept, r)
		}
	}
	dropped := len(s.records) - len(kept)
	s.records = kept
	s.mu.Unlock()
	return dropped
}

func (s *Store) Alerts() AlertSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alerts
}

func (s *Store) SetAlerts(a AlertSettings) {
	s.mu.Lock()
	s.alerts = a
	s.mu.Unlock()
	s.changed()
}

// Replace swaps in loaded state at startup.
func (s *Store) Replace(records []Record, alerts AlertSettings) {
	s.mu.Lock()
	s.records = make([]Record, len(records))
	copy(s.records, records)
	s.alerts = alerts
	s.mu.Unlock()
}

// Records snapshots the records oldest-first, for persistence.
func (s *Store) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

func (s *Store) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}
