package holdings

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/L-yifan/Gold-Fund-monitor/internal/funds"
	"github.com/L-yifan/Gold-Fund-monitor/internal/observ"
)

// Position is one held fund with its cost basis.
type Position struct {
	Code      string  `json:"code"`
	Name      string  `json:"name"`
	CostPrice float64 `json:"cost_price"`
	Shares    float64 `json:"shares"`
	Note      string  `json:"note,omitempty"`
}

// Item is a position valued at the latest fund estimate.
type Item struct {
	Position
	Price      float64 `json:"price"`
	Cost       float64 `json:"cost"`
	Value      float64 `json:"value"`
	Profit     float64 `json:"profit"`
	ProfitRate float64 `json:"profit_rate"`
	TimeStr    string  `json:"time_str"`
	Source     string  `json:"source"`
}

type Summary struct {
	TotalCost       float64 `json:"total_cost"`
	TotalValue      float64 `json:"total_value"`
	TotalProfit     float64 `json:"total_profit"`
	TotalProfitRate float64 `json:"total_profit_rate"`
	Count           int     `json:"count"`
}

// Response is the full aggregated holdings view. It is memoized as a
// single cached value: recomputing it costs one batch fetch across every
// held fund.
type Response struct {
	Success    bool    `json:"success"`
	Data       []Item  `json:"data"`
	Summary    Summary `json:"summary"`
	LastUpdate string  `json:"last_update"`
	Stale      bool    `json:"stale,omitempty"`
}

// quoteSource is the slice of funds.Cache the store depends on.
type quoteSource interface {
	GetMany(ctx context.Context, codes []string, fast bool) []funds.Fund
}

// Store owns the position list and the singleton response cache with its
// own fresh/stale TTL pair and refresh guard.
type Store struct {
	mu         sync.Mutex
	positions  []Position
	cached     *Response
	cachedAt   time.Time
	gen        uint64 // bumped on every invalidation
	refreshing bool

	quotes   quoteSource
	fresh    time.Duration
	stale    time.Duration
	now      func() time.Time
	onChange func() // persistence hook, called after mutations
}

func NewStore(quotes quoteSource, fresh, stale time.Duration) *Store {
	return &Store{
		quotes: quotes,
		fresh:  fresh,
		stale:  stale,
		now:    time.Now,
	}
}

// OnChange registers the persistence hook invoked after each mutation.
func (s *Store) OnChange(fn func()) { s.onChange = fn }

// Get returns the aggregated holdings view. Fresh cache is served as-is;
// in fast mode a stale cache is served tagged stale while one background
// recompute runs; anything else recomputes synchronously.
func (s *Store) Get(ctx context.Context, fast, forceRefresh bool) *Response {
	s.mu.Lock()
	positions := s.snapshotLocked()
	cached := s.cached
	gen := s.gen
	age := s.now().Sub(s.cachedAt)
	s.mu.Unlock()

	if !forceRefresh && cached != nil {
		if age < s.fresh {
			observ.IncCounter("holdings_cache_hits_total", nil)
			return cached
		}
		if fast && age < s.stale {
			observ.IncCounter("holdings_cache_stale_hits_total", nil)
			s.scheduleRecompute(positions, gen)
			staleCopy := *cached
			staleCopy.Stale = true
			return &staleCopy
		}
	}

	observ.IncCounter("holdings_cache_misses_total", nil)
	return s.recompute(ctx, positions, gen)
}

// recompute builds the response from live fund data. The result is
// cached only when the position list has not been edited since the
// snapshot was taken; a response built from pre-edit positions must
// never survive the edit's invalidation.
func (s *Store) recompute(ctx context.Context, positions []Position, gen uint64) *Response {
	resp := s.build(ctx, positions)
	s.mu.Lock()
	if s.gen == gen {
		s.cached = resp
		s.cachedAt = s.now()
	}
	s.mu.Unlock()
	return resp
}

// scheduleRecompute starts one background recompute; a no-op while one
// is already in flight.
func (s *Store) scheduleRecompute(positions []Position, gen uint64) bool {
	s.mu.Lock()
	if s.refreshing {
		s.mu.Unlock()
		observ.IncCounter("holdings_refresh_dedup_total", nil)
		return false
	}
	s.refreshing = true
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.refreshing = false
			s.mu.Unlock()
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.recompute(ctx, positions, gen)
	}()
	return true
}

func (s *Store) build(ctx context.Context, positions []Position) *Response {
	resp := &Response{
		Success:    true,
		Data:       []Item{},
		LastUpdate: s.now().Format("2006-01-02 15:04:05"),
	}
	if len(positions) == 0 {
		return resp
	}

	codes := make([]string, len(positions))
	for i, p := range positions {
		codes[i] = p.Code
	}
	quoted := s.quotes.GetMany(ctx, codes, false)
	byCode := make(map[string]funds.Fund, len(quoted))
	for _, f := range quoted {
		byCode[f.Code] = f
	}

	totalCost := decimal.Zero
	totalValue := decimal.Zero
	for _, p := range positions {
		f := byCode[p.Code]
		shares := decimal.NewFromFloat(p.Shares)
		cost := decimal.NewFromFloat(p.CostPrice).Mul(shares)
		value := decimal.NewFromFloat(f.Price).Mul(shares)
		profit := value.Sub(cost)

		item := Item{
			Position: p,
			Price:    f.Price,
			Cost:     round2(cost),
			Value:    round2(value),
			Profit:   round2(profit),
			TimeStr:  f.TimeStr,
			Source:   f.Source,
		}
		if cost.IsPositive() {
			item.ProfitRate = round2(profit.Div(cost).Mul(decimal.NewFromInt(100)))
		}
		resp.Data = append(resp.Data, item)

		totalCost = totalCost.Add(cost)
		totalValue = totalValue.Add(value)
	}

	totalProfit := totalValue.Sub(totalCost)
	resp.Summary = Summary{
		TotalCost:   round2(totalCost),
		TotalValue:  round2(totalValue),
		TotalProfit: round2(totalProfit),
		Count:       len(positions),
	}
	if totalCost.IsPositive() {
		resp.Summary.TotalProfitRate = round2(totalProfit.Div(totalCost).Mul(decimal.NewFromInt(100)))
	}
	return resp
}

// Upsert adds or updates one position and invalidates the response
// cache so the next Get never serves pre-edit data.
func (s *Store) Upsert(p Position) error {
	if !funds.ValidCode(p.Code) {
		return fmt.Errorf("invalid fund code %q", p.Code)
	}
	if p.CostPrice <= 0 || p.Shares <= 0 {
		return fmt.Errorf("cost price and shares must be positive")
	}

	s.mu.Lock()
	updated := false
	for i := range s.positions {
		if s.positions[i].Code == p.Code {
			s.positions[i] = p
			updated = true
			break
		}
	}
	if !updated {
		s.positions = append(s.positions, p)
	}
	s.invalidateLocked()
	s.mu.Unlock()

	s.changed()
	return nil
}

// Delete removes one position; false when absent. Mutations invalidate
// the cache.
func (s *Store) Delete(code string) bool {
	s.mu.Lock()
	found := false
	for i := range s.positions {
		if s.positions[i].Code == code {
			s.positions = append(s.positions[:i], s.positions[i+1:]...)
			found = true
			break
		}
	}
	if found {
		s.invalidateLocked()
	}
	s.mu.Unlock()

	if found {
		s.changed()
	}
	return found
}

// Positions snapshots the position list.
func (s *Store) Positions() []Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Replace swaps in loaded positions at startup.
func (s *Store) Replace(positions []Position) {
	s.mu.Lock()
	s.positions = make([]Position, len(positions))
	copy(s.positions, positions)
	s.invalidateLocked()
	s.mu.Unlock()
}

func (s *Store) snapshotLocked() []Position {
	out := make([]Position, len(s.positions))
	copy(out, s.positions)
	return out
}

func (s *Store) invalidateLocked() {
	s.cached = nil
	s.cachedAt = time.Time{}
	s.gen++
}

func (s *Store) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}

func round2(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}
