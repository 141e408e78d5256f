package holdings

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/L-yifan/Gold-Fund-monitor/internal/funds"
)

// fakeQuotes serves a fixed price per code and counts batch calls.
type fakeQuotes struct {
	mu     sync.Mutex
	prices map[string]float64
	calls  int
}

func (f *fakeQuotes) GetMany(ctx context.Context, codes []string, fast bool) []funds.Fund {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	out := make([]funds.Fund, 0, len(codes))
	for _, code := range codes {
		out = append(out, funds.Fund{
			Code:    code,
			Name:    "fund " + code,
			Price:   f.prices[code],
			TimeStr: "14:30",
			Source:  "fundgz",
		})
	}
	return out
}

func (f *fakeQuotes) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestStore(fq *fakeQuotes) *Store {
	return NewStore(fq, 30*time.Second, 600*time.Second)
}

func TestGetComputesProfit(t *testing.T) {
	fq := &fakeQuotes{prices: map[string]float64{"161226": 1.21}}
	s := newTestStore(fq)
	if err := s.Upsert(Position{Code: "161226", Name: "test", CostPrice: 1.10, Shares: 1000}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	resp := s.Get(context.Background(), false, false)
	if !resp.Success || len(resp.Data) != 1 {
		t.Fatalf("bad response: %+v", resp)
	}
	item := resp.Data[0]
	if item.Cost != 1100.00 {
		t.Errorf("cost: got %.2f, want 1100.00", item.Cost)
	}
	if item.Value != 1210.00 {
		t.Errorf("value: got %.2f, want 1210.00", item.Value)
	}
	if item.Profit != 110.00 {
		t.Errorf("profit: got %.2f, want 110.00", item.Profit)
	}
	if item.ProfitRate != 10.00 {
		t.Errorf("profit rate: got %.2f, want 10.00", item.ProfitRate)
	}
	if resp.Summary.TotalProfit != 110.00 || resp.Summary.Count != 1 {
		t.Errorf("summary wrong: %+v", resp.Summary)
	}
}

func TestGetServesFreshCache(t *testing.T) {
	fq := &fakeQuotes{prices: map[string]float64{"161226": 1.21}}
	s := newTestStore(fq)
	s.Upsert(Position{Code: "161226", Name: "test", CostPrice: 1.10, Shares: 100})

	s.Get(context.Background(), true, false)
	s.Get(context.Background(), true, false)
	if n := fq.callCount(); n != 1 {
		t.Errorf("fresh cache recomputed: %d batch calls", n)
	}
}

func TestGetStaleFastIsTagged(t *testing.T) {
	fq := &fakeQuotes{prices: map[string]float64{"161226": 1.21}}
	s := newTestStore(fq)
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	now := base
	s.now = func() time.Time { return now }
	s.Upsert(Position{Code: "161226", Name: "test", CostPrice: 1.10, Shares: 100})

	first := s.Get(context.Background(), true, false)
	if first.Stale {
		t.Fatal("freshly computed response tagged stale")
	}

	now = base.Add(60 * time.Second) // past fresh, inside stale
	resp := s.Get(context.Background(), true, false)
	if !resp.Stale {
		t.Error("stale fast response not tagged")
	}
	// The cached value itself must stay untagged for future fresh hits.
	s.mu.Lock()
	cachedStale := s.cached.Stale
	s.mu.Unlock()
	if cachedStale {
		t.Error("stale tag leaked into the cached response")
	}
}

func TestMutationInvalidatesCache(t *testing.T) {
	fq := &fakeQuotes{prices: map[string]float64{"161226": 1.21, "519674": 2.50}}
	s := newTestStore(fq)
	s.Upsert(Position{Code: "161226", Name: "a", CostPrice: 1.10, Shares: 100})

	s.Get(context.Background(), true, false)
	s.Upsert(Position{Code: "519674", Name: "b", CostPrice: 2.00, Shares: 50})

	resp := s.Get(context.Background(), true, false)
	if len(resp.Data) != 2 {
		t.Errorf("post-upsert read served pre-edit cache: %d items", len(resp.Data))
	}

	s.Delete("161226")
	resp = s.Get(context.Background(), true, false)
	if len(resp.Data) != 1 || resp.Data[0].Code != "519674" {
		t.Errorf("post-delete read served pre-edit cache: %+v", resp.Data)
	}
}

// blockingQuotes parks its first batch call on the release channel so a
// mutation can be interleaved with an in-flight recompute.
type blockingQuotes struct {
	fakeQuotes
	started chan struct{}
	release chan struct{}
	first   sync.Once
}

func (b *blockingQuotes) GetMany(ctx context.Context, codes []string, fast bool) []funds.Fund {
	blocked := false
	b.first.Do(func() { blocked = true })
	if blocked {
		close(b.started)
		<-b.release
	}
	return b.fakeQuotes.GetMany(ctx, codes, fast)
}

func TestRecomputeRacingMutationIsNotCached(t *testing.T) {
	bq := &blockingQuotes{
		fakeQuotes: fakeQuotes{prices: map[string]float64{"161226": 1.21}},
		started:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	s := NewStore(bq, 30*time.Second, 600*time.Second)
	s.Upsert(Position{Code: "161226", Name: "test", CostPrice: 1.00, Shares: 100})

	// Background recompute captures the cost=1.00 snapshot and parks.
	s.mu.Lock()
	positions := s.snapshotLocked()
	gen := s.gen
	s.mu.Unlock()
	if !s.scheduleRecompute(positions, gen) {
		t.Fatal("recompute not scheduled")
	}
	<-bq.started

	// The edit invalidates while the recompute is still in flight.
	s.Upsert(Position{Code: "161226", Name: "test", CostPrice: 2.00, Shares: 100})
	close(bq.release)

	deadline := time.After(2 * time.Second)
	for {
		s.mu.Lock()
		inflight := s.refreshing
		s.mu.Unlock()
		if !inflight {
			break
		}
		select {
		case <-deadline:
			t.Fatal("recompute never finished")
		case <-time.After(5 * time.Millisecond):
		}
	}

	resp := s.Get(context.Background(), true, false)
	if len(resp.Data) != 1 {
		t.Fatalf("bad response: %+v", resp)
	}
	if resp.Data[0].Cost != 200.00 {
		t.Errorf("pre-edit snapshot served after invalidation: cost %.2f, want 200.00", resp.Data[0].Cost)
	}
}

func TestUpsertValidation(t *testing.T) {
	s := newTestStore(&fakeQuotes{prices: map[string]float64{}})
	if err := s.Upsert(Position{Code: "12345", CostPrice: 1, Shares: 1}); err == nil {
		t.Error("short code accepted")
	}
	if err := s.Upsert(Position{Code: "161226", CostPrice: 0, Shares: 1}); err == nil {
		t.Error("zero cost price accepted")
	}
	if err := s.Upsert(Position{Code: "161226", CostPrice: 1, Shares: -5}); err == nil {
		t.Error("negative shares accepted")
	}
}

func TestUpsertReplacesExisting(t *testing.T) {
	fq := &fakeQuotes{prices: map[string]float64{"161226": 1.21}}
	s := newTestStore(fq)
	s.Upsert(Position{Code: "161226", Name: "a", CostPrice: 1.10, Shares: 100})
	s.Upsert(Position{Code: "161226", Name: "a", CostPrice: 1.15, Shares: 200})

	got := s.Positions()
	if len(got) != 1 {
		t.Fatalf("duplicate position created: %d", len(got))
	}
	if got[0].CostPrice != 1.15 || got[0].Shares != 200 {
		t.Errorf("position not updated: %+v", got[0])
	}
}

func TestDeleteAbsent(t *testing.T) {
	s := newTestStore(&fakeQuotes{prices: map[string]float64{}})
	if s.Delete("161226") {
		t.Error("delete of absent position reported success")
	}
}

func TestEmptyHoldings(t *testing.T) {
	s := newTestStore(&fakeQuotes{prices: map[string]float64{}})
	resp := s.Get(context.Background(), false, false)
	if !resp.Success || len(resp.Data) != 0 {
		t.Errorf("empty holdings response wrong: %+v", resp)
	}
	if resp.Summary.Count != 0 || resp.Summary.TotalProfitRate != 0 {
		t.Errorf("empty summary wrong: %+v", resp.Summary)
	}
}
