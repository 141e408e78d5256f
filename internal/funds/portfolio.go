package funds

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/L-yifan/Gold-Fund-monitor/internal/observ"
)

// PortfolioStock is one top holding of a fund.
type PortfolioStock struct {
	Code   string  `json:"code"`
	Name   string  `json:"name"`
	Weight float64 `json:"weight"` // percent of net assets
}

// Portfolio is the cached top-holdings table for one fund. Entries are
// long-lived and persisted: report data changes quarterly.
type Portfolio struct {
	Code         string           `json:"code"`
	ReportPeriod string           `json:"report_period,omitempty"`
	Stocks       []PortfolioStock `json:"stocks"`
	FetchedAt    float64          `json:"timestamp"`
}

const portfolioURL = "https://fundf10.eastmoney.com/FundArchivesDatas.aspx?type=jjcc&code=%s&topline=10"

var (
	portfolioRow    = regexp.MustCompile(`(?s)<tr[^>]*>(.*?)</tr>`)
	portfolioCode   = regexp.MustCompile(`>(\d{6})</a>`)
	portfolioName   = regexp.MustCompile(`'>([^<>]+)</a>`)
	portfolioWeight = regexp.MustCompile(`>([\d.]+)%<`)
	portfolioPeriod = regexp.MustCompile(`(20\d{2}-\d{2}-\d{2})`)
)

// PortfolioService fetches and caches fund top-holdings tables. The
// upstream serves an HTML fragment inside a JS assignment, so rows are
// extracted rather than decoded.
type PortfolioService struct {
	BaseURL string
	client  *http.Client

	mu      sync.Mutex
	entries map[string]Portfolio
	ttl     time.Duration
	now     func() time.Time
}

func NewPortfolioService(ttl time.Duration) *PortfolioService {
	return &PortfolioService{
		BaseURL: portfolioURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		entries: make(map[string]Portfolio),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached portfolio when it is inside its TTL, unless
// forceRefresh is set. On fetch failure a cached copy of any age is
// returned rather than an error.
func (p *PortfolioService) Get(ctx context.Context, code string, forceRefresh bool) (*Portfolio, error) {
	if !ValidCode(code) {
		return nil, fmt.Errorf("invalid fund code %q", code)
	}

	p.mu.Lock()
	cached, ok := p.entries[code]
	p.mu.Unlock()
	if ok && !forceRefresh && p.now().Sub(timeOf(cached.FetchedAt)) < p.ttl {
		return &cached, nil
	}

	fresh, err := p.fetch(ctx, code)
	if err != nil {
		observ.Log("portfolio_fetch_failed", map[string]any{"code": code, "error": err.Error()})
		if ok {
			return &cached, nil
		}
		return nil, err
	}

	p.mu.Lock()
	p.entries[code] = *fresh
	p.mu.Unlock()
	return fresh, nil
}

// Entries snapshots the cache for persistence.
func (p *PortfolioService) Entries() map[string]Portfolio {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]Portfolio, len(p.entries))
	for k, v := range p.entries {
		out[k] = v
	}
	return out
}

// Replace swaps in loaded entries at startup.
func (p *PortfolioService) Replace(entries map[string]Portfolio) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = make(map[string]Portfolio, len(entries))
	for k, v := range entries {
		p.entries[k] = v
	}
}

func (p *PortfolioService) fetch(ctx context.Context, code string) (*Portfolio, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(p.BaseURL, code), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Referer", "https://fundf10.eastmoney.com/")
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	out := &Portfolio{Code: code, FetchedAt: float64(p.now().Unix())}
	if m := portfolioPeriod.FindSubmatch(body); m != nil {
		out.ReportPeriod = string(m[1])
	}
	for _, row := range portfolioRow.FindAllSubmatch(body, -1) {
		cm := portfolioCode.FindSubmatch(row[1])
		if cm == nil {
			continue
		}
		stock := PortfolioStock{Code: string(cm[1])}
		// first anchor text that is not the stock code itself
		for _, nm := range portfolioName.FindAllSubmatch(row[1], -1) {
			if name := string(nm[1]); name != stock.Code {
				stock.Name = name
				break
			}
		}
		if wm := portfolioWeight.FindSubmatch(row[1]); wm != nil {
			stock.Weight, _ = strconv.ParseFloat(string(wm[1]), 64)
		}
		out.Stocks = append(out.Stocks, stock)
	}
	if len(out.Stocks) == 0 {
		return nil, fmt.Errorf("no holdings rows in payload")
	}
	return out, nil
}

func timeOf(epoch float64) time.Time {
	return time.Unix(int64(epoch), 0)
}
