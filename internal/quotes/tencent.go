package quotes

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/L-yifan/Gold-Fund-monitor/internal/observ"
)

const (
	tencentSimpleURL = "http://qt.gtimg.cn/q=s_shau9999"
	tencentFullURL   = "http://qt.gtimg.cn/q=shau9999"
)

// TencentAdapter reads Au99.99 from the gtimg endpoints. The simple
// endpoint carries price/change/percent in a tilde-separated quoted
// string; a second call to the full endpoint fills OHLC when available.
type TencentAdapter struct {
	SimpleURL string
	FullURL   string
	client    *http.Client
	limiter   *rate.Limiter
	now       func() time.Time
}

func NewTencentAdapter(ratePerMinute int) *TencentAdapter {
	return &TencentAdapter{
		SimpleURL: tencentSimpleURL,
		FullURL:   tencentFullURL,
		client:    &http.Client{},
		limiter:   rate.NewLimiter(rate.Limit(float64(ratePerMinute)/60), 1),
		now:       time.Now,
	}
}

func (a *TencentAdapter) Type() string { return "tencent" }

func (a *TencentAdapter) Fetch(ctx context.Context) (*Quote, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, requestErr(a.Type(), err)
	}
	body, err := getBody(ctx, a.client, a.SimpleURL, nil)
	if err != nil {
		return nil, requestErr(a.Type(), err)
	}

	payload, ok := firstQuoted(body)
	if !ok {
		return nil, parseErr(a.Type(), fmt.Errorf("no quoted payload"))
	}
	parts := strings.Split(payload, "~")
	if len(parts) < 6 {
		return nil, parseErr(a.Type(), fmt.Errorf("short payload: %d fields", len(parts)))
	}

	price, err := strconv.ParseFloat(parts[3], 64)
	if err != nil {
		return nil, parseErr(a.Type(), fmt.Errorf("price field: %w", err))
	}
	change := parseField(parts[4], 0)
	pct := parseField(parts[5], 0)

	q := &Quote{
		Price:          price,
		Open:           price,
		High:           price,
		Low:            price,
		YesterdayClose: price - change,
		Change:         change,
		ChangePercent:  pct,
	}
	if err := q.Validate(); err != nil {
		return nil, validateErr(a.Type(), err)
	}

	// The simple feed has no OHLC; best-effort upgrade from the full
	// feed, keeping the simple values when it is unavailable.
	a.fillOHLC(ctx, q)
	return stamp(q, a.Type(), a.now()), nil
}

func (a *TencentAdapter) fillOHLC(ctx context.Context, q *Quote) {
	body, err := getBody(ctx, a.client, a.FullURL, nil)
	if err != nil {
		observ.Log("tencent_full_feed_unavailable", map[string]any{"error": err.Error()})
		return
	}
	payload, ok := firstQuoted(body)
	if !ok {
		return
	}
	parts := strings.Split(payload, "~")
	if len(parts) <= 34 {
		return
	}
	q.YesterdayClose = parseField(parts[4], q.YesterdayClose)
	q.Open = parseField(parts[5], q.Open)
	q.High = parseField(parts[33], q.High)
	q.Low = parseField(parts[34], q.Low)
}
