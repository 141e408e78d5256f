package quotes

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const sinaURL = "https://hq.sinajs.cn/list=gds_au9999"

// SinaAdapter reads the Au99.99 snapshot from the sina hq endpoint. The
// payload is a comma-separated list inside a double-quoted string; the
// numeric fields are plain ASCII so no charset conversion is needed.
type SinaAdapter struct {
	BaseURL string
	client  *http.Client
	limiter *rate.Limiter
	now     func() time.Time
}

func NewSinaAdapter(ratePerMinute int) *SinaAdapter {
	return &SinaAdapter{
		BaseURL: sinaURL,
		client:  &http.Client{},
		limiter: rate.NewLimiter(rate.Limit(float64(ratePerMinute)/60), 1),
		now:     time.Now,
	}
}

func (a *SinaAdapter) Type() string { return "sina" }

func (a *SinaAdapter) Fetch(ctx context.Context) (*Quote, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, requestErr(a.Type(), err)
	}
	// The hq endpoint rejects requests without a finance.sina referer.
	headers := map[string]string{"Referer": "https://finance.sina.com.cn"}
	body, err := getBody(ctx, a.client, a.BaseURL, headers)
	if err != nil {
		return nil, requestErr(a.Type(), err)
	}

	payload, ok := firstQuoted(body)
	if !ok {
		return nil, parseErr(a.Type(), fmt.Errorf("no quoted payload"))
	}
	parts := strings.Split(payload, ",")
	if len(parts) < 8 {
		return nil, parseErr(a.Type(), fmt.Errorf("short payload: %d fields", len(parts)))
	}

	price := parseField(parts[1], 0)
	if price <= 0 {
		return nil, validateErr(a.Type(), fmt.Errorf("invalid price: %q", parts[1]))
	}
	prevClose := parseField(parts[2], price)
	change := price - prevClose

	q := &Quote{
		Price:          price,
		Open:           parseField(parts[3], price),
		High:           parseField(parts[4], price),
		Low:            parseField(parts[5], price),
		YesterdayClose: prevClose,
		Change:         change,
		ChangePercent:  changePercent(change, prevClose),
	}
	return stamp(q, a.Type(), a.now()), nil
}

// parseField falls back to def on empty or malformed columns, matching
// how the upstream pads missing values.
func parseField(s string, def float64) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return v
}
