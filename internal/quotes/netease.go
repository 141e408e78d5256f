package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"golang.org/x/time/rate"
)

const neteaseURL = "http://api.money.126.net/data/feed/118AU9999,money.api"

// jsonpBody strips the _ntes_quote_callback(...) wrapper.
var jsonpBody = regexp.MustCompile(`\((.*)\)`)

// NeteaseAdapter reads Au99.99 from the 126 feed API, which wraps its
// JSON object in a JSONP callback. The percent field arrives as a
// fraction and is scaled to a percentage.
type NeteaseAdapter struct {
	BaseURL string
	client  *http.Client
	limiter *rate.Limiter
	now     func() time.Time
}

func NewNeteaseAdapter(ratePerMinute int) *NeteaseAdapter {
	return &NeteaseAdapter{
		BaseURL: neteaseURL,
		client:  &http.Client{},
		limiter: rate.NewLimiter(rate.Limit(float64(ratePerMinute)/60), 1),
		now:     time.Now,
	}
}

func (a *NeteaseAdapter) Type() string { return "netease" }

func (a *NeteaseAdapter) Fetch(ctx context.Context) (*Quote, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, requestErr(a.Type(), err)
	}
	body, err := getBody(ctx, a.client, a.BaseURL, nil)
	if err != nil {
		return nil, requestErr(a.Type(), err)
	}

	m := jsonpBody.FindSubmatch(body)
	if m == nil {
		return nil, parseErr(a.Type(), fmt.Errorf("no JSONP wrapper"))
	}

	var payload map[string]struct {
		Price     float64 `json:"price"`
		Open      float64 `json:"open"`
		High      float64 `json:"high"`
		Low       float64 `json:"low"`
		YestClose float64 `json:"yestclose"`
		UpDown    float64 `json:"updown"`
		Percent   float64 `json:"percent"`
	}
	if err := json.Unmarshal(m[1], &payload); err != nil {
		return nil, parseErr(a.Type(), err)
	}
	d, ok := payload["118AU9999"]
	if !ok {
		return nil, parseErr(a.Type(), fmt.Errorf("instrument key missing"))
	}

	q := &Quote{
		Price:          d.Price,
		Open:           orDefault(d.Open, d.Price),
		High:           orDefault(d.High, d.Price),
		Low:            orDefault(d.Low, d.Price),
		YesterdayClose: orDefault(d.YestClose, d.Price),
		Change:         d.UpDown,
		ChangePercent:  d.Percent * 100,
	}
	if err := q.Validate(); err != nil {
		return nil, validateErr(a.Type(), err)
	}
	return stamp(q, a.Type(), a.now()), nil
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}
