package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const eastmoneyURL = "https://push2.eastmoney.com/api/qt/stock/get?secid=118.AU9999&fields=f43,f44,f45,f46,f60,f170"

// EastmoneyAdapter reads the Au99.99 snapshot from the eastmoney push
// API. Prices arrive as integer cents and are converted to yuan.
type EastmoneyAdapter struct {
	BaseURL string
	client  *http.Client
	limiter *rate.Limiter
	now     func() time.Time
}

func NewEastmoneyAdapter(ratePerMinute int) *EastmoneyAdapter {
	return &EastmoneyAdapter{
		BaseURL: eastmoneyURL,
		client:  &http.Client{},
		limiter: rate.NewLimiter(rate.Limit(float64(ratePerMinute)/60), 1),
		now:     time.Now,
	}
}

func (a *EastmoneyAdapter) Type() string { return "eastmoney" }

func (a *EastmoneyAdapter) Fetch(ctx context.Context) (*Quote, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, requestErr(a.Type(), err)
	}
	body, err := getBody(ctx, a.client, a.BaseURL, nil)
	if err != nil {
		return nil, requestErr(a.Type(), err)
	}

	var payload struct {
		Data *struct {
			F43  float64 `json:"f43"`  // last, cents
			F44  float64 `json:"f44"`  // high, cents
			F45  float64 `json:"f45"`  // low, cents
			F46  float64 `json:"f46"`  // open, cents
			F60  float64 `json:"f60"`  // prev close, cents
			F170 float64 `json:"f170"` // change percent * 100
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, parseErr(a.Type(), err)
	}
	if payload.Data == nil {
		return nil, parseErr(a.Type(), fmt.Errorf("empty data object"))
	}

	d := payload.Data
	price := d.F43 / 100
	q := &Quote{
		Price:          price,
		Open:           d.F46 / 100,
		High:           d.F44 / 100,
		Low:            d.F45 / 100,
		YesterdayClose: d.F60 / 100,
		Change:         price - d.F60/100,
		ChangePercent:  d.F170 / 100,
	}
	if err := q.Validate(); err != nil {
		return nil, validateErr(a.Type(), err)
	}
	return stamp(q, a.Type(), a.now()), nil
}
