package quotes

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Quote is a normalized Au99.99 price snapshot from one upstream provider.
// Field names on the wire match the dashboard's expectations.
type Quote struct {
	Price          float64 `json:"price"`
	Open           float64 `json:"open"`
	High           float64 `json:"high"`
	Low            float64 `json:"low"`
	YesterdayClose float64 `json:"yesterday_close"`
	Change         float64 `json:"change"`
	ChangePercent  float64 `json:"change_percent"`
	Timestamp      float64 `json:"timestamp"` // epoch seconds
	TimeStr        string  `json:"time_str"`  // HH:MM:SS local time
	Source         string  `json:"source"`
}

// Validate rejects quotes that parsed but carry unusable data. A
// non-positive price is invalid even when the payload decoded cleanly.
func (q *Quote) Validate() error {
	if q == nil {
		return fmt.Errorf("quote is nil")
	}
	if q.Price <= 0 {
		return fmt.Errorf("invalid price: %.4f", q.Price)
	}
	return nil
}

// Adapter performs one network call against a single provider and parses
// the provider-specific payload into a normalized Quote.
type Adapter interface {
	Type() string
	Fetch(ctx context.Context) (*Quote, error)
}

// stamp fills capture-time fields and rounds prices to the common
// 2-decimal currency unit.
func stamp(q *Quote, source string, now time.Time) *Quote {
	q.Price = round2(q.Price)
	q.Open = round2(q.Open)
	q.High = round2(q.High)
	q.Low = round2(q.Low)
	q.YesterdayClose = round2(q.YesterdayClose)
	q.Change = round2(q.Change)
	q.ChangePercent = round2(q.ChangePercent)
	q.Timestamp = float64(now.Unix())
	q.TimeStr = now.Format("15:04:05")
	q.Source = source
	return q
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// changePercent guards the division against a zero previous close.
func changePercent(change, prevClose float64) float64 {
	if prevClose == 0 {
		return 0
	}
	return change / prevClose * 100
}
