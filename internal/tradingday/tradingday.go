package tradingday

import (
	"time"

	"github.com/scmhub/calendar"

	"github.com/L-yifan/Gold-Fund-monitor/internal/observ"
)

// Calendar answers trading-day and trading-hour questions for the
// Shanghai gold market using scmhub/calendar, with a Mon-Fri
// Asia/Shanghai approximation when the library calendar is missing.
type Calendar struct {
	cal      *calendar.Calendar
	fallback bool
	loc      *time.Location
}

func NewShanghai() *Calendar {
	cal := calendar.GetCalendar("xshg")
	if cal == nil {
		loc, err := time.LoadLocation("Asia/Shanghai")
		if err != nil {
			loc = time.FixedZone("CST", 8*3600)
		}
		observ.Log("trading_calendar_fallback", map[string]any{"mic": "xshg"})
		return &Calendar{fallback: true, loc: loc}
	}
	return &Calendar{cal: cal, loc: cal.Loc}
}

// IsTradingDay reports whether date is a business day on the exchange.
func (c *Calendar) IsTradingDay(date time.Time) bool {
	date = date.In(c.loc)
	if c.fallback {
		wd := date.Weekday()
		return wd != time.Saturday && wd != time.Sunday
	}
	return c.cal.IsBusinessDay(date)
}

// IsOpen reports whether the market is trading at t. The fallback
// approximates the Shanghai session as 09:30-15:00 local time.
func (c *Calendar) IsOpen(t time.Time) bool {
	t = t.In(c.loc)
	if c.fallback {
		if !c.IsTradingDay(t) {
			return false
		}
		h, m := t.Hour(), t.Minute()
		return (h > 9 || (h == 9 && m >= 30)) && h < 15
	}
	return c.cal.IsOpen(t)
}

// Location returns the exchange timezone.
func (c *Calendar) Location() *time.Location { return c.loc }
