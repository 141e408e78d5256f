package tradingday

import (
	"testing"
	"time"
)

func TestIsTradingDay(t *testing.T) {
	c := NewShanghai()

	monday := time.Date(2025, 3, 3, 10, 0, 0, 0, c.Location())
	if !c.IsTradingDay(monday) {
		t.Errorf("%s should be a trading day", monday.Format("2006-01-02"))
	}

	saturday := time.Date(2025, 3, 8, 10, 0, 0, 0, c.Location())
	if c.IsTradingDay(saturday) {
		t.Errorf("%s should not be a trading day", saturday.Format("2006-01-02"))
	}
}

func TestIsOpenOutsideSession(t *testing.T) {
	c := NewShanghai()

	// 03:00 local is outside any session on any exchange.
	night := time.Date(2025, 3, 3, 3, 0, 0, 0, c.Location())
	if c.IsOpen(night) {
		t.Error("market open at 03:00 local")
	}

	saturday := time.Date(2025, 3, 8, 10, 0, 0, 0, c.Location())
	if c.IsOpen(saturday) {
		t.Error("market open on Saturday")
	}
}

func TestFallbackCalendar(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	c := &Calendar{fallback: true, loc: loc}

	if !c.IsOpen(time.Date(2025, 3, 3, 10, 0, 0, 0, loc)) {
		t.Error("fallback closed during Monday session")
	}
	if c.IsOpen(time.Date(2025, 3, 3, 16, 0, 0, 0, loc)) {
		t.Error("fallback open after session close")
	}
	if c.IsOpen(time.Date(2025, 3, 8, 10, 0, 0, 0, loc)) {
		t.Error("fallback open on Saturday")
	}
}
