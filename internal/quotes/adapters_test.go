package quotes

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func serve(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEastmoneyParse(t *testing.T) {
	srv := serve(t, `{"data":{"f43":55012,"f44":55230,"f45":54890,"f46":55000,"f60":54950,"f170":11}}`)
	a := NewEastmoneyAdapter(600)
	a.BaseURL = srv.URL

	q, err := a.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Price != 550.12 {
		t.Errorf("price: got %.2f, want 550.12", q.Price)
	}
	if q.High != 552.30 || q.Low != 548.90 || q.Open != 550.00 {
		t.Errorf("OHLC wrong: %+v", q)
	}
	if q.YesterdayClose != 549.50 {
		t.Errorf("yesterday_close: got %.2f", q.YesterdayClose)
	}
	if q.Change != 0.62 {
		t.Errorf("change: got %.2f, want 0.62", q.Change)
	}
	if q.ChangePercent != 0.11 {
		t.Errorf("change_percent: got %.2f, want 0.11", q.ChangePercent)
	}
	if q.TimeStr == "" || q.Timestamp == 0 {
		t.Error("capture-time fields not stamped")
	}
}

func TestEastmoneyEmptyData(t *testing.T) {
	srv := serve(t, `{"data":null}`)
	a := NewEastmoneyAdapter(600)
	a.BaseURL = srv.URL

	if _, err := a.Fetch(context.Background()); err == nil {
		t.Fatal("expected error on null data")
	}
}

func TestSinaParse(t *testing.T) {
	srv := serve(t, `var hq_str_gds_au9999="15:25:30,550.12,549.50,550.00,552.30,548.90,550.10,550.14";`)
	a := NewSinaAdapter(600)
	a.BaseURL = srv.URL

	q, err := a.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Price != 550.12 {
		t.Errorf("price: got %.2f, want 550.12", q.Price)
	}
	if q.YesterdayClose != 549.50 {
		t.Errorf("yesterday_close: got %.2f", q.YesterdayClose)
	}
	if q.Change != 0.62 {
		t.Errorf("change: got %.2f, want 0.62", q.Change)
	}
}

func TestSinaRejectsNonPositivePrice(t *testing.T) {
	srv := serve(t, `var hq_str_gds_au9999="15:25:30,0.00,549.50,550.00,552.30,548.90,550.10,550.14";`)
	a := NewSinaAdapter(600)
	a.BaseURL = srv.URL

	_, err := a.Fetch(context.Background())
	if err == nil {
		t.Fatal("expected validation error on zero price")
	}
	var ae *AdapterError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AdapterError, got %T", err)
	}
	if ae.Source != "sina" {
		t.Errorf("error source: got %q", ae.Source)
	}
}

func TestSinaShortPayload(t *testing.T) {
	srv := serve(t, `var hq_str_gds_au9999="15:25:30,550.12";`)
	a := NewSinaAdapter(600)
	a.BaseURL = srv.URL

	if _, err := a.Fetch(context.Background()); err == nil {
		t.Fatal("expected error on short payload")
	}
}

func TestTencentParseWithFullFeed(t *testing.T) {
	simple := serve(t, `v_s_shau9999="1~Au99.99~au9999~550.12~0.62~0.11";`)

	// Full feed: field 4 yesterday close, 5 open, 33 high, 34 low.
	fields := make([]string, 36)
	for i := range fields {
		fields[i] = "x"
	}
	fields[3] = "550.12"
	fields[4] = "549.50"
	fields[5] = "550.00"
	fields[33] = "552.30"
	fields[34] = "548.90"
	full := serve(t, `v_shau9999="`+strings.Join(fields, "~")+`";`)

	a := NewTencentAdapter(600)
	a.SimpleURL = simple.URL
	a.FullURL = full.URL

	q, err := a.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Price != 550.12 || q.Change != 0.62 || q.ChangePercent != 0.11 {
		t.Errorf("simple fields wrong: %+v", q)
	}
	if q.YesterdayClose != 549.50 || q.Open != 550.00 {
		t.Errorf("full feed close/open not applied: %+v", q)
	}
	if q.High != 552.30 || q.Low != 548.90 {
		t.Errorf("full feed high/low not applied: %+v", q)
	}
}

func TestTencentSurvivesFullFeedFailure(t *testing.T) {
	simple := serve(t, `v_s_shau9999="1~Au99.99~au9999~550.12~0.62~0.11";`)
	a := NewTencentAdapter(600)
	a.SimpleURL = simple.URL
	a.FullURL = "http://127.0.0.1:1/unreachable"

	q, err := a.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Simple feed has no OHLC, so price backfills it.
	if q.Open != 550.12 || q.High != 550.12 || q.Low != 550.12 {
		t.Errorf("expected price-backfilled OHLC, got %+v", q)
	}
}

func TestNeteaseParse(t *testing.T) {
	srv := serve(t, `_ntes_quote_callback({"118AU9999":{"price":550.12,"open":550.00,"high":552.30,"low":548.90,"yestclose":549.50,"updown":0.62,"percent":0.0011}});`)
	a := NewNeteaseAdapter(600)
	a.BaseURL = srv.URL

	q, err := a.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Price != 550.12 {
		t.Errorf("price: got %.2f", q.Price)
	}
	if q.ChangePercent != 0.11 {
		t.Errorf("percent not rescaled: got %.4f, want 0.11", q.ChangePercent)
	}
}

func TestNeteaseMissingInstrument(t *testing.T) {
	srv := serve(t, `_ntes_quote_callback({"other":{"price":1}});`)
	a := NewNeteaseAdapter(600)
	a.BaseURL = srv.URL

	if _, err := a.Fetch(context.Background()); err == nil {
		t.Fatal("expected error when instrument key is missing")
	}
}

func TestAdapterRejectsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	a := NewEastmoneyAdapter(600)
	a.BaseURL = srv.URL
	if _, err := a.Fetch(context.Background()); err == nil {
		t.Fatal("expected error on non-200 status")
	}
}
