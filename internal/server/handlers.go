package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/L-yifan/Gold-Fund-monitor/internal/calc"
	"github.com/L-yifan/Gold-Fund-monitor/internal/funds"
	"github.com/L-yifan/Gold-Fund-monitor/internal/holdings"
	"github.com/L-yifan/Gold-Fund-monitor/internal/observ"
	"github.com/L-yifan/Gold-Fund-monitor/internal/quotes"
	"github.com/L-yifan/Gold-Fund-monitor/internal/records"
)

// getPrice serves the latest gold price. A fresh buffer sample is
// served directly; otherwise a live fetch runs, and on failure the
// last known sample is served tagged stale.
func (s *Server) getPrice(c *gin.Context) {
	priceStale := time.Duration(s.cfg.PriceStaleSeconds) * time.Second
	latest := s.buffer.Latest()
	nowEpoch := float64(s.now().Unix())

	if latest != nil && nowEpoch-latest.Timestamp < priceStale.Seconds() {
		s.priceResponse(c, latest, false)
		return
	}

	ctx, cancel := withTimeout(c, 15*time.Second)
	defer cancel()
	q, err := s.fetcher.Fetch(ctx)
	if err != nil {
		if latest != nil {
			s.priceResponse(c, latest, true)
			return
		}
		fail(c, http.StatusServiceUnavailable, fetchError(err))
		return
	}

	s.buffer.Append(*q)
	if s.persist != nil {
		s.persist()
	}
	s.priceResponse(c, q, false)
}

func (s *Server) priceResponse(c *gin.Context, q *quotes.Quote, stale bool) {
	summary := s.buffer.Summarize(float64(s.now().Unix()))
	resp := gin.H{
		"success":          true,
		"price":            q.Price,
		"open":             q.Open,
		"high":             q.High,
		"low":              q.Low,
		"yesterday_close":  q.YesterdayClose,
		"change":           q.Change,
		"change_percent":   q.ChangePercent,
		"timestamp":        q.Timestamp,
		"time_str":         q.TimeStr,
		"source":           q.Source,
		"high_24h":         summary.High24h,
		"low_24h":          summary.Low24h,
		"avg_24h":          summary.Avg24h,
		"volatility":       summary.Volatility,
		"history_count_24": summary.Count,
	}
	if stale {
		resp["stale"] = true
	}
	c.JSON(http.StatusOK, resp)
}

// isFast reports whether the request opts into fast reads. Absent or
// anything else means a synchronous fetch.
func isFast(c *gin.Context) bool {
	v := c.Query("fast")
	return v == "1" || v == "true"
}

func (s *Server) getHistory(c *gin.Context) {
	data := s.buffer.Snapshot()
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data, "count": len(data)})
}

func (s *Server) postCalculate(c *gin.Context) {
	var req struct {
		BuyPrice     float64 `json:"buy_price"`
		CurrentPrice float64 `json:"current_price"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.BuyPrice <= 0 {
		fail(c, http.StatusBadRequest, "buy_price must be positive")
		return
	}

	resp := gin.H{
		"success":   true,
		"buy_price": req.BuyPrice,
		"fee_rate":  s.cfg.FeeRate,
		"targets":   calc.TargetPrices(req.BuyPrice, s.cfg.FeeRate),
	}
	if req.CurrentPrice > 0 {
		resp["current_profit"] = calc.CurrentProfit(req.BuyPrice, req.CurrentPrice, s.cfg.FeeRate)
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) getFunds(c *gin.Context) {
	fast := isFast(c)
	codes := s.watchlist.Codes()

	ctx, cancel := withTimeout(c, 30*time.Second)
	defer cancel()
	data := s.fundCache.GetMany(ctx, codes, fast)
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data, "count": len(data)})
}

func (s *Server) postFundAdd(c *gin.Context) {
	var req struct {
		Code string `json:"code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || !funds.ValidCode(req.Code) {
		fail(c, http.StatusBadRequest, "code must be a 6-digit fund code")
		return
	}
	if s.watchlist.Contains(req.Code) {
		fail(c, http.StatusConflict, "fund already in watchlist")
		return
	}

	ctx, cancel := withTimeout(c, 15*time.Second)
	defer cancel()
	f, err := s.fundCache.FetchNow(ctx, req.Code)
	if err != nil {
		fail(c, http.StatusBadGateway, "fund not found or source unavailable")
		return
	}

	s.watchlist.Add(req.Code)
	if s.persist != nil {
		s.persist()
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": f})
}

func (s *Server) deleteFund(c *gin.Context) {
	code := c.Param("code")
	if !s.watchlist.Remove(code) {
		fail(c, http.StatusNotFound, "fund not in watchlist")
		return
	}
	s.fundCache.Remove(code)
	if s.persist != nil {
		s.persist()
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) getFundPortfolio(c *gin.Context) {
	code := c.Param("code")
	if !funds.ValidCode(code) {
		fail(c, http.StatusBadRequest, "code must be a 6-digit fund code")
		return
	}
	refresh := c.Query("refresh") == "1"

	ctx, cancel := withTimeout(c, 20*time.Second)
	defer cancel()
	p, err := s.portfolios.Get(ctx, code, refresh)
	if err != nil {
		fail(c, http.StatusBadGateway, "portfolio unavailable")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": p})
}

func (s *Server) getHoldings(c *gin.Context) {
	fast := isFast(c)
	refresh := c.Query("refresh") == "1"

	ctx, cancel := withTimeout(c, 60*time.Second)
	defer cancel()
	c.JSON(http.StatusOK, s.holdings.Get(ctx, fast, refresh))
}

func (s *Server) postHolding(c *gin.Context) {
	var p holdings.Position
	if err := c.ShouldBindJSON(&p); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.holdings.Upsert(p); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) deleteHolding(c *gin.Context) {
	if !s.holdings.Delete(c.Param("code")) {
		fail(c, http.StatusNotFound, "holding not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) getSettings(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": s.records.Alerts()})
}

func (s *Server) postSettings(c *gin.Context) {
	var a records.AlertSettings
	if err := c.ShouldBindJSON(&a); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if a.Enabled && a.High > 0 && a.Low > 0 && a.Low >= a.High {
		fail(c, http.StatusBadRequest, "low threshold must be below high threshold")
		return
	}
	s.records.SetAlerts(a)
	c.JSON(http.StatusOK, gin.H{"success": true, "data": a})
}

func (s *Server) postRecord(c *gin.Context) {
	var req struct {
		Price    float64 `json:"price"`
		BuyPrice float64 `json:"buy_price"`
		Note     string  `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Price <= 0 {
		fail(c, http.StatusBadRequest, "price must be positive")
		return
	}
	r := s.records.Add(req.Price, req.BuyPrice, req.Note)
	c.JSON(http.StatusOK, gin.H{"success": true, "data": r})
}

func (s *Server) getRecords(c *gin.Context) {
	data := s.records.All()
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data, "count": len(data)})
}

func (s *Server) postRecordsClear(c *gin.Context) {
	n := s.records.Clear()
	c.JSON(http.StatusOK, gin.H{"success": true, "cleared": n})
}

func (s *Server) getMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, observ.Snapshot())
}

func (s *Server) getStatus(c *gin.Context) {
	now := s.now()
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"sources":       s.registry.Status(),
		"trading_day":   s.calendar.IsTradingDay(now),
		"market_open":   s.calendar.IsOpen(now),
		"history_count": s.buffer.Len(),
		"time_str":      now.Format("2006-01-02 15:04:05"),
	})
}
