package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/L-yifan/Gold-Fund-monitor/internal/config"
	"github.com/L-yifan/Gold-Fund-monitor/internal/funds"
	"github.com/L-yifan/Gold-Fund-monitor/internal/history"
	"github.com/L-yifan/Gold-Fund-monitor/internal/holdings"
	"github.com/L-yifan/Gold-Fund-monitor/internal/observ"
	"github.com/L-yifan/Gold-Fund-monitor/internal/quotes"
	"github.com/L-yifan/Gold-Fund-monitor/internal/records"
	"github.com/L-yifan/Gold-Fund-monitor/internal/tradingday"
)

// Server wires the HTTP API over the domain components.
type Server struct {
	cfg        *config.Root
	fetcher    *quotes.Fetcher
	registry   *quotes.Registry
	buffer     *history.Buffer
	fundCache  *funds.Cache
	watchlist  *funds.Watchlist
	portfolios *funds.PortfolioService
	holdings   *holdings.Store
	records    *records.Store
	calendar   *tradingday.Calendar
	persist    func()
	now        func() time.Time

	engine *gin.Engine
}

type Deps struct {
	Config     *config.Root
	Fetcher    *quotes.Fetcher
	Registry   *quotes.Registry
	Buffer     *history.Buffer
	FundCache  *funds.Cache
	Watchlist  *funds.Watchlist
	Portfolios *funds.PortfolioService
	Holdings   *holdings.Store
	Records    *records.Store
	Calendar   *tradingday.Calendar
	Persist    func()
}

func New(d Deps) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		cfg:        d.Config,
		fetcher:    d.Fetcher,
		registry:   d.Registry,
		buffer:     d.Buffer,
		fundCache:  d.FundCache,
		watchlist:  d.Watchlist,
		portfolios: d.Portfolios,
		holdings:   d.Holdings,
		records:    d.Records,
		calendar:   d.Calendar,
		persist:    d.Persist,
		now:        time.Now,
		engine:     gin.New(),
	}
	s.engine.Use(gin.Recovery(), s.requestLog())
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.engine.Group("/api")

	api.GET("/price", s.getPrice)
	api.GET("/history", s.getHistory)
	api.POST("/calculate", s.postCalculate)

	api.GET("/funds", s.getFunds)
	api.POST("/funds/add", s.postFundAdd)
	api.DELETE("/funds/:code", s.deleteFund)
	api.GET("/funds/:code/portfolio", s.getFundPortfolio)

	api.GET("/holdings", s.getHoldings)
	api.POST("/holdings", s.postHolding)
	api.DELETE("/holdings/:code", s.deleteHolding)

	api.GET("/settings", s.getSettings)
	api.POST("/settings", s.postSettings)

	api.POST("/record", s.postRecord)
	api.GET("/records", s.getRecords)
	api.POST("/records/clear", s.postRecordsClear)

	api.GET("/metrics", s.getMetrics)
	api.GET("/status", s.getStatus)
}

// Handler exposes the engine for the http.Server and for tests.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		observ.RecordDuration("http_request", time.Since(start), map[string]string{
			"path": c.FullPath(),
		})
		if c.Writer.Status() >= 500 {
			observ.Log("http_server_error", map[string]any{
				"path":   c.Request.URL.Path,
				"status": c.Writer.Status(),
			})
		}
	}
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "error": msg})
}

// fetchError maps the terminal fetch errors to user-facing messages.
func fetchError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, quotes.ErrNoEnabledSources):
		return "no data sources enabled"
	case errors.Is(err, quotes.ErrAllSourcesMuted):
		return "all data sources cooling down, try again shortly"
	default:
		return "all data sources failed"
	}
}

func withTimeout(c *gin.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), d)
}
