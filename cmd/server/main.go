package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/L-yifan/Gold-Fund-monitor/internal/config"
	"github.com/L-yifan/Gold-Fund-monitor/internal/funds"
	"github.com/L-yifan/Gold-Fund-monitor/internal/history"
	"github.com/L-yifan/Gold-Fund-monitor/internal/holdings"
	"github.com/L-yifan/Gold-Fund-monitor/internal/observ"
	"github.com/L-yifan/Gold-Fund-monitor/internal/persistence"
	"github.com/L-yifan/Gold-Fund-monitor/internal/quotes"
	"github.com/L-yifan/Gold-Fund-monitor/internal/records"
	"github.com/L-yifan/Gold-Fund-monitor/internal/server"
	"github.com/L-yifan/Gold-Fund-monitor/internal/tradingday"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to YAML config")
	flag.Parse()

	if err := run(*configPath); err != nil {
		observ.Log("fatal", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	registry := quotes.NewRegistry(cfg.Sources, cfg.Breaker)
	adapters, err := buildAdapters(cfg.Sources)
	if err != nil {
		return err
	}
	fetcher := quotes.NewFetcher(registry, adapters...)

	guzhi := funds.NewGuzhiClient(10 * time.Second)
	fundCache := funds.NewCache(guzhi, cfg.FundTTL.Fresh(), cfg.FundTTL.Stale(), cfg.MaxFetchWorkers)
	watchlist := funds.NewWatchlist()
	portfolios := funds.NewPortfolioService(time.Duration(cfg.PortfolioCacheSeconds) * time.Second)
	holdingsStore := holdings.NewStore(fundCache, cfg.HoldTTL.Fresh(), cfg.HoldTTL.Stale())
	recordStore := records.NewStore()
	buffer := history.NewBuffer(cfg.HistoryCapacity)
	calendar := tradingday.NewShanghai()
	dataStore := persistence.NewStore(cfg.DataFile)

	snap, err := dataStore.Load()
	if err != nil {
		return fmt.Errorf("load data file: %w", err)
	}
	buffer.Replace(snap.PriceHistory)
	watchlist.Replace(snap.FundWatchlist)
	holdingsStore.Replace(snap.FundHoldings)
	recordStore.Replace(snap.ManualRecords, snap.AlertSettings)
	portfolios.Replace(snap.FundPortfolios)
	observ.Log("state_loaded", map[string]any{
		"history":   buffer.Len(),
		"watchlist": len(snap.FundWatchlist),
		"holdings":  len(snap.FundHoldings),
		"records":   len(snap.ManualRecords),
	})

	// save prunes history to the current exchange day and stale records
	// before writing the snapshot.
	save := func() {
		dayStart := dayStartEpoch(time.Now(), calendar)
		buffer.PruneBefore(dayStart)
		recordStore.Prune(cfg.RecordsKeepDays)
		err := dataStore.Save(&persistence.Snapshot{
			ManualRecords:  recordStore.Records(),
			PriceHistory:   buffer.Snapshot(),
			AlertSettings:  recordStore.Alerts(),
			FundWatchlist:  watchlist.Codes(),
			FundHoldings:   holdingsStore.Positions(),
			FundPortfolios: portfolios.Entries(),
		})
		if err != nil {
			observ.Log("persist_failed", map[string]any{"error": err.Error()})
			observ.IncCounter("persist_errors_total", nil)
		}
	}
	holdingsStore.OnChange(save)
	recordStore.OnChange(save)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	poller := &history.Poller{
		Fetch:        fetcher.Fetch,
		Buffer:       buffer,
		Persist:      save,
		Calendar:     calendar,
		Interval:     time.Duration(cfg.Poller.IntervalSeconds) * time.Second,
		ErrorBackoff: time.Duration(cfg.Poller.ErrorBackoffSeconds) * time.Second,
		IdleInterval: time.Duration(cfg.Poller.IdleIntervalSeconds) * time.Second,
	}
	go poller.Run(ctx)

	srv := server.New(server.Deps{
		Config:     &cfg,
		Fetcher:    fetcher,
		Registry:   registry,
		Buffer:     buffer,
		FundCache:  fundCache,
		Watchlist:  watchlist,
		Portfolios: portfolios,
		Holdings:   holdingsStore,
		Records:    recordStore,
		Calendar:   calendar,
		Persist:    save,
	})
	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		observ.Log("server_started", map[string]any{"addr": cfg.Server.Addr})
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	observ.Log("shutting_down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		observ.Log("shutdown_error", map[string]any{"error": err.Error()})
	}
	save()
	return nil
}

func buildAdapters(sources []config.Source) ([]quotes.Adapter, error) {
	seen := make(map[string]bool)
	var out []quotes.Adapter
	for _, src := range sources {
		if seen[src.Type] {
			continue
		}
		seen[src.Type] = true
		switch src.Type {
		case "eastmoney":
			out = append(out, quotes.NewEastmoneyAdapter(src.RatePerMinute))
		case "sina":
			out = append(out, quotes.NewSinaAdapter(src.RatePerMinute))
		case "tencent":
			out = append(out, quotes.NewTencentAdapter(src.RatePerMinute))
		case "netease":
			out = append(out, quotes.NewNeteaseAdapter(src.RatePerMinute))
		default:
			return nil, fmt.Errorf("unknown source type %q", src.Type)
		}
	}
	return out, nil
}

// dayStartEpoch is midnight of the current day in the exchange timezone.
func dayStartEpoch(now time.Time, cal *tradingday.Calendar) float64 {
	local := now.In(cal.Location())
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, cal.Location())
	return float64(start.Unix())
}
