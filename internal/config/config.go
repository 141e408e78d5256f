package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Source describes one upstream quote provider in priority order.
type Source struct {
	Name           string `yaml:"name"`
	Type           string `yaml:"type"` // eastmoney | sina | tencent | netease
	Enabled        bool   `yaml:"enabled"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	RatePerMinute  int    `yaml:"rate_per_minute"`
}

func (s Source) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

type Breaker struct {
	MaxFailCount        int `yaml:"max_fail_count"`
	MuteDurationSeconds int `yaml:"mute_duration_seconds"`
}

// TTLPair is a fresh/stale threshold pair for one cache scope.
type TTLPair struct {
	FreshSeconds int `yaml:"fresh_seconds"`
	StaleSeconds int `yaml:"stale_seconds"`
}

func (t TTLPair) Fresh() time.Duration { return time.Duration(t.FreshSeconds) * time.Second }
func (t TTLPair) Stale() time.Duration { return time.Duration(t.StaleSeconds) * time.Second }

type Poller struct {
	IntervalSeconds     int `yaml:"interval_seconds"`
	ErrorBackoffSeconds int `yaml:"error_backoff_seconds"`
	IdleIntervalSeconds int `yaml:"idle_interval_seconds"` // cadence while the exchange is closed
}

type Server struct {
	Addr string `yaml:"addr"`
}

type Root struct {
	Sources  []Source `yaml:"sources"`
	Breaker  Breaker  `yaml:"breaker"`
	FundTTL  TTLPair  `yaml:"fund_cache"`
	HoldTTL  TTLPair  `yaml:"holdings_cache"`
	Poller   Poller   `yaml:"poller"`
	Server   Server   `yaml:"server"`

	HistoryCapacity       int     `yaml:"history_capacity"`
	MaxFetchWorkers       int     `yaml:"max_fetch_workers"`
	PriceStaleSeconds     int     `yaml:"price_stale_seconds"`
	PortfolioCacheSeconds int     `yaml:"portfolio_cache_seconds"`
	RecordsKeepDays       int     `yaml:"records_keep_days"`
	FeeRate               float64 `yaml:"fee_rate"`
	DataFile              string  `yaml:"data_file"`
}

// Load reads YAML config from path. A missing path yields pure defaults so
// the server can start with zero configuration.
func Load(path string) (Root, error) {
	var c Root
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return c, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(b, &c); err != nil {
			return c, fmt.Errorf("parse config: %w", err)
		}
	}
	applyDefaults(&c)
	return c, nil
}

func applyDefaults(c *Root) {
	if len(c.Sources) == 0 {
		c.Sources = []Source{
			{Name: "eastmoney", Type: "eastmoney", Enabled: true, TimeoutSeconds: 5},
			{Name: "sina", Type: "sina", Enabled: true, TimeoutSeconds: 5},
			{Name: "tencent", Type: "tencent", Enabled: true, TimeoutSeconds: 3},
			{Name: "netease", Type: "netease", Enabled: false, TimeoutSeconds: 3},
		}
	}
	for i := range c.Sources {
		if c.Sources[i].TimeoutSeconds <= 0 {
			c.Sources[i].TimeoutSeconds = 5
		}
		if c.Sources[i].RatePerMinute <= 0 {
			c.Sources[i].RatePerMinute = 30
		}
	}
	if c.Breaker.MaxFailCount <= 0 {
		c.Breaker.MaxFailCount = 3
	}
	if c.Breaker.MuteDurationSeconds <= 0 {
		c.Breaker.MuteDurationSeconds = 300
	}
	if c.FundTTL.FreshSeconds <= 0 {
		c.FundTTL.FreshSeconds = 30
	}
	if c.FundTTL.StaleSeconds <= 0 {
		c.FundTTL.StaleSeconds = 600
	}
	if c.HoldTTL.FreshSeconds <= 0 {
		c.HoldTTL.FreshSeconds = 30
	}
	if c.HoldTTL.StaleSeconds <= 0 {
		c.HoldTTL.StaleSeconds = 600
	}
	if c.Poller.IntervalSeconds <= 0 {
		c.Poller.IntervalSeconds = 5
	}
	if c.Poller.ErrorBackoffSeconds <= 0 {
		c.Poller.ErrorBackoffSeconds = 30
	}
	if c.Poller.IdleIntervalSeconds <= 0 {
		c.Poller.IdleIntervalSeconds = 60
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":5000"
	}
	if c.HistoryCapacity <= 0 {
		c.HistoryCapacity = 720
	}
	if c.MaxFetchWorkers <= 0 {
		c.MaxFetchWorkers = 8
	}
	if c.PriceStaleSeconds <= 0 {
		c.PriceStaleSeconds = 30
	}
	if c.PortfolioCacheSeconds <= 0 {
		c.PortfolioCacheSeconds = 6 * 3600
	}
	if c.RecordsKeepDays <= 0 {
		c.RecordsKeepDays = 7
	}
	if c.FeeRate <= 0 {
		c.FeeRate = 0.005
	}
	if c.DataFile == "" {
		c.DataFile = "data/data.json"
	}
}
