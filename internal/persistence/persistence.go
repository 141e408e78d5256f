package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/L-yifan/Gold-Fund-monitor/internal/funds"
	"github.com/L-yifan/Gold-Fund-monitor/internal/holdings"
	"github.com/L-yifan/Gold-Fund-monitor/internal/quotes"
	"github.com/L-yifan/Gold-Fund-monitor/internal/records"
)

// Snapshot is the durable application state, written as one JSON file.
type Snapshot struct {
	ManualRecords  []records.Record           `json:"manual_records"`
	PriceHistory   []quotes.Quote             `json:"price_history"`
	AlertSettings  records.AlertSettings      `json:"alert_settings"`
	FundWatchlist  []string                   `json:"fund_watchlist"`
	FundHoldings   []holdings.Position        `json:"fund_holdings"`
	FundPortfolios map[string]funds.Portfolio `json:"fund_portfolios,omitempty"`
}

// Store persists snapshots atomically: write a temp file in the same
// directory, fsync, then rename over the target.
type Store struct {
	mu   sync.Mutex
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Save(snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".data-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// Load reads the snapshot. A missing file yields an empty snapshot and
// no error; a corrupt file is an error.
func (s *Store) Load() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Snapshot{}, nil
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", s.path, err)
	}
	return &snap, nil
}
