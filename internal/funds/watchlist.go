package funds

import "sync"

// Watchlist is the ordered list of tracked fund codes.
type Watchlist struct {
	mu    sync.Mutex
	codes []string
}

func NewWatchlist() *Watchlist {
	return &Watchlist{}
}

// Add appends code; false when already present.
func (w *Watchlist) Add(code string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, c := range w.codes {
		if c == code {
			return false
		}
	}
	w.codes = append(w.codes, code)
	return true
}

// Contains reports membership.
func (w *Watchlist) Contains(code string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, c := range w.codes {
		if c == code {
			return true
		}
	}
	return false
}

// Remove deletes code; false when absent.
func (w *Watchlist) Remove(code string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, c := range w.codes {
		if c == code {
			w.codes = append(w.codes[:i], w.codes[i+1:]...)
			return true
		}
	}
	return false
}

// Codes snapshots the list in order.
func (w *Watchlist) Codes() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, len(w.codes))
	copy(out, w.codes)
	return out
}

// Replace swaps in a loaded list, dropping invalid codes.
func (w *Watchlist) Replace(codes []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.codes = w.codes[:0]
	for _, c := range codes {
		if ValidCode(c) {
			w.codes = append(w.codes, c)
		}
	}
}
