package observ

import (
	"sort"
	"strings"
	"sync"
	"time"
)

type registry struct {
	mu       sync.Mutex
	counters map[string]map[string]int64   // name -> labelsKey -> count
	gauges   map[string]map[string]float64 // name -> labelsKey -> value
}

var reg = &registry{
	counters: map[string]map[string]int64{},
	gauges:   map[string]map[string]float64{},
}

// canonicalize label map so key order is stable
func canonLabels(lbl map[string]string) string {
	if len(lbl) == 0 {
		return ""
	}
	keys := make([]string, 0, len(lbl))
	for k := range lbl {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(lbl[k])
	}
	return b.String()
}

func IncCounter(name string, labels map[string]string) {
	IncCounterBy(name, labels, 1)
}

func IncCounterBy(name string, labels map[string]string, value int64) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	m, ok := reg.counters[name]
	if !ok {
		m = map[string]int64{}
		reg.counters[name] = m
	}
	m[canonLabels(labels)] += value
}

func SetGauge(name string, value float64, labels map[string]string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	m, ok := reg.gauges[name]
	if !ok {
		m = map[string]float64{}
		reg.gauges[name] = m
	}
	m[canonLabels(labels)] = value
}

// RecordDuration stores a duration as a millisecond gauge.
func RecordDuration(name string, d time.Duration, labels map[string]string) {
	SetGauge(name+"_ms", float64(d.Milliseconds()), labels)
}

// MetricsSnapshot is the JSON shape served on /api/metrics.
type MetricsSnapshot struct {
	Counters map[string]map[string]int64   `json:"counters"`
	Gauges   map[string]map[string]float64 `json:"gauges"`
}

// Snapshot returns a deep copy of the current metric state.
func Snapshot() MetricsSnapshot {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	out := MetricsSnapshot{
		Counters: make(map[string]map[string]int64, len(reg.counters)),
		Gauges:   make(map[string]map[string]float64, len(reg.gauges)),
	}
	for name, m := range reg.counters {
		cp := make(map[string]int64, len(m))
		for k, v := range m {
			cp[k] = v
		}
		out.Counters[name] = cp
	}
	for name, m := range reg.gauges {
		cp := make(map[string]float64, len(m))
		for k, v := range m {
			cp[k] = v
		}
		out.Gauges[name] = cp
	}
	return out
}

// CounterValue reads one counter for tests and status reporting.
func CounterValue(name string, labels map[string]string) int64 {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if m, ok := reg.counters[name]; ok {
		return m[canonLabels(labels)]
	}
	return 0
}
