package quotes

import (
	"errors"
	"fmt"
)

// Terminal fetch outcomes. The HTTP layer maps these to different user
// messages ("try later" vs "misconfigured"), so they must stay distinct
// and matchable with errors.Is.
var (
	ErrNoEnabledSources = errors.New("no enabled data sources")
	ErrAllSourcesMuted  = errors.New("all data sources cooling down")
	ErrAllSourcesFailed = errors.New("all data sources failed")
)

// AdapterError wraps a provider failure: network, payload parse, or
// invalid data. It never crosses the fetcher boundary as anything but a
// failure signal for that one source.
type AdapterError struct {
	Source string
	Op     string // "request", "parse", "validate"
	Err    error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Source, e.Op, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

func requestErr(source string, err error) *AdapterError {
	return &AdapterError{Source: source, Op: "request", Err: err}
}

func parseErr(source string, err error) *AdapterError {
	return &AdapterError{Source: source, Op: "parse", Err: err}
}

func validateErr(source string, err error) *AdapterError {
	return &AdapterError{Source: source, Op: "validate", Err: err}
}
