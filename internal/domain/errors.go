package domain

import (
	"errors"
	"fmt"
)

// Error kinds the batch runner dispatches on. Source clients wrap these with
// context via fmt.Errorf("...: %w", ...); callers test with errors.Is.
var (
	// ErrUpstreamUnavailable covers network failures and non-2xx responses.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrUpstreamFormatChanged covers an expected DOM or JSON shape going
	// missing. Not retryable; the page simply changed under us.
	ErrUpstreamFormatChanged = errors.New("upstream format changed")

	// ErrImageNotFound is the USGS page's known flake: the hydrograph <img>
	// lost its alt attribute. The one condition the runner retries.
	ErrImageNotFound = errors.New("hydrograph image not found")

	// ErrNoDataComputed means a virtual-gage recipe produced an empty series.
	ErrNoDataComputed = errors.New("no data computed")

	// ErrGageNotFound is returned by registry lookups for unknown (id, type) pairs.
	ErrGageNotFound = errors.New("gage not found")
)

// CorruptRecordError marks a stored line whose value field failed to parse.
// The store logs it and continues with the remaining lines.
type CorruptRecordError struct {
	File string
	Line int
	Text string
	Err  error
}

func (e *CorruptRecordError) Error() string {
	return fmt.Sprintf("corrupt record in %s line %d: %q: %v", e.File, e.Line, e.Text, e.Err)
}

func (e *CorruptRecordError) Unwrap() error { return e.Err }
