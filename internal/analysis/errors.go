package analysis

import (
	"errors"
	"fmt"

	"signaldesk/internal/model"
)

var (
	// ErrInvalidRequest is wrapped by every request validation failure.
	ErrInvalidRequest = errors.New("invalid analysis request")

	// ErrNoData means the bar source returned nothing for the window.
	// The run is aborted but nothing is broken.
	ErrNoData = errors.New("no bars for the requested window")
)

// FetchError reports a bar source failure. The run is aborted.
type FetchError struct {
	Symbol    string
	Timeframe model.Timeframe
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s %s: %v", e.Symbol, e.Timeframe, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// OrderError reports a failed order submission. It never fails an analysis
// run; the run's report carries it instead.
type OrderError struct {
	Symbol string
	Side   model.Side
	Err    error
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("order %s %s: %v", e.Side, e.Symbol, e.Err)
}

func (e *OrderError) Unwrap() error { return e.Err }
