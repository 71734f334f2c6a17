package prices

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrCaptureTimeout is returned when the browser never issued a usable data request
	// inside the capture window. Usually an anti-automation change or a network problem.
	ErrCaptureTimeout = errors.New("capture timeout: no qualifying request observed")

	// ErrParse marks a payload whose overall shape is not what the provider normally sends.
	ErrParse = errors.New("unexpected payload shape")

	// ErrCategoryUnavailable is returned by a resolver when no stage, stored value or
	// estimate produced anything for the requested assets.
	ErrCategoryUnavailable = errors.New("category unavailable")

	// ErrNoData is returned by the aggregator when every requested category failed.
	ErrNoData = errors.New("no price data available")

	// ErrEmptySelection is returned when the caller asked for nothing.
	ErrEmptySelection = errors.New("empty asset selection")
)

// CaptureError is a browser session that could not be started or crashed.
type CaptureError struct {
	Op  string
	Err error
}

func (e *CaptureError) Error() string {
	return "capture " + e.Op + ": " + e.Err.Error()
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

// UpstreamError is a failed call to an HTTP provider: transport error, timeout,
// non-200 status or undecodable body.
type UpstreamError struct {
	Provider   string
	Op         string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: http %d: %v", e.Provider, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was a deadline rather than a response.
func (e *UpstreamError) Timeout() bool {
	var t interface{ Timeout() bool }
	if errors.As(e.Err, &t) && t.Timeout() {
		return true
	}
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// NewUpstreamError wraps err for provider/op.
func NewUpstreamError(provider, op string, status int, err error) *UpstreamError {
	return &UpstreamError{Provider: provider, Op: op, StatusCode: status, Err: err}
}
