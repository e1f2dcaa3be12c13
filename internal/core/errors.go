package core

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownJobType     = errors.New("fontworker: unknown job type")
	ErrHandshakeProtocol  = errors.New("fontworker: unexpected message during handshake")
	ErrWorkerUnavailable  = errors.New("fontworker: worker unavailable")
	ErrWorkerClosed       = errors.New("fontworker: worker closed")
	ErrBootstrapTemplate  = errors.New("fontworker: worker template must contain exactly one engine marker")
	ErrNoSolvingOrderData = errors.New("fontworker: solvingOrders message has no payload")
)

// FetchError reports a failure to retrieve the font or engine source.
type FetchError struct {
	URL        string
	StatusCode int // 0 when the request never got a response
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError reports malformed font data or engine source.
type ParseError struct {
	What string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s: %v", e.What, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// HandlerError is delivered to a job callback when the response handler
// could not turn the worker's answer into a result.
type HandlerError struct {
	Type JobType
	Err  error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handling %s response: %v", e.Type, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// WorkerError is delivered to a job callback when the worker answered with
// an error instead of a payload.
type WorkerError struct {
	Type    JobType
	Message string
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("worker failed %s job: %s", e.Type, e.Message)
}
