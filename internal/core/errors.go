package core

import (
	"errors"
	"fmt"
)

// ErrTransport is the sentinel every *TransportError matches.
var ErrTransport = errors.New("transport error")

// TransportError reports a failed call to the purchases API: the request
// never completed, or the server answered with a non-2xx status.
type TransportError struct {
	Op     string // e.g. "list purchases"
	Method string
	URL    string
	Status int // 0 when no response was received
	Body   string
	Err    error
}

func (e *TransportError) Error() string {
	msg := fmt.Sprintf("%s: %s %s", e.Op, e.Method, e.URL)
	if e.Status != 0 {
		msg += fmt.Sprintf(": HTTP %d", e.Status)
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// NotFound reports whether the server answered 404.
func (e *TransportError) NotFound() bool {
	return e.Status == 404
}
