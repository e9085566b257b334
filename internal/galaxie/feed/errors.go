package feed

import (
	"errors"
	"fmt"
)

// Sentinels matched by the typed errors below.
var (
	ErrTransport   = errors.New("feed: transport failure")
	ErrUpstream    = errors.New("feed: upstream error status")
	ErrParse       = errors.New("feed: malformed payload")
	ErrUnknownKind = errors.New("feed: unknown kind")
)

// TransportError reports a network failure, timeout or cancelled request.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("feed %s: transport: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is matches ErrTransport.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// UpstreamError reports a non-2xx response.
type UpstreamError struct {
	Endpoint   string
	StatusCode int
	// Body holds the start of the response body for diagnostics.
	Body string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("feed %s: upstream status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("feed %s: upstream status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Is matches ErrUpstream.
func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

// ParseError reports a body that could not be decoded into records.
type ParseError struct {
	Endpoint string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("feed %s: parse: %v", e.Endpoint, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Is matches ErrParse.
func (e *ParseError) Is(target error) bool { return target == ErrParse }

// Outcome classifies err for logs and metrics: "ok", "transport",
// "upstream", "parse" or "error".
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTransport):
		return "transport"
	case errors.Is(err, ErrUpstream):
		return "upstream"
	case errors.Is(err, ErrParse):
		return "parse"
	default:
		return "error"
	}
}
