// Package proxyerr defines the error taxonomy shared by the wire codec and
// the connection state machine.
package proxyerr

import "fmt"

// Kind classifies a proxy error. It is not itself an error type; it labels
// one so a caller can decide how to log or react without string matching.
type Kind int

const (
	// Generic is a catch-all for failures that don't fit the other kinds.
	Generic Kind = iota
	// Malformed indicates a protocol violation by the remote peer.
	Malformed
	// IO indicates an underlying read/write/dial failure or timeout.
	IO
	// DNS indicates name resolution produced no usable address.
	DNS
	// Finished is a sentinel for orderly stream termination; it is routed
	// through the same error channel as real failures so relay code can
	// unwind uniformly, but it is not logged as a failure.
	Finished
)

func (k Kind) String() string {
	switch k {
	case Malformed:
		return "malformed message"
	case IO:
		return "i/o error"
	case DNS:
		return "dns error"
	case Finished:
		return "finished"
	default:
		return "error"
	}
}

// Error is the single error type used across the protocol core. Kind
// classifies it, Msg carries a short human-readable reason, and Err carries
// the underlying cause (a net.Conn error, a context.DeadlineExceeded, etc)
// when there is one.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Malformedf builds a Malformed error from a formatted reason.
func Malformedf(format string, args ...any) *Error {
	return &Error{Kind: Malformed, Msg: fmt.Sprintf(format, args...)}
}

// IOErr wraps an underlying I/O failure.
func IOErr(err error) *Error {
	return &Error{Kind: IO, Msg: "i/o failure", Err: err}
}

// DNSErrf builds a DNS error from a formatted reason.
func DNSErrf(format string, args ...any) *Error {
	return &Error{Kind: DNS, Msg: fmt.Sprintf(format, args...)}
}

// Genericf builds a catch-all error from a formatted reason.
func Genericf(format string, args ...any) *Error {
	return &Error{Kind: Generic, Msg: fmt.Sprintf(format, args...)}
}

// ErrFinished is the sentinel for orderly termination of a relayed stream.
var ErrFinished = &Error{Kind: Finished, Msg: "stream closed"}

// Is reports whether target is the same Kind of error, so callers can use
// errors.Is(err, proxyerr.ErrFinished) without caring about the message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}
