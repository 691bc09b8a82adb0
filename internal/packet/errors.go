// Package packet implements the outer framed-packet format and the
// typed payload views exchanged during the handshake/status/login
// phase of a session, before a connection hands off to opaque relay.
package packet

import "fmt"

// EmptyBufferError indicates the framer was invoked with no bytes at
// all; the caller should read more from the socket and retry.
type EmptyBufferError struct{}

func (e *EmptyBufferError) Error() string { return "packet: empty buffer" }

// FormatError indicates a header decoded but the buffered bytes are
// insufficient or inconsistent to complete the packet; the caller
// should read more from the socket and retry.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string { return "packet: format error: " + e.Reason }

// LengthMismatchError is retained for parity with the legacy error
// taxonomy; it is handled identically to FormatError.
type LengthMismatchError struct {
	Reason string
}

func (e *LengthMismatchError) Error() string { return "packet: length mismatch: " + e.Reason }

// MalformedFieldError indicates a typed view's payload was structurally
// wrong; the session that receives this must close rather than retry.
type MalformedFieldError struct {
	Field string
}

func (e *MalformedFieldError) Error() string {
	return fmt.Sprintf("packet: malformed field %q", e.Field)
}

// Recoverable reports whether err indicates merely incomplete input
// (the reader should loop for more bytes) as opposed to corrupt input
// (the session should close).
func Recoverable(err error) bool {
	switch err.(type) {
	case *EmptyBufferError, *FormatError, *LengthMismatchError:
		return true
	default:
		return false
	}
}
