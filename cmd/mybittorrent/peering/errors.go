package peering

import (
	"errors"
	"fmt"
)

var (
	ErrTruncatedHandshake = errors.New("truncated handshake")
	ErrUnexpectedProtocol = errors.New("unexpected protocol")
	ErrInfoHashMismatch   = errors.New("info hash mismatch")
)

// NetworkError wraps a transport failure: dialing, reading, writing or an HTTP request
// that did not succeed.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ProtocolError reports well-formed bytes that break the tracker or handshake contract.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err == nil {
		return "protocol error: " + e.Reason
	}
	return fmt.Sprintf("protocol error: %s: %v", e.Reason, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }
