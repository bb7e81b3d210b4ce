package session

import (
	"errors"
	"fmt"
)

// Errors that end a session. Would-block is not among them,
// it is reported as transport.Pending instead.
// Malformed frames are not fatal either and never leave the Stream.
var (
	// ErrProtocolViolation means the peer sent a message its role must never send.
	ErrProtocolViolation = errors.New("protocol violation")
	// ErrInvalidIdentity means the claimed identity was rejected by the verifier.
	ErrInvalidIdentity = errors.New("invalid identity")
	// ErrTransport wraps any I/O failure other than would-block.
	ErrTransport = errors.New("transport error")
	// ErrChunkSizeMismatch means audio could not be shaped into a chunk.
	ErrChunkSizeMismatch = errors.New("chunk size mismatch")
	// ErrClosed is returned when a closed stream is used.
	ErrClosed = errors.New("stream is closed")
)

func transportError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrTransport, op, err)
}
