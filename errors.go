package vcomp

import (
	"errors"
	"fmt"
)

// Compositor errors.
var (
	// ErrUnknownStream is returned when an operation names a stream id that
	// is not registered.
	ErrUnknownStream = errors.New("vcomp: unknown stream")

	// ErrDuplicateStream is returned by AddVideo when the id is already in use.
	ErrDuplicateStream = errors.New("vcomp: stream id already taken")

	// ErrInvalidTransformation is returned when a transformation chain
	// contains a transformation with out-of-range parameters.
	ErrInvalidTransformation = errors.New("vcomp: invalid transformation")

	// ErrFrameSize is returned by UploadTexture when the frame does not
	// match the stream's resolution and the input pixel format.
	ErrFrameSize = errors.New("vcomp: frame size mismatch")

	// ErrShortBuffer is returned by DrawInto when the output buffer cannot
	// hold one output frame.
	ErrShortBuffer = errors.New("vcomp: output buffer too small")

	// ErrInvalidCaps is returned by New for unusable output caps.
	ErrInvalidCaps = errors.New("vcomp: invalid caps")
)

// StreamError records a failed stream-management operation and the stream
// id it referenced.
type StreamError struct {
	Op  string
	ID  int
	Err error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("%s stream %d: %v", e.Op, e.ID, e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }

func streamError(op string, id int, err error) error {
	return &StreamError{Op: op, ID: id, Err: err}
}
