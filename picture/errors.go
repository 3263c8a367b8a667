package picture

import (
	"errors"
	"strconv"
)

// Sentinel errors shared by all container formats.
var (
	// ErrTruncated is returned when a structure ends before its declared
	// size.
	ErrTruncated = errors.New("picture: truncated data")

	// ErrUnsupported is returned for unknown or unsupported stream variants.
	ErrUnsupported = errors.New("picture: unsupported format")

	// ErrFragmentSize is returned when an object's fragments do not add up
	// to its declared buffer size.
	ErrFragmentSize = errors.New("picture: fragment size mismatch")

	// ErrInvalid is returned when a caption violates a geometric or timing
	// invariant.
	ErrInvalid = errors.New("picture: invalid caption")

	// ErrCapacity is returned when an image cannot be stored by the target
	// format (too many colors or too large).
	ErrCapacity = errors.New("picture: target capacity exceeded")
)

// ParseError is a structural error that stops parsing a stream.
type ParseError struct {
	Offset int64 // byte position in the source, -1 if unknown
	Index  int   // caption index, -1 if not inside a caption
	Err    error
}

func (e *ParseError) Error() string {
	msg := "parse error"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Offset >= 0 {
		msg += " (at byte " + strconv.FormatInt(e.Offset, 10) + ")"
	}
	if e.Index >= 0 {
		msg += " (caption " + strconv.Itoa(e.Index) + ")"
	}
	return msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// DecodeError reports that a caption's image could not be decoded.
// It is recoverable: the caption can be replaced by a transparent image.
type DecodeError struct {
	Index int
	Err   error
}

func (e *DecodeError) Error() string {
	return "decode caption " + strconv.Itoa(e.Index) + ": " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// EncodeError reports that a caption could not be written.
type EncodeError struct {
	Index int
	Err   error
}

func (e *EncodeError) Error() string {
	return "encode caption " + strconv.Itoa(e.Index) + ": " + e.Err.Error()
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}
