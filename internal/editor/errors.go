package editor

import (
	"errors"
	"fmt"
)

var (
	ErrDecode            = errors.New("decode image")
	ErrEncode            = errors.New("encode image")
	ErrNoImage           = errors.New("no image loaded")
	ErrUnsupportedRatio  = errors.New("unsupported crop ratio")
	ErrUnsupportedFormat = errors.New("unsupported output format")
	ErrTooLarge          = errors.New("image exceeds size limits")
)

// DecodeError reports input bytes that are not a recognized raster format or are corrupt.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: %v", ErrDecode, e.Err)
}

func (e *DecodeError) Unwrap() []error {
	return []error{ErrDecode, e.Err}
}

// EncodeError reports a failed export, including zero-sized canvases.
type EncodeError struct {
	Format Format
	Err    error
}

func (e *EncodeError) Error() string {
	if e.Format == "" {
		return fmt.Sprintf("%s: %v", ErrEncode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", ErrEncode, e.Format, e.Err)
}

func (e *EncodeError) Unwrap() []error {
	return []error{ErrEncode, e.Err}
}
