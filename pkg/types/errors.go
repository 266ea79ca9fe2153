package types

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyBuffer        = errors.New("empty pixel buffer")
	ErrInvalidDimensions  = errors.New("invalid image dimensions")
	ErrDecode             = errors.New("unable to decode image")
	ErrUnsupportedFormat  = errors.New("unsupported image format")
	ErrImageTooSmall      = errors.New("image too small")
	ErrQuotaExceeded      = errors.New("usage quota exceeded")
	ErrRemoteAnalysis     = errors.New("remote analysis failed")
	ErrUnknownMethod      = errors.New("unknown analysis method")
	ErrVisionNotAvailable = errors.New("vision scorer not configured")
)

// MethodError reports an analysis method that is neither local nor vision
type MethodError struct {
	Method string
}

func (e *MethodError) Error() string {
	return fmt.Sprintf("%v: %q (use 'local' or 'vision')", ErrUnknownMethod, e.Method)
}

func (e *MethodError) Unwrap() error {
	return ErrUnknownMethod
}
