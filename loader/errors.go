package loader

import (
	"errors"
)

var (
	ErrInvalidImage        = errors.New("invalid image")
	ErrUnknownSymbol       = errors.New("unknown symbol")
	ErrWrongClass          = errors.New("wrong storage class")
	ErrSegmentFault        = errors.New("address not mapped")
	ErrNoTLSTemplate       = errors.New("module has no thread-local storage")
	ErrThreadExited        = errors.New("thread exited")
	ErrTLSOutOfBounds      = errors.New("thread-local access out of bounds")
	ErrOSThreadUnsupported = errors.New("os thread identity not supported")
)
