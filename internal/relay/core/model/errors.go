package model

import (
	"errors"
	"fmt"
)

// ErrMalformed is returned by the codecs for input that cannot be decoded.
var ErrMalformed = errors.New("malformed input")

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}
