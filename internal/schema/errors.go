package schema

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedKey            = errors.New("malformed key")
	ErrUnknownTable            = errors.New("unknown table")
	ErrUnknownReferencedColumn = errors.New("unknown referenced column")
)

// KeyError is returned when a string does not follow the qualified key grammar
type KeyError struct {
	Key    string
	Format string
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("malformed key '%s' (expected %s)", e.Key, e.Format)
}

func (e *KeyError) Is(target error) bool {
	return target == ErrMalformedKey
}

// LookupError is returned when a well-formed key names something absent from the project
type LookupError struct {
	Key  string
	Kind error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("%v: %s", e.Kind, e.Key)
}

func (e *LookupError) Unwrap() error {
	return e.Kind
}
