package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrTerminalJob       = errors.New("job already terminal")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidUpdate     = errors.New("invalid job update")
)
