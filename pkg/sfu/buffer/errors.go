package buffer

import "errors"

var (
	ErrDDExtensionNotFound = errors.New("dependency descriptor extension not found")
)
