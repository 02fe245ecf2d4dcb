package domain

import "errors"

// ErrNotFound is returned when no stored sample satisfies the provided filters.
var ErrNotFound = errors.New("sample not found")
