package errors

import "errors"

var (
	ErrInvalidUUID = errors.New("invalid uuid")
	ErrFetchFailed = errors.New("fetch failed")
)
