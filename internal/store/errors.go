package store

import "errors"

var (
	ErrNotFound              = errors.New("record not found")
	ErrMissingRequiredFields = errors.New("missing required fields")
)
