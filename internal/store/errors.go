package store

import "errors"

var (
	ErrNotFound          = errors.New("record not found")
	ErrFieldNotPermitted = errors.New("field not permitted for audience")
)
