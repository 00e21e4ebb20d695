package source

import "errors"

// Sentinel kinds for record source errors.
var (
	ErrLoad         = errors.New("load records")
	ErrBadTimestamp = errors.New("unrecognized timestamp")
	ErrBadRecord    = errors.New("malformed record")
)
