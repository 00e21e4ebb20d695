package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotReady     = errors.New("no completed analysis yet")
	ErrNotStarted   = errors.New("service not started")
	ErrBackpressure = errors.New("too many pending analysis requests")
	ErrSuperseded   = errors.New("analysis superseded by a newer run")
	ErrSourceFailed = errors.New("record source failed")
)
