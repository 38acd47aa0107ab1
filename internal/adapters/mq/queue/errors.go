package queue

import "errors"

// Sentinel kinds for queue errors.
var (
	ErrFull   = errors.New("write queue full")
	ErrClosed = errors.New("write queue closed")
)
