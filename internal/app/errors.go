package service

import "errors"

var (
	// ErrSessionNotFound is returned for an unknown or reaped session id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrNotStarted is returned when the service is used before Start.
	ErrNotStarted = errors.New("service not started")
)
