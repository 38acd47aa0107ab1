package repository

import "errors"

// Sentinel kinds for corpus errors.
var (
	ErrNotFound     = errors.New("item not found")
	ErrInvalidLimit = errors.New("invalid ranking limit")
	ErrInvalidItem  = errors.New("invalid item")
)
