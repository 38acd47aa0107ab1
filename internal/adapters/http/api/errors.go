package api

import "errors"

// ErrBadRequest marks a request that could not be decoded or validated.
var ErrBadRequest = errors.New("bad request")
