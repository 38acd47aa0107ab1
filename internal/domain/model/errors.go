package model

import (
	"errors"
	"fmt"
)

// Sentinel error kinds for the rating engine. Callers match with errors.Is.
var (
	// ErrInvalidSessionInput: missing item, unknown sentiment or a corpus too small to compare against.
	ErrInvalidSessionInput = errors.New("invalid session input")
	// ErrCorpusTooSmall wraps ErrInvalidSessionInput so callers can ask the user to rate more items.
	ErrCorpusTooSmall = fmt.Errorf("corpus too small: %w", ErrInvalidSessionInput)
	// ErrInvalidRatingInput: NaN, infinite or out-of-domain rating fed to the update engine.
	ErrInvalidRatingInput = errors.New("invalid rating input")
	// ErrOpponentUnavailable is reported through StopNoOpponent and never returned from a session.
	ErrOpponentUnavailable = errors.New("no opponent available")
	// ErrPersistenceFailure: an opponent write could not be stored. Logged, never fatal.
	ErrPersistenceFailure = errors.New("persistence failure")
	// ErrOutcomeRejected: outcome for the wrong round, wrong state or unknown value.
	ErrOutcomeRejected = errors.New("outcome rejected")
	// ErrSessionAborted is returned when operating on an aborted session.
	ErrSessionAborted = errors.New("session aborted")
	// ErrInvalidParams: engine parameters failed validation.
	ErrInvalidParams = errors.New("invalid engine params")
	// ErrUnsupportedConfidenceLevel: only 0.95 and 0.99 have z-scores.
	ErrUnsupportedConfidenceLevel = errors.New("unsupported confidence level")
)
