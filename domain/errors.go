package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors classifying everything the core can fail with.
var (
	// ErrValidation marks malformed input data (negative amount or rate).
	// Fatal to the single computation, never retried.
	ErrValidation = errors.New("validation error")

	// ErrRecoverableInput marks bad user input (unparsable date, unknown
	// bill id). Recovered by re-prompting; no state corruption.
	ErrRecoverableInput = errors.New("recoverable input error")

	// ErrCollaborator marks a repository, classifier or renderer failure.
	// Session state must be unchanged when it surfaces.
	ErrCollaborator = errors.New("collaborator failure")

	// ErrInvariant marks an internal inconsistency (pay-now/deferred
	// overlap, double-commit detection). Reject rather than mutate.
	ErrInvariant = errors.New("invariant violation")
)

func ValidationErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func RecoverableInputErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrRecoverableInput, fmt.Sprintf(format, args...))
}

func CollaboratorErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCollaborator, fmt.Sprintf(format, args...))
}

func InvariantErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariant, fmt.Sprintf(format, args...))
}
