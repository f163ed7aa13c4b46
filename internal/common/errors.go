// Package common defines shared sentinel errors used across the kiosk
// components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("incomplete ticket data")

	// Issuance preconditions, in the order they are checked.
	ErrNotInitialized = errors.New("application still loading")
	ErrEmptyCode      = errors.New("empty user code")
	ErrNoActivePeriod = errors.New("no active period")
	ErrNoActiveMeal   = errors.New("no active meal")
	ErrEmptyRoster    = errors.New("roster not loaded")

	// ErrDuplicateTicket marks a repeat issuance for a non-special code.
	// It is a soft outcome, not a failure: the user already holds the meal.
	ErrDuplicateTicket = errors.New("ticket already issued")

	// Sync-level errors.
	ErrOffline        = errors.New("no network connection")
	ErrSyncInProgress = errors.New("synchronization already running")

	// ErrLimitReached is the server-side business rule "meal limit reached".
	// For sync bookkeeping it counts as resolved, not as a failure.
	ErrLimitReached = errors.New("meal limit reached on server")
)
