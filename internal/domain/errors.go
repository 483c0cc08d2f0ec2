package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors carry no infrastructure dependency.

var (
	// Invalid input. Engines degrade to nil/zero results for these; the
	// errors exist so outer layers (API, CLI) can explain why.
	ErrUnknownAchievement = errors.New("unknown achievement")
	ErrAlreadyUnlocked    = errors.New("achievement already unlocked")
	ErrPrerequisitesUnmet = errors.New("achievement prerequisites not unlocked")
	ErrInvalidCategory    = errors.New("invalid category")

	// Catalog validation (load time only)
	ErrInvalidCatalog = errors.New("invalid achievement catalog")

	// Storage failures
	ErrNotFound         = errors.New("key not found in store")
	ErrStoreUnavailable = errors.New("store unavailable")

	// Invariant violations (programming errors, asserted in tests)
	ErrPointsDrift = errors.New("total points drifted from sum of unlocked point values")
)
