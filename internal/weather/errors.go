package weather

import "errors"

// Failure kinds surfaced by the service. Callers distinguish them with
// errors.Is; the HTTP layer maps each to a status code.
var (
	// ErrLocationNotFound is returned for an unknown location id.
	ErrLocationNotFound = errors.New("location not found")

	// ErrResolutionFailed is returned when the provider cannot match a
	// location query or is unreachable during resolution.
	ErrResolutionFailed = errors.New("location could not be resolved")

	// ErrProviderUnavailable is returned when a current-conditions or
	// forecast call fails. The sync is abandoned with no partial write.
	ErrProviderUnavailable = errors.New("weather provider unavailable")

	// ErrStorage is returned when the persistence layer fails. A failed
	// commit rolls back fully; stored data is left in its pre-sync state.
	ErrStorage = errors.New("storage failure")
)
