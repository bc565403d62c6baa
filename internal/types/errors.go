package types

import (
	"errors"
	"fmt"
)

// Error taxonomy for the planning pipeline. Component-local failures are
// absorbed and logged; these sentinels classify the ones that cross
// component boundaries.
var (
	// ErrProviderUnavailable covers timeouts and connection failures; the
	// caller falls through to the next provider.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrRateLimited is an explicit backoff signal; skip to the next
	// provider for this call, do not retry immediately.
	ErrRateLimited = errors.New("provider rate limited")

	// ErrNoRouteFound means the request is geometrically impossible and is
	// surfaced to the caller as terminal.
	ErrNoRouteFound = errors.New("no route found")

	// ErrAmbiguousLocation means the geocoder returned multiple plausible
	// candidates; surfaced for disambiguation, never guessed.
	ErrAmbiguousLocation = errors.New("ambiguous location")

	// ErrAdvisoryUnavailable is non-fatal; the pipeline proceeds without
	// that enhancement.
	ErrAdvisoryUnavailable = errors.New("advisory service unavailable")

	// ErrSchemaViolation marks a malformed advisory response. Treated the
	// same as ErrAdvisoryUnavailable by callers.
	ErrSchemaViolation = errors.New("advisory response violates schema")
)

// ProviderStatusError carries an HTTP-level provider failure so 429 can be
// told apart from 5xx and malformed payloads.
type ProviderStatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *ProviderStatusError) Error() string {
	return fmt.Sprintf("provider %s: status %d: %s", e.Provider, e.Code, e.Body)
}

// Unwrap maps the status class onto the taxonomy sentinels.
func (e *ProviderStatusError) Unwrap() error {
	if e.Code == 429 {
		return ErrRateLimited
	}
	return ErrProviderUnavailable
}
