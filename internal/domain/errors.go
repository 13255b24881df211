package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the engine.
var (
	// ErrStoreClosed indicates use of a cache store after Close.
	ErrStoreClosed = errors.New("cache store is closed")

	// ErrLogin indicates the session lost authentication. Fatal to the
	// whole run; never retried here.
	ErrLogin = errors.New("login required")

	// ErrPageLoad indicates a page failed to load. Retryable.
	ErrPageLoad = errors.New("page failed to load")

	// ErrPageFormat indicates page content did not match the expected
	// shape. Retryable.
	ErrPageFormat = errors.New("unexpected page format")

	// ErrURLFormat indicates an order URL that matched neither sub-market.
	ErrURLFormat = errors.New("unexpected URL format")

	// ErrListingGone indicates the listing page no longer exists or was
	// deleted. Terminal for the record: the absence is durably known, so
	// the fetch is not retried.
	ErrListingGone = errors.New("listing no longer exists")
)

// BatchError aborts a walk when the very first fetched record of a batch
// ends with a recorded error, which usually means the site itself is
// unhealthy rather than one listing being broken.
type BatchError struct {
	Kind Kind
	ID   string
	Msg  string
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("first %s record in batch failed (id=%s): %s", e.Kind, e.ID, e.Msg)
}
