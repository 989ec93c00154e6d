package dns

import (
	"context"
	"errors"
	"fmt"
)

// Provider is the external authoritative DNS backend. Commit applies one
// change batch atomically at the provider; Exists is the pre-delete lookup
// used to detect drift. Implementations perform no internal retries; a
// reconcile is safe to retry at the caller because the diff is idempotent.
type Provider interface {
	// Exists returns the current value of the record (name, recordType)
	// and whether it is present at the provider.
	Exists(ctx context.Context, name string, recordType RecordType) (string, bool, error)

	// Commit applies the whole change set as one atomic batch.
	Commit(ctx context.Context, changes []Change) error
}

// ProviderError reports a failed or timed-out provider call, carrying the
// attempted change sets for diagnostics. Unknown is set when the outcome
// cannot be determined (timeout/cancellation): the records may or may not
// have been written, and no store state has been committed.
type ProviderError struct {
	Added   []Change
	Removed []Change
	Unknown bool
	Err     error
}

func (e *ProviderError) Error() string {
	outcome := "failed"
	if e.Unknown {
		outcome = "outcome unknown"
	}
	return fmt.Sprintf("dns provider call %s (%d upserts, %d deletes): %v",
		outcome, len(e.Added), len(e.Removed), e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// newProviderError classifies err, marking timeouts and cancellations as
// unknown-outcome failures.
func newProviderError(err error, added, removed []Change) *ProviderError {
	unknown := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	return &ProviderError{Added: added, Removed: removed, Unknown: unknown, Err: err}
}
