package lazywriter

import (
	"context"
	"errors"
)

// isExpected reports whether err is a status the scan/dispatch exception
// filter swallows rather than treats as a fatal bug-check (spec.md §4.2
// "Exception policy", §7). Context cancellation and deadline expiry are
// the only expected statuses in this collaborator-agnostic core; a
// concrete Collaborator may
// wrap other errors it considers benign, but anything that reaches here
// unwrapped to something else is a programming error and must not be
// silently dropped.
func isExpected(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
