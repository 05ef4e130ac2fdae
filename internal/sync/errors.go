package sync

import (
	"errors"
	"fmt"

	"github.com/kokoraro/salonsync/internal/model"
)

// ErrCycleRunning is returned by [Scheduler.Trigger] when a cycle for some
// window is already in flight. The request is rejected, never queued.
var ErrCycleRunning = errors.New("a sync cycle is already running")

// UnavailableError reports that a whole external system could not be
// reached during a fetch (connectivity, authentication, or timeout). The
// cycle treats that side as "unknown" and continues with the other one.
type UnavailableError struct {
	Source model.Source
	Err    error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Source, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// WriteError reports a single failed create/update call against an
// external system. The failure is isolated to its operation; the record's
// empty counterpart id marks it for retry on the next cycle.
type WriteError struct {
	Source     model.Source
	ExternalID string
	Err        error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write to %s for %q failed: %v", e.Source, e.ExternalID, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
