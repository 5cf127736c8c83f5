package prefsync

import (
	"errors"
	"fmt"
)

// ErrSyncCanceled settles pushes whose pending entries were dropped by
// CancelPendingSyncs before a flush could run.
var ErrSyncCanceled = errors.New("sync canceled before flush")

// RemoteErrorKind splits remote failures into the two classes the retry
// loop cares about.
type RemoteErrorKind int

const (
	// RemoteTransient failures (timeouts, throttling, server hiccups) are
	// worth retrying.
	RemoteTransient RemoteErrorKind = iota
	// RemotePermanent failures (permission denial, rejected payloads) are
	// surfaced immediately.
	RemotePermanent
)

// RemoteError wraps a remote store failure with its classification.
type RemoteError struct {
	Kind RemoteErrorKind
	Op   string
	Err  error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// IsTransient reports whether err should be retried. Unclassified errors
// count as transient so genuine network outages still get the backoff
// treatment.
func IsTransient(err error) bool {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Kind == RemoteTransient
	}
	return true
}

// SyncError reports a push whose flush exhausted its retry budget.
type SyncError struct {
	UserID string
	Err    error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("preference sync failed for user %s: %v", e.UserID, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }
