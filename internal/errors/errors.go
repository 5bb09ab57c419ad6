// Package errors provides the failure vocabulary shared across the retention
// engine. Every failure in the pipeline maps onto one of these sentinels so
// callers can branch with errors.Is instead of string matching.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrProviderUnavailable marks a Sonarr/Radarr API call that failed or
	// timed out. Eviction is skipped for the cycle, never guessed.
	ErrProviderUnavailable = errors.New("media provider unavailable")

	// ErrTorrentInstanceUnreachable marks a single qBittorrent instance that
	// could not be queried. Remaining instances are still consulted.
	ErrTorrentInstanceUnreachable = errors.New("torrent instance unreachable")

	// ErrNoInstanceReachable means every configured qBittorrent instance
	// failed. Deletions proceed library-side only.
	ErrNoInstanceReachable = errors.New("no torrent instance reachable")

	// ErrParse marks a webhook payload that could not be normalized. The
	// event is dropped and logged; the sender still gets a generic ack.
	ErrParse = errors.New("malformed webhook payload")

	// ErrEventIgnored marks a well-formed payload the engine deliberately
	// does not act on (test pings, unknown event types).
	ErrEventIgnored = errors.New("event ignored")

	// ErrThresholdUnreachable is the soft warning raised when the eligible
	// eviction set cannot bring disk usage back under budget.
	ErrThresholdUnreachable = errors.New("eviction cannot reach threshold")

	// ErrDeletionFailed marks one item or torrent whose deletion failed.
	// The reconciliation run records it and continues with the rest.
	ErrDeletionFailed = errors.New("deletion failed")
)

// DeletionError carries the target that failed to delete along with the
// underlying cause. It matches ErrDeletionFailed under errors.Is so run
// outcomes can be inspected without knowing the concrete type.
type DeletionError struct {
	Target string
	cause  error
}

// NewDeletionError creates a deletion failure for the named target.
func NewDeletionError(target string, cause error) *DeletionError {
	return &DeletionError{Target: target, cause: cause}
}

// Error implements the error interface.
func (e *DeletionError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("delete %s: %v", e.Target, e.cause)
	}
	return fmt.Sprintf("delete %s failed", e.Target)
}

// Unwrap returns the underlying cause error for error unwrapping.
func (e *DeletionError) Unwrap() error {
	return e.cause
}

// Is reports whether target is the ErrDeletionFailed sentinel.
func (e *DeletionError) Is(target error) bool {
	return target == ErrDeletionFailed
}

// IsDeletion checks if an error is a per-target deletion failure.
func IsDeletion(err error) bool {
	if err == nil {
		return false
	}
	var de *DeletionError
	return errors.As(err, &de)
}
