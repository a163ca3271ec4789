// Package store defines the interface for database implementations to the fund and reconciler services.
package store

import (
	"context"
	"errors"
)

// DB defines required methods for the submission coordinator and the reconciliation loop. All writes are single-row
// and immediately consistent; no caller holds intent state in memory across calls.
type DB interface {
	// InsertIntent persists a new pending intent with no transaction hash and returns its id.
	InsertIntent(ctx context.Context, it Intent) (string, error)
	// SetTxHash links the broadcast transaction hash to the intent. A hash, once set, never changes.
	SetTxHash(ctx context.Context, kind, id, txHash string) error
	// SetStatus moves a pending intent to a terminal status recording the settled amount in the same write. It
	// is a no-op on intents already in a terminal status.
	SetStatus(ctx context.Context, kind, id, status string, settled uint64) error
	// ListPending returns the intents of the given kind that are pending and have a transaction hash linked.
	// Rows without a hash represent submissions still in flight (or failed before broadcast) and are never
	// returned, regardless of age.
	ListPending(ctx context.Context, kind string) ([]Intent, error)
}

// Errors returned
var (
	ErrIntentNotFound = errors.New("intent was not found in store")
	ErrBadKind        = errors.New("unknown intent kind")
)
