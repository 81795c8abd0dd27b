// Package staging holds change records awaiting registration and the
// per-partition history cursor.
//
// Ordering contract: callers stage records before advancing the cursor and
// remove a record only after downstream registration succeeded. Stores make
// each call atomic; they do not order calls for the caller.
package staging

import (
	"context"
)

//go:generate mockgen -source=store.go -destination=mocks/mocks.go -package=mocks Store

// Store is the staging contract implemented by the memory and Postgres stores.
//
// Errors wrapping sentinel.ErrUnavailable are retryable. A missing cursor and
// an empty pending list are not errors.
type Store interface {
	// EnsurePartition creates the partition and its resource id index. Idempotent.
	EnsurePartition(ctx context.Context, p Partition) error
	// GetCursor returns the cursor and whether it exists.
	GetCursor(ctx context.Context, p Partition) (int64, bool, error)
	// AdvanceCursor upserts the cursor. It never moves an existing cursor backwards.
	AdvanceCursor(ctx context.Context, p Partition, value int64) error
	// StageChanges upserts records by id. Either all records are written or none.
	StageChanges(ctx context.Context, p Partition, records []ChangeRecord) error
	// ListPending returns staged records ordered by resource id then record id.
	ListPending(ctx context.Context, p Partition) ([]ChangeRecord, error)
	// Remove deletes a record. Removing an absent record succeeds.
	Remove(ctx context.Context, p Partition, id string) error
	// Ping reports store reachability for readiness checks.
	Ping(ctx context.Context) error
}
