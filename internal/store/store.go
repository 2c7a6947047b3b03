package store

import (
	"context"
	"time"

	"github.com/vitalmesh/telemetryd/internal/models"
)

// Store is the durable record buffer. Every sensor reading lands here
// first, regardless of connectivity; the sync scheduler reconciles its
// contents against server acknowledgments. Implementations must be safe
// for concurrent callers — sensor writers and the scheduler run at the
// same time.
type Store interface {
	// Append durably persists one record with synced=false. Appending a
	// record whose id already exists is not an error; last write wins.
	Append(ctx context.Context, rec models.Record) error

	// AppendBatch persists several records in one transaction.
	AppendBatch(ctx context.Context, recs []models.Record) error

	// Unsynced returns up to limit unacknowledged records for a category,
	// oldest-first by local insertion time. limit <= 0 means no limit.
	Unsynced(ctx context.Context, category string, limit int) ([]models.Record, error)

	// MarkSynced flips synced to true for the given ids. Unknown ids are
	// a no-op: the server may ack records already pruned.
	MarkSynced(ctx context.Context, category string, ids []string) error

	// PurgeOlderThan deletes acknowledged records created before cutoff.
	// Unsynced records are never deleted regardless of age.
	PurgeOlderThan(ctx context.Context, category string, cutoff time.Time) (int64, error)

	// UnsyncedCount returns the number of unacknowledged records for a
	// category.
	UnsyncedCount(ctx context.Context, category string) (int64, error)
}
