package repository

import (
	"context"

	"github.com/aicare/casemgr/internal/store"
)

// Mutator returns the fields to write given the current row.
type Mutator func(current store.Row) (map[string]string, error)

// RecordRepository is the record store contract every service is written
// against. Reads are served from a TTL cache and never fail: an unreachable
// store yields an empty result. Writes go straight to the store, fail loudly
// and invalidate every cached table.
type RecordRepository interface {
	List(ctx context.Context, table string) []store.Row
	// GetByID is a linear scan over List.
	GetByID(ctx context.Context, table, id string) (store.Row, bool)
	Create(ctx context.Context, table string, fields map[string]string) (string, error)
	// Update reports false with a nil error when id does not exist.
	Update(ctx context.Context, table, id string, fields map[string]string) (bool, error)
	// UpdateWith computes the fields from the freshly read row while holding
	// the writer lock.
	UpdateWith(ctx context.Context, table, id string, mutate Mutator) (bool, error)
	// Filter and ByPatient are linear scans over List.
	Filter(ctx context.Context, table string, match func(store.Row) bool) []store.Row
	ByPatient(ctx context.Context, table, patientID string) []store.Row
}
