// Package refstore persists the SKU-keyed reference records. Two
// implementations exist: the metadata collection as a single JSON blob
// (the default) and a Firestore collection. Both expose the same atomic
// read-modify-write surface so concurrent callers cannot interleave a
// read and a write.
package refstore

import (
	"context"
	"errors"

	"github.com/batflow/batverify/internal/models"
)

// ErrNotFound reports a SKU with no stored reference.
var ErrNotFound = errors.New("refstore: reference not found")

// Store is the reference CRUD surface. Writes are rare and must be
// serialized: Put, Delete and Update go through a single store-mutation
// entry point per implementation.
type Store interface {
	List(ctx context.Context) ([]models.Reference, error)
	Get(ctx context.Context, sku string) (models.Reference, error)
	// Put inserts or replaces the whole record for its SKU.
	Put(ctx context.Context, ref models.Reference) error
	Delete(ctx context.Context, sku string) error
	// Update applies fn to the stored record under the store's write
	// serialization, so a concurrent writer cannot lose the change.
	// Returns ErrNotFound if the SKU has no record.
	Update(ctx context.Context, sku string, fn func(*models.Reference) error) error
}
