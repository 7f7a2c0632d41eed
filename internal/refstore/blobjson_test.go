package refstore

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/batflow/batverify/internal/blob"
	"github.com/batflow/batverify/internal/models"
)

func newTestStore() *BlobJSONStore {
	return NewBlobJSONStore(blob.NewMemoryStore())
}

// TestBlobJSON_EmptyCollection: a store with no metadata blob behaves as
// an empty collection, not an error.
func TestBlobJSON_EmptyCollection(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	refs, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, refs)

	_, err = s.Get(ctx, "ABC123")
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestBlobJSON_PutGetRoundTrip persists a record and reads it back whole.
func TestBlobJSON_PutGetRoundTrip(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	ref := models.Reference{
		SKU:            "ABC123",
		ProductName:    "Sachet Gel mains",
		Languages:      []string{"FR", "EN"},
		CurrentVersion: 1,
		BlobPath:       blob.CurrentPDFPath("ABC123"),
	}
	require.NoError(t, s.Put(ctx, ref))

	got, err := s.Get(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, ref, got)
}

// TestBlobJSON_PutReplacesWhole: a second Put for the same SKU replaces
// the record entirely.
func TestBlobJSON_PutReplacesWhole(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, models.Reference{SKU: "ABC123", ProductName: "old", Description: "desc"}))
	require.NoError(t, s.Put(ctx, models.Reference{SKU: "ABC123", ProductName: "new"}))

	got, err := s.Get(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, "new", got.ProductName)
	assert.Empty(t, got.Description, "stale fields must not survive a replace")

	refs, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, refs, 1)
}

func TestBlobJSON_Delete(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, models.Reference{SKU: "A"}))
	require.NoError(t, s.Put(ctx, models.Reference{SKU: "B"}))
	require.NoError(t, s.Delete(ctx, "A"))

	_, err := s.Get(ctx, "A")
	assert.ErrorIs(t, err, ErrNotFound)

	refs, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "B", refs[0].SKU)
}

// TestBlobJSON_UpdateMissing surfaces ErrNotFound without writing.
func TestBlobJSON_UpdateMissing(t *testing.T) {
	s := newTestStore()
	err := s.Update(context.Background(), "NOPE", func(r *models.Reference) error {
		r.CurrentVersion++
		return nil
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestBlobJSON_ConcurrentUpdates: every increment lands; none is lost to
// an interleaved read-modify-write.
func TestBlobJSON_ConcurrentUpdates(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, models.Reference{SKU: "ABC123", CurrentVersion: 0}))

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Update(ctx, "ABC123", func(r *models.Reference) error {
				r.CurrentVersion++
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.Get(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, writers, got.CurrentVersion)
}
