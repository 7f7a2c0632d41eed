package reconcile

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/batflow/batverify/internal/apperr"
	"github.com/batflow/batverify/internal/blob"
	"github.com/batflow/batverify/internal/models"
	"github.com/batflow/batverify/internal/refstore"
)

// failingCopyStore makes Copy fail to simulate a broken archive step.
type failingCopyStore struct {
	blob.Store
}

func (s *failingCopyStore) Copy(ctx context.Context, src, dst string) error {
	return fmt.Errorf("copy %s: backend unavailable", src)
}

// racingCopyStore bumps the stored version during the archive step to
// simulate a concurrent promotion of the same SKU landing first.
type racingCopyStore struct {
	blob.Store
	refs refstore.Store
	sku  string
}

func (s *racingCopyStore) Copy(ctx context.Context, src, dst string) error {
	if err := s.Store.Copy(ctx, src, dst); err != nil {
		return err
	}
	return s.refs.Update(ctx, s.sku, func(r *models.Reference) error {
		r.CurrentVersion++
		return nil
	})
}

func seedReference(t *testing.T, refs refstore.Store, blobs blob.Store, sku string, version int) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, blobs.Put(ctx, blob.CurrentPDFPath(sku), []byte("current-pdf"), "application/pdf"))
	require.NoError(t, refs.Put(ctx, models.Reference{
		SKU:            sku,
		CurrentVersion: version,
		BlobPath:       blob.CurrentPDFPath(sku),
	}))
}

// TestPromote archives the outgoing version and bumps by exactly one.
func TestPromote(t *testing.T) {
	ctx := context.Background()
	blobs := blob.NewMemoryStore()
	refs := refstore.NewBlobJSONStore(blobs)
	seedReference(t, refs, blobs, "ABC123", 3)

	p := NewPromoter(refs, blobs)
	p.now = func() time.Time { return time.Date(2026, 2, 9, 10, 0, 0, 0, time.UTC) }

	ref, err := p.Promote(ctx, "ABC123", "reviewer@example.com", models.SignedHandwritten, []byte("new-pdf"))
	require.NoError(t, err)

	assert.Equal(t, 4, ref.CurrentVersion)
	assert.Equal(t, "reviewer@example.com", ref.ValidatedBy)
	assert.Equal(t, models.SignedHandwritten, ref.SignatureStatus)
	assert.True(t, ref.LastValidatedAt.Equal(time.Date(2026, 2, 9, 10, 0, 0, 0, time.UTC)))

	// Exactly one archive object, tagged with the outgoing version.
	archived, err := blobs.Read(ctx, blob.HistoryPDFPath("ABC123", 3, p.now()))
	require.NoError(t, err)
	assert.Equal(t, []byte("current-pdf"), archived)

	entries, err := blobs.List(ctx, "references/ABC123/history/")
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	current, err := blobs.Read(ctx, blob.CurrentPDFPath("ABC123"))
	require.NoError(t, err)
	assert.Equal(t, []byte("new-pdf"), current)
}

// TestPromote_ArchiveFailureAborts: if archiving fails, the current
// document and the stored version are untouched.
func TestPromote_ArchiveFailureAborts(t *testing.T) {
	ctx := context.Background()
	blobs := blob.NewMemoryStore()
	refs := refstore.NewBlobJSONStore(blobs)
	seedReference(t, refs, blobs, "ABC123", 3)

	p := NewPromoter(refs, &failingCopyStore{Store: blobs})

	_, err := p.Promote(ctx, "ABC123", "reviewer", models.SignedDigital, []byte("new-pdf"))
	require.Error(t, err)

	ref, err := refs.Get(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, 3, ref.CurrentVersion)

	current, err := blobs.Read(ctx, blob.CurrentPDFPath("ABC123"))
	require.NoError(t, err)
	assert.Equal(t, []byte("current-pdf"), current)
}

// TestPromote_MissingCurrentDocument proceeds when the metadata record
// exists but its file was never stored.
func TestPromote_MissingCurrentDocument(t *testing.T) {
	ctx := context.Background()
	blobs := blob.NewMemoryStore()
	refs := refstore.NewBlobJSONStore(blobs)
	require.NoError(t, refs.Put(ctx, models.Reference{SKU: "ABC123", CurrentVersion: 1}))

	p := NewPromoter(refs, blobs)

	ref, err := p.Promote(ctx, "ABC123", "reviewer", models.SignedDigital, []byte("new-pdf"))
	require.NoError(t, err)
	assert.Equal(t, 2, ref.CurrentVersion)

	entries, err := blobs.List(ctx, "references/ABC123/history/")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// TestPromote_ConcurrentVersionAdvance: if another promotion lands
// between the version read and the metadata update, the late one fails
// with a consistency error and never double-increments.
func TestPromote_ConcurrentVersionAdvance(t *testing.T) {
	ctx := context.Background()
	blobs := blob.NewMemoryStore()
	refs := refstore.NewBlobJSONStore(blobs)
	seedReference(t, refs, blobs, "ABC123", 3)

	p := NewPromoter(refs, &racingCopyStore{Store: blobs, refs: refs, sku: "ABC123"})

	_, err := p.Promote(ctx, "ABC123", "reviewer", models.SignedDigital, []byte("new-pdf"))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.Consistency))

	// Only the racing bump is visible, and no validator was recorded.
	ref, err := refs.Get(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, 4, ref.CurrentVersion)
	assert.Empty(t, ref.ValidatedBy)
}

// TestPromote_UnknownSKU is a consistency error, not a silent create.
func TestPromote_UnknownSKU(t *testing.T) {
	blobs := blob.NewMemoryStore()
	p := NewPromoter(refstore.NewBlobJSONStore(blobs), blobs)

	_, err := p.Promote(context.Background(), "NOPE", "reviewer", models.SignedDigital, []byte("pdf"))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.Consistency))
}

// TestPromote_GateBlocksUnsigned rejects before touching storage.
func TestPromote_GateBlocksUnsigned(t *testing.T) {
	ctx := context.Background()
	blobs := blob.NewMemoryStore()
	refs := refstore.NewBlobJSONStore(blobs)
	seedReference(t, refs, blobs, "ABC123", 1)

	p := NewPromoter(refs, blobs)

	_, err := p.Promote(ctx, "ABC123", "reviewer", models.NotSigned, []byte("new-pdf"))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.Input))

	entries, err := blobs.List(ctx, "references/ABC123/history/")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// TestCleanupTemp removes the upload and tolerates a second call.
func TestCleanupTemp(t *testing.T) {
	ctx := context.Background()
	blobs := blob.NewMemoryStore()
	require.NoError(t, blobs.Put(ctx, blob.TempPDFPath("id-1"), []byte("pdf"), "application/pdf"))

	p := NewPromoter(refstore.NewBlobJSONStore(blobs), blobs)
	p.CleanupTemp(ctx, "id-1")

	_, err := blobs.Read(ctx, blob.TempPDFPath("id-1"))
	assert.ErrorIs(t, err, blob.ErrNotExist)

	p.CleanupTemp(ctx, "id-1") // second call is a no-op
}
