package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/batflow/batverify/internal/apperr"
	"github.com/batflow/batverify/internal/blob"
	"github.com/batflow/batverify/internal/models"
	"github.com/batflow/batverify/internal/refstore"
)

// Promoter performs the archive-then-replace that turns a validated
// candidate into the new current reference document.
type Promoter struct {
	store refstore.Store
	blobs blob.Store
	now   func() time.Time
}

func NewPromoter(store refstore.Store, blobs blob.Store) *Promoter {
	return &Promoter{store: store, blobs: blobs, now: time.Now}
}

// Promote archives the current document into a history slot tagged with
// the outgoing version and today's date, installs the candidate as the
// new current document and bumps the stored version by exactly one,
// recording the validator identity and timestamp.
//
// Ordering is strict: the archive completes before the replace becomes
// visible. If archiving fails, nothing is replaced and the stored version
// is unchanged. The version read for the archive path is checked again
// inside the store update, so a concurrent promotion of the same SKU
// fails with a consistency error instead of double-incrementing.
func (p *Promoter) Promote(ctx context.Context, sku, validatedBy string, status models.SignatureStatus, candidate []byte) (models.Reference, error) {
	ref, err := p.store.Get(ctx, sku)
	if errors.Is(err, refstore.ErrNotFound) {
		return models.Reference{}, apperr.Wrap(apperr.Consistency, err, "cannot promote %s", sku)
	}
	if err != nil {
		return models.Reference{}, err
	}

	if err := CheckSignatureGate(status); err != nil {
		return models.Reference{}, err
	}

	fromVersion := ref.CurrentVersion
	current := blob.CurrentPDFPath(sku)
	history := blob.HistoryPDFPath(sku, fromVersion, p.now())
	if err := p.blobs.Copy(ctx, current, history); err != nil {
		if !errors.Is(err, blob.ErrNotExist) {
			return models.Reference{}, err
		}
		// No current document to archive; the metadata record exists but
		// its file was never stored. Proceed with the replace.
		slog.Warn("No current document to archive.", "sku", sku, "version", fromVersion)
	}

	if err := p.blobs.Put(ctx, current, candidate, "application/pdf"); err != nil {
		return models.Reference{}, err
	}

	validatedAt := p.now().UTC()
	err = p.store.Update(ctx, sku, func(r *models.Reference) error {
		if r.CurrentVersion != fromVersion {
			return apperr.New(apperr.Consistency, "reference %s advanced from v%d to v%d during promotion", sku, fromVersion, r.CurrentVersion)
		}
		r.CurrentVersion++
		r.LastValidatedAt = validatedAt
		r.ValidatedBy = validatedBy
		r.SignatureStatus = status
		r.BlobPath = current
		return nil
	})
	if errors.Is(err, refstore.ErrNotFound) {
		return models.Reference{}, apperr.Wrap(apperr.Consistency, err, "reference %s vanished during promotion", sku)
	}
	if err != nil {
		return models.Reference{}, err
	}

	return p.store.Get(ctx, sku)
}

// CleanupTemp deletes a superseded temporary upload. Cleanup is best
// effort: a failure is logged, never surfaced to the user-visible
// operation that triggered it.
func (p *Promoter) CleanupTemp(ctx context.Context, id string) {
	if err := p.blobs.Delete(ctx, blob.TempPDFPath(id)); err != nil && !errors.Is(err, blob.ErrNotExist) {
		slog.Warn("Failed to delete temporary upload.", "id", id, "error", err)
	}
}
