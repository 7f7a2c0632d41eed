// Package reconcile drives a candidate through the review states and
// promotes a validated candidate to become the new reference version.
package reconcile

import (
	"github.com/batflow/batverify/internal/apperr"
	"github.com/batflow/batverify/internal/models"
)

// Candidate tracks one submitted BAT through review.
//
// State machine: Unvalidated -> PendingReview -> Validated. A candidate
// enters PendingReview once its comparison result is computed, and may
// only reach Validated when the document is signed (digitally or by
// hand); not-signed and unknown block promotion.
type Candidate struct {
	ID     string
	SKU    string
	State  models.CandidateState
	Result *models.ComparisonResult
}

// NewCandidate starts a candidate in the Unvalidated state, not yet tied
// to any reference version.
func NewCandidate(id, sku string) *Candidate {
	return &Candidate{ID: id, SKU: sku, State: models.CandidateUnvalidated}
}

// AttachResult records the computed comparison and moves the candidate to
// PendingReview.
func (c *Candidate) AttachResult(result *models.ComparisonResult) error {
	if c.State != models.CandidateUnvalidated {
		return apperr.New(apperr.Input, "candidate %s is %s, expected %s", c.ID, c.State, models.CandidateUnvalidated)
	}
	c.Result = result
	c.State = models.CandidatePendingReview
	return nil
}

// Validate checks the promotion gate and marks the candidate validated.
// The caller performs the actual reference promotion.
func (c *Candidate) Validate() error {
	if c.State != models.CandidatePendingReview {
		return apperr.New(apperr.Input, "candidate %s is %s, expected %s", c.ID, c.State, models.CandidatePendingReview)
	}
	if err := CheckSignatureGate(c.Result.Signature.OverallStatus); err != nil {
		return err
	}
	c.State = models.CandidateValidated
	return nil
}

// CheckSignatureGate enforces that only signed documents may replace the
// reference.
func CheckSignatureGate(status models.SignatureStatus) error {
	switch status {
	case models.SignedDigital, models.SignedHandwritten:
		return nil
	default:
		return apperr.New(apperr.Input, "signature status %q blocks promotion", status)
	}
}
