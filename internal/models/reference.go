package models

import "time"

// Reference is the approved BAT for one SKU. The record is only ever
// replaced whole: created on first upload (version 1), mutated by a
// validated replacement (version+1, prior file archived) or deleted.
type Reference struct {
	SKU             string          `json:"sku" firestore:"sku"`
	ProductName     string          `json:"productName" firestore:"productName"`
	Description     string          `json:"description" firestore:"description"`
	Languages       []string        `json:"languages" firestore:"languages"`
	CurrentVersion  int             `json:"currentVersion" firestore:"currentVersion"`
	LastValidatedAt time.Time       `json:"lastValidatedAt" firestore:"lastValidatedAt"`
	ValidatedBy     string          `json:"validatedBy" firestore:"validatedBy"`
	SignatureStatus SignatureStatus `json:"signatureStatus" firestore:"signatureStatus"`
	BlobPath        string          `json:"blobPath" firestore:"blobPath"`
}

// MetadataStore is the whole reference collection as persisted in the
// metadata blob. One JSON object, not a relational store.
type MetadataStore struct {
	References []Reference `json:"references"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

// UploadedFile describes a temporary candidate upload awaiting comparison.
type UploadedFile struct {
	ID         string          `json:"id"`
	Filename   string          `json:"filename"`
	BlobPath   string          `json:"blobPath"`
	UploadedAt time.Time       `json:"uploadedAt"`
	Parsed     *ParsedFilename `json:"parsed,omitempty"`
}

// ParsedFilename is the structured information extracted from a BAT
// filename following the naming convention.
type ParsedFilename struct {
	SKU         string   `json:"sku"`
	ProductName string   `json:"productName"`
	Description string   `json:"description"`
	Languages   []string `json:"languages"`
	Date        string   `json:"date"`
}

// CandidateState tracks a candidate through version reconciliation.
type CandidateState string

const (
	// CandidateUnvalidated is a freshly uploaded candidate, not yet
	// compared against any reference version.
	CandidateUnvalidated CandidateState = "unvalidated"
	// CandidatePendingReview has a computed comparison result and awaits
	// human confirmation. Promotion is gated on the signature status.
	CandidatePendingReview CandidateState = "pending-review"
	// CandidateValidated has been promoted to the new reference version.
	CandidateValidated CandidateState = "validated"
)
