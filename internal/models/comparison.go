package models

import "image"

// These structs define the JSON shapes produced by the comparison pipeline
// and consumed by the UI/CLI. Images are kept in memory and omitted from
// JSON; callers that need them encode per-page PNGs separately.

// PixelDiffPage is the pixel comparison of one page pair.
type PixelDiffPage struct {
	PageNumber     int         `json:"pageNumber"`
	ReferenceImage *image.RGBA `json:"-"`
	NewImage       *image.RGBA `json:"-"`
	DiffImage      *image.RGBA `json:"-"`
	DiffPixels     int         `json:"diffPixels"`
	TotalPixels    int         `json:"totalPixels"`
	SimilarityPct  float64     `json:"similarityPercent"`
	Width          int         `json:"width"`
	Height         int         `json:"height"`
}

// PixelDiffResult aggregates the per-page pixel diffs for a document pair.
type PixelDiffResult struct {
	Pages           []PixelDiffPage `json:"pages"`
	TotalDiffPixels int             `json:"totalDiffPixels"`
	TotalPixels     int             `json:"totalPixels"`
	SimilarityPct   float64         `json:"similarityPercent"`
}

// ChangeType classifies one span of a text diff.
type ChangeType string

const (
	ChangeAdded     ChangeType = "added"
	ChangeRemoved   ChangeType = "removed"
	ChangeUnchanged ChangeType = "unchanged"
)

// TextChange is one span of the token-level edit script. Replaying
// removed+unchanged spans reconstructs the normalized reference text;
// added+unchanged reconstructs the normalized candidate text.
type TextChange struct {
	Type  ChangeType `json:"type"`
	Value string     `json:"value"`
}

// TextDiffPage is the text comparison of one page pair.
type TextDiffPage struct {
	PageNumber    int          `json:"pageNumber"`
	ReferenceText string       `json:"referenceText"`
	NewText       string       `json:"newText"`
	Changes       []TextChange `json:"changes"`
}

// TextDiffResult aggregates text diffs. TotalChanges counts the
// non-unchanged spans across all pages; it is a change counter, not a
// similarity percentage.
type TextDiffResult struct {
	Pages        []TextDiffPage `json:"pages"`
	TotalChanges int            `json:"totalChanges"`
}

// SpellError is one flagged spelling or grammar issue. Offset and Length
// index into the checked text; (Offset, Length) is the deduplication key.
type SpellError struct {
	Message     string   `json:"message"`
	Offset      int      `json:"offset"`
	Length      int      `json:"length"`
	Word        string   `json:"word"`
	Suggestions []string `json:"suggestions"`
	Rule        string   `json:"rule"`
	Language    string   `json:"language"`
	Context     string   `json:"context"`
}

// SpellCheckResult is the reconciled, false-positive-filtered error set.
type SpellCheckResult struct {
	Errors      []SpellError `json:"errors"`
	TotalErrors int          `json:"totalErrors"`
}

// SignatureStatus is the merged signature verdict for a document.
type SignatureStatus string

const (
	SignedDigital     SignatureStatus = "signed-digital"
	SignedHandwritten SignatureStatus = "signed-handwritten"
	NotSigned         SignatureStatus = "not-signed"
	SignatureUnknown  SignatureStatus = "unknown"
)

// DigitalSignatureResult reports signature-type form fields found in the
// document structure.
type DigitalSignatureResult struct {
	Found   bool     `json:"found"`
	Count   int      `json:"count"`
	Details []string `json:"details"`
}

// HandwrittenSignaturePage is one page's visual classification.
type HandwrittenSignaturePage struct {
	PageNumber  int     `json:"pageNumber"`
	Found       bool    `json:"found"`
	Confidence  float64 `json:"confidence"`
	Description string  `json:"description"`
}

// HandwrittenSignatureResult aggregates the per-page classifications.
// Confidence is the max among pages where a signature was found, 0 if none.
type HandwrittenSignatureResult struct {
	Found      bool                       `json:"found"`
	Confidence float64                    `json:"confidence"`
	Pages      []HandwrittenSignaturePage `json:"pages"`
}

// SignatureResult merges the digital and handwritten signals.
// Precedence: digital found beats handwritten found beats not-signed.
type SignatureResult struct {
	Digital       DigitalSignatureResult     `json:"digital"`
	Handwritten   HandwrittenSignatureResult `json:"handwritten"`
	OverallStatus SignatureStatus            `json:"overallStatus"`
}

// ComparisonResult is the full output of one reference/candidate comparison.
// OverallScore is the document-level pixel similarity percent; text and
// spelling signals are reported but deliberately not blended into the score.
type ComparisonResult struct {
	PixelDiff    PixelDiffResult  `json:"pixelDiff"`
	TextDiff     TextDiffResult   `json:"textDiff"`
	SpellCheck   SpellCheckResult `json:"spellCheck"`
	Signature    SignatureResult  `json:"signature"`
	OverallScore float64          `json:"overallScore"`
}
