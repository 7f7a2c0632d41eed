package signature

import (
	"context"

	"github.com/batflow/batverify/internal/models"
)

// Resolver combines the digital form-field check and the per-page visual
// classification into one SignatureResult.
type Resolver struct {
	classifier PageClassifier
}

func NewResolver(classifier PageClassifier) *Resolver {
	return &Resolver{classifier: classifier}
}

// Resolve inspects the candidate document bytes for digital signature
// fields and each candidate page image for a handwritten signature.
// Pages are classified sequentially; each failure stays local to its page.
func (r *Resolver) Resolve(ctx context.Context, docBytes []byte, pages []models.Page) models.SignatureResult {
	digital := DetectDigital(docBytes)

	findings := make([]models.HandwrittenSignaturePage, 0, len(pages))
	for _, page := range pages {
		findings = append(findings, r.classifier.ClassifyPage(ctx, page))
	}
	handwritten := aggregateFindings(findings)

	return models.SignatureResult{
		Digital:       digital,
		Handwritten:   handwritten,
		OverallStatus: overallStatus(digital, handwritten),
	}
}

// aggregateFindings folds per-page findings into the document result.
// Confidence is the max among pages where a signature was found.
func aggregateFindings(findings []models.HandwrittenSignaturePage) models.HandwrittenSignatureResult {
	result := models.HandwrittenSignatureResult{Pages: findings}
	for _, f := range findings {
		if !f.Found {
			continue
		}
		result.Found = true
		if f.Confidence > result.Confidence {
			result.Confidence = f.Confidence
		}
	}
	return result
}

// overallStatus applies the precedence: a digital signature always wins
// over a handwritten one.
func overallStatus(digital models.DigitalSignatureResult, handwritten models.HandwrittenSignatureResult) models.SignatureStatus {
	switch {
	case digital.Found:
		return models.SignedDigital
	case handwritten.Found:
		return models.SignedHandwritten
	default:
		return models.NotSigned
	}
}
