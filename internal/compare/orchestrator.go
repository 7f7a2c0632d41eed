// Package compare sequences the per-page differs and the document-level
// signals across a reference/candidate page pair and aggregates one
// ComparisonResult.
package compare

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/batflow/batverify/internal/imagediff"
	"github.com/batflow/batverify/internal/models"
	"github.com/batflow/batverify/internal/textdiff"
)

// SpellChecker is the reconciled spelling signal.
type SpellChecker interface {
	CheckText(ctx context.Context, text string) models.SpellCheckResult
}

// SignatureResolver is the merged signature signal.
type SignatureResolver interface {
	Resolve(ctx context.Context, docBytes []byte, pages []models.Page) models.SignatureResult
}

// Orchestrator runs one comparison. Page diffs fan out across a bounded
// worker group; spelling and signature resolution run concurrently with
// them since all read only the immutable page artifacts and write to
// independent result fields. Aggregation waits on all of them.
type Orchestrator struct {
	spelling    SpellChecker
	signature   SignatureResolver
	imageOpts   imagediff.Options
	pageWorkers int
}

func NewOrchestrator(spelling SpellChecker, signature SignatureResolver) *Orchestrator {
	return &Orchestrator{
		spelling:    spelling,
		signature:   signature,
		imageOpts:   imagediff.DefaultOptions(),
		pageWorkers: 10,
	}
}

// Compare diffs the candidate against the reference.
//
// Pages are paired by index. For text, the shorter side's missing pages
// count as empty text, so trailing pages show up whole as added or
// removed. For pixels, only the common page range is compared; pages
// beyond the shorter side are excluded from the pixel score.
//
// The overall score is the document-level pixel similarity alone. Text
// and spelling are reported beside it but deliberately never blended in:
// visual fidelity is the signed-off approval metric.
func (o *Orchestrator) Compare(ctx context.Context, refPages, candPages []models.Page, candBytes []byte) (*models.ComparisonResult, error) {
	pixelCount := min(len(refPages), len(candPages))
	textCount := max(len(refPages), len(candPages))

	pixelPages := make([]models.PixelDiffPage, pixelCount)
	textPages := make([]models.TextDiffPage, textCount)
	var spellResult models.SpellCheckResult
	var signatureResult models.SignatureResult

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(o.pageWorkers + 2)

	for i := 0; i < pixelCount; i++ {
		eg.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			pixelPages[i] = imagediff.ComparePage(i+1, refPages[i].Image, candPages[i].Image, o.imageOpts)
			return nil
		})
	}

	for i := 0; i < textCount; i++ {
		eg.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			textPages[i] = textdiff.ComparePage(i+1, pageText(refPages, i), pageText(candPages, i))
			return nil
		})
	}

	eg.Go(func() error {
		spellResult = o.spelling.CheckText(gctx, concatText(candPages))
		return nil
	})

	eg.Go(func() error {
		signatureResult = o.signature.Resolve(gctx, candBytes, candPages)
		return nil
	})

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	pixel := imagediff.Aggregate(pixelPages)
	text := textdiff.Aggregate(textPages)

	slog.Info("Comparison complete.",
		"pages", textCount,
		"similarityPercent", pixel.SimilarityPct,
		"textChanges", text.TotalChanges,
		"spellingErrors", spellResult.TotalErrors,
		"signatureStatus", signatureResult.OverallStatus,
	)

	return &models.ComparisonResult{
		PixelDiff:    pixel,
		TextDiff:     text,
		SpellCheck:   spellResult,
		Signature:    signatureResult,
		OverallScore: pixel.SimilarityPct,
	}, nil
}

func pageText(pages []models.Page, i int) string {
	if i >= len(pages) {
		return ""
	}
	return pages[i].Text
}

// concatText joins all candidate page text with blank-line separators for
// the single document-level spelling pass.
func concatText(pages []models.Page) string {
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		parts = append(parts, p.Text)
	}
	return strings.Join(parts, "\n\n")
}
