// Package imagediff compares rendered page rasters pixel by pixel using a
// perceptual color metric, producing a diff mask and a similarity score.
package imagediff

import (
	"image"
	"image/color"

	"github.com/batflow/batverify/internal/models"
)

// Options tune the per-pixel comparison.
type Options struct {
	// Threshold is the perceptual distance above which two pixels count as
	// different, in [0,1]. The default is lenient enough to absorb
	// anti-aliasing and compression noise without hiding content changes.
	Threshold float64
	// Alpha is the blend factor applied to the unchanged background in the
	// diff mask, making differing pixels stand out.
	Alpha float64
}

// DefaultOptions matches the tuning used when the reference captures were
// first taken.
func DefaultOptions() Options {
	return Options{Threshold: 0.1, Alpha: 0.5}
}

// maxYIQDelta is the largest possible squared YIQ distance between two
// opaque colors; Threshold scales against it.
const maxYIQDelta = 35215.0

// ComparePage diffs a single page pair. If the dimensions differ, both
// images are cropped to the smaller width and height anchored at the
// top-left; renders at different scales therefore produce spurious diffs
// near the cropped edge. This is a known limitation, not silently fixed.
func ComparePage(pageNumber int, ref, cand *image.RGBA, opts Options) models.PixelDiffPage {
	// A page without a raster cannot be pixel-compared; it contributes no
	// pixels to the document score.
	if ref == nil || cand == nil {
		return models.PixelDiffPage{PageNumber: pageNumber, SimilarityPct: 100.0}
	}

	w := min(ref.Bounds().Dx(), cand.Bounds().Dx())
	h := min(ref.Bounds().Dy(), cand.Bounds().Dy())

	refC := cropTopLeft(ref, w, h)
	candC := cropTopLeft(cand, w, h)
	diff := image.NewRGBA(image.Rect(0, 0, w, h))

	maxDelta := maxYIQDelta * opts.Threshold * opts.Threshold
	diffPixels := 0

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			a := refC.RGBAAt(x, y)
			b := candC.RGBAAt(x, y)
			if colorDelta(a, b) > maxDelta {
				diff.SetRGBA(x, y, color.RGBA{R: 255, A: 255})
				diffPixels++
			} else {
				// Unchanged pixels pass through as a translucent
				// grayscale background.
				g := uint8(blend(luma(b), opts.Alpha*float64(b.A)/255))
				diff.SetRGBA(x, y, color.RGBA{R: g, G: g, B: g, A: 255})
			}
		}
	}

	total := w * h
	return models.PixelDiffPage{
		PageNumber:     pageNumber,
		ReferenceImage: refC,
		NewImage:       candC,
		DiffImage:      diff,
		DiffPixels:     diffPixels,
		TotalPixels:    total,
		SimilarityPct:  similarity(diffPixels, total),
		Width:          w,
		Height:         h,
	}
}

// Similarity converts a differing-pixel count into a percentage. A zero
// pixel count is vacuously 100% similar, never NaN.
func similarity(diffPixels, totalPixels int) float64 {
	if totalPixels == 0 {
		return 100.0
	}
	return 100.0 * float64(totalPixels-diffPixels) / float64(totalPixels)
}

// Aggregate combines per-page diffs into the document-level result.
func Aggregate(pages []models.PixelDiffPage) models.PixelDiffResult {
	res := models.PixelDiffResult{Pages: pages}
	for _, p := range pages {
		res.TotalDiffPixels += p.DiffPixels
		res.TotalPixels += p.TotalPixels
	}
	res.SimilarityPct = similarity(res.TotalDiffPixels, res.TotalPixels)
	return res
}

func cropTopLeft(img *image.RGBA, w, h int) *image.RGBA {
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h && b.Min == image.Pt(0, 0) {
		return img
	}
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.SetRGBA(x, y, img.RGBAAt(b.Min.X+x, b.Min.Y+y))
		}
	}
	return out
}

// colorDelta is the squared perceptual distance between two RGBA pixels in
// YIQ space, with semi-transparent pixels blended over white first. The
// coefficients follow the pixelmatch metric.
func colorDelta(p1, p2 color.RGBA) float64 {
	if p1 == p2 {
		return 0
	}

	r1, g1, b1 := blendRGBA(p1)
	r2, g2, b2 := blendRGBA(p2)

	dy := rgb2y(r1, g1, b1) - rgb2y(r2, g2, b2)
	di := rgb2i(r1, g1, b1) - rgb2i(r2, g2, b2)
	dq := rgb2q(r1, g1, b1) - rgb2q(r2, g2, b2)

	return 0.5053*dy*dy + 0.299*di*di + 0.1957*dq*dq
}

func blendRGBA(p color.RGBA) (r, g, b float64) {
	a := float64(p.A) / 255
	return blend(float64(p.R), a), blend(float64(p.G), a), blend(float64(p.B), a)
}

// blend composites a channel over a white background at the given alpha.
func blend(c, a float64) float64 { return 255 + (c-255)*a }

func rgb2y(r, g, b float64) float64 { return r*0.29889531 + g*0.58662247 + b*0.11448223 }
func rgb2i(r, g, b float64) float64 { return r*0.59597799 - g*0.27417610 - b*0.32180189 }
func rgb2q(r, g, b float64) float64 { return r*0.21147017 - g*0.52261711 + b*0.31114694 }

func luma(p color.RGBA) float64 {
	return rgb2y(float64(p.R), float64(p.G), float64(p.B))
}
