package models

import "image"

// Page is one rendered document page: the raster produced by the external
// renderer plus the raw text extracted for that page. Pages are immutable
// once produced and are owned by the comparison for its duration.
type Page struct {
	PageNumber int         // 1-based, contiguous
	Image      *image.RGBA // nil when the renderer produced no raster
	Text       string      // raw extracted text, possibly empty
	Width      int
	Height     int
}
