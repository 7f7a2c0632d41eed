// Package ocr extracts text from rendered pages and whole documents via
// the vision model. OCR is best effort: per-page failures degrade to empty
// text and a recorded reason rather than aborting the batch.
package ocr

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/googleapi"

	"github.com/batflow/batverify/internal/apperr"
	"github.com/batflow/batverify/internal/gcp"
	"github.com/batflow/batverify/internal/models"
)

// contentGenerator is the slice of the vision model the extractor uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Extractor runs OCR against the configured vision model.
type Extractor struct {
	model   contentGenerator
	backoff time.Duration
}

func NewExtractor(client *gcp.VertexClient) *Extractor {
	return &Extractor{model: client.OCRModel, backoff: time.Second}
}

// ExtractPageText transcribes one page image. Throttling here is treated
// as an ordinary service failure; only the document-level path retries.
func (e *Extractor) ExtractPageText(ctx context.Context, page models.Page) (string, error) {
	if page.Image == nil {
		return "", apperr.New(apperr.Service, "page %d has no raster to OCR", page.PageNumber)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, page.Image); err != nil {
		return "", apperr.Wrap(apperr.Service, err, "encode page %d raster", page.PageNumber)
	}

	resp, err := e.model.GenerateContent(ctx,
		genai.ImageData("png", buf.Bytes()),
		genai.Text(gcp.OCRUserPrompt),
	)
	if err != nil {
		return "", apperr.Wrap(apperr.Service, err, "OCR call failed for page %d", page.PageNumber)
	}
	return responseText(resp), nil
}

// ExtractDocumentText transcribes the whole document in one call. This is
// the only path that retries throttled calls: up to 3 attempts with
// exponentially increasing delay, aborted early on context cancellation.
func (e *Extractor) ExtractDocumentText(ctx context.Context, docBytes []byte) (string, error) {
	const maxAttempts = 3
	backoff := e.backoff

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := e.model.GenerateContent(ctx,
			genai.Blob{MIMEType: "application/pdf", Data: docBytes},
			genai.Text(gcp.OCRUserPrompt),
		)
		if err == nil {
			return responseText(resp), nil
		}
		if !isRateLimited(err) {
			return "", apperr.Wrap(apperr.Service, err, "document OCR call failed")
		}

		lastErr = err
		if attempt == maxAttempts {
			break
		}
		slog.Warn("Document OCR throttled, will retry.",
			"attempt", attempt,
			"maxAttempts", maxAttempts,
			"backoff", backoff.String(),
			"error", err,
		)
		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return "", apperr.Wrap(apperr.Service, ctx.Err(), "document OCR cancelled during backoff")
		}
	}
	return "", apperr.Wrap(apperr.RateLimit, lastErr, "document OCR failed after %d attempts", maxAttempts)
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(sb.String())
}

// isRateLimited recognizes throttling responses from the model endpoint.
func isRateLimited(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == 429 {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "ResourceExhausted") || strings.Contains(msg, "429")
}
