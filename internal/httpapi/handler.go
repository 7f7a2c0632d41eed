// Package httpapi exposes the reference library and the comparison
// pipeline as a thin JSON API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/batflow/batverify/internal/apperr"
	"github.com/batflow/batverify/internal/blob"
	"github.com/batflow/batverify/internal/filename"
	"github.com/batflow/batverify/internal/gcp"
	"github.com/batflow/batverify/internal/models"
	"github.com/batflow/batverify/internal/reconcile"
	"github.com/batflow/batverify/internal/refstore"
	"github.com/batflow/batverify/internal/render"
)

// Comparer runs one full reference/candidate comparison.
type Comparer interface {
	Compare(ctx context.Context, refPages, candPages []models.Page, candBytes []byte) (*models.ComparisonResult, error)
}

// SpellChecker runs the reconciled document-level spell check.
type SpellChecker interface {
	CheckText(ctx context.Context, text string) models.SpellCheckResult
}

// SignatureResolver resolves the document's signature status.
type SignatureResolver interface {
	Resolve(ctx context.Context, docBytes []byte, pages []models.Page) models.SignatureResult
}

// Handler holds the wired pipeline behind the HTTP routes.
type Handler struct {
	MaxUploadBytes int64
	Refs           refstore.Store
	Blobs          blob.Store
	Renderer       render.Renderer
	Comparer       Comparer
	Speller        SpellChecker
	Signatures     SignatureResolver
	Promoter       *reconcile.Promoter
}

// NewHandler reads MAX_UPLOAD_MB (default 50) and assembles the handler.
func NewHandler(refs refstore.Store, blobs blob.Store, renderer render.Renderer, comparer Comparer, speller SpellChecker, signatures SignatureResolver) *Handler {
	maxMB, err := strconv.Atoi(gcp.GetEnv("MAX_UPLOAD_MB", "50"))
	if err != nil || maxMB <= 0 {
		maxMB = 50
	}
	return &Handler{
		MaxUploadBytes: int64(maxMB) * 1024 * 1024,
		Refs:           refs,
		Blobs:          blobs,
		Renderer:       renderer,
		Comparer:       comparer,
		Speller:        speller,
		Signatures:     signatures,
		Promoter:       reconcile.NewPromoter(refs, blobs),
	}
}

// writeError maps the error taxonomy onto HTTP status codes. Unclassified
// errors stay opaque 500s.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"

	switch {
	case errors.Is(err, refstore.ErrNotFound), errors.Is(err, blob.ErrNotExist):
		status = http.StatusNotFound
		msg = "not found"
	case apperr.Is(err, apperr.Input):
		status = http.StatusBadRequest
		msg = err.Error()
	case apperr.Is(err, apperr.Render):
		status = http.StatusUnprocessableEntity
		msg = err.Error()
	case apperr.Is(err, apperr.RateLimit):
		status = http.StatusTooManyRequests
		msg = err.Error()
	case apperr.Is(err, apperr.Service):
		status = http.StatusBadGateway
		msg = err.Error()
	case apperr.Is(err, apperr.Consistency):
		status = http.StatusConflict
		msg = err.Error()
	}

	if status == http.StatusInternalServerError {
		slog.Error("Request failed.", "error", err)
	}
	http.Error(w, msg, status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response.", "error", err)
	}
}

// readPDFUpload pulls the "file" part out of a multipart request and
// enforces the size and extension checks shared by every upload route.
func (h *Handler) readPDFUpload(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.MaxUploadBytes); err != nil {
		return nil, "", apperr.Wrap(apperr.Input, err, "file too large or invalid form")
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", apperr.New(apperr.Input, "file is required")
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		return nil, "", apperr.New(apperr.Input, "only PDF files are allowed")
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", apperr.Wrap(apperr.Input, err, "read upload")
	}
	return data, header.Filename, nil
}

func (h *Handler) ListReferences(w http.ResponseWriter, r *http.Request) {
	refs, err := h.Refs.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, refs)
}

func (h *Handler) GetReference(w http.ResponseWriter, r *http.Request, sku string) {
	ref, err := h.Refs.Get(r.Context(), sku)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ref)
}

// CreateReference registers a SKU's first approved document at version 1.
// Metadata comes from the form fields when present, else from the
// filename convention.
func (h *Handler) CreateReference(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data, name, err := h.readPDFUpload(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	ref := models.Reference{
		SKU:         r.FormValue("sku"),
		ProductName: r.FormValue("productName"),
		Description: r.FormValue("description"),
	}
	if langs := r.FormValue("languages"); langs != "" {
		ref.Languages = strings.Split(langs, ",")
	}
	if parsed, ok := filename.Parse(name); ok {
		if ref.SKU == "" {
			ref.SKU = parsed.SKU
		}
		if ref.ProductName == "" {
			ref.ProductName = parsed.ProductName
		}
		if ref.Description == "" {
			ref.Description = parsed.Description
		}
		if len(ref.Languages) == 0 {
			ref.Languages = parsed.Languages
		}
	}
	if ref.SKU == "" {
		writeError(w, apperr.New(apperr.Input, "sku is required (form field or filename convention)"))
		return
	}
	if _, err := h.Refs.Get(ctx, ref.SKU); err == nil {
		writeError(w, apperr.New(apperr.Consistency, "reference %s already exists", ref.SKU))
		return
	} else if !errors.Is(err, refstore.ErrNotFound) {
		writeError(w, err)
		return
	}

	ref.CurrentVersion = 1
	ref.SignatureStatus = models.SignatureUnknown
	ref.BlobPath = blob.CurrentPDFPath(ref.SKU)

	if err := h.Blobs.Put(ctx, ref.BlobPath, data, "application/pdf"); err != nil {
		writeError(w, err)
		return
	}
	if err := h.Refs.Put(ctx, ref); err != nil {
		writeError(w, err)
		return
	}

	slog.Info("Reference created.", "sku", ref.SKU, "version", ref.CurrentVersion)
	writeJSON(w, http.StatusCreated, ref)
}

func (h *Handler) DeleteReference(w http.ResponseWriter, r *http.Request, sku string) {
	ctx := r.Context()
	if _, err := h.Refs.Get(ctx, sku); err != nil {
		writeError(w, err)
		return
	}

	entries, err := h.Blobs.List(ctx, blob.ReferencePrefix(sku))
	if err != nil {
		writeError(w, err)
		return
	}
	for _, e := range entries {
		if err := h.Blobs.Delete(ctx, e.Path); err != nil && !errors.Is(err, blob.ErrNotExist) {
			writeError(w, err)
			return
		}
	}
	if err := h.Refs.Delete(ctx, sku); err != nil {
		writeError(w, err)
		return
	}

	slog.Info("Reference deleted.", "sku", sku, "objects", len(entries))
	w.WriteHeader(http.StatusNoContent)
}

// UploadCandidate stores a candidate under a fresh temporary ID and
// reports what the filename convention says about it.
func (h *Handler) UploadCandidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data, name, err := h.readPDFUpload(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	id := uuid.New().String()
	path := blob.TempPDFPath(id)
	if err := h.Blobs.Put(ctx, path, data, "application/pdf"); err != nil {
		writeError(w, err)
		return
	}

	up := models.UploadedFile{
		ID:         id,
		Filename:   name,
		BlobPath:   path,
		UploadedAt: time.Now().UTC(),
	}
	if parsed, ok := filename.Parse(name); ok {
		up.Parsed = &models.ParsedFilename{
			SKU:         parsed.SKU,
			ProductName: parsed.ProductName,
			Description: parsed.Description,
			Languages:   parsed.Languages,
			Date:        parsed.Date,
		}
	}

	slog.Info("Candidate uploaded.", "id", id, "filename", name, "bytes", len(data))
	writeJSON(w, http.StatusCreated, up)
}

// Compare renders both documents and runs the full comparison of the
// uploaded candidate against the SKU's current reference.
func (h *Handler) Compare(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var body struct {
		UploadID string `json:"uploadId"`
		SKU      string `json:"sku"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apperr.Wrap(apperr.Input, err, "invalid JSON body"))
		return
	}
	if body.UploadID == "" || body.SKU == "" {
		writeError(w, apperr.New(apperr.Input, "uploadId and sku are required"))
		return
	}

	ref, err := h.Refs.Get(ctx, body.SKU)
	if err != nil {
		writeError(w, err)
		return
	}
	refBytes, err := h.Blobs.Read(ctx, ref.BlobPath)
	if err != nil {
		writeError(w, err)
		return
	}
	candBytes, err := h.Blobs.Read(ctx, blob.TempPDFPath(body.UploadID))
	if err != nil {
		writeError(w, err)
		return
	}

	refPages, err := h.Renderer.Render(ctx, refBytes, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	candPages, err := h.Renderer.Render(ctx, candBytes, nil)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.Comparer.Compare(ctx, refPages, candPages, candBytes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Validate promotes an uploaded candidate to be the SKU's new reference
// version. The signature gate is enforced by the promoter.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request, sku string) {
	ctx := r.Context()
	var body struct {
		UploadID        string                 `json:"uploadId"`
		ValidatedBy     string                 `json:"validatedBy"`
		SignatureStatus models.SignatureStatus `json:"signatureStatus"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apperr.Wrap(apperr.Input, err, "invalid JSON body"))
		return
	}
	if body.UploadID == "" {
		writeError(w, apperr.New(apperr.Input, "uploadId is required"))
		return
	}

	candidate, err := h.Blobs.Read(ctx, blob.TempPDFPath(body.UploadID))
	if err != nil {
		writeError(w, err)
		return
	}

	ref, err := h.Promoter.Promote(ctx, sku, body.ValidatedBy, body.SignatureStatus, candidate)
	if err != nil {
		writeError(w, err)
		return
	}
	h.Promoter.CleanupTemp(ctx, body.UploadID)

	slog.Info("Reference promoted.", "sku", sku, "version", ref.CurrentVersion, "validatedBy", body.ValidatedBy)
	writeJSON(w, http.StatusOK, ref)
}

// SpellCheck runs the reconciled spell check over raw text.
func (h *Handler) SpellCheck(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apperr.Wrap(apperr.Input, err, "invalid JSON body"))
		return
	}
	result := h.Speller.CheckText(r.Context(), body.Text)
	writeJSON(w, http.StatusOK, result)
}

// CheckSignature resolves the signature status of an uploaded document
// without registering it anywhere.
func (h *Handler) CheckSignature(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data, _, err := h.readPDFUpload(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	pages, err := h.Renderer.Render(ctx, data, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	result := h.Signatures.Resolve(ctx, data, pages)
	writeJSON(w, http.StatusOK, result)
}
