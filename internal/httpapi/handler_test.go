package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/batflow/batverify/internal/blob"
	"github.com/batflow/batverify/internal/models"
	"github.com/batflow/batverify/internal/reconcile"
	"github.com/batflow/batverify/internal/refstore"
	"github.com/batflow/batverify/internal/render"
)

type stubRenderer struct {
	pages []models.Page
}

func (s *stubRenderer) Render(_ context.Context, _ []byte, _ render.ProgressFunc) ([]models.Page, error) {
	return s.pages, nil
}

type stubComparer struct {
	result *models.ComparisonResult
}

func (s *stubComparer) Compare(_ context.Context, _, _ []models.Page, _ []byte) (*models.ComparisonResult, error) {
	return s.result, nil
}

type stubSpeller struct{}

func (stubSpeller) CheckText(_ context.Context, _ string) models.SpellCheckResult {
	return models.SpellCheckResult{}
}

type stubSignatures struct {
	result models.SignatureResult
}

func (s *stubSignatures) Resolve(_ context.Context, _ []byte, _ []models.Page) models.SignatureResult {
	return s.result
}

type testEnv struct {
	handler *Handler
	router  *http.ServeMux
	blobs   *blob.MemoryStore
	refs    refstore.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	blobs := blob.NewMemoryStore()
	refs := refstore.NewBlobJSONStore(blobs)
	h := &Handler{
		MaxUploadBytes: 10 * 1024 * 1024,
		Refs:           refs,
		Blobs:          blobs,
		Renderer:       &stubRenderer{},
		Comparer:       &stubComparer{result: &models.ComparisonResult{OverallScore: 98.5}},
		Speller:        stubSpeller{},
		Signatures:     &stubSignatures{},
		Promoter:       reconcile.NewPromoter(refs, blobs),
	}
	return &testEnv{handler: h, router: NewRouter(h), blobs: blobs, refs: refs}
}

func multipartPDF(t *testing.T, filename string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4 fake"))
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// TestCreateReference_FromFilename derives metadata from the naming
// convention and starts at version 1.
func TestCreateReference_FromFilename(t *testing.T) {
	env := newTestEnv(t)
	body, contentType := multipartPDF(t, "SKU_ABC123_-_Sachet_Gel_mains_-_1_mois_retail_-_ENFR_-_09.02.2026.pdf", nil)

	req := httptest.NewRequest(http.MethodPost, "/api/references", body)
	req.Header.Set("Content-Type", contentType)
	rec := env.do(req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var ref models.Reference
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ref))
	assert.Equal(t, "ABC123", ref.SKU)
	assert.Equal(t, "Sachet Gel mains", ref.ProductName)
	assert.Equal(t, []string{"FR", "EN"}, ref.Languages)
	assert.Equal(t, 1, ref.CurrentVersion)
	assert.Equal(t, models.SignatureUnknown, ref.SignatureStatus)

	stored, err := env.blobs.Read(context.Background(), blob.CurrentPDFPath("ABC123"))
	require.NoError(t, err)
	assert.NotEmpty(t, stored)
}

// TestCreateReference_FormFieldsWin: explicit fields beat the filename.
func TestCreateReference_FormFieldsWin(t *testing.T) {
	env := newTestEnv(t)
	body, contentType := multipartPDF(t, "SKU_ABC123_-_Produit_-_Desc_-_FR.pdf", map[string]string{
		"productName": "Override Name",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/references", body)
	req.Header.Set("Content-Type", contentType)
	rec := env.do(req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var ref models.Reference
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ref))
	assert.Equal(t, "Override Name", ref.ProductName)
}

// TestCreateReference_MissingSKU is a client error.
func TestCreateReference_MissingSKU(t *testing.T) {
	env := newTestEnv(t)
	body, contentType := multipartPDF(t, "unconventional.pdf", nil)

	req := httptest.NewRequest(http.MethodPost, "/api/references", body)
	req.Header.Set("Content-Type", contentType)
	rec := env.do(req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestCreateReference_Duplicate conflicts instead of silently replacing.
func TestCreateReference_Duplicate(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.refs.Put(context.Background(), models.Reference{SKU: "ABC123"}))

	body, contentType := multipartPDF(t, "SKU_ABC123_-_Produit_-_Desc_-_FR.pdf", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/references", body)
	req.Header.Set("Content-Type", contentType)
	rec := env.do(req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

// TestCreateReference_NonPDF rejects other file types.
func TestCreateReference_NonPDF(t *testing.T) {
	env := newTestEnv(t)
	body, contentType := multipartPDF(t, "SKU_ABC123_-_A_-_B_-_FR.docx", nil)

	req := httptest.NewRequest(http.MethodPost, "/api/references", body)
	req.Header.Set("Content-Type", contentType)
	rec := env.do(req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetReference_NotFound(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/references/NOPE", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// TestDeleteReference removes the record and every stored object.
func TestDeleteReference(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.refs.Put(ctx, models.Reference{SKU: "ABC123"}))
	require.NoError(t, env.blobs.Put(ctx, blob.CurrentPDFPath("ABC123"), []byte("pdf"), "application/pdf"))
	require.NoError(t, env.blobs.Put(ctx, "references/ABC123/history/v1_2026-01-01.pdf", []byte("old"), "application/pdf"))

	rec := env.do(httptest.NewRequest(http.MethodDelete, "/api/references/ABC123", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	_, err := env.refs.Get(ctx, "ABC123")
	assert.ErrorIs(t, err, refstore.ErrNotFound)

	entries, err := env.blobs.List(ctx, blob.ReferencePrefix("ABC123"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// TestUploadCandidate stores the file under a temp ID and reports the
// parsed filename.
func TestUploadCandidate(t *testing.T) {
	env := newTestEnv(t)
	body, contentType := multipartPDF(t, "SKU_ABC123_-_Produit_-_Desc_-_FR_-_01.03.2026.pdf", nil)

	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := env.do(req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var up models.UploadedFile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &up))
	assert.NotEmpty(t, up.ID)
	require.NotNil(t, up.Parsed)
	assert.Equal(t, "ABC123", up.Parsed.SKU)

	stored, err := env.blobs.Read(context.Background(), blob.TempPDFPath(up.ID))
	require.NoError(t, err)
	assert.NotEmpty(t, stored)
}

// TestCompareEndpoint runs the stubbed pipeline end to end.
func TestCompareEndpoint(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.refs.Put(ctx, models.Reference{SKU: "ABC123", BlobPath: blob.CurrentPDFPath("ABC123")}))
	require.NoError(t, env.blobs.Put(ctx, blob.CurrentPDFPath("ABC123"), []byte("ref"), "application/pdf"))
	require.NoError(t, env.blobs.Put(ctx, blob.TempPDFPath("up-1"), []byte("cand"), "application/pdf"))

	req := httptest.NewRequest(http.MethodPost, "/api/compare", strings.NewReader(`{"uploadId": "up-1", "sku": "ABC123"}`))
	rec := env.do(req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result models.ComparisonResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 98.5, result.OverallScore)
}

// TestCompareEndpoint_MissingUpload maps the absent blob to 404.
func TestCompareEndpoint_MissingUpload(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.refs.Put(ctx, models.Reference{SKU: "ABC123", BlobPath: blob.CurrentPDFPath("ABC123")}))
	require.NoError(t, env.blobs.Put(ctx, blob.CurrentPDFPath("ABC123"), []byte("ref"), "application/pdf"))

	req := httptest.NewRequest(http.MethodPost, "/api/compare", strings.NewReader(`{"uploadId": "ghost", "sku": "ABC123"}`))
	rec := env.do(req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// TestValidateEndpoint promotes the candidate and deletes the temp upload.
func TestValidateEndpoint(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.refs.Put(ctx, models.Reference{SKU: "ABC123", CurrentVersion: 2, BlobPath: blob.CurrentPDFPath("ABC123")}))
	require.NoError(t, env.blobs.Put(ctx, blob.CurrentPDFPath("ABC123"), []byte("old"), "application/pdf"))
	require.NoError(t, env.blobs.Put(ctx, blob.TempPDFPath("up-1"), []byte("new"), "application/pdf"))

	payload := `{"uploadId": "up-1", "validatedBy": "reviewer", "signatureStatus": "signed-digital"}`
	req := httptest.NewRequest(http.MethodPost, "/api/references/ABC123/validate", strings.NewReader(payload))
	rec := env.do(req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var ref models.Reference
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ref))
	assert.Equal(t, 3, ref.CurrentVersion)

	current, err := env.blobs.Read(ctx, blob.CurrentPDFPath("ABC123"))
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), current)

	_, err = env.blobs.Read(ctx, blob.TempPDFPath("up-1"))
	assert.ErrorIs(t, err, blob.ErrNotExist, "temp upload is cleaned up after promotion")
}

// TestValidateEndpoint_UnsignedBlocked: the signature gate rejects with a
// client error and nothing changes.
func TestValidateEndpoint_UnsignedBlocked(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.refs.Put(ctx, models.Reference{SKU: "ABC123", CurrentVersion: 2}))
	require.NoError(t, env.blobs.Put(ctx, blob.TempPDFPath("up-1"), []byte("new"), "application/pdf"))

	payload := `{"uploadId": "up-1", "signatureStatus": "not-signed"}`
	req := httptest.NewRequest(http.MethodPost, "/api/references/ABC123/validate", strings.NewReader(payload))
	rec := env.do(req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	ref, err := env.refs.Get(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, 2, ref.CurrentVersion)
}

func TestSpellCheckEndpoint(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/api/spellcheck", strings.NewReader(`{"text": "Gel mains citron"}`))
	rec := env.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	var result models.SpellCheckResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Zero(t, result.TotalErrors)
}

func TestSignatureEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.handler.Signatures = &stubSignatures{result: models.SignatureResult{OverallStatus: models.SignedHandwritten}}
	body, contentType := multipartPDF(t, "signed.pdf", nil)

	req := httptest.NewRequest(http.MethodPost, "/api/signature", body)
	req.Header.Set("Content-Type", contentType)
	rec := env.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	var result models.SignatureResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, models.SignedHandwritten, result.OverallStatus)
}

// TestMethodNotAllowed covers the routing guards.
func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)
	for _, c := range []struct{ method, path string }{
		{http.MethodDelete, "/api/references"},
		{http.MethodGet, "/api/upload"},
		{http.MethodGet, "/api/compare"},
		{http.MethodPut, "/api/references/ABC123"},
		{http.MethodGet, "/api/references/ABC123/validate"},
	} {
		rec := env.do(httptest.NewRequest(c.method, c.path, nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, "%s %s", c.method, c.path)
	}
}
