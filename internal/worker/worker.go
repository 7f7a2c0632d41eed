// Package worker is the event-driven comparison entry: a candidate
// landing in the intake bucket is compared against its SKU's stored
// reference and the result is written next to it.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"

	"github.com/batflow/batverify/internal/blob"
	"github.com/batflow/batverify/internal/compare"
	"github.com/batflow/batverify/internal/filename"
	"github.com/batflow/batverify/internal/gcp"
	"github.com/batflow/batverify/internal/models"
	"github.com/batflow/batverify/internal/ocr"
	"github.com/batflow/batverify/internal/refstore"
	"github.com/batflow/batverify/internal/render"
	"github.com/batflow/batverify/internal/signature"
	"github.com/batflow/batverify/internal/spelling"
)

type CompareWorkerConfig struct {
	ProjectID       string
	Region          string
	ReferenceBucket string
	ResultsBucket   string
}

type CompareWorkerFunction struct {
	storageClient *storage.Client
	vertexClient  *gcp.VertexClient
	refs          refstore.Store
	blobs         blob.Store
	renderer      render.Renderer
	ocrExtractor  *ocr.Extractor
	orchestrator  *compare.Orchestrator
	config        CompareWorkerConfig
}

// GCSEvent is the storage-notification payload we care about.
type GCSEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

func NewCompareWorker(ctx context.Context) (*CompareWorkerFunction, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}

	config := CompareWorkerConfig{
		ProjectID:       projectID,
		Region:          gcp.GetEnv("VERTEX_REGION", "europe-west1"),
		ReferenceBucket: gcp.GetEnv("REFERENCE_BUCKET", ""),
		ResultsBucket:   gcp.GetEnv("RESULTS_BUCKET", ""),
	}
	if config.ReferenceBucket == "" {
		return nil, fmt.Errorf("REFERENCE_BUCKET environment variable must be set")
	}
	if config.ResultsBucket == "" {
		config.ResultsBucket = config.ReferenceBucket
	}

	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}
	vertexClient, err := gcp.NewVertexClient(ctx, config.ProjectID, config.Region)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vertex client: %w", err)
	}

	blobs := blob.NewGCSStore(storageClient, config.ReferenceBucket)
	speller := spelling.NewReconciler(spelling.NewClient(), nil, spelling.PolicyIntersection)
	signatures := signature.NewResolver(signature.NewVertexClassifier(vertexClient))

	f := &CompareWorkerFunction{
		storageClient: storageClient,
		vertexClient:  vertexClient,
		refs:          refstore.NewBlobJSONStore(blobs),
		blobs:         blobs,
		renderer:      render.NewClient(),
		ocrExtractor:  ocr.NewExtractor(vertexClient),
		orchestrator:  compare.NewOrchestrator(speller, signatures),
		config:        config,
	}
	slog.Info("Compare worker initialized.", "referenceBucket", config.ReferenceBucket, "resultsBucket", config.ResultsBucket)
	return f, nil
}

// Process handles one finalized candidate object. Objects that are not
// conventional BAT uploads, and SKUs with no stored reference, are
// skipped cleanly so the event is not redelivered forever.
func (f *CompareWorkerFunction) Process(ctx context.Context, e GCSEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)

	if !strings.EqualFold(path.Ext(e.Name), ".pdf") || strings.HasPrefix(e.Name, "results/") {
		logCtx.Info("Ignoring non-candidate object.")
		return nil
	}

	parsed, ok := filename.Parse(path.Base(e.Name))
	if !ok {
		logCtx.Warn("Filename does not follow the BAT convention. Skipping.")
		return nil
	}
	logCtx = logCtx.With("sku", parsed.SKU)
	logCtx.Info("Processing candidate upload.")

	ref, err := f.refs.Get(ctx, parsed.SKU)
	if err != nil {
		logCtx.Warn("No stored reference for SKU. Skipping.", "error", err)
		return nil
	}

	candBytes, err := f.readObject(ctx, e.Bucket, e.Name)
	if err != nil {
		logCtx.Error("Failed to download candidate", "error", err)
		return err
	}
	refBytes, err := f.blobs.Read(ctx, ref.BlobPath)
	if err != nil {
		logCtx.Error("Failed to download reference document", "error", err)
		return err
	}

	refPages, err := f.renderer.Render(ctx, refBytes, nil)
	if err != nil {
		logCtx.Error("Failed to render reference", "error", err)
		return err
	}
	candPages, err := f.renderer.Render(ctx, candBytes, nil)
	if err != nil {
		logCtx.Error("Failed to render candidate", "error", err)
		return err
	}
	f.backfillText(ctx, logCtx, refPages)
	f.backfillText(ctx, logCtx, candPages)

	result, err := f.orchestrator.Compare(ctx, refPages, candPages, candBytes)
	if err != nil {
		logCtx.Error("Comparison failed", "error", err)
		return err
	}

	envelope := struct {
		SKU              string                   `json:"sku"`
		Object           string                   `json:"object"`
		ReferenceVersion int                      `json:"referenceVersion"`
		ComparedAt       time.Time                `json:"comparedAt"`
		Result           *models.ComparisonResult `json:"result"`
	}{
		SKU:              parsed.SKU,
		Object:           e.Name,
		ReferenceVersion: ref.CurrentVersion,
		ComparedAt:       time.Now().UTC(),
		Result:           result,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal comparison result: %w", err)
	}

	resultObject := resultObjectName(e.Name)
	bucket := f.storageClient.Bucket(f.config.ResultsBucket)
	if err := gcp.SaveToGCSAtomically(ctx, bucket, resultObject, string(payload)); err != nil {
		logCtx.Error("Failed to save comparison result", "error", err)
		return err
	}

	logCtx.Info("Comparison result saved.", "resultObject", resultObject, "similarityPercent", result.OverallScore)
	return nil
}

// backfillText OCRs pages the render service returned without text, so
// scanned or flattened uploads still get a text diff. Per-page failures
// leave the page empty and keep going.
func (f *CompareWorkerFunction) backfillText(ctx context.Context, logCtx *slog.Logger, pages []models.Page) {
	for i := range pages {
		if strings.TrimSpace(pages[i].Text) != "" {
			continue
		}
		text, err := f.ocrExtractor.ExtractPageText(ctx, pages[i])
		if err != nil {
			logCtx.Warn("Page OCR failed; continuing with empty text.", "page", pages[i].PageNumber, "error", err)
			continue
		}
		pages[i].Text = text
	}
}

// Close releases the held clients.
func (f *CompareWorkerFunction) Close() error {
	f.vertexClient.Close()
	return f.storageClient.Close()
}

func (f *CompareWorkerFunction) readObject(ctx context.Context, bucketName, object string) ([]byte, error) {
	reader, err := f.storageClient.Bucket(bucketName).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get GCS object reader for gs://%s/%s: %w", bucketName, object, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read GCS object: %w", err)
	}
	return data, nil
}

// resultObjectName maps a candidate object to its result slot.
func resultObjectName(object string) string {
	base := strings.TrimSuffix(path.Base(object), path.Ext(object))
	return fmt.Sprintf("results/%s.json", base)
}
