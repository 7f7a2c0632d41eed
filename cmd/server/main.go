package main

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"

	"github.com/batflow/batverify/internal/blob"
	"github.com/batflow/batverify/internal/compare"
	"github.com/batflow/batverify/internal/gcp"
	"github.com/batflow/batverify/internal/httpapi"
	"github.com/batflow/batverify/internal/refstore"
	"github.com/batflow/batverify/internal/render"
	"github.com/batflow/batverify/internal/signature"
	"github.com/batflow/batverify/internal/spelling"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx := context.Background()

	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		slog.Error("PROJECT_ID environment variable must be set")
		os.Exit(1)
	}
	bucketName := gcp.GetEnv("REFERENCE_BUCKET", "")
	if bucketName == "" {
		slog.Error("REFERENCE_BUCKET environment variable must be set")
		os.Exit(1)
	}

	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		slog.Error("Failed to create Storage client", "error", err)
		os.Exit(1)
	}
	defer storageClient.Close()
	blobs := blob.NewGCSStore(storageClient, bucketName)

	// The reference metadata lives in the bucket by default; Firestore is
	// the opt-in backend for deployments that already run it.
	var refs refstore.Store
	if gcp.GetEnv("REFSTORE_BACKEND", "blob") == "firestore" {
		firestoreClient, err := gcp.NewFirestoreClient(ctx, projectID)
		if err != nil {
			slog.Error("Failed to create Firestore client", "error", err)
			os.Exit(1)
		}
		defer firestoreClient.Close()
		refs = refstore.NewFirestoreStore(firestoreClient, gcp.GetEnv("FIRESTORE_COLLECTION", "references"))
	} else {
		refs = refstore.NewBlobJSONStore(blobs)
	}

	vertexClient, err := gcp.NewVertexClient(ctx, projectID, gcp.GetEnv("VERTEX_REGION", "europe-west1"))
	if err != nil {
		slog.Error("Failed to create Vertex client", "error", err)
		os.Exit(1)
	}
	defer vertexClient.Close()

	var languages []string
	if raw := gcp.GetEnv("SPELL_LANGUAGES", ""); raw != "" {
		languages = strings.Split(raw, ",")
	}
	speller := spelling.NewReconciler(spelling.NewClient(), languages, spelling.Policy(gcp.GetEnv("SPELL_POLICY", string(spelling.PolicyIntersection))))
	signatures := signature.NewResolver(signature.NewVertexClassifier(vertexClient))
	orchestrator := compare.NewOrchestrator(speller, signatures)

	handler := httpapi.NewHandler(refs, blobs, render.NewClient(), orchestrator, speller, signatures)
	router := httpapi.NewRouter(handler)

	if err := funcframework.RegisterHTTPFunctionContext(ctx, "/", router.ServeHTTP); err != nil {
		slog.Error("Failed to register HTTP function", "error", err)
		os.Exit(1)
	}

	port := gcp.GetEnv("PORT", "8080")
	slog.Info("Starting server.", "port", port)
	if err := funcframework.Start(port); err != nil {
		slog.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}
