package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/batflow/batverify/internal/worker"
)

var (
	workerInstance *worker.CompareWorkerFunction
	once           sync.Once
	initErr        error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.CloudEvent("CompareCandidate", compareCandidate)
}

// main is required by the Go Functions Framework.
func main() {}

// compareCandidate is the Cloud Function entry point for GCS finalize
// events on the intake bucket.
func compareCandidate(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		workerInstance, initErr = worker.NewCompareWorker(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var gcsEvent worker.GCSEvent
	if err := json.Unmarshal(e.Data(), &gcsEvent); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	return workerInstance.Process(ctx, gcsEvent)
}
