// Package blob is the content-addressed-by-path store for reference
// documents, their version history, temporary uploads and the metadata
// collection.
package blob

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotExist reports a read or copy of a path that holds no object.
var ErrNotExist = errors.New("blob: object does not exist")

// Entry describes one stored object.
type Entry struct {
	Path    string
	Size    int64
	Updated time.Time
}

// Store is the narrow blob interface the core consumes.
type Store interface {
	Put(ctx context.Context, path string, data []byte, contentType string) error
	Read(ctx context.Context, path string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]Entry, error)
	Delete(ctx context.Context, path string) error
	// Copy duplicates src to dst server-side, used for archiving a
	// reference document before it is replaced.
	Copy(ctx context.Context, src, dst string) error
}

// MetadataPath holds the reference metadata collection, one JSON object.
const MetadataPath = "metadata.json"

// CurrentPDFPath is where a SKU's approved document lives.
func CurrentPDFPath(sku string) string {
	return fmt.Sprintf("references/%s/current.pdf", sku)
}

// ReferencePrefix covers everything stored for a SKU.
func ReferencePrefix(sku string) string {
	return fmt.Sprintf("references/%s/", sku)
}

// HistoryPDFPath is the archive slot for a superseded version.
func HistoryPDFPath(sku string, version int, date time.Time) string {
	return fmt.Sprintf("references/%s/history/v%d_%s.pdf", sku, version, date.Format("2006-01-02"))
}

// TempPDFPath holds a candidate upload awaiting comparison.
func TempPDFPath(id string) string {
	return fmt.Sprintf("temp/%s.pdf", id)
}
