package blob

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/batflow/batverify/internal/apperr"
)

// GCSStore implements Store on a single GCS bucket.
type GCSStore struct {
	bucket *storage.BucketHandle
}

func NewGCSStore(client *storage.Client, bucketName string) *GCSStore {
	return &GCSStore{bucket: client.Bucket(bucketName)}
}

func (s *GCSStore) Put(ctx context.Context, path string, data []byte, contentType string) error {
	w := s.bucket.Object(path).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return apperr.Wrap(apperr.Storage, err, "write %s", path)
	}
	if err := w.Close(); err != nil {
		return apperr.Wrap(apperr.Storage, err, "finalize write of %s", path)
	}
	return nil
}

func (s *GCSStore) Read(ctx context.Context, path string) ([]byte, error) {
	r, err := s.bucket.Object(path).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotExist)
		}
		return nil, apperr.Wrap(apperr.Storage, err, "open %s", path)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, apperr.Wrap(apperr.Storage, err, "read %s", path)
	}
	return data, nil
}

func (s *GCSStore) List(ctx context.Context, prefix string) ([]Entry, error) {
	it := s.bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	var entries []Entry
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return entries, nil
		}
		if err != nil {
			return nil, apperr.Wrap(apperr.Storage, err, "list %s", prefix)
		}
		entries = append(entries, Entry{Path: attrs.Name, Size: attrs.Size, Updated: attrs.Updated})
	}
}

func (s *GCSStore) Delete(ctx context.Context, path string) error {
	if err := s.bucket.Object(path).Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return fmt.Errorf("%s: %w", path, ErrNotExist)
		}
		return apperr.Wrap(apperr.Storage, err, "delete %s", path)
	}
	return nil
}

func (s *GCSStore) Copy(ctx context.Context, src, dst string) error {
	copier := s.bucket.Object(dst).CopierFrom(s.bucket.Object(src))
	if _, err := copier.Run(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return fmt.Errorf("%s: %w", src, ErrNotExist)
		}
		return apperr.Wrap(apperr.Storage, err, "copy %s to %s", src, dst)
	}
	return nil
}
