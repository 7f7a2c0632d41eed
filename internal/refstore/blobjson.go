package refstore

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/batflow/batverify/internal/apperr"
	"github.com/batflow/batverify/internal/blob"
	"github.com/batflow/batverify/internal/models"
)

// BlobJSONStore keeps the whole reference collection in one JSON blob.
// The file-as-database pattern is fine at this scale, but only behind
// this type: every mutation is a read-modify-write of the full
// collection under a store-level lock, and the record is always replaced
// whole, never patched.
type BlobJSONStore struct {
	blobs blob.Store

	// mu serializes read-modify-write cycles. Readers go through it too:
	// the metadata blob is small and reads are cheap.
	mu sync.Mutex
}

func NewBlobJSONStore(blobs blob.Store) *BlobJSONStore {
	return &BlobJSONStore{blobs: blobs}
}

func (s *BlobJSONStore) List(ctx context.Context) ([]models.Reference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	meta, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return meta.References, nil
}

func (s *BlobJSONStore) Get(ctx context.Context, sku string) (models.Reference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	meta, err := s.load(ctx)
	if err != nil {
		return models.Reference{}, err
	}
	for _, ref := range meta.References {
		if ref.SKU == sku {
			return ref, nil
		}
	}
	return models.Reference{}, ErrNotFound
}

func (s *BlobJSONStore) Put(ctx context.Context, ref models.Reference) error {
	return s.transact(ctx, func(meta *models.MetadataStore) error {
		for i := range meta.References {
			if meta.References[i].SKU == ref.SKU {
				meta.References[i] = ref
				return nil
			}
		}
		meta.References = append(meta.References, ref)
		return nil
	})
}

func (s *BlobJSONStore) Delete(ctx context.Context, sku string) error {
	return s.transact(ctx, func(meta *models.MetadataStore) error {
		kept := meta.References[:0]
		for _, ref := range meta.References {
			if ref.SKU != sku {
				kept = append(kept, ref)
			}
		}
		meta.References = kept
		return nil
	})
}

func (s *BlobJSONStore) Update(ctx context.Context, sku string, fn func(*models.Reference) error) error {
	return s.transact(ctx, func(meta *models.MetadataStore) error {
		for i := range meta.References {
			if meta.References[i].SKU == sku {
				return fn(&meta.References[i])
			}
		}
		return ErrNotFound
	})
}

// transact runs fn over the loaded collection and writes the result back,
// all under the store lock.
func (s *BlobJSONStore) transact(ctx context.Context, fn func(*models.MetadataStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.load(ctx)
	if err != nil {
		return err
	}
	if err := fn(meta); err != nil {
		return err
	}
	return s.save(ctx, meta)
}

func (s *BlobJSONStore) load(ctx context.Context) (*models.MetadataStore, error) {
	data, err := s.blobs.Read(ctx, blob.MetadataPath)
	if errors.Is(err, blob.ErrNotExist) {
		return &models.MetadataStore{References: []models.Reference{}, UpdatedAt: time.Now().UTC()}, nil
	}
	if err != nil {
		return nil, err
	}
	var meta models.MetadataStore
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, apperr.Wrap(apperr.Storage, err, "decode reference metadata")
	}
	return &meta, nil
}

func (s *BlobJSONStore) save(ctx context.Context, meta *models.MetadataStore) error {
	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return apperr.Wrap(apperr.Storage, err, "encode reference metadata")
	}
	return s.blobs.Put(ctx, blob.MetadataPath, data, "application/json")
}
