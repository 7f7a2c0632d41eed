package refstore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/batflow/batverify/internal/apperr"
	"github.com/batflow/batverify/internal/models"
)

// FirestoreStore keeps one document per SKU in a Firestore collection.
// Write serialization comes from Firestore transactions instead of an
// in-process lock, which also makes the store safe across instances.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

func NewFirestoreStore(client *firestore.Client, collection string) *FirestoreStore {
	if collection == "" {
		collection = "references"
	}
	return &FirestoreStore{client: client, collection: collection}
}

func (s *FirestoreStore) List(ctx context.Context) ([]models.Reference, error) {
	it := s.client.Collection(s.collection).Documents(ctx)
	var refs []models.Reference
	for {
		doc, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return refs, nil
		}
		if err != nil {
			return nil, apperr.Wrap(apperr.Storage, err, "list references")
		}
		var ref models.Reference
		if err := doc.DataTo(&ref); err != nil {
			return nil, apperr.Wrap(apperr.Storage, err, "decode reference %s", doc.Ref.ID)
		}
		refs = append(refs, ref)
	}
}

func (s *FirestoreStore) Get(ctx context.Context, sku string) (models.Reference, error) {
	snap, err := s.client.Collection(s.collection).Doc(sku).Get(ctx)
	if snap != nil && !snap.Exists() {
		return models.Reference{}, ErrNotFound
	}
	if err != nil {
		return models.Reference{}, apperr.Wrap(apperr.Storage, err, "get reference %s", sku)
	}
	var ref models.Reference
	if err := snap.DataTo(&ref); err != nil {
		return models.Reference{}, apperr.Wrap(apperr.Storage, err, "decode reference %s", sku)
	}
	return ref, nil
}

func (s *FirestoreStore) Put(ctx context.Context, ref models.Reference) error {
	if _, err := s.client.Collection(s.collection).Doc(ref.SKU).Set(ctx, ref); err != nil {
		return apperr.Wrap(apperr.Storage, err, "put reference %s", ref.SKU)
	}
	return nil
}

func (s *FirestoreStore) Delete(ctx context.Context, sku string) error {
	if _, err := s.client.Collection(s.collection).Doc(sku).Delete(ctx); err != nil {
		return apperr.Wrap(apperr.Storage, err, "delete reference %s", sku)
	}
	return nil
}

func (s *FirestoreStore) Update(ctx context.Context, sku string, fn func(*models.Reference) error) error {
	docRef := s.client.Collection(s.collection).Doc(sku)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(docRef)
		if snap != nil && !snap.Exists() {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var ref models.Reference
		if err := snap.DataTo(&ref); err != nil {
			return err
		}
		if err := fn(&ref); err != nil {
			return err
		}
		return tx.Set(docRef, ref)
	})
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	return apperr.Wrap(apperr.Storage, err, "update reference %s", sku)
}
