package media

import (
	"bytes"
	"context"

	"github.com/evently/apiserver/internal/storage"
	"github.com/evently/apiserver/types"
)

// StorageUploader uploads flyers to a MinIO or GCS bucket.
type StorageUploader struct {
	store *storage.Storage
}

func NewStorageUploader(store *storage.Storage) *StorageUploader {
	return &StorageUploader{store: store}
}

func (u *StorageUploader) Upload(ctx context.Context, key string, flyer types.Flyer) (string, error) {
	err := u.store.Put(ctx, key, bytes.NewReader(flyer.Data), int64(len(flyer.Data)), flyer.ContentType)
	if err != nil {
		return "", err
	}
	return u.store.URL(key), nil
}
