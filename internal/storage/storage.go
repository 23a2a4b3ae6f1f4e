// Package storage keeps uploaded file contents in an object store. File
// metadata, including the size that storage quotas are summed from, lives
// in the database.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/hugh/ash-erp/pkg/config"
	"github.com/hugh/ash-erp/pkg/crypto"
)

var (
	ErrObjectNotFound = errors.New("object not found")
	ErrUnknownBackend = errors.New("unknown storage backend")
)

// ObjectStore is a flat key/value store for file contents.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// Key is where a tenant's file lives. The tenant prefix keeps one tenant's
// objects out of another's listing.
func Key(tenantID, fileID uuid.UUID) string {
	return fmt.Sprintf("tenants/%s/files/%s", tenantID, fileID)
}

// New builds the configured backend, wrapped for encryption when enabled.
func New(ctx context.Context, cfg *config.StorageConfig, enc *crypto.Encryptor) (ObjectStore, error) {
	var (
		store ObjectStore
		err   error
	)
	switch cfg.Backend {
	case "s3":
		store, err = NewS3Store(ctx, cfg)
	case "gcs":
		store, err = NewGCSStore(ctx, cfg)
	case "memory":
		store = NewMemoryStore()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Encrypt {
		if enc == nil {
			return nil, errors.New("storage encryption enabled without an encryptor")
		}
		store = NewEncryptedStore(store, enc)
	}
	return store, nil
}
