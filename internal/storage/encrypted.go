package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/hugh/ash-erp/pkg/crypto"
)

const encryptedContentType = "application/octet-stream"

// EncryptedStore seals objects with age before handing them to the backend.
type EncryptedStore struct {
	next ObjectStore
	enc  *crypto.Encryptor
}

func NewEncryptedStore(next ObjectStore, enc *crypto.Encryptor) *EncryptedStore {
	return &EncryptedStore{next: next, enc: enc}
}

// Put streams the ciphertext through a pipe so the plaintext is never held
// in full by this layer.
func (s *EncryptedStore) Put(ctx context.Context, key string, body io.Reader, _ string) error {
	pr, pw := io.Pipe()
	defer pr.Close()

	go func() {
		w, err := s.enc.EncryptTo(pw)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(w, body); err != nil {
			pw.CloseWithError(fmt.Errorf("encrypting object: %w", err))
			return
		}
		pw.CloseWithError(w.Close())
	}()

	return s.next.Put(ctx, key, pr, encryptedContentType)
}

func (s *EncryptedStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := s.next.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	plain, err := s.enc.DecryptFrom(rc)
	if err != nil {
		rc.Close()
		return nil, err
	}
	return readCloser{Reader: plain, Closer: rc}, nil
}

func (s *EncryptedStore) Delete(ctx context.Context, key string) error {
	return s.next.Delete(ctx, key)
}

func (s *EncryptedStore) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}

type readCloser struct {
	io.Reader
	io.Closer
}

var _ ObjectStore = (*EncryptedStore)(nil)
