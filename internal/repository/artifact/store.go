// Package artifact persists versioned index artifacts (vector blob +
// metadata) in the key-value store.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/layoutdex/internal/db"
	"github.com/kailas-cloud/layoutdex/internal/domain"
)

const keyPrefix = "layoutdex:index:"

// kv is the consumer interface (ISP).
type kv interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Set(ctx context.Context, key string, value []byte) error
}

// Store adapts the KV facade to the index.BlobStore contract.
type Store struct {
	kv kv
}

// New creates an artifact store.
func New(kv kv) *Store {
	return &Store{kv: kv}
}

// Get reads one artifact; a missing key maps to domain.ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.kv.Get(ctx, keyPrefix+key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, fmt.Errorf("artifact %q: %w", key, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get artifact %q: %w", key, err)
	}
	return data, nil
}

// Set writes one artifact. Artifacts never expire: they are replaced by the
// next reindex.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := s.kv.Set(ctx, keyPrefix+key, value); err != nil {
		return fmt.Errorf("set artifact %q: %w", key, err)
	}
	return nil
}
