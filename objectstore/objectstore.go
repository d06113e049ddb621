// Package objectstore retrieves large SBOM documents from JetStream
// object storage under a single-consumer contract: a document is
// fetched once and removed after a successful read.
package objectstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"
)

// Store wraps a JetStream context for object retrieval.
type Store struct {
	js     jetstream.JetStream
	logger *slog.Logger
}

// New creates a Store over the given JetStream context.
func New(js jetstream.JetStream, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{js: js, logger: logger}
}

// Put stores data under key, creating the bucket on first use.
func (s *Store) Put(ctx context.Context, bucket, key string, data []byte) error {
	obs, err := s.js.ObjectStore(ctx, bucket)
	if err != nil {
		obs, err = s.js.CreateObjectStore(ctx, jetstream.ObjectStoreConfig{
			Bucket:      bucket,
			Description: "Uploaded SBOM documents awaiting ingestion",
		})
		if err != nil {
			return fmt.Errorf("create object bucket %s: %w", bucket, err)
		}
	}

	if _, err := obs.PutBytes(ctx, key, data); err != nil {
		return fmt.Errorf("store object %s/%s: %w", bucket, key, err)
	}
	return nil
}

// Take fetches the object and deletes it. A failed delete is logged
// rather than surfaced: the document was read, and this service is the
// bucket's only consumer.
func (s *Store) Take(ctx context.Context, bucket, key string) ([]byte, error) {
	obs, err := s.js.ObjectStore(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("open object bucket %s: %w", bucket, err)
	}

	data, err := obs.GetBytes(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("fetch object %s/%s: %w", bucket, key, err)
	}

	if err := obs.Delete(ctx, key); err != nil {
		s.logger.Warn("failed to delete consumed object",
			"bucket", bucket,
			"key", key,
			"error", err)
	}
	return data, nil
}
