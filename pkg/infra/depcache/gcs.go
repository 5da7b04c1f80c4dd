package depcache

import (
	"context"
	"errors"
	"path"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/slipway/pkg/domain/interfaces"
	"github.com/m-mizutani/slipway/pkg/utils/tarutil"
	"google.golang.org/api/option"
)

const objectPrefix = "dep-cache"

// Cache stores dependency caches as gzipped tarballs in a Cloud Storage
// bucket, keyed by project and lock-manifest hash. A warm cache only speeds
// builds up; callers treat cache errors as degradation, never as build
// failures.
type Cache struct {
	bucket *storage.BucketHandle
}

// New creates a GCS-backed dependency cache
func New(ctx context.Context, bucketName string, opts ...option.ClientOption) (*Cache, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client",
			goerr.V("bucket", bucketName))
	}

	return &Cache{
		bucket: client.Bucket(bucketName),
	}, nil
}

var _ interfaces.DepCache = (*Cache)(nil)

func objectName(key string) string {
	return path.Join(objectPrefix, key+".tar.gz")
}

// Restore extracts the cache entry for key into dir. It reports false with
// no error when the entry does not exist.
func (c *Cache) Restore(ctx context.Context, key, dir string) (bool, error) {
	r, err := c.bucket.Object(objectName(key)).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, goerr.Wrap(err, "failed to open cache object", goerr.V("key", key))
	}
	defer r.Close()

	if err := tarutil.Extract(r, dir); err != nil {
		return false, goerr.Wrap(err, "failed to extract cache entry", goerr.V("key", key))
	}
	return true, nil
}

// Save archives dir as the cache entry for key, replacing any previous entry
func (c *Cache) Save(ctx context.Context, key, dir string) error {
	w := c.bucket.Object(objectName(key)).NewWriter(ctx)

	if err := tarutil.Pack(w, dir, ""); err != nil {
		_ = w.Close()
		return goerr.Wrap(err, "failed to archive cache entry", goerr.V("key", key))
	}
	if err := w.Close(); err != nil {
		return goerr.Wrap(err, "failed to finalize cache object", goerr.V("key", key))
	}
	return nil
}
