// Package objectstore mirrors compiled corpus artifacts into a NATS JetStream
// object store. Stages restore a missing compiled corpus from it.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const artifactPathMetadataKey = "artifact-path"

var (
	// ErrBucketEmpty indicates that no bucket name was configured.
	ErrBucketEmpty = errors.New("object store bucket cannot be empty")
	// ErrArtifactNotFound indicates that the mirror holds no object for a key.
	ErrArtifactNotFound = errors.New("artifact not found in object store")
)

// NatsArtifactStore implements core.ObjectStore on a JetStream object store
// bucket. Keys are artifact paths such as "compiled/sv/compiled.txt".
type NatsArtifactStore struct {
	bucket string
	store  nats.ObjectStore
}

// New creates the bucket, or binds to it when it already exists.
func New(jetstreamContext nats.JetStreamContext, bucketName string) (*NatsArtifactStore, error) {
	if bucketName == "" {
		return nil, ErrBucketEmpty
	}

	store, err := jetstreamContext.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucketName,
		Description: fmt.Sprintf("Compiled corpus artifacts (%s).", bucketName),
		TTL:         0,
		MaxBytes:    0,
		Storage:     nats.FileStorage,
		Replicas:    1,
		Placement:   nil,
		Metadata:    nil,
		Compression: true,
	})
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketExists) && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
			return nil, fmt.Errorf("failed to create object store bucket '%s': %w", bucketName, err)
		}

		store, err = jetstreamContext.ObjectStore(bucketName)
		if err != nil {
			return nil, fmt.Errorf("failed to bind to existing object store bucket '%s': %w", bucketName, err)
		}
	}

	return &NatsArtifactStore{
		bucket: bucketName,
		store:  store,
	}, nil
}

// Upload stores data under the artifact path, replacing an earlier version.
func (n *NatsArtifactStore) Upload(ctx context.Context, key string, data []byte) error {
	err := ctx.Err()
	if err != nil {
		return fmt.Errorf("upload of '%s' cancelled: %w", key, err)
	}

	_, err = n.store.Put(&nats.ObjectMeta{
		Name:        key,
		Description: "corpus artifact",
		Headers:     nil,
		Metadata:    map[string]string{artifactPathMetadataKey: key},
		Opts:        nil,
	}, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to put artifact '%s' to bucket '%s': %w", key, n.bucket, err)
	}

	return nil
}

// Download returns the mirrored artifact. A missing key yields ErrArtifactNotFound.
func (n *NatsArtifactStore) Download(ctx context.Context, key string) ([]byte, error) {
	err := ctx.Err()
	if err != nil {
		return nil, fmt.Errorf("download of '%s' cancelled: %w", key, err)
	}

	data, err := n.store.GetBytes(key)
	if err != nil {
		if errors.Is(err, nats.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: '%s' in bucket '%s'", ErrArtifactNotFound, key, n.bucket)
		}

		return nil, fmt.Errorf("failed to get artifact '%s' from bucket '%s': %w", key, n.bucket, err)
	}

	return data, nil
}
