// Package objectstore_test tests the NATS artifact mirror.
package objectstore_test

import (
	"context"
	"testing"

	"github.com/book-expert/corpus-builder/internal/core"
	"github.com/book-expert/corpus-builder/internal/objectstore"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ core.ObjectStore = (*objectstore.NatsArtifactStore)(nil)

// StartTestServer starts an embedded JetStream-enabled NATS server.
func StartTestServer(t *testing.T) (*server.Server, *nats.Conn) {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1 // Use a random port
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	natsServer := test.RunServer(&opts)

	natsConnection, err := nats.Connect(natsServer.ClientURL())
	if err != nil {
		t.Fatalf("Failed to connect to test NATS server: %v", err)
	}

	t.Cleanup(func() {
		natsConnection.Close()
		natsServer.Shutdown()
	})

	return natsServer, natsConnection
}

func newTestStore(t *testing.T, bucket string) (*objectstore.NatsArtifactStore, nats.JetStreamContext) {
	t.Helper()

	_, natsConnection := StartTestServer(t)

	jetstreamContext, err := natsConnection.JetStream()
	require.NoError(t, err)

	store, err := objectstore.New(jetstreamContext, bucket)
	require.NoError(t, err)

	return store, jetstreamContext
}

func TestNatsArtifactStore_UploadDownload(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t, "corpus-artifacts")
	ctx := context.Background()

	key := "compiled/sv/compiled.txt"
	corpus := []byte("stockholm är en stad\nhej")

	require.NoError(t, store.Upload(ctx, key, corpus))

	downloaded, err := store.Download(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, corpus, downloaded)

	replacement := []byte("ny korpus")
	require.NoError(t, store.Upload(ctx, key, replacement))

	downloaded, err = store.Download(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, replacement, downloaded)
}

func TestNatsArtifactStore_DownloadMissing(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t, "corpus-missing")

	_, err := store.Download(context.Background(), "compiled/en/3-grams.txt")
	require.ErrorIs(t, err, objectstore.ErrArtifactNotFound)
}

func TestNew_BindsExistingBucket(t *testing.T) {
	t.Parallel()

	store, jetstreamContext := newTestStore(t, "corpus-shared")
	ctx := context.Background()

	require.NoError(t, store.Upload(ctx, "compiled/en/compiled.txt", []byte("shared")))

	again, err := objectstore.New(jetstreamContext, "corpus-shared")
	require.NoError(t, err)

	data, err := again.Download(ctx, "compiled/en/compiled.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("shared"), data)
}

func TestNew_EmptyBucket(t *testing.T) {
	t.Parallel()

	_, natsConnection := StartTestServer(t)

	jetstreamContext, err := natsConnection.JetStream()
	require.NoError(t, err)

	_, err = objectstore.New(jetstreamContext, "")
	require.ErrorIs(t, err, objectstore.ErrBucketEmpty)
}

func TestNatsArtifactStore_CancelledContext(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t, "corpus-cancel")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.Upload(ctx, "compiled/en/compiled.txt", []byte("x"))
	require.ErrorIs(t, err, context.Canceled)
}
