package objectstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesystemStore(t *testing.T) {
	ctx := context.Background()
	store, err := NewFilesystemStore(t.TempDir(), "https://cdn.monogest.test/files/")
	require.NoError(t, err)

	t.Run("put then list roundtrip", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "conv-1/adjunto_1.pdf", []byte("pdf bytes"), "application/pdf"))
		require.NoError(t, store.Put(ctx, "conv-1/adjunto_2.jpg", []byte("jpg bytes"), "image/jpeg"))

		locators, err := store.List(ctx, "conv-1")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"conv-1/adjunto_1.pdf", "conv-1/adjunto_2.jpg"}, locators)
	})

	t.Run("public url joins base and escaped locator", func(t *testing.T) {
		url := store.PublicURL("conv-1/mi adjunto.pdf")
		assert.Equal(t, "https://cdn.monogest.test/files/conv-1/mi%20adjunto.pdf", url)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "conv-2/x.pdf", []byte("x"), "application/pdf"))
		require.NoError(t, store.Delete(ctx, "conv-2/x.pdf"))
		require.NoError(t, store.Delete(ctx, "conv-2/x.pdf"))

		locators, err := store.List(ctx, "conv-2")
		require.NoError(t, err)
		assert.Empty(t, locators)
	})

	t.Run("rejects traversal locators", func(t *testing.T) {
		err := store.Put(ctx, "../fuera.pdf", []byte("x"), "application/pdf")
		assert.Error(t, err)
	})
}
