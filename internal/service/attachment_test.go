package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"monogest/backend/internal/domain"
)

func newGateway(objects *fakeObjectStore) *AttachmentGateway {
	return NewAttachmentGateway(objects, domain.DefaultMailboxFileRules(), zap.NewNop())
}

func TestAttachmentGateway_Validate(t *testing.T) {
	g := newGateway(newFakeObjectStore())

	t.Run("accepts an allowed document", func(t *testing.T) {
		result := g.Validate(UploadFile{Name: "factura.pdf", ContentType: "application/pdf", Size: 2048})
		assert.True(t, result.Valid)
		assert.Equal(t, domain.AttachmentDocument, result.Kind)
	})

	t.Run("rejects a disallowed type", func(t *testing.T) {
		result := g.Validate(UploadFile{Name: "virus.exe", ContentType: "application/octet-stream", Size: 100})
		assert.False(t, result.Valid)
	})

	t.Run("rejects a 150 MB video before any upload", func(t *testing.T) {
		result := g.Validate(UploadFile{Name: "recorrido.mp4", ContentType: "video/mp4", Size: 150_000_000})
		assert.False(t, result.Valid)
	})
}

func TestAttachmentGateway_UploadAll(t *testing.T) {
	ctx := context.Background()

	t.Run("uploads land under the owner prefix", func(t *testing.T) {
		objects := newFakeObjectStore()
		g := newGateway(objects)

		attachments, err := g.UploadAll(ctx, "conv-1", []UploadFile{
			{Name: "foto.png", ContentType: "image/png", Content: []byte("png")},
			{Name: "resumen.xlsx", ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", Content: []byte("xlsx")},
		})
		require.NoError(t, err)
		require.Len(t, attachments, 2)

		for _, att := range attachments {
			assert.True(t, strings.HasPrefix(att.StorageLocator, "conv-1/attachment_"))
		}
		assert.Equal(t, domain.AttachmentImage, attachments[0].Kind)
		assert.Equal(t, domain.AttachmentSpreadsheet, attachments[1].Kind)
		assert.Equal(t, 2, objects.count())
	})

	t.Run("one rejected file blocks the whole batch", func(t *testing.T) {
		objects := newFakeObjectStore()
		g := newGateway(objects)

		_, err := g.UploadAll(ctx, "conv-1", []UploadFile{
			{Name: "foto.png", ContentType: "image/png", Content: []byte("png")},
			{Name: "pelicula.mkv", ContentType: "video/x-matroska", Size: 150_000_000},
		})
		assert.ErrorIs(t, err, ErrValidation)
		assert.Zero(t, objects.count(), "nothing may be written when validation fails")
	})

	t.Run("a failed upload discards the already-written blobs", func(t *testing.T) {
		objects := newFakeObjectStore()
		objects.failExt = ".pdf"
		g := newGateway(objects)

		_, err := g.UploadAll(ctx, "conv-1", []UploadFile{
			{Name: "foto.png", ContentType: "image/png", Content: []byte("png")},
			{Name: "factura.pdf", ContentType: "application/pdf", Content: []byte("pdf")},
		})
		assert.ErrorIs(t, err, ErrUpload)
		assert.Zero(t, objects.count(), "partial uploads must be cleaned up")
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		g := newGateway(newFakeObjectStore())

		attachments, err := g.UploadAll(ctx, "conv-1", nil)
		require.NoError(t, err)
		assert.Nil(t, attachments)
	})
}

func TestAttachmentGateway_SweepOrphans(t *testing.T) {
	ctx := context.Background()
	objects := newFakeObjectStore()
	g := newGateway(objects)

	attachments, err := g.UploadAll(ctx, "conv-1", []UploadFile{
		{Name: "a.png", ContentType: "image/png", Content: []byte("a")},
		{Name: "b.png", ContentType: "image/png", Content: []byte("b")},
		{Name: "c.png", ContentType: "image/png", Content: []byte("c")},
	})
	require.NoError(t, err)

	referenced := map[string]bool{attachments[0].StorageLocator: true}
	removed, err := g.SweepOrphans(ctx, "conv-1/", referenced)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, objects.count())
}
