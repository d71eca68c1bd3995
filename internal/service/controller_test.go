package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"monogest/backend/internal/cache"
	"monogest/backend/internal/storage"
)

type controllerFixture struct {
	*fixture
	snapshots  *cache.SnapshotCache
	controller *MailboxController
	scheduler  *Scheduler
}

func newControllerFixture(t *testing.T) *controllerFixture {
	t.Helper()

	f := newFixture(t)
	snapshots := cache.NewSnapshotCache()
	controller := NewMailboxController(
		f.svc, f.gateway, f.resolver, f.store,
		snapshots, nil, time.Minute, testMetrics, zap.NewNop(),
	)
	scheduler := NewScheduler(controller, time.Hour, testMetrics, zap.NewNop())
	controller.SetScheduler(scheduler)

	return &controllerFixture{
		fixture:    f,
		snapshots:  snapshots,
		controller: controller,
		scheduler:  scheduler,
	}
}

func TestMailboxController_OpenConversation(t *testing.T) {
	ctx := context.Background()

	t.Run("participant gets the thread and the scheduler watches it", func(t *testing.T) {
		f := newControllerFixture(t)

		conv, err := f.controller.Compose(ctx, CreateConversationInput{
			InitiatorID: "u1", Subject: "Consulta", Body: "Hola",
		})
		require.NoError(t, err)

		got, err := f.controller.OpenConversation(ctx, "u1", conv.ID)
		require.NoError(t, err)
		assert.Equal(t, conv.ID, got.ID)
		assert.Equal(t, conv.ID, f.scheduler.Watched())

		f.controller.CloseView(conv.ID)
		assert.Empty(t, f.scheduler.Watched())
	})

	t.Run("non-participants are rejected", func(t *testing.T) {
		f := newControllerFixture(t)

		conv, err := f.controller.Compose(ctx, CreateConversationInput{
			InitiatorID: "u1", Subject: "Consulta", Body: "Hola",
		})
		require.NoError(t, err)

		_, err = f.controller.OpenConversation(ctx, "u2", conv.ID)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("missing conversations surface not-found", func(t *testing.T) {
		f := newControllerFixture(t)

		_, err := f.controller.OpenConversation(ctx, "u1", "nope")
		assert.ErrorIs(t, err, storage.ErrConversationNotFound)
	})
}

func TestMailboxController_Reply(t *testing.T) {
	ctx := context.Background()

	t.Run("reply advances the cached snapshot revision", func(t *testing.T) {
		f := newControllerFixture(t)

		conv, err := f.controller.Compose(ctx, CreateConversationInput{
			InitiatorID: "u1", Subject: "Consulta", Body: "Hola",
		})
		require.NoError(t, err)

		before, ok := f.snapshots.Get(conv.ID)
		require.True(t, ok)

		_, err = f.controller.Reply(ctx, ReplyInput{
			ConversationID: conv.ID, SenderID: "s1", Body: "Respuesta",
		})
		require.NoError(t, err)

		after, ok := f.snapshots.Get(conv.ID)
		require.True(t, ok)
		assert.Greater(t, after.Revision, before.Revision)
		assert.Len(t, after.Messages, 2)
	})

	t.Run("strangers cannot reply", func(t *testing.T) {
		f := newControllerFixture(t)

		conv, err := f.controller.Compose(ctx, CreateConversationInput{
			InitiatorID: "u1", Subject: "Consulta", Body: "Hola",
		})
		require.NoError(t, err)

		_, err = f.controller.Reply(ctx, ReplyInput{
			ConversationID: conv.ID, SenderID: "u2", Body: "Intruso",
		})
		assert.ErrorIs(t, err, ErrForbidden)
	})
}

func TestMailboxController_ComposeToGroup(t *testing.T) {
	ctx := context.Background()
	f := newControllerFixture(t)

	conv, err := f.controller.ComposeToGroup(ctx, "all-monotributistas", CreateConversationInput{
		InitiatorID: "s1", Subject: "Vencimiento", Body: "Recuerden pagar antes del 20.",
	})
	require.NoError(t, err)

	got, err := f.controller.OpenConversation(ctx, "s1", conv.ID)
	require.NoError(t, err)
	assert.Len(t, got.Participants, 3) // s1, u1, u2

	_, err = f.controller.ComposeToGroup(ctx, "vips", CreateConversationInput{
		InitiatorID: "s1", Subject: "x", Body: "y",
	})
	assert.ErrorIs(t, err, ErrUnknownGroup)
}

func TestMailboxController_AttachmentURL(t *testing.T) {
	ctx := context.Background()
	f := newControllerFixture(t)

	conv, err := f.controller.Compose(ctx, CreateConversationInput{
		InitiatorID: "u1",
		Subject:     "Comprobante",
		Body:        "Adjunto la transferencia.",
		Files: []UploadFile{
			{Name: "comprobante.png", ContentType: "image/png", Content: []byte("png")},
		},
	})
	require.NoError(t, err)

	got, err := f.controller.OpenConversation(ctx, "u1", conv.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 1)
	require.Len(t, got.Messages[0].Attachments, 1)
	attID := got.Messages[0].Attachments[0].ID

	url, err := f.controller.AttachmentURL(ctx, "s1", attID)
	require.NoError(t, err)
	assert.Contains(t, url, conv.ID)

	_, err = f.controller.AttachmentURL(ctx, "u2", attID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestMailboxController_MarkReadRefreshesSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newControllerFixture(t)

	conv, err := f.controller.Compose(ctx, CreateConversationInput{
		InitiatorID: "u1", Subject: "Consulta", Body: "Hola",
	})
	require.NoError(t, err)

	_, err = f.controller.Reply(ctx, ReplyInput{
		ConversationID: conv.ID, SenderID: "s1", Body: "Respuesta",
	})
	require.NoError(t, err)

	require.NoError(t, f.controller.MarkRead(ctx, conv.ID, "u1"))

	snap, ok := f.snapshots.Get(conv.ID)
	require.True(t, ok)
	assert.True(t, readFlag(t, snap, "u1"))
}

func TestMailboxController_RefreshList(t *testing.T) {
	ctx := context.Background()
	f := newControllerFixture(t)

	conv, err := f.controller.Compose(ctx, CreateConversationInput{
		InitiatorID: "u1", Subject: "Consulta", Body: "Hola",
	})
	require.NoError(t, err)

	// List marks u1 active, so the reconciliation pass covers them
	_, err = f.controller.List(ctx, "u1", nil)
	require.NoError(t, err)

	_, err = f.svc.Reply(ctx, ReplyInput{ConversationID: conv.ID, SenderID: "s1", Body: "Nueva"})
	require.NoError(t, err)

	require.NoError(t, f.controller.RefreshList(ctx))

	snap, ok := f.snapshots.GetList("u1")
	require.True(t, ok)
	require.Len(t, snap.Conversations, 1)
	assert.False(t, snap.Conversations[0].Read)
}
