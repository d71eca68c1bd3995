package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monogest/backend/internal/domain"
	"monogest/backend/internal/storage"
)

func newConversation(t *testing.T, s *Store, initiator string, participants ...string) *domain.Conversation {
	t.Helper()

	conv := &domain.Conversation{
		ID:          uuid.NewString(),
		Subject:     "Consulta de facturación",
		Origin:      "billing",
		State:       domain.ConversationOpen,
		InitiatorID: initiator,
		CreatedAt:   time.Now().UTC(),
	}
	first := &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		SenderID:       initiator,
		Body:           "¿Está listo mi VEP?",
		CreatedAt:      time.Now().UTC(),
	}
	err := s.CreateConversation(context.Background(), conv, append([]string{initiator}, participants...), first)
	require.NoError(t, err)
	return conv
}

func TestStore_CreateConversation(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	t.Run("fan-out deduplicates the initiator", func(t *testing.T) {
		conv := newConversation(t, s, "u1", "a", "b", "u1")

		got, err := s.GetConversationWithMessages(ctx, conv.ID)
		require.NoError(t, err)
		assert.Len(t, got.Participants, 3)

		ids := make([]string, 0, len(got.Participants))
		for _, p := range got.Participants {
			ids = append(ids, p.CounterpartyID)
		}
		assert.ElementsMatch(t, []string{"u1", "a", "b"}, ids)
	})

	t.Run("initiator starts read, recipients start unread", func(t *testing.T) {
		conv := newConversation(t, s, "u1", "a")

		got, err := s.GetConversationWithMessages(ctx, conv.ID)
		require.NoError(t, err)
		for _, p := range got.Participants {
			if p.CounterpartyID == "u1" {
				assert.True(t, p.Read)
			} else {
				assert.False(t, p.Read)
			}
		}
	})

	t.Run("first message is stored", func(t *testing.T) {
		conv := newConversation(t, s, "u1", "a")

		got, err := s.GetConversationWithMessages(ctx, conv.ID)
		require.NoError(t, err)
		require.Len(t, got.Messages, 1)
		assert.Equal(t, "u1", got.Messages[0].SenderID)
		assert.Equal(t, got.LastMessageAt, got.Messages[0].CreatedAt)
	})
}

func TestStore_AppendReply(t *testing.T) {
	ctx := context.Background()

	t.Run("appends in order and bumps last-message-at", func(t *testing.T) {
		s := NewStore()
		conv := newConversation(t, s, "u1", "s1")

		for i := 0; i < 3; i++ {
			msg := &domain.Message{
				ID:             uuid.NewString(),
				ConversationID: conv.ID,
				SenderID:       "s1",
				Body:           "respuesta",
				CreatedAt:      time.Now().UTC().Add(time.Duration(i+1) * time.Second),
			}
			require.NoError(t, s.AppendReply(ctx, conv.ID, msg))
		}

		got, err := s.GetConversationWithMessages(ctx, conv.ID)
		require.NoError(t, err)
		require.Len(t, got.Messages, 4)
		for i := 1; i < len(got.Messages); i++ {
			assert.False(t, got.Messages[i].CreatedAt.Before(got.Messages[i-1].CreatedAt))
		}
		assert.Equal(t, got.Messages[3].CreatedAt, got.LastMessageAt)
	})

	t.Run("closed conversation rejects replies and stores nothing", func(t *testing.T) {
		s := NewStore()
		conv := newConversation(t, s, "u1", "s1")
		require.NoError(t, s.SetLifecycle(ctx, conv.ID, domain.ConversationClosed))

		err := s.AppendReply(ctx, conv.ID, &domain.Message{
			ID: uuid.NewString(), ConversationID: conv.ID, SenderID: "s1", Body: "tarde", CreatedAt: time.Now().UTC(),
		})
		assert.ErrorIs(t, err, storage.ErrConversationClosed)

		got, _ := s.GetConversationWithMessages(ctx, conv.ID)
		assert.Len(t, got.Messages, 1)
	})

	t.Run("reply resets other participants to unread, not the sender", func(t *testing.T) {
		s := NewStore()
		conv := newConversation(t, s, "u1", "s1", "s2")
		require.NoError(t, s.SetRead(ctx, conv.ID, "s2", time.Now().UTC()))

		require.NoError(t, s.AppendReply(ctx, conv.ID, &domain.Message{
			ID: uuid.NewString(), ConversationID: conv.ID, SenderID: "s1", Body: "hola", CreatedAt: time.Now().UTC(),
		}))

		got, err := s.GetConversationWithMessages(ctx, conv.ID)
		require.NoError(t, err)
		for _, p := range got.Participants {
			assert.Equal(t, p.CounterpartyID == "s1", p.Read, "participant %s", p.CounterpartyID)
		}
	})

	t.Run("quoted message must belong to the conversation", func(t *testing.T) {
		s := NewStore()
		conv := newConversation(t, s, "u1", "s1")
		other := newConversation(t, s, "u2", "s1")
		foreign := mustFirstMessageID(t, s, other.ID)

		err := s.AppendReply(ctx, conv.ID, &domain.Message{
			ID: uuid.NewString(), ConversationID: conv.ID, SenderID: "s1",
			Body: "cita inválida", CreatedAt: time.Now().UTC(), QuotedMessageID: &foreign,
		})
		assert.ErrorIs(t, err, storage.ErrQuotedMessageNotFound)

		got, _ := s.GetConversationWithMessages(ctx, conv.ID)
		assert.Len(t, got.Messages, 1)

		own := mustFirstMessageID(t, s, conv.ID)
		err = s.AppendReply(ctx, conv.ID, &domain.Message{
			ID: uuid.NewString(), ConversationID: conv.ID, SenderID: "s1",
			Body: "cita válida", CreatedAt: time.Now().UTC(), QuotedMessageID: &own,
		})
		assert.NoError(t, err)
	})

	t.Run("non-participant sender is rejected", func(t *testing.T) {
		s := NewStore()
		conv := newConversation(t, s, "u1", "s1")

		err := s.AppendReply(ctx, conv.ID, &domain.Message{
			ID: uuid.NewString(), ConversationID: conv.ID, SenderID: "intruso", Body: "x", CreatedAt: time.Now().UTC(),
		})
		assert.ErrorIs(t, err, storage.ErrParticipantNotFound)
	})
}

func TestStore_SetRead(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	conv := newConversation(t, s, "u1", "s1")

	t.Run("marking read twice is a no-op", func(t *testing.T) {
		now := time.Now().UTC()
		require.NoError(t, s.SetRead(ctx, conv.ID, "s1", now))

		revBefore, err := s.Revision(ctx, conv.ID)
		require.NoError(t, err)

		require.NoError(t, s.SetRead(ctx, conv.ID, "s1", now.Add(time.Minute)))

		revAfter, err := s.Revision(ctx, conv.ID)
		require.NoError(t, err)
		assert.Equal(t, revBefore, revAfter)

		got, _ := s.GetConversationWithMessages(ctx, conv.ID)
		for _, p := range got.Participants {
			if p.CounterpartyID == "s1" {
				assert.True(t, p.Read)
				assert.Equal(t, now, *p.LastReadAt)
			}
		}
	})

	t.Run("read flags are independent per participant", func(t *testing.T) {
		s := NewStore()
		conv := newConversation(t, s, "u1", "a", "b")
		require.NoError(t, s.SetRead(ctx, conv.ID, "a", time.Now().UTC()))

		listA, err := s.ListConversationsForParticipant(ctx, "a", nil)
		require.NoError(t, err)
		listB, err := s.ListConversationsForParticipant(ctx, "b", nil)
		require.NoError(t, err)

		assert.True(t, listA[0].Read)
		assert.False(t, listB[0].Read)
	})

	t.Run("unknown participant fails", func(t *testing.T) {
		err := s.SetRead(ctx, conv.ID, "nadie", time.Now().UTC())
		assert.ErrorIs(t, err, storage.ErrParticipantNotFound)
	})
}

func TestStore_SetLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	conv := newConversation(t, s, "u1", "s1")

	require.NoError(t, s.SetLifecycle(ctx, conv.ID, domain.ConversationClosed))
	revAfterClose, err := s.Revision(ctx, conv.ID)
	require.NoError(t, err)

	// closing an already-closed conversation changes nothing
	require.NoError(t, s.SetLifecycle(ctx, conv.ID, domain.ConversationClosed))
	rev, err := s.Revision(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, revAfterClose, rev)

	require.NoError(t, s.SetLifecycle(ctx, conv.ID, domain.ConversationOpen))
	got, err := s.GetConversationWithMessages(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ConversationOpen, got.State)
}

func TestStore_ListOrderingAndFilter(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	first := newConversation(t, s, "u1", "s1")
	second := newConversation(t, s, "u1", "s1")

	// a reply to the first conversation moves it back to the top
	require.NoError(t, s.AppendReply(ctx, first.ID, &domain.Message{
		ID: uuid.NewString(), ConversationID: first.ID, SenderID: "s1",
		Body: "al frente", CreatedAt: time.Now().UTC().Add(time.Hour),
	}))

	list, err := s.ListConversationsForParticipant(ctx, "u1", nil)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)

	require.NoError(t, s.SetLifecycle(ctx, second.ID, domain.ConversationClosed))
	closed := domain.ConversationClosed
	filtered, err := s.ListConversationsForParticipant(ctx, "u1", &closed)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, second.ID, filtered[0].ID)
}

func TestStore_UnreadCount(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	c1 := newConversation(t, s, "u1", "s1")
	newConversation(t, s, "u2", "s1")

	count, err := s.UnreadCount(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, s.SetRead(ctx, c1.ID, "s1", time.Now().UTC()))
	count, err = s.UnreadCount(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStore_Attachments(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	conv := newConversation(t, s, "u1", "s1")

	att := &domain.Attachment{
		ID:             uuid.NewString(),
		Filename:       "factura.pdf",
		ContentType:    "application/pdf",
		Size:           1234,
		StorageLocator: conv.ID + "/adjunto_1.pdf",
		Kind:           domain.AttachmentDocument,
	}
	msg := &domain.Message{
		ID: uuid.NewString(), ConversationID: conv.ID, SenderID: "s1",
		Body: "te adjunto la factura", CreatedAt: time.Now().UTC(),
		Attachments: []*domain.Attachment{att},
	}
	att.MessageID = msg.ID
	require.NoError(t, s.AppendReply(ctx, conv.ID, msg))

	got, err := s.GetAttachment(ctx, att.ID)
	require.NoError(t, err)
	assert.Equal(t, att.StorageLocator, got.StorageLocator)
	assert.Equal(t, msg.ID, got.MessageID)

	_, err = s.GetAttachment(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrAttachmentNotFound)
}

func mustFirstMessageID(t *testing.T, s *Store, conversationID string) string {
	t.Helper()
	conv, err := s.GetConversationWithMessages(context.Background(), conversationID)
	require.NoError(t, err)
	require.NotEmpty(t, conv.Messages)
	return conv.Messages[0].ID
}
