package sql

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"monogest/backend/internal/domain"
	"monogest/backend/internal/storage"
)

// CreateConversation inserts the conversation, its deduplicated participant
// rows and the first message in one transaction.
func (s *Store) CreateConversation(ctx context.Context, conv *domain.Conversation, participantIDs []string, first *domain.Message) error {
	conv.Revision = 1
	conv.LastMessageAt = first.CreatedAt

	return s.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(conv).Error; err != nil {
			return err
		}

		seen := make(map[string]bool, len(participantIDs))
		for _, id := range participantIDs {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true

			p := &domain.Participant{
				ConversationID: conv.ID,
				CounterpartyID: id,
			}
			if id == first.SenderID {
				p.Read = true
				at := first.CreatedAt
				p.LastReadAt = &at
			}
			if err := tx.Create(p).Error; err != nil {
				return err
			}
		}

		return insertMessage(tx, first)
	})
}

// conversationRow carries the per-participant read annotation alongside the
// conversation columns in list queries.
type conversationRow struct {
	domain.Conversation
	ParticipantRead bool
}

// ListConversationsForParticipant returns the counterparty's conversations
// ordered by last-message-at descending, annotated with that participant's
// own read flag.
func (s *Store) ListConversationsForParticipant(ctx context.Context, counterpartyID string, state *domain.ConversationState) ([]domain.Conversation, error) {
	query := s.orm.WithContext(ctx).
		Table("conversations").
		Select("conversations.*, participants.is_read AS participant_read").
		Joins("JOIN participants ON participants.conversation_id = conversations.id").
		Where("participants.counterparty_id = ?", counterpartyID).
		Order("conversations.last_message_at DESC")

	if state != nil {
		query = query.Where("conversations.state = ?", *state)
	}

	var rows []conversationRow
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]domain.Conversation, 0, len(rows))
	for _, row := range rows {
		conv := row.Conversation
		conv.Read = row.ParticipantRead
		out = append(out, conv)
	}
	return out, nil
}

// GetConversationWithMessages loads the conversation, its participants and
// its messages (creation order ascending) with attachments.
func (s *Store) GetConversationWithMessages(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := s.orm.WithContext(ctx).First(&conv, "id = ?", conversationID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}

	var participants []*domain.Participant
	if err := s.orm.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("counterparty_id").
		Find(&participants).Error; err != nil {
		return nil, err
	}
	conv.Participants = participants

	var messages []*domain.Message
	if err := s.orm.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error; err != nil {
		return nil, err
	}

	if len(messages) > 0 {
		ids := make([]string, 0, len(messages))
		byID := make(map[string]*domain.Message, len(messages))
		for _, msg := range messages {
			ids = append(ids, msg.ID)
			byID[msg.ID] = msg
		}

		var attachments []*domain.Attachment
		if err := s.orm.WithContext(ctx).
			Where("message_id IN ?", ids).
			Find(&attachments).Error; err != nil {
			return nil, err
		}
		for _, att := range attachments {
			if msg, ok := byID[att.MessageID]; ok {
				msg.Attachments = append(msg.Attachments, att)
			}
		}
	}
	conv.Messages = messages

	return &conv, nil
}

// AppendReply appends the message and resets every non-sender participant
// to unread inside one transaction, with the conversation row locked so
// concurrent replies serialize.
func (s *Store) AppendReply(ctx context.Context, conversationID string, msg *domain.Message) error {
	return s.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conv domain.Conversation
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&conv, "id = ?", conversationID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return storage.ErrConversationNotFound
		}
		if err != nil {
			return err
		}
		if conv.State == domain.ConversationClosed {
			return storage.ErrConversationClosed
		}

		var senderRows int64
		if err := tx.Model(&domain.Participant{}).
			Where("conversation_id = ? AND counterparty_id = ?", conversationID, msg.SenderID).
			Count(&senderRows).Error; err != nil {
			return err
		}
		if senderRows == 0 {
			return storage.ErrParticipantNotFound
		}

		if msg.QuotedMessageID != nil {
			var quotedRows int64
			if err := tx.Model(&domain.Message{}).
				Where("conversation_id = ? AND id = ?", conversationID, *msg.QuotedMessageID).
				Count(&quotedRows).Error; err != nil {
				return err
			}
			if quotedRows == 0 {
				return storage.ErrQuotedMessageNotFound
			}
		}

		if err := insertMessage(tx, msg); err != nil {
			return err
		}

		if err := tx.Model(&domain.Participant{}).
			Where("conversation_id = ? AND counterparty_id <> ?", conversationID, msg.SenderID).
			Update("is_read", false).Error; err != nil {
			return err
		}
		if err := tx.Model(&domain.Participant{}).
			Where("conversation_id = ? AND counterparty_id = ?", conversationID, msg.SenderID).
			Updates(map[string]interface{}{"is_read": true, "last_read_at": msg.CreatedAt}).Error; err != nil {
			return err
		}

		return tx.Model(&domain.Conversation{}).
			Where("id = ?", conversationID).
			Updates(map[string]interface{}{
				"last_message_at": msg.CreatedAt,
				"revision":        gorm.Expr("revision + 1"),
			}).Error
	})
}

// SetRead flips one participant's read flag. A second call is a no-op and
// last_read_at never decreases.
func (s *Store) SetRead(ctx context.Context, conversationID, counterpartyID string, at time.Time) error {
	return s.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&domain.Participant{}).
			Where("conversation_id = ? AND counterparty_id = ? AND is_read = ?", conversationID, counterpartyID, false).
			Updates(map[string]interface{}{"is_read": true, "last_read_at": at})
		if result.Error != nil {
			return result.Error
		}

		if result.RowsAffected == 0 {
			// either already read (fine) or not a participant at all
			var rows int64
			if err := tx.Model(&domain.Participant{}).
				Where("conversation_id = ? AND counterparty_id = ?", conversationID, counterpartyID).
				Count(&rows).Error; err != nil {
				return err
			}
			if rows == 0 {
				return storage.ErrParticipantNotFound
			}
			return nil
		}

		return tx.Model(&domain.Conversation{}).
			Where("id = ?", conversationID).
			Update("revision", gorm.Expr("revision + 1")).Error
	})
}

// SetLifecycle toggles the open/closed state; setting the current state
// changes nothing.
func (s *Store) SetLifecycle(ctx context.Context, conversationID string, state domain.ConversationState) error {
	return s.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&domain.Conversation{}).
			Where("id = ? AND state <> ?", conversationID, state).
			Updates(map[string]interface{}{
				"state":    state,
				"revision": gorm.Expr("revision + 1"),
			})
		if result.Error != nil {
			return result.Error
		}

		if result.RowsAffected == 0 {
			var rows int64
			if err := tx.Model(&domain.Conversation{}).
				Where("id = ?", conversationID).
				Count(&rows).Error; err != nil {
				return err
			}
			if rows == 0 {
				return storage.ErrConversationNotFound
			}
		}
		return nil
	})
}

// IsParticipant reports whether the counterparty belongs to the conversation.
func (s *Store) IsParticipant(ctx context.Context, conversationID, counterpartyID string) (bool, error) {
	var rows int64
	err := s.orm.WithContext(ctx).Model(&domain.Participant{}).
		Where("conversation_id = ? AND counterparty_id = ?", conversationID, counterpartyID).
		Count(&rows).Error
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// UnreadCount returns how many of the participant's conversations are unread.
func (s *Store) UnreadCount(ctx context.Context, counterpartyID string) (int, error) {
	var rows int64
	err := s.orm.WithContext(ctx).Model(&domain.Participant{}).
		Where("counterparty_id = ? AND is_read = ?", counterpartyID, false).
		Count(&rows).Error
	return int(rows), err
}

// GetAttachment returns one attachment row by id.
func (s *Store) GetAttachment(ctx context.Context, attachmentID string) (*domain.Attachment, error) {
	var att domain.Attachment
	err := s.orm.WithContext(ctx).First(&att, "id = ?", attachmentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrAttachmentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &att, nil
}

// Revision returns the conversation's current revision counter.
func (s *Store) Revision(ctx context.Context, conversationID string) (uint64, error) {
	var conv domain.Conversation
	err := s.orm.WithContext(ctx).Select("revision").First(&conv, "id = ?", conversationID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, storage.ErrConversationNotFound
	}
	if err != nil {
		return 0, err
	}
	return conv.Revision, nil
}

func insertMessage(tx *gorm.DB, msg *domain.Message) error {
	if err := tx.Create(msg).Error; err != nil {
		return err
	}
	for _, att := range msg.Attachments {
		att.MessageID = msg.ID
		if err := tx.Create(att).Error; err != nil {
			return err
		}
	}
	return nil
}
