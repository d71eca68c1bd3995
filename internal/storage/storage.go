package storage

import (
	"context"
	"errors"
	"time"

	"monogest/backend/internal/domain"
)

var (
	// ErrConversationNotFound means no conversation exists with the given id.
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrMessageNotFound means no message exists with the given id.
	ErrMessageNotFound = errors.New("message not found")
	// ErrParticipantNotFound means the counterparty is not a participant of the conversation.
	ErrParticipantNotFound = errors.New("participant not found")
	// ErrAttachmentNotFound means no attachment exists with the given id.
	ErrAttachmentNotFound = errors.New("attachment not found")
	// ErrConversationClosed means a reply was attempted on a closed conversation.
	ErrConversationClosed = errors.New("conversation is closed")
	// ErrQuotedMessageNotFound means a quoted-message id does not belong to the target conversation.
	ErrQuotedMessageNotFound = errors.New("quoted message not found in conversation")
)

// ConversationRepository is the command surface over conversation,
// participant, message and attachment rows. Invariants (participant
// fan-out, append-only messages, atomic unread reset) are enforced here
// rather than by callers.
type ConversationRepository interface {
	// CreateConversation persists a conversation, its participant set and
	// its first message as one unit. The participant set must already
	// include the initiator.
	CreateConversation(ctx context.Context, conv *domain.Conversation, participantIDs []string, first *domain.Message) error

	// ListConversationsForParticipant returns the conversations the
	// counterparty takes part in, ordered by last-message-at descending,
	// each annotated with that participant's own read flag. A nil state
	// filter returns every lifecycle state.
	ListConversationsForParticipant(ctx context.Context, counterpartyID string, state *domain.ConversationState) ([]domain.Conversation, error)

	// GetConversationWithMessages returns the conversation with its
	// participants and messages ordered by creation time ascending,
	// attachments included.
	GetConversationWithMessages(ctx context.Context, conversationID string) (*domain.Conversation, error)

	// AppendReply appends a message and resets every non-sender
	// participant's read flag to false in the same logical unit. It fails
	// with ErrConversationClosed on closed conversations and with
	// ErrQuotedMessageNotFound when msg.QuotedMessageID does not reference
	// a message already in the conversation.
	AppendReply(ctx context.Context, conversationID string, msg *domain.Message) error

	// SetRead marks the conversation read for one participant. Idempotent:
	// marking an already-read conversation changes nothing. last_read_at
	// never decreases.
	SetRead(ctx context.Context, conversationID, counterpartyID string, at time.Time) error

	// SetLifecycle toggles the open/closed state. Setting the current
	// state is a no-op.
	SetLifecycle(ctx context.Context, conversationID string, state domain.ConversationState) error

	// IsParticipant reports whether the counterparty belongs to the conversation.
	IsParticipant(ctx context.Context, conversationID, counterpartyID string) (bool, error)

	// UnreadCount returns how many of the participant's conversations are unread.
	UnreadCount(ctx context.Context, counterpartyID string) (int, error)

	// GetAttachment returns one attachment row by id.
	GetAttachment(ctx context.Context, attachmentID string) (*domain.Attachment, error)

	// Revision returns the conversation's current revision counter.
	Revision(ctx context.Context, conversationID string) (uint64, error)
}

// Store is the full persistence surface the application wires at startup.
type Store interface {
	ConversationRepository

	Close() error
	Health() error
}
