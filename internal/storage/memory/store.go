package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"monogest/backend/internal/domain"
	"monogest/backend/internal/storage"
)

// Store is the in-memory implementation of storage.Store, used by tests
// and by deployments without a configured database. A single RWMutex
// guards every map so reply append and unread reset happen as one unit.
type Store struct {
	mu            sync.RWMutex
	conversations map[string]*domain.Conversation
	participants  map[string]map[string]*domain.Participant // conversation id -> counterparty id
	messages      map[string][]*domain.Message               // conversation id -> append-only, creation order
	attachments   map[string]*domain.Attachment
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		conversations: make(map[string]*domain.Conversation),
		participants:  make(map[string]map[string]*domain.Participant),
		messages:      make(map[string][]*domain.Message),
		attachments:   make(map[string]*domain.Attachment),
	}
}

// CreateConversation persists the conversation, its deduplicated participant
// set and the first message as one unit.
func (s *Store) CreateConversation(_ context.Context, conv *domain.Conversation, participantIDs []string, first *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := cloneConversation(conv)
	stored.Revision = 1
	stored.LastMessageAt = first.CreatedAt

	members := make(map[string]*domain.Participant, len(participantIDs))
	for _, id := range participantIDs {
		if id == "" {
			continue
		}
		if _, dup := members[id]; dup {
			continue
		}
		p := &domain.Participant{
			ConversationID: stored.ID,
			CounterpartyID: id,
		}
		if id == first.SenderID {
			p.Read = true
			at := first.CreatedAt
			p.LastReadAt = &at
		}
		members[id] = p
	}

	s.conversations[stored.ID] = stored
	s.participants[stored.ID] = members
	s.appendMessageLocked(stored.ID, first)

	conv.Revision = stored.Revision
	conv.LastMessageAt = stored.LastMessageAt
	return nil
}

// ListConversationsForParticipant returns the counterparty's conversations
// ordered by last-message-at descending, annotated with that participant's
// own read flag.
func (s *Store) ListConversationsForParticipant(_ context.Context, counterpartyID string, state *domain.ConversationState) ([]domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Conversation
	for id, members := range s.participants {
		member, ok := members[counterpartyID]
		if !ok {
			continue
		}
		conv := s.conversations[id]
		if state != nil && conv.State != *state {
			continue
		}
		view := *cloneConversation(conv)
		view.Read = member.Read
		out = append(out, view)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].LastMessageAt.After(out[j].LastMessageAt)
	})
	return out, nil
}

// GetConversationWithMessages returns the conversation, its participants and
// its ordered messages with attachments.
func (s *Store) GetConversationWithMessages(_ context.Context, conversationID string) (*domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		return nil, storage.ErrConversationNotFound
	}

	view := cloneConversation(conv)
	for _, member := range s.participants[conversationID] {
		m := *member
		view.Participants = append(view.Participants, &m)
	}
	sort.Slice(view.Participants, func(i, j int) bool {
		return view.Participants[i].CounterpartyID < view.Participants[j].CounterpartyID
	})

	for _, msg := range s.messages[conversationID] {
		view.Messages = append(view.Messages, cloneMessage(msg))
	}
	return view, nil
}

// AppendReply appends the message and flips every non-sender participant to
// unread under the same lock section, so no reader ever sees the new
// message with stale read flags.
func (s *Store) AppendReply(_ context.Context, conversationID string, msg *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		return storage.ErrConversationNotFound
	}
	if conv.State == domain.ConversationClosed {
		return storage.ErrConversationClosed
	}

	members := s.participants[conversationID]
	if _, ok := members[msg.SenderID]; !ok {
		return storage.ErrParticipantNotFound
	}

	if msg.QuotedMessageID != nil {
		if !s.messageInConversationLocked(conversationID, *msg.QuotedMessageID) {
			return storage.ErrQuotedMessageNotFound
		}
	}

	s.appendMessageLocked(conversationID, msg)
	conv.LastMessageAt = msg.CreatedAt
	conv.Revision++

	for id, member := range members {
		if id == msg.SenderID {
			member.Read = true
			at := msg.CreatedAt
			member.LastReadAt = &at
			continue
		}
		member.Read = false
	}
	return nil
}

// SetRead marks the conversation read for one participant. Marking an
// already-read conversation is a no-op; last_read_at never goes backwards.
func (s *Store) SetRead(_ context.Context, conversationID, counterpartyID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		return storage.ErrConversationNotFound
	}
	member, ok := s.participants[conversationID][counterpartyID]
	if !ok {
		return storage.ErrParticipantNotFound
	}

	if member.Read {
		return nil
	}
	member.Read = true
	if member.LastReadAt == nil || at.After(*member.LastReadAt) {
		member.LastReadAt = &at
	}
	conv.Revision++
	return nil
}

// SetLifecycle toggles the lifecycle state. Setting the current state is a no-op.
func (s *Store) SetLifecycle(_ context.Context, conversationID string, state domain.ConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		return storage.ErrConversationNotFound
	}
	if conv.State == state {
		return nil
	}
	conv.State = state
	conv.Revision++
	return nil
}

// IsParticipant reports whether the counterparty belongs to the conversation.
func (s *Store) IsParticipant(_ context.Context, conversationID, counterpartyID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.conversations[conversationID]; !ok {
		return false, storage.ErrConversationNotFound
	}
	_, ok := s.participants[conversationID][counterpartyID]
	return ok, nil
}

// UnreadCount returns how many of the participant's conversations are unread.
func (s *Store) UnreadCount(_ context.Context, counterpartyID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, members := range s.participants {
		if member, ok := members[counterpartyID]; ok && !member.Read {
			count++
		}
	}
	return count, nil
}

// GetAttachment returns one attachment row by id.
func (s *Store) GetAttachment(_ context.Context, attachmentID string) (*domain.Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	att, ok := s.attachments[attachmentID]
	if !ok {
		return nil, storage.ErrAttachmentNotFound
	}
	copied := *att
	return &copied, nil
}

// Revision returns the conversation's current revision counter.
func (s *Store) Revision(_ context.Context, conversationID string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		return 0, storage.ErrConversationNotFound
	}
	return conv.Revision, nil
}

// Close implements storage.Store.
func (s *Store) Close() error { return nil }

// Health implements storage.Store.
func (s *Store) Health() error { return nil }

func (s *Store) appendMessageLocked(conversationID string, msg *domain.Message) {
	stored := cloneMessage(msg)
	s.messages[conversationID] = append(s.messages[conversationID], stored)
	for _, att := range stored.Attachments {
		s.attachments[att.ID] = att
	}
}

func (s *Store) messageInConversationLocked(conversationID, messageID string) bool {
	for _, msg := range s.messages[conversationID] {
		if msg.ID == messageID {
			return true
		}
	}
	return false
}

func cloneConversation(conv *domain.Conversation) *domain.Conversation {
	copied := *conv
	copied.Participants = nil
	copied.Messages = nil
	return &copied
}

func cloneMessage(msg *domain.Message) *domain.Message {
	copied := *msg
	if msg.QuotedMessageID != nil {
		id := *msg.QuotedMessageID
		copied.QuotedMessageID = &id
	}
	copied.Attachments = make([]*domain.Attachment, 0, len(msg.Attachments))
	for _, att := range msg.Attachments {
		a := *att
		copied.Attachments = append(copied.Attachments, &a)
	}
	return &copied
}
