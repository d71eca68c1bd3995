package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"monogest/backend/internal/directory"
	"monogest/backend/internal/domain"
	"monogest/backend/internal/pool"
	"monogest/backend/internal/storage"
)

// quotedPreviewLimit caps the quoted-body slice embedded in replies.
const quotedPreviewLimit = 120

// Notifier receives successful replies for near-real-time delivery
// (websocket hub, redis topic). Delivery is best effort and never blocks
// or fails the send.
type Notifier interface {
	NotifyNewMessage(conversationID string, msg *domain.Message)
}

// ConversationService owns conversation semantics: creation with fan-out,
// reply appending, read-state mutation and the open/close lifecycle.
type ConversationService struct {
	repo     storage.ConversationRepository
	gateway  *AttachmentGateway
	resolver *RecipientResolver
	dir      directory.Directory
	notifier Notifier
	workers  *pool.WorkerPool
	log      *zap.Logger
}

// NewConversationService wires the conversation service. notifier and
// workers may be nil; replies then skip push delivery.
func NewConversationService(
	repo storage.ConversationRepository,
	gateway *AttachmentGateway,
	resolver *RecipientResolver,
	dir directory.Directory,
	log *zap.Logger,
) *ConversationService {
	return &ConversationService{
		repo:     repo,
		gateway:  gateway,
		resolver: resolver,
		dir:      dir,
		log:      log,
	}
}

// SetNotifier attaches the push-delivery sink and the worker pool that
// drives it.
func (s *ConversationService) SetNotifier(notifier Notifier, workers *pool.WorkerPool) {
	s.notifier = notifier
	s.workers = workers
}

// CreateConversationInput is the client-side compose: the initiator plus
// the implicit staff counterpart set.
type CreateConversationInput struct {
	InitiatorID   string
	Subject       string
	Body          string
	Origin        string
	OriginContext string
	Files         []UploadFile
}

// Create opens a conversation between the initiator and their staff
// counterparts, appending the first message.
func (s *ConversationService) Create(ctx context.Context, input CreateConversationInput) (*domain.Conversation, error) {
	if strings.TrimSpace(input.Subject) == "" {
		return nil, wrapValidation("subject is required")
	}
	if strings.TrimSpace(input.Body) == "" {
		return nil, wrapValidation("body is required")
	}

	staff, err := s.resolver.StaffCounterpartsFor(ctx, input.InitiatorID)
	if err != nil {
		return nil, err
	}
	if len(staff) == 0 {
		return nil, wrapValidation("no staff counterpart available")
	}

	participants := append([]string{input.InitiatorID}, staff...)
	return s.create(ctx, input, participants)
}

// CreateWithRecipientsInput is the explicit-recipient compose used by staff
// and by group sends after resolution.
type CreateWithRecipientsInput struct {
	CreateConversationInput
	RecipientIDs []string
}

// CreateWithRecipients opens a conversation whose participant set is
// exactly recipients ∪ {initiator}.
func (s *ConversationService) CreateWithRecipients(ctx context.Context, input CreateWithRecipientsInput) (*domain.Conversation, error) {
	if strings.TrimSpace(input.Subject) == "" {
		return nil, wrapValidation("subject is required")
	}
	if strings.TrimSpace(input.Body) == "" {
		return nil, wrapValidation("body is required")
	}
	if len(input.RecipientIDs) == 0 {
		return nil, wrapValidation("recipients are required")
	}

	others := 0
	for _, id := range input.RecipientIDs {
		if id != input.InitiatorID {
			others++
		}
	}
	if others == 0 {
		return nil, wrapValidation("at least one recipient besides the initiator is required")
	}

	participants := append([]string{input.InitiatorID}, input.RecipientIDs...)
	return s.create(ctx, input.CreateConversationInput, participants)
}

func (s *ConversationService) create(ctx context.Context, input CreateConversationInput, participantIDs []string) (*domain.Conversation, error) {
	now := time.Now().UTC()
	conv := &domain.Conversation{
		ID:            uuid.NewString(),
		Subject:       strings.TrimSpace(input.Subject),
		Origin:        input.Origin,
		OriginContext: input.OriginContext,
		State:         domain.ConversationOpen,
		InitiatorID:   input.InitiatorID,
		CreatedAt:     now,
	}

	// The conversation id is generated before persistence, so uploads are
	// namespaced by the real owner instead of a temporary context.
	attachments, err := s.gateway.UploadAll(ctx, conv.ID, input.Files)
	if err != nil {
		return nil, err
	}

	first := &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		SenderID:       input.InitiatorID,
		Body:           input.Body,
		CreatedAt:      now,
		Attachments:    attachments,
	}
	for _, att := range attachments {
		att.MessageID = first.ID
	}

	if err := s.repo.CreateConversation(ctx, conv, participantIDs, first); err != nil {
		s.gateway.Discard(attachments)
		return nil, err
	}

	s.log.Info("conversation created",
		zap.String("conversation_id", conv.ID),
		zap.String("initiator_id", input.InitiatorID),
		zap.String("origin", input.Origin),
		zap.Int("participants", len(participantIDs)))
	return conv, nil
}

// List returns the participant's conversations, newest activity first,
// annotated with their own read flag and the initiator's display identity.
func (s *ConversationService) List(ctx context.Context, counterpartyID string, state *domain.ConversationState) ([]domain.Conversation, error) {
	conversations, err := s.repo.ListConversationsForParticipant(ctx, counterpartyID, state)
	if err != nil {
		return nil, err
	}

	names := map[string]string{}
	for i := range conversations {
		conversations[i].InitiatorName = s.displayName(ctx, names, conversations[i].InitiatorID)
	}
	return conversations, nil
}

// Get returns the conversation with ordered messages, each annotated with
// the sender's display identity and, when present, a quoted preview.
func (s *ConversationService) Get(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	conv, err := s.repo.GetConversationWithMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	names := map[string]string{}
	byID := make(map[string]*domain.Message, len(conv.Messages))
	for _, msg := range conv.Messages {
		byID[msg.ID] = msg
	}

	for _, msg := range conv.Messages {
		msg.SenderName = s.displayName(ctx, names, msg.SenderID)
		if msg.QuotedMessageID == nil {
			continue
		}
		quoted, ok := byID[*msg.QuotedMessageID]
		if !ok {
			// referential integrity is enforced on append; a miss here
			// means outside interference, so degrade instead of failing
			s.log.Warn("quoted message missing from conversation",
				zap.String("conversation_id", conversationID),
				zap.String("quoted_id", *msg.QuotedMessageID))
			continue
		}
		msg.Quoted = &domain.QuotedPreview{
			MessageID:  quoted.ID,
			SenderID:   quoted.SenderID,
			SenderName: s.displayName(ctx, names, quoted.SenderID),
			Body:       truncateBody(quoted.Body),
		}
	}
	conv.InitiatorName = s.displayName(ctx, names, conv.InitiatorID)
	return conv, nil
}

// ReplyInput is one outgoing reply.
type ReplyInput struct {
	ConversationID  string
	SenderID        string
	Body            string
	Files           []UploadFile
	QuotedMessageID *string
}

// Reply appends a message to an open conversation. All attachments must
// upload before the message is created; any failure aborts the send with
// no partial message.
func (s *ConversationService) Reply(ctx context.Context, input ReplyInput) (*domain.Message, error) {
	if strings.TrimSpace(input.Body) == "" {
		return nil, wrapValidation("body is required")
	}

	attachments, err := s.gateway.UploadAll(ctx, input.ConversationID, input.Files)
	if err != nil {
		return nil, err
	}

	msg := &domain.Message{
		ID:              uuid.NewString(),
		ConversationID:  input.ConversationID,
		SenderID:        input.SenderID,
		Body:            input.Body,
		CreatedAt:       time.Now().UTC(),
		QuotedMessageID: input.QuotedMessageID,
		Attachments:     attachments,
	}
	for _, att := range attachments {
		att.MessageID = msg.ID
	}

	if err := s.repo.AppendReply(ctx, input.ConversationID, msg); err != nil {
		s.gateway.Discard(attachments)
		return nil, err
	}

	s.notify(input.ConversationID, msg)
	return msg, nil
}

// MarkRead marks the conversation read for the given participant.
// Idempotent: callers may fire it on every render without harm.
func (s *ConversationService) MarkRead(ctx context.Context, conversationID, counterpartyID string) error {
	return s.repo.SetRead(ctx, conversationID, counterpartyID, time.Now().UTC())
}

// Close closes the conversation; closing a closed one is a no-op.
func (s *ConversationService) Close(ctx context.Context, conversationID string) error {
	return s.repo.SetLifecycle(ctx, conversationID, domain.ConversationClosed)
}

// Reopen reopens the conversation; reopening an open one is a no-op.
func (s *ConversationService) Reopen(ctx context.Context, conversationID string) error {
	return s.repo.SetLifecycle(ctx, conversationID, domain.ConversationOpen)
}

// UnreadCount returns the participant's unread-conversation badge count.
func (s *ConversationService) UnreadCount(ctx context.Context, counterpartyID string) (int, error) {
	return s.repo.UnreadCount(ctx, counterpartyID)
}

// notify hands the reply to the push sink on a pooled worker. Dropped
// notifications are fine: the poll reconciliation pass catches up.
func (s *ConversationService) notify(conversationID string, msg *domain.Message) {
	if s.notifier == nil {
		return
	}
	deliver := func() {
		s.notifier.NotifyNewMessage(conversationID, msg)
	}
	if s.workers == nil {
		go deliver()
		return
	}
	if !s.workers.TrySubmit(deliver) {
		s.log.Warn("notification queue full, dropping push",
			zap.String("conversation_id", conversationID))
	}
}

func (s *ConversationService) displayName(ctx context.Context, cache map[string]string, counterpartyID string) string {
	if name, ok := cache[counterpartyID]; ok {
		return name
	}
	cp, err := s.dir.GetCounterparty(ctx, counterpartyID)
	if err != nil {
		// a directory gap must not break the mailbox view
		cache[counterpartyID] = ""
		return ""
	}
	cache[counterpartyID] = cp.DisplayName
	return cp.DisplayName
}

func truncateBody(body string) string {
	if utf8.RuneCountInString(body) <= quotedPreviewLimit {
		return body
	}
	runes := []rune(body)
	return string(runes[:quotedPreviewLimit]) + "…"
}

func wrapValidation(reason string) error {
	return &validationError{reason: reason}
}

// validationError carries the field-level reason while matching
// ErrValidation through errors.Is.
type validationError struct {
	reason string
}

func (e *validationError) Error() string { return "validation failed: " + e.reason }

func (e *validationError) Unwrap() error { return ErrValidation }
