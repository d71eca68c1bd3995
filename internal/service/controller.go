package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"monogest/backend/internal/cache"
	"monogest/backend/internal/domain"
	"monogest/backend/internal/monitoring"
	"monogest/backend/internal/storage"
)

// ListCache is the shared conversation-list cache, Redis in production.
// A nil ListCache disables cross-instance caching; the in-process
// snapshot cache still works.
type ListCache interface {
	CacheConversationList(ctx context.Context, counterpartyID string, conversations []domain.Conversation, ttl time.Duration) error
	GetCachedConversationList(ctx context.Context, counterpartyID string) ([]domain.Conversation, bool)
	InvalidateConversationList(ctx context.Context, counterpartyIDs ...string) error
}

// MailboxController is the facade the transport layer talks to. It
// enforces participant access, keeps the snapshot cache authoritative
// after every mutation and feeds the sync scheduler, so handlers never
// touch the store or the cache directly.
type MailboxController struct {
	conv      *ConversationService
	gateway   *AttachmentGateway
	resolver  *RecipientResolver
	repo      storage.ConversationRepository
	snapshots *cache.SnapshotCache
	listCache ListCache
	listTTL   time.Duration
	metrics   *monitoring.Metrics
	log       *zap.Logger

	scheduler *Scheduler

	mu     sync.Mutex
	active map[string]bool // counterparty ids with a live mailbox view
}

// NewMailboxController wires the controller. listCache may be nil.
func NewMailboxController(
	conv *ConversationService,
	gateway *AttachmentGateway,
	resolver *RecipientResolver,
	repo storage.ConversationRepository,
	snapshots *cache.SnapshotCache,
	listCache ListCache,
	listTTL time.Duration,
	metrics *monitoring.Metrics,
	log *zap.Logger,
) *MailboxController {
	return &MailboxController{
		conv:      conv,
		gateway:   gateway,
		resolver:  resolver,
		repo:      repo,
		snapshots: snapshots,
		listCache: listCache,
		listTTL:   listTTL,
		metrics:   metrics,
		log:       log,
		active:    make(map[string]bool),
	}
}

// SetScheduler attaches the sync scheduler. The scheduler needs the
// controller as its Refresher, so this runs after both are constructed.
func (c *MailboxController) SetScheduler(s *Scheduler) {
	c.scheduler = s
}

// List returns the participant's conversations, newest activity first.
// Unfiltered lists are served from the shared cache when fresh.
func (c *MailboxController) List(ctx context.Context, counterpartyID string, state *domain.ConversationState) ([]domain.Conversation, error) {
	c.markActive(counterpartyID)

	if state == nil && c.listCache != nil {
		if cached, ok := c.listCache.GetCachedConversationList(ctx, counterpartyID); ok {
			return cached, nil
		}
	}

	conversations, err := c.conv.List(ctx, counterpartyID, state)
	if err != nil {
		return nil, err
	}

	if state == nil {
		c.snapshots.SetList(counterpartyID, conversations)
		c.cacheList(ctx, counterpartyID, conversations)
	}
	return conversations, nil
}

// OpenConversation returns the full thread and puts the scheduler into
// the watching state for it. Non-participants are rejected before any
// data is read.
func (c *MailboxController) OpenConversation(ctx context.Context, counterpartyID, conversationID string) (*domain.Conversation, error) {
	if err := c.requireParticipant(ctx, conversationID, counterpartyID); err != nil {
		return nil, err
	}

	conv, err := c.conv.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	c.snapshots.ApplyIfNewer(conv)

	c.markActive(counterpartyID)
	if c.scheduler != nil {
		c.scheduler.Watch(conversationID)
	}
	return conv, nil
}

// CloseView tells the scheduler the participant navigated away from the
// thread. The list view stays live.
func (c *MailboxController) CloseView(conversationID string) {
	if c.scheduler != nil {
		c.scheduler.Unwatch(conversationID)
	}
}

// Leave drops the participant from the refresh set, called when their
// session ends.
func (c *MailboxController) Leave(counterpartyID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.active, counterpartyID)
}

// Compose opens a conversation between a client and their staff
// counterparts.
func (c *MailboxController) Compose(ctx context.Context, input CreateConversationInput) (*domain.Conversation, error) {
	conv, err := c.conv.Create(ctx, input)
	if err != nil {
		c.recordUploadOutcome(len(input.Files), err)
		return nil, err
	}
	c.recordUploadOutcome(len(input.Files), nil)
	c.metrics.ConversationsCreated.Inc()
	c.afterMutation(ctx, conv.ID)
	return conv, nil
}

// ComposeToRecipients opens a conversation with an explicit recipient
// set, the staff compose path.
func (c *MailboxController) ComposeToRecipients(ctx context.Context, input CreateWithRecipientsInput) (*domain.Conversation, error) {
	conv, err := c.conv.CreateWithRecipients(ctx, input)
	if err != nil {
		c.recordUploadOutcome(len(input.Files), err)
		return nil, err
	}
	c.recordUploadOutcome(len(input.Files), nil)
	c.metrics.ConversationsCreated.Inc()
	c.afterMutation(ctx, conv.ID)
	return conv, nil
}

// ComposeToGroup resolves a recipient group and opens one conversation
// addressed to every member.
func (c *MailboxController) ComposeToGroup(ctx context.Context, groupID string, input CreateConversationInput) (*domain.Conversation, error) {
	recipients, err := c.resolver.ResolveGroup(ctx, groupID, input.InitiatorID)
	if err != nil {
		return nil, err
	}
	return c.ComposeToRecipients(ctx, CreateWithRecipientsInput{
		CreateConversationInput: input,
		RecipientIDs:            recipients,
	})
}

// Reply appends a message on behalf of a participant, then re-reads the
// conversation so the snapshot cache reflects the store's authoritative
// ordering and read flags rather than an optimistic local guess.
func (c *MailboxController) Reply(ctx context.Context, input ReplyInput) (*domain.Message, error) {
	if err := c.requireParticipant(ctx, input.ConversationID, input.SenderID); err != nil {
		return nil, err
	}

	msg, err := c.conv.Reply(ctx, input)
	if err != nil {
		c.recordUploadOutcome(len(input.Files), err)
		return nil, err
	}
	c.recordUploadOutcome(len(input.Files), nil)
	c.metrics.MessagesSent.Inc()
	c.afterMutation(ctx, input.ConversationID)
	return msg, nil
}

// MarkRead marks the conversation read for the participant. Safe to call
// on every render.
func (c *MailboxController) MarkRead(ctx context.Context, conversationID, counterpartyID string) error {
	if err := c.conv.MarkRead(ctx, conversationID, counterpartyID); err != nil {
		return err
	}
	c.metrics.MarkReadCalls.Inc()
	c.invalidateLists(ctx, counterpartyID)
	c.refreshSnapshot(ctx, conversationID)
	return nil
}

// CloseConversation closes the thread for everyone. Only participants
// may close it; closing twice is a no-op.
func (c *MailboxController) CloseConversation(ctx context.Context, conversationID, counterpartyID string) error {
	if err := c.requireParticipant(ctx, conversationID, counterpartyID); err != nil {
		return err
	}
	if err := c.conv.Close(ctx, conversationID); err != nil {
		return err
	}
	c.afterMutation(ctx, conversationID)
	return nil
}

// ReopenConversation reopens a closed thread.
func (c *MailboxController) ReopenConversation(ctx context.Context, conversationID, counterpartyID string) error {
	if err := c.requireParticipant(ctx, conversationID, counterpartyID); err != nil {
		return err
	}
	if err := c.conv.Reopen(ctx, conversationID); err != nil {
		return err
	}
	c.afterMutation(ctx, conversationID)
	return nil
}

// UnreadCount returns the participant's unread badge count.
func (c *MailboxController) UnreadCount(ctx context.Context, counterpartyID string) (int, error) {
	return c.conv.UnreadCount(ctx, counterpartyID)
}

// EligibleRecipients returns who the requester may address in the
// composer picker.
func (c *MailboxController) EligibleRecipients(ctx context.Context, requesterID string) ([]domain.Counterparty, error) {
	return c.resolver.ResolveEligibleCounterparties(ctx, requesterID)
}

// AttachmentURL resolves a download URL for the attachment, allowing
// only participants of the owning conversation. Locators are namespaced
// by conversation id, so ownership comes from the locator itself.
func (c *MailboxController) AttachmentURL(ctx context.Context, counterpartyID, attachmentID string) (string, error) {
	att, err := c.repo.GetAttachment(ctx, attachmentID)
	if err != nil {
		return "", err
	}

	conversationID := strings.SplitN(att.StorageLocator, "/", 2)[0]
	if err := c.requireParticipant(ctx, conversationID, counterpartyID); err != nil {
		return "", err
	}
	return c.gateway.ResolveDownloadURL(att.StorageLocator), nil
}

// RefreshList implements Refresher: re-read every live participant's
// list so badge counts and previews converge even when a push was lost.
func (c *MailboxController) RefreshList(ctx context.Context) error {
	c.mu.Lock()
	ids := make([]string, 0, len(c.active))
	for id := range c.active {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	var firstErr error
	for _, id := range ids {
		conversations, err := c.conv.List(ctx, id, nil)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		c.snapshots.SetList(id, conversations)
		c.cacheList(ctx, id, conversations)
	}
	return firstErr
}

// RefreshConversation implements Refresher for the watched thread.
func (c *MailboxController) RefreshConversation(ctx context.Context, conversationID string) error {
	conv, err := c.conv.Get(ctx, conversationID)
	if err != nil {
		return err
	}
	c.snapshots.ApplyIfNewer(conv)
	return nil
}

func (c *MailboxController) requireParticipant(ctx context.Context, conversationID, counterpartyID string) error {
	ok, err := c.repo.IsParticipant(ctx, conversationID, counterpartyID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

// afterMutation re-syncs the snapshot and drops every participant's
// cached list, since any of their views may have changed.
func (c *MailboxController) afterMutation(ctx context.Context, conversationID string) {
	conv, err := c.conv.Get(ctx, conversationID)
	if err != nil {
		c.log.Warn("post-mutation refresh failed",
			zap.String("conversation_id", conversationID),
			zap.Error(err))
		return
	}
	c.snapshots.ApplyIfNewer(conv)

	ids := make([]string, 0, len(conv.Participants))
	for _, p := range conv.Participants {
		ids = append(ids, p.CounterpartyID)
	}
	c.invalidateLists(ctx, ids...)
}

func (c *MailboxController) refreshSnapshot(ctx context.Context, conversationID string) {
	if err := c.RefreshConversation(ctx, conversationID); err != nil {
		c.log.Warn("snapshot refresh failed",
			zap.String("conversation_id", conversationID),
			zap.Error(err))
	}
}

func (c *MailboxController) invalidateLists(ctx context.Context, counterpartyIDs ...string) {
	if c.listCache == nil || len(counterpartyIDs) == 0 {
		return
	}
	if err := c.listCache.InvalidateConversationList(ctx, counterpartyIDs...); err != nil {
		c.log.Warn("list cache invalidation failed", zap.Error(err))
	}
}

func (c *MailboxController) cacheList(ctx context.Context, counterpartyID string, conversations []domain.Conversation) {
	if c.listCache == nil {
		return
	}
	if err := c.listCache.CacheConversationList(ctx, counterpartyID, conversations, c.listTTL); err != nil {
		c.log.Warn("list cache write failed", zap.Error(err))
	}
}

func (c *MailboxController) markActive(counterpartyID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active[counterpartyID] = true
}

func (c *MailboxController) recordUploadOutcome(fileCount int, err error) {
	if fileCount == 0 {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.metrics.UploadsTotal.WithLabelValues(result).Add(float64(fileCount))
}
