// Package cache holds the in-process snapshot cache the mailbox controller
// serves views from. Every conversation carries a monotonic revision, so a
// refresh result is applied only when it is at least as new as what is
// already held: concurrent polls may complete in any order without an older
// result overwriting a newer one.
package cache

import (
	"sync"
	"time"

	"monogest/backend/internal/domain"
)

// ConversationSnapshot is one cached conversation with its fetch time.
type ConversationSnapshot struct {
	Conversation *domain.Conversation
	FetchedAt    time.Time
}

// ListSnapshot is one participant's cached conversation list.
type ListSnapshot struct {
	Conversations []domain.Conversation
	FetchedAt     time.Time
}

// SnapshotCache stores conversation and list snapshots keyed by id.
type SnapshotCache struct {
	conversations sync.Map // conversation id -> *ConversationSnapshot
	lists         sync.Map // counterparty id -> *ListSnapshot
}

// NewSnapshotCache creates an empty cache.
func NewSnapshotCache() *SnapshotCache {
	return &SnapshotCache{}
}

// ApplyIfNewer stores the conversation unless a strictly newer revision is
// already held. Equal revisions overwrite (last writer wins), so completion
// order decides between identical refresh results.
func (c *SnapshotCache) ApplyIfNewer(conv *domain.Conversation) bool {
	for {
		existing, loaded := c.conversations.Load(conv.ID)
		if loaded && existing.(*ConversationSnapshot).Conversation.Revision > conv.Revision {
			return false
		}

		snapshot := &ConversationSnapshot{Conversation: conv, FetchedAt: time.Now().UTC()}
		if !loaded {
			if _, raced := c.conversations.LoadOrStore(conv.ID, snapshot); !raced {
				return true
			}
			continue
		}
		if c.conversations.CompareAndSwap(conv.ID, existing, snapshot) {
			return true
		}
	}
}

// Get returns the cached conversation, if any.
func (c *SnapshotCache) Get(conversationID string) (*domain.Conversation, bool) {
	val, ok := c.conversations.Load(conversationID)
	if !ok {
		return nil, false
	}
	return val.(*ConversationSnapshot).Conversation, true
}

// Drop removes a conversation snapshot.
func (c *SnapshotCache) Drop(conversationID string) {
	c.conversations.Delete(conversationID)
}

// SetList stores a participant's list snapshot.
func (c *SnapshotCache) SetList(counterpartyID string, conversations []domain.Conversation) {
	c.lists.Store(counterpartyID, &ListSnapshot{
		Conversations: conversations,
		FetchedAt:     time.Now().UTC(),
	})
}

// GetList returns a participant's cached list, if any.
func (c *SnapshotCache) GetList(counterpartyID string) (*ListSnapshot, bool) {
	val, ok := c.lists.Load(counterpartyID)
	if !ok {
		return nil, false
	}
	return val.(*ListSnapshot), true
}
