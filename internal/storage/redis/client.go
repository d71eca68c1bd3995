package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"monogest/backend/internal/domain"
)

// Client wraps the Redis connection used for the per-conversation message
// topics and the conversation-list cache.
type Client struct {
	rdb *redis.Client
}

// NewClient connects to Redis and verifies the connection.
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: 10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Health pings Redis.
func (c *Client) Health(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func conversationChannel(conversationID string) string {
	return "conv:" + conversationID
}

func listCacheKey(counterpartyID string) string {
	return "convlist:" + counterpartyID
}

// PublishNewMessage publishes a reply to the conversation's topic so
// connected sessions refresh without waiting for the next poll.
func (c *Client) PublishNewMessage(ctx context.Context, conversationID string, msg *domain.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return c.rdb.Publish(ctx, conversationChannel(conversationID), payload).Err()
}

// SubscribeAllMessages pattern-subscribes to every conversation topic.
// Each instance forwards received payloads to its own websocket hub. The
// caller owns the returned PubSub and must close it.
func (c *Client) SubscribeAllMessages(ctx context.Context) *redis.PubSub {
	return c.rdb.PSubscribe(ctx, conversationChannel("*"))
}

// ConversationIDFromChannel recovers the conversation id from a topic name.
func ConversationIDFromChannel(channel string) string {
	return strings.TrimPrefix(channel, "conv:")
}

// CacheConversationList caches a participant's conversation list snapshot.
func (c *Client) CacheConversationList(ctx context.Context, counterpartyID string, conversations []domain.Conversation, ttl time.Duration) error {
	data, err := json.Marshal(conversations)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, listCacheKey(counterpartyID), data, ttl).Err()
}

// GetCachedConversationList returns the cached list, or (nil, false) on a miss.
func (c *Client) GetCachedConversationList(ctx context.Context, counterpartyID string) ([]domain.Conversation, bool) {
	data, err := c.rdb.Get(ctx, listCacheKey(counterpartyID)).Result()
	if err != nil {
		return nil, false
	}
	var conversations []domain.Conversation
	if err := json.Unmarshal([]byte(data), &conversations); err != nil {
		return nil, false
	}
	return conversations, true
}

// InvalidateConversationList drops a participant's cached list. Called after
// any mutation that changes their view.
func (c *Client) InvalidateConversationList(ctx context.Context, counterpartyIDs ...string) error {
	if len(counterpartyIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(counterpartyIDs))
	for _, id := range counterpartyIDs {
		keys = append(keys, listCacheKey(id))
	}
	return c.rdb.Del(ctx, keys...).Err()
}
