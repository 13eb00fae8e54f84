// Package cache fronts Redis with a JSON codec and namespace-scoped TTLs.
// The store is always authoritative: every failure here degrades to a miss
// and is logged, never propagated to the caller.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// TTLs per key namespace.
const (
	ChatTTL          = 3600 * time.Second
	MessagesTTL      = 1800 * time.Second
	UnreadCountTTL   = 300 * time.Second
	UserTTL          = 1800 * time.Second
	JobTTL           = 900 * time.Second
	WorkerProfileTTL = 1800 * time.Second
	ProposalTTL      = 1800 * time.Second
	PropertyTTL      = 900 * time.Second
)

// scanBatchSize bounds each SCAN step so pattern deletes never block the
// keyspace.
const scanBatchSize = 100

func ChatKey(chatID string) string { return "chat:" + chatID }

func MessagesKey(chatID string, page int) string {
	return fmt.Sprintf("messages:%s:%d", chatID, page)
}

func MessagesPattern(chatID string) string { return "messages:" + chatID + ":*" }

func UserChatsKey(userID string, page int) string {
	return fmt.Sprintf("user_chats:%s:%d", userID, page)
}

func UserChatsPattern(userID string) string { return "user_chats:" + userID + ":*" }

func UnreadCountKey(userID string) string { return "unread_count:" + userID }

func UserKey(userID string) string { return "user:" + userID }

func JobKey(jobID string) string { return "job:" + jobID }

func WorkerProfileKey(workerID string) string { return "worker_profile:" + workerID }

func ContractProposalKey(proposalID string) string { return "contract_proposal:" + proposalID }

func PropertyKey(propertyID string) string { return "property:" + propertyID }

// Cache wraps a Redis client. A nil Cache is valid and behaves as a
// permanent miss, so callers need no nil checks when caching is disabled.
type Cache struct {
	client redis.UniversalClient
}

func NewCache(client redis.UniversalClient) *Cache {
	return &Cache{client: client}
}

// Open connects to Redis and verifies the connection.
func Open(ctx context.Context, redisURL string) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return &Cache{client: client}, nil
}

func (c *Cache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Get unmarshals the cached value into dest and reports whether it was
// found. Transport and decode errors coalesce to a miss.
func (c *Cache) Get(ctx context.Context, key string, dest any) bool {
	if c == nil || c.client == nil {
		return false
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.WithContext(ctx).Warnf("cache get %s: %v", key, err)
		}
		return false
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		log.WithContext(ctx).Warnf("cache decode %s: %v", key, err)
		return false
	}
	return true
}

// Set stores the value best-effort under the given TTL.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	if c == nil || c.client == nil {
		return
	}
	payload, err := json.Marshal(value)
	if err != nil {
		log.WithContext(ctx).Warnf("cache encode %s: %v", key, err)
		return
	}
	if err := c.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		log.WithContext(ctx).Warnf("cache set %s: %v", key, err)
	}
}

// GetOrLoad is the read-through path: on a miss it calls load, writes the
// result back under the namespace TTL, and returns it. Cache failures leave
// only the load result.
func GetOrLoad[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, load func() (T, error)) (T, error) {
	var cached T
	if c.Get(ctx, key, &cached) {
		return cached, nil
	}
	value, err := load()
	if err != nil {
		return *new(T), err
	}
	c.Set(ctx, key, value, ttl)
	return value, nil
}

// Delete removes keys best-effort.
func (c *Cache) Delete(ctx context.Context, keys ...string) {
	if c == nil || c.client == nil || len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		log.WithContext(ctx).Warnf("cache delete %v: %v", keys, err)
	}
}

// DeletePattern removes every key matching the pattern using incremental
// SCAN in bounded batches, never a blocking KEYS sweep.
func (c *Cache) DeletePattern(ctx context.Context, pattern string) {
	if c == nil || c.client == nil {
		return
	}
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, scanBatchSize).Result()
		if err != nil {
			log.WithContext(ctx).Warnf("cache scan %s: %v", pattern, err)
			return
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				log.WithContext(ctx).Warnf("cache delete batch for %s: %v", pattern, err)
			}
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}

// InvalidateChat drops every key derived from a chat and both participants'
// chat lists. Called after commit by mutations on the chat.
func (c *Cache) InvalidateChat(ctx context.Context, chatID, participantOneID, participantTwoID string) {
	c.Delete(ctx, ChatKey(chatID))
	c.DeletePattern(ctx, MessagesPattern(chatID))
	c.InvalidateUserChats(ctx, participantOneID)
	c.InvalidateUserChats(ctx, participantTwoID)
	c.InvalidateUnread(ctx, participantOneID)
	c.InvalidateUnread(ctx, participantTwoID)
}

func (c *Cache) InvalidateUserChats(ctx context.Context, userID string) {
	c.DeletePattern(ctx, UserChatsPattern(userID))
}

func (c *Cache) InvalidateUnread(ctx context.Context, userID string) {
	c.Delete(ctx, UnreadCountKey(userID))
}
