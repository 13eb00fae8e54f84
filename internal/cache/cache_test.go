package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_key_builders(t *testing.T) {
	assert.Equal(t, "chat:c1", ChatKey("c1"))
	assert.Equal(t, "messages:c1:2", MessagesKey("c1", 2))
	assert.Equal(t, "messages:c1:*", MessagesPattern("c1"))
	assert.Equal(t, "user_chats:u1:1", UserChatsKey("u1", 1))
	assert.Equal(t, "user_chats:u1:*", UserChatsPattern("u1"))
	assert.Equal(t, "unread_count:u1", UnreadCountKey("u1"))
	assert.Equal(t, "user:u1", UserKey("u1"))
	assert.Equal(t, "job:j1", JobKey("j1"))
	assert.Equal(t, "worker_profile:w1", WorkerProfileKey("w1"))
	assert.Equal(t, "contract_proposal:p1", ContractProposalKey("p1"))
}

func Test_Cache_nil_is_a_permanent_miss(t *testing.T) {
	ctx := context.Background()
	var c *Cache

	var dest string
	assert.False(t, c.Get(ctx, "any", &dest))

	// Set, Delete and the invalidation helpers must be safe no-ops.
	c.Set(ctx, "any", "value", ChatTTL)
	c.Delete(ctx, "any")
	c.DeletePattern(ctx, "any:*")
	c.InvalidateChat(ctx, "c1", "u1", "u2")
	require.NoError(t, c.Close())
}

func Test_GetOrLoad_falls_through_on_miss(t *testing.T) {
	ctx := context.Background()
	var c *Cache

	loads := 0
	value, err := GetOrLoad(ctx, c, UserKey("u1"), UserTTL, func() (string, error) {
		loads++
		return "loaded", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "loaded", value)
	assert.Equal(t, 1, loads)
}
