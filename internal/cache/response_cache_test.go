package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/circularqa/coreqa/internal/cache"
	"github.com/circularqa/coreqa/internal/models"
)

// NewResponseCache pings Redis at construction and degrades to a no-op
// when it's unreachable, per its doc comment — "127.0.0.1:1" refuses the
// connection immediately so this test needs no live Redis instance.
func TestNewResponseCache_DisabledWhenRedisUnreachable(t *testing.T) {
	c := cache.NewResponseCache("127.0.0.1:1", 0, time.Minute)
	assert.False(t, c.IsEnabled())
}

func TestResponseCache_GetMissesWhenDisabled(t *testing.T) {
	c := cache.NewResponseCache("127.0.0.1:1", 0, time.Minute)
	_, ok := c.Get(context.Background(), "কুয়েট ভর্তি ফি কত?")
	assert.False(t, ok)
}

func TestResponseCache_SetIsNoOpWhenDisabled(t *testing.T) {
	c := cache.NewResponseCache("127.0.0.1:1", 0, time.Minute)
	err := c.Set(context.Background(), "q", models.Response{Answer: "a"})
	assert.NoError(t, err)
}

func TestResponseCache_CloseIsSafeWhenDisabled(t *testing.T) {
	c := cache.NewResponseCache("127.0.0.1:1", 0, time.Minute)
	assert.NoError(t, c.Close())
}
