package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestCache(maxSize int, ttl time.Duration) (*LocalCache, *time.Time) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLocalCache(maxSize, ttl)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestLocalCache(t *testing.T) {
	t.Run("读取未过期的值", func(t *testing.T) {
		c, _ := newTestCache(10, time.Minute)
		defer c.Close()

		c.Set("domain", "ez-mail.ws", 0)

		v, ok := c.GetString("domain")
		assert.True(t, ok)
		assert.Equal(t, "ez-mail.ws", v)
	})

	t.Run("过期后读取失败", func(t *testing.T) {
		c, now := newTestCache(10, time.Minute)
		defer c.Close()

		c.Set("domain", "ez-mail.ws", 0)
		*now = now.Add(2 * time.Minute)

		_, ok := c.Get("domain")
		assert.False(t, ok)
		assert.Equal(t, 0, c.Len())
	})

	t.Run("超过容量淘汰最早过期的条目", func(t *testing.T) {
		c, _ := newTestCache(2, time.Minute)
		defer c.Close()

		c.Set("a", 1, time.Second)
		c.Set("b", 2, time.Hour)
		c.Set("c", 3, time.Hour)

		_, ok := c.Get("a")
		assert.False(t, ok)
		assert.Equal(t, 2, c.Len())
	})

	t.Run("覆盖写入不增加条目数", func(t *testing.T) {
		c, _ := newTestCache(2, time.Minute)
		defer c.Close()

		c.Set("a", 1, 0)
		c.Set("a", 2, 0)

		v, _ := c.Get("a")
		assert.Equal(t, 2, v)
		assert.Equal(t, 1, c.Len())
	})

	t.Run("清理过期条目", func(t *testing.T) {
		c, now := newTestCache(0, time.Minute)
		defer c.Close()

		c.Set("a", 1, 0)
		c.Set("b", 2, time.Hour)
		*now = now.Add(10 * time.Minute)
		c.purgeExpired()

		assert.Equal(t, 1, c.Len())
	})
}
