package cache

import (
	"sync"
	"time"
)

// LocalCache 本地内存缓存
//
// 特点：
// - 使用 sync.Map 实现无锁读取
// - 支持 TTL 过期
// - 后台协程定期清理过期条目，Close 后停止
// - 超过容量时淘汰最早过期的条目
type LocalCache struct {
	data    sync.Map
	mu      sync.Mutex // 保护写入时的容量检查
	size    int
	maxSize int
	ttl     time.Duration
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

type cacheEntry struct {
	value     any
	expiresAt time.Time
}

// NewLocalCache 创建本地缓存
//
// 参数:
//   - maxSize: 最大缓存条目数，<= 0 表示不限制
//   - ttl: 默认过期时间
func NewLocalCache(maxSize int, ttl time.Duration) *LocalCache {
	c := &LocalCache{
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
		stop:    make(chan struct{}),
	}

	go c.cleanupLoop(time.Minute)

	return c
}

// Get 获取缓存值
func (c *LocalCache) Get(key string) (any, bool) {
	val, ok := c.data.Load(key)
	if !ok {
		return nil, false
	}

	entry := val.(*cacheEntry)
	if c.now().After(entry.expiresAt) {
		c.Delete(key)
		return nil, false
	}

	return entry.value, true
}

// GetString 获取字符串类型的缓存值
func (c *LocalCache) GetString(key string) (string, bool) {
	val, ok := c.Get(key)
	if !ok {
		return "", false
	}
	s, ok := val.(string)
	return s, ok
}

// Set 设置缓存值，ttl 为 0 时使用默认过期时间
func (c *LocalCache) Set(key string, value any, ttl time.Duration) {
	if ttl == 0 {
		ttl = c.ttl
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.data.Load(key); !exists {
		if c.maxSize > 0 && c.size >= c.maxSize {
			c.evictLocked()
		}
		c.size++
	}

	c.data.Store(key, &cacheEntry{
		value:     value,
		expiresAt: c.now().Add(ttl),
	})
}

// Delete 删除缓存值
func (c *LocalCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, loaded := c.data.LoadAndDelete(key); loaded {
		c.size--
	}
}

// Len 返回当前条目数（含尚未清理的过期条目）
func (c *LocalCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Close 停止后台清理协程
func (c *LocalCache) Close() {
	c.once.Do(func() { close(c.stop) })
}

// evictLocked 淘汰最早过期的条目，调用方需持有 mu
func (c *LocalCache) evictLocked() {
	var (
		victim   any
		earliest time.Time
	)
	c.data.Range(func(key, value any) bool {
		entry := value.(*cacheEntry)
		if victim == nil || entry.expiresAt.Before(earliest) {
			victim = key
			earliest = entry.expiresAt
		}
		return true
	})

	if victim != nil {
		c.data.Delete(victim)
		c.size--
	}
}

// cleanupLoop 定期清理过期条目
func (c *LocalCache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.purgeExpired()
		}
	}
}

// purgeExpired 删除所有已过期条目
func (c *LocalCache) purgeExpired() {
	now := c.now()
	c.data.Range(func(key, value any) bool {
		if now.After(value.(*cacheEntry).expiresAt) {
			c.Delete(key.(string))
		}
		return true
	})
}
