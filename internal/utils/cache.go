package utils

import (
	"log"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CacheItem 包装缓存数据和过期时间
type CacheItem struct {
	Data      any
	ExpiresAt time.Time
}

// GlobalCache 进程内 LRU 缓存，目前用于缓存渲染后的文章 HTML
type GlobalCache struct {
	lruCache *lru.Cache[string, CacheItem]
	ttl      time.Duration
}

var (
	cacheInstance *GlobalCache
	cacheOnce     sync.Once
)

// NewCache 创建指定容量的缓存，ttl 为 Remember 使用的默认过期时间
func NewCache(size int, ttl time.Duration) (*GlobalCache, error) {
	l, err := lru.New[string, CacheItem](size)
	if err != nil {
		return nil, err
	}
	return &GlobalCache{lruCache: l, ttl: ttl}, nil
}

// InitCache 按配置初始化全局缓存，只有第一次调用生效
func InitCache(size int, ttl time.Duration) {
	cacheOnce.Do(func() {
		c, err := NewCache(size, ttl)
		if err != nil {
			log.Fatalf("Failed to create LRU cache: %v", err)
		}
		cacheInstance = c
	})
}

// GetCache 获取全局缓存，未初始化时使用默认容量 500
func GetCache() *GlobalCache {
	InitCache(500, 10*time.Minute)
	return cacheInstance
}

// Set 设置缓存，TTL 为过期时间
func (c *GlobalCache) Set(key string, data any, ttl time.Duration) {
	c.lruCache.Add(key, CacheItem{
		Data:      data,
		ExpiresAt: time.Now().Add(ttl),
	})
}

// Get 获取缓存，若不存在或已过期则返回 nil
func (c *GlobalCache) Get(key string) any {
	val, ok := c.lruCache.Get(key)
	if !ok {
		return nil
	}
	if time.Now().After(val.ExpiresAt) {
		c.lruCache.Remove(key)
		return nil
	}
	return val.Data
}

// Purge 清空缓存
func (c *GlobalCache) Purge() {
	c.lruCache.Purge()
}

// Remember 命中则直接返回，否则调用 fn 计算并按默认 TTL 缓存
func (c *GlobalCache) Remember(key string, fn func() any) any {
	if v := c.Get(key); v != nil {
		return v
	}
	v := fn()
	c.Set(key, v, c.ttl)
	return v
}
