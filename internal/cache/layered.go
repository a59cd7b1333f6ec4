package cache

import (
	"errors"
	"time"
)

// LayeredCache reads memory first, then disk, and writes both
type LayeredCache struct {
	memory    Cache
	disk      Cache
	memoryTTL time.Duration
}

// NewLayeredCache creates a memory-over-disk cache
func NewLayeredCache(memoryTTL time.Duration, diskDir string, diskTTL time.Duration) *LayeredCache {
	return &LayeredCache{
		memory:    NewMemoryCache(memoryTTL, memoryTTL),
		disk:      NewDiskCache(diskDir, diskTTL),
		memoryTTL: memoryTTL,
	}
}

// Get promotes disk hits into memory
func (c *LayeredCache) Get(key string) ([]byte, bool) {
	if val, found := c.memory.Get(key); found {
		return val, true
	}

	if val, found := c.disk.Get(key); found {
		_ = c.memory.Set(key, val, c.memoryTTL)
		return val, true
	}

	return nil, false
}

// Set writes memory with its own TTL and disk with ttl (0 = disk default)
func (c *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	if err := c.memory.Set(key, value, c.memoryTTL); err != nil {
		return err
	}
	return c.disk.Set(key, value, ttl)
}

func (c *LayeredCache) Delete(key string) error {
	return errors.Join(c.memory.Delete(key), c.disk.Delete(key))
}

func (c *LayeredCache) Clear() error {
	return errors.Join(c.memory.Clear(), c.disk.Clear())
}
