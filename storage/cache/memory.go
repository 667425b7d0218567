package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

var nowFunc = time.Now

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is an in-process LRU Cache. Entries never outlive defaultTTL; shorter per-entry ttls are honoured on read.
type Memory struct {
	lru *expirable.LRU[string, entry]
	ttl time.Duration
}

var _ Cache = (*Memory)(nil)

func NewMemory(size int, defaultTTL time.Duration) *Memory {
	if size <= 0 {
		size = 256
	}
	return &Memory{
		lru: expirable.NewLRU[string, entry](size, nil, defaultTTL),
		ttl: defaultTTL,
	}
}

func (c *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := c.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && !nowFunc().Before(e.expiresAt) {
		c.lru.Remove(key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (c *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = nowFunc().Add(ttl)
	}
	c.lru.Add(key, e)
	return nil
}

func (c *Memory) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		c.lru.Remove(k)
	}
	return nil
}

func (c *Memory) Len() int {
	return c.lru.Len()
}
