package util

import (
	"container/list"
	"fmt"
	"sync"
	"time"
)

// CacheConfig 用于配置LRU缓存的行为。
type CacheConfig struct {
	// Capacity 是缓存的最大元素数量，必须大于 0。
	Capacity int
	// TTL 是元素自最后一次写入起的存活时间。如果为0，则元素永不过期。
	TTL time.Duration
	// Now 是时间来源，为 nil 时使用 time.Now。
	Now func() time.Time
}

type entry[K comparable, V any] struct {
	key        K
	value      V
	expiration time.Time
}

// LRUCache 是一个支持泛型、按容量淘汰、可选过期时间的线程安全LRU缓存。
type LRUCache[K comparable, V any] struct {
	capacity int
	ttl      time.Duration
	now      func() time.Time

	lock  sync.Mutex
	ll    *list.List
	cache map[K]*list.Element
}

// New 使用指定的配置创建一个LRU缓存实例。
func New[K comparable, V any](config CacheConfig) (*LRUCache[K, V], error) {
	if config.Capacity <= 0 {
		return nil, fmt.Errorf("Capacity 必须大于 0: %d", config.Capacity)
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &LRUCache[K, V]{
		capacity: config.Capacity,
		ttl:      config.TTL,
		now:      config.Now,
		ll:       list.New(),
		cache:    make(map[K]*list.Element),
	}, nil
}

// Get 根据键获取一个值，并把它标记为最近使用。已过期的元素在这里被移除。
func (c *LRUCache[K, V]) Get(key K) (V, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()

	var zero V
	element, ok := c.cache[key]
	if !ok {
		return zero, false
	}
	e := element.Value.(*entry[K, V])
	if c.ttl > 0 && c.now().After(e.expiration) {
		c.removeElement(element)
		return zero, false
	}
	c.ll.MoveToFront(element)
	return e.value, true
}

// Put 添加或更新一个键值对，并刷新过期时间。超出容量时淘汰最久未使用的元素。
func (c *LRUCache[K, V]) Put(key K, value V) {
	c.lock.Lock()
	defer c.lock.Unlock()

	var expiration time.Time
	if c.ttl > 0 {
		expiration = c.now().Add(c.ttl)
	}

	if element, ok := c.cache[key]; ok {
		e := element.Value.(*entry[K, V])
		e.value = value
		e.expiration = expiration
		c.ll.MoveToFront(element)
		return
	}

	c.cache[key] = c.ll.PushFront(&entry[K, V]{key: key, value: value, expiration: expiration})
	for c.ll.Len() > c.capacity {
		c.removeElement(c.ll.Back())
	}
}

// Delete 移除一个键，返回它之前是否存在。
func (c *LRUCache[K, V]) Delete(key K) bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	element, ok := c.cache[key]
	if ok {
		c.removeElement(element)
	}
	return ok
}

// removeElement 假设已持有锁。
func (c *LRUCache[K, V]) removeElement(e *list.Element) {
	c.ll.Remove(e)
	delete(c.cache, e.Value.(*entry[K, V]).key)
}

// Len 返回当前缓存中的条目数量（包括尚未被访问到的过期条目）。
func (c *LRUCache[K, V]) Len() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.ll.Len()
}
