package util

import (
	"container/list"
	"sync"
	"time"
)

// entry 是链表节点中保存的数据。
type entry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

// LRU 是一个泛型、线程安全、带 TTL 的 LRU 缓存。
type LRU[K comparable, V any] struct {
	capacity int
	ttl      time.Duration
	now      func() time.Time

	mu    sync.Mutex
	ll    *list.List
	items map[K]*list.Element
}

// NewLRU 创建容量为 capacity 的缓存。capacity <= 0 时返回 nil，nil 缓存的所有方法都是空操作。
// ttl 为 0 表示条目永不过期。
func NewLRU[K comparable, V any](capacity int, ttl time.Duration) *LRU[K, V] {
	if capacity <= 0 {
		return nil
	}
	return &LRU[K, V]{
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
		ll:       list.New(),
		items:    make(map[K]*list.Element),
	}
}

// Get 根据键获取值，过期条目会被移除（被动淘汰）。
func (c *LRU[K, V]) Get(key K) (V, bool) {
	var zero V
	if c == nil {
		return zero, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return zero, false
	}
	e := el.Value.(*entry[K, V])
	if c.ttl > 0 && c.now().After(e.expiresAt) {
		c.remove(el)
		return zero, false
	}
	c.ll.MoveToFront(el)
	return e.value, true
}

// Put 添加或更新一个键值对，超出容量时淘汰最久未使用的条目。
func (c *LRU[K, V]) Put(key K, value V) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := time.Time{}
	if c.ttl > 0 {
		expiresAt = c.now().Add(c.ttl)
	}

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[K, V])
		e.value = value
		e.expiresAt = expiresAt
		c.ll.MoveToFront(el)
		return
	}

	c.items[key] = c.ll.PushFront(&entry[K, V]{key: key, value: value, expiresAt: expiresAt})
	for c.ll.Len() > c.capacity {
		c.remove(c.ll.Back())
	}
}

// Len 返回当前条目数量。
func (c *LRU[K, V]) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

func (c *LRU[K, V]) remove(el *list.Element) {
	c.ll.Remove(el)
	delete(c.items, el.Value.(*entry[K, V]).key)
}
