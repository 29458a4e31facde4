package cache

import (
	"container/list"
	"sync"
	"time"
)

// Status represents the cache lookup result.
type Status string

const (
	StatusHit     Status = "hit"
	StatusMiss    Status = "miss"
	StatusExpired Status = "expired"
	StatusRefetch Status = "refetch"
	StatusSkipped Status = "skipped"
)

// Tag is a dependency label. Invalidating a tag drops every entry that
// carries it. A Tag with an empty ID matches every tag of its Type.
type Tag struct {
	Type string
	ID   string
}

func (t Tag) String() string {
	if t.ID == "" {
		return t.Type
	}
	return t.Type + ":" + t.ID
}

// Entry is one cached query result.
type Entry struct {
	Key         string
	Value       any
	Args        any // arguments of the fetch that produced Value
	Tags        []Tag
	FetchedAt   time.Time
	ExpiresAt   time.Time
	Subscribers int
	Generation  uint64
}

// Cache is a thread-safe, in-memory LRU of query results with per-entry TTL,
// subscriber reference counts and tag invalidation. Entries with subscribers
// are never evicted.
type Cache struct {
	mu         sync.Mutex
	items      map[string]*list.Element
	order      *list.List
	tags       map[Tag]map[string]struct{}
	maxEntries int
	now        func() time.Time // injectable for testing
}

// New creates a cache holding at most maxEntries unsubscribed entries
// (0 means unbounded).
func New(maxEntries int) *Cache {
	return &Cache{
		items:      make(map[string]*list.Element),
		order:      list.New(),
		tags:       make(map[Tag]map[string]struct{}),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// SetNowForTest replaces the clock.
func (c *Cache) SetNowForTest(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Get returns a copy of the entry for key. An entry that exists but has no
// value (placeholder or invalidated) is a miss; an expired one is returned
// with StatusExpired.
func (c *Cache) Get(key string) (Entry, Status) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return Entry{Key: key}, StatusMiss
	}
	e := elem.Value.(*Entry)
	if e.Value == nil {
		return *e, StatusMiss
	}

	// Check expiry
	if !c.now().Before(e.ExpiresAt) {
		return *e, StatusExpired
	}

	// Move to front (most recently used)
	c.order.MoveToFront(elem)
	return *e, StatusHit
}

// Generation returns the invalidation generation of key.
func (c *Cache) Generation(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		return elem.Value.(*Entry).Generation
	}
	return 0
}

// Put stores value under key with the given TTL and tags, keeping the
// entry's subscribers. It fails (returns false) when the entry was
// invalidated after generation was read, so results of superseded requests
// are dropped instead of stored.
func (c *Cache) Put(key string, generation uint64, value any, args any, ttl time.Duration, tags []Tag) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	elem, ok := c.items[key]
	if ok {
		e := elem.Value.(*Entry)
		if e.Generation != generation {
			return false
		}
		c.untag(key, e.Tags)
		e.Value = value
		e.Args = args
		e.Tags = tags
		e.FetchedAt = now
		e.ExpiresAt = now.Add(ttl)
		c.order.MoveToFront(elem)
	} else {
		if generation != 0 {
			return false
		}
		e := &Entry{
			Key:       key,
			Value:     value,
			Args:      args,
			Tags:      tags,
			FetchedAt: now,
			ExpiresAt: now.Add(ttl),
		}
		c.items[key] = c.order.PushFront(e)
	}
	c.tag(key, tags)

	c.evict()
	return true
}

// Retain registers a subscriber for key, creating a placeholder entry when
// needed. The returned release func is safe to call more than once.
func (c *Cache) Retain(key string) (release func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		elem = c.order.PushFront(&Entry{Key: key})
		c.items[key] = elem
	}
	elem.Value.(*Entry).Subscribers++

	var once sync.Once
	return func() {
		once.Do(func() { c.release(key) })
	}
}

func (c *Cache) release(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return
	}
	e := elem.Value.(*Entry)
	if e.Subscribers > 0 {
		e.Subscribers--
	}
	if e.Subscribers == 0 && (e.Value == nil || !c.now().Before(e.ExpiresAt)) {
		c.remove(elem)
		return
	}
	c.evict()
}

// Invalidate drops the values of all entries carrying any of tags and bumps
// their generation. Unsubscribed entries are removed outright. It returns
// the number of entries invalidated.
func (c *Cache) Invalidate(tags ...Tag) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make(map[string]struct{})
	for _, want := range tags {
		for t, set := range c.tags {
			if t.Type != want.Type || (want.ID != "" && t.ID != want.ID) {
				continue
			}
			for k := range set {
				keys[k] = struct{}{}
			}
		}
	}

	for k := range keys {
		c.invalidateLocked(k)
	}
	return len(keys)
}

// InvalidateKey invalidates a single entry. It reports whether one existed.
func (c *Cache) InvalidateKey(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.items[key]; !ok {
		return false
	}
	c.invalidateLocked(key)
	return true
}

func (c *Cache) invalidateLocked(key string) {
	elem := c.items[key]
	e := elem.Value.(*Entry)
	c.untag(key, e.Tags)
	if e.Subscribers == 0 {
		c.remove(elem)
		return
	}
	e.Value = nil
	e.Args = nil
	e.Tags = nil
	e.ExpiresAt = time.Time{}
	e.Generation++
}

// Sweep removes expired entries that have no subscribers and returns how
// many were removed.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()
		e := elem.Value.(*Entry)
		if e.Subscribers == 0 && (e.Value == nil || !now.Before(e.ExpiresAt)) {
			c.remove(elem)
			removed++
		}
		elem = prev
	}
	return removed
}

// evict removes LRU unsubscribed entries while over capacity. Must be called
// with mu held.
func (c *Cache) evict() {
	if c.maxEntries <= 0 {
		return
	}
	for elem := c.order.Back(); elem != nil && c.order.Len() > c.maxEntries; {
		prev := elem.Prev()
		if elem.Value.(*Entry).Subscribers == 0 {
			c.remove(elem)
		}
		elem = prev
	}
}

func (c *Cache) remove(elem *list.Element) {
	e := elem.Value.(*Entry)
	c.untag(e.Key, e.Tags)
	delete(c.items, e.Key)
	c.order.Remove(elem)
}

func (c *Cache) tag(key string, tags []Tag) {
	for _, t := range tags {
		set, ok := c.tags[t]
		if !ok {
			set = make(map[string]struct{})
			c.tags[t] = set
		}
		set[key] = struct{}{}
	}
}

func (c *Cache) untag(key string, tags []Tag) {
	for _, t := range tags {
		if set, ok := c.tags[t]; ok {
			delete(set, key)
			if len(set) == 0 {
				delete(c.tags, t)
			}
		}
	}
}

// Len returns the number of entries, placeholders included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
