package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"ragengine/internal/domain"
	"ragengine/internal/port"
)

// AnswerCache memoizes session-less query results. Entries carry the
// index generation they were computed against, so any index mutation
// (ingest, clear, snapshot load) invalidates them implicitly. Eviction
// is LRU with a TTL.
type AnswerCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	order   []string
	maxSize int
	ttl     time.Duration
}

type cacheEntry struct {
	result     domain.QueryResult
	timestamp  time.Time
	generation uint64
}

func New(maxSize int, ttl time.Duration) *AnswerCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &AnswerCache{
		entries: make(map[string]*cacheEntry),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

func cacheKey(question string, topK int, filter port.SearchFilter) string {
	// json.Marshal sorts map keys, so equal filters key identically.
	filterJSON, _ := json.Marshal(filter)
	data := fmt.Sprintf("%s|%d|%s", question, topK, filterJSON)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:16])
}

func (c *AnswerCache) Get(question string, topK int, filter port.SearchFilter, generation uint64) (domain.QueryResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(question, topK, filter)
	entry, ok := c.entries[key]
	if !ok {
		return domain.QueryResult{}, false
	}

	if time.Since(entry.timestamp) > c.ttl || entry.generation != generation {
		delete(c.entries, key)
		c.removeFromOrder(key)
		return domain.QueryResult{}, false
	}

	c.moveToEnd(key)
	return entry.result, true
}

func (c *AnswerCache) Put(question string, topK int, filter port.SearchFilter, generation uint64, result domain.QueryResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(question, topK, filter)
	if _, ok := c.entries[key]; ok {
		c.entries[key] = &cacheEntry{result: result, timestamp: time.Now(), generation: generation}
		c.moveToEnd(key)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}
	c.entries[key] = &cacheEntry{result: result, timestamp: time.Now(), generation: generation}
	c.order = append(c.order, key)
}

func (c *AnswerCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *AnswerCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *AnswerCache) moveToEnd(key string) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}

func (c *AnswerCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
