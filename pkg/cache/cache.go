// Package cache 提供进程内的查询结果缓存，支持 TTL 过期与 LRU 淘汰，
// 并附带一条有界的查询历史日志。
package cache

import (
	"container/list"
	"sync"
	"time"

	"hrquery-go/pkg/log"
)

const historyCapacity = 100

// Entry 是缓存中的一条记录。
type Entry struct {
	Key       string
	Value     interface{}
	CreatedAt time.Time
	ExpiresAt time.Time
}

// HistoryRecord 是查询历史日志中的一条记录。
type HistoryRecord struct {
	Query     string    `json:"query"`
	Timestamp time.Time `json:"timestamp"`
	LatencyMS int64     `json:"processing_time_ms"`
	CacheHit  bool      `json:"cached"`
	QueryType string    `json:"query_type"`
}

// Stats 汇总缓存的运行统计。
type Stats struct {
	Size        int     `json:"size"`
	MaxSize     int     `json:"max_size"`
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	HitRate     float64 `json:"hit_rate"`
	Utilization float64 `json:"utilization"`
}

// QueryCache 是带 TTL 与 LRU 语义的键值缓存。
// 结构性修改持写锁，只读统计持读锁；读取方不会观察到淘汰中途的状态。
type QueryCache struct {
	mu         sync.RWMutex
	maxSize    int
	defaultTTL time.Duration
	entries    map[string]*list.Element
	// lru 按使用新近度排列，最近使用的在队尾。
	lru     *list.List
	hits    int64
	misses  int64
	history []HistoryRecord
	now     func() time.Time
}

// New 创建一个缓存实例。maxSize 与 defaultTTL 非法时回退到 1000 条 / 300 秒。
func New(maxSize int, defaultTTL time.Duration) *QueryCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if defaultTTL <= 0 {
		defaultTTL = 300 * time.Second
	}
	return &QueryCache{
		maxSize:    maxSize,
		defaultTTL: defaultTTL,
		entries:    make(map[string]*list.Element),
		lru:        list.New(),
		now:        time.Now,
	}
}

// Get 返回键对应的值。键不存在是一次未命中，不是错误。
// 已过期的键在读取时被就地淘汰，同样算未命中；命中会把键标记为最近使用。
func (c *QueryCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}

	entry := elem.Value.(*Entry)
	if c.now().After(entry.ExpiresAt) {
		c.lru.Remove(elem)
		delete(c.entries, key)
		c.misses++
		log.Debugf("[Cache] key 已过期并被淘汰: %s", key)
		return nil, false
	}

	c.lru.MoveToBack(elem)
	c.hits++
	return entry.Value, true
}

// Set 写入一条记录。ttl <= 0 时使用默认 TTL。
// 容量已满且键为新键时，先淘汰恰好一条最久未使用的记录；
// 无论写入还是刷新，该键都被标记为最近使用。
func (c *QueryCache) Set(key string, value interface{}, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*Entry)
		entry.Value = value
		entry.CreatedAt = now
		entry.ExpiresAt = now.Add(ttl)
		c.lru.MoveToBack(elem)
		return
	}

	if c.lru.Len() >= c.maxSize {
		oldest := c.lru.Front()
		if oldest != nil {
			evicted := oldest.Value.(*Entry)
			c.lru.Remove(oldest)
			delete(c.entries, evicted.Key)
			log.Debugf("[Cache] 容量已满, 淘汰最久未使用的 key: %s", evicted.Key)
		}
	}

	entry := &Entry{Key: key, Value: value, CreatedAt: now, ExpiresAt: now.Add(ttl)}
	c.entries[key] = c.lru.PushBack(entry)
}

// Delete 删除一个键，返回该键是否存在。
func (c *QueryCache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return false
	}
	c.lru.Remove(elem)
	delete(c.entries, key)
	return true
}

// Clear 清空所有缓存记录并重置命中统计。
func (c *QueryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*list.Element)
	c.lru.Init()
	c.hits = 0
	c.misses = 0
	log.Info("[Cache] 缓存已清空")
}

// CleanupExpired 按需清除当前所有已过期的记录，返回清除条数。
// 除这里之外没有后台清扫，过期依赖读取时的惰性淘汰。
func (c *QueryCache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for elem := c.lru.Front(); elem != nil; {
		next := elem.Next()
		entry := elem.Value.(*Entry)
		if now.After(entry.ExpiresAt) {
			c.lru.Remove(elem)
			delete(c.entries, entry.Key)
			removed++
		}
		elem = next
	}
	if removed > 0 {
		log.Infof("[Cache] 清理了 %d 条过期记录", removed)
	}
	return removed
}

// Size 返回当前缓存条数。
func (c *QueryCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lru.Len()
}

// Stats 返回自上次 Clear 以来的运行统计。
func (c *QueryCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := c.hits + c.misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}
	return Stats{
		Size:        c.lru.Len(),
		MaxSize:     c.maxSize,
		Hits:        c.hits,
		Misses:      c.misses,
		HitRate:     hitRate,
		Utilization: float64(c.lru.Len()) / float64(c.maxSize),
	}
}

// AddHistory 向查询历史头部插入一条记录，超出容量 100 时从尾部截断。
// 历史日志独立于 TTL 语义，Clear 不会清空它。
func (c *QueryCache) AddHistory(rec HistoryRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.history = append([]HistoryRecord{rec}, c.history...)
	if len(c.history) > historyCapacity {
		c.history = c.history[:historyCapacity]
	}
}

// RecentHistory 返回最近的至多 limit 条历史记录，最新的在前。
func (c *QueryCache) RecentHistory(limit int) []HistoryRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if limit <= 0 || limit > len(c.history) {
		limit = len(c.history)
	}
	out := make([]HistoryRecord, limit)
	copy(out, c.history[:limit])
	return out
}
