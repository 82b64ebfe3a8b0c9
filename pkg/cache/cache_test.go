package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock 让测试完全掌控缓存看到的时间。
type fakeClock struct {
	current time.Time
}

func (f *fakeClock) Now() time.Time { return f.current }

func (f *fakeClock) Advance(d time.Duration) { f.current = f.current.Add(d) }

func newTestCache(maxSize int, ttl time.Duration) (*QueryCache, *fakeClock) {
	clock := &fakeClock{current: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	c := New(maxSize, ttl)
	c.now = clock.Now
	return c, clock
}

func TestCacheSetGet(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)

	c.Set("k1", "v1", 0)
	value, ok := c.Get("k1")
	require.True(t, ok)
	assert.Equal(t, "v1", value)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestCacheExpiredEntryNeverReturned(t *testing.T) {
	c, clock := newTestCache(10, time.Minute)

	c.Set("k1", "v1", 30*time.Second)
	clock.Advance(31 * time.Second)

	_, ok := c.Get("k1")
	assert.False(t, ok, "过期的记录不允许被返回")
	assert.Equal(t, 0, c.Size(), "过期的记录应当在读取时被就地淘汰")
}

func TestCacheLazyExpiryCountsAsMiss(t *testing.T) {
	c, clock := newTestCache(10, time.Minute)

	c.Set("k1", "v1", time.Second)
	clock.Advance(2 * time.Second)
	_, _ = c.Get("k1")

	stats := c.Stats()
	assert.Equal(t, int64(0), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestCacheEvictsExactlyOneLRU(t *testing.T) {
	c, _ := newTestCache(3, time.Minute)

	c.Set("a", 1, 0)
	c.Set("b", 2, 0)
	c.Set("c", 3, 0)

	// 触碰 a，让 b 成为最久未使用的键
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Set("d", 4, 0)

	assert.Equal(t, 3, c.Size(), "淘汰时只允许移除恰好一条记录")
	_, ok = c.Get("b")
	assert.False(t, ok, "被淘汰的应当是最久未使用的键")
	for _, key := range []string{"a", "c", "d"} {
		_, ok := c.Get(key)
		assert.True(t, ok, "键 %s 不应被淘汰", key)
	}
}

func TestCacheSetExistingKeyRefreshesRecency(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)

	c.Set("a", 1, 0)
	c.Set("b", 2, 0)
	// 重写 a 把它刷成最近使用，容量满后应淘汰 b
	c.Set("a", 10, 0)
	c.Set("c", 3, 0)

	value, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 10, value)
	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestCacheDelete(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)

	c.Set("k1", "v1", 0)
	assert.True(t, c.Delete("k1"))
	assert.False(t, c.Delete("k1"))
	assert.Equal(t, 0, c.Size())
}

func TestCacheClearResetsStats(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)

	c.Set("k1", "v1", 0)
	_, _ = c.Get("k1")
	_, _ = c.Get("missing")

	c.Clear()

	stats := c.Stats()
	assert.Equal(t, 0, stats.Size)
	assert.Equal(t, int64(0), stats.Hits)
	assert.Equal(t, int64(0), stats.Misses)
}

func TestCacheCleanupExpired(t *testing.T) {
	c, clock := newTestCache(10, time.Minute)

	c.Set("short", 1, time.Second)
	c.Set("long", 2, time.Hour)
	clock.Advance(2 * time.Second)

	removed := c.CleanupExpired()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, c.Size())

	_, ok := c.Get("long")
	assert.True(t, ok)
}

func TestCacheStatsHitRate(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)

	c.Set("k1", "v1", 0)
	_, _ = c.Get("k1")
	_, _ = c.Get("k1")
	_, _ = c.Get("missing")

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 2.0/3.0, stats.HitRate, 1e-9)
}

func TestHistoryNewestFirstAndBounded(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)

	for i := 0; i < historyCapacity+20; i++ {
		c.AddHistory(HistoryRecord{Query: fmt.Sprintf("query-%d", i)})
	}

	all := c.RecentHistory(0)
	require.Len(t, all, historyCapacity, "历史日志必须裁剪到容量上限")
	assert.Equal(t, fmt.Sprintf("query-%d", historyCapacity+19), all[0].Query, "最新的记录在最前")

	recent := c.RecentHistory(5)
	require.Len(t, recent, 5)
	assert.Equal(t, all[0].Query, recent[0].Query)
}
