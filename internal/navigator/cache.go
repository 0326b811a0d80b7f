package navigator

import (
	"os"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dekelcohen/CTags/internal/buffer"
)

// cacheEntry is a loaded buffer with the file state it was read from
type cacheEntry struct {
	buf       *buffer.Buffer
	modTime   time.Time
	size      int64
	expiresAt time.Time
}

// bufferCache keeps recently opened files. An entry is reused while it has
// not expired and the file's mtime and size are unchanged.
type bufferCache struct {
	cache *lru.Cache[string, *cacheEntry]
	ttl   time.Duration
	mu    sync.Mutex
	hits  int
	miss  int
}

func newBufferCache(size int, ttl time.Duration) (*bufferCache, error) {
	cache, err := lru.New[string, *cacheEntry](size)
	if err != nil {
		return nil, err
	}
	return &bufferCache{cache: cache, ttl: ttl}, nil
}

// load returns the buffer for an absolute path, reading it on a miss
func (c *bufferCache) load(path string) (*buffer.Buffer, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, false, err
	}

	c.mu.Lock()
	entry, ok := c.cache.Get(path)
	if ok && time.Now().Before(entry.expiresAt) &&
		entry.modTime.Equal(info.ModTime()) && entry.size == info.Size() {
		c.hits++
		c.mu.Unlock()
		return entry.buf, true, nil
	}
	c.miss++
	c.mu.Unlock()

	buf, err := buffer.Load(path)
	if err != nil {
		return nil, false, err
	}

	c.mu.Lock()
	c.cache.Add(path, &cacheEntry{
		buf:       buf,
		modTime:   info.ModTime(),
		size:      info.Size(),
		expiresAt: time.Now().Add(c.ttl),
	})
	c.mu.Unlock()
	return buf, false, nil
}

func (c *bufferCache) purge() {
	c.mu.Lock()
	c.cache.Purge()
	c.mu.Unlock()
}

func (c *bufferCache) stats() (hits, misses, size int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.miss, c.cache.Len()
}
