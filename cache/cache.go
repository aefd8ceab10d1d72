// Package cache memoizes decoded audio buffers by asset id.
package cache

import (
	"errors"
	"sort"
	"sync"

	"github.com/vaist/studio"
)

var ErrNotFound = errors.New("asset not in cache")

// BufferCache maps asset ids to decoded buffers. It holds no playback logic.
// The engine is its only writer, but preloading writes from worker
// goroutines, so all methods are safe for concurrent use.
type BufferCache struct {
	mu      sync.RWMutex
	buffers map[string]*studio.AudioBuffer
}

func New() *BufferCache {
	return &BufferCache{buffers: map[string]*studio.AudioBuffer{}}
}

func (c *BufferCache) Get(assetID string) (*studio.AudioBuffer, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.buffers[assetID]
	return b, ok
}

// MustGet is like Get but returns ErrNotFound for missing assets.
func (c *BufferCache) MustGet(assetID string) (*studio.AudioBuffer, error) {
	if b, ok := c.Get(assetID); ok {
		return b, nil
	}
	return nil, ErrNotFound
}

// Set stores the buffer; a nil buffer is ignored so a failed decode can
// never leave an entry behind.
func (c *BufferCache) Set(assetID string, b *studio.AudioBuffer) {
	if b == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buffers[assetID] = b
}

func (c *BufferCache) Has(assetID string) bool {
	_, ok := c.Get(assetID)
	return ok
}

func (c *BufferCache) Delete(assetID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.buffers, assetID)
}

func (c *BufferCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buffers = map[string]*studio.AudioBuffer{}
}

func (c *BufferCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.buffers)
}

// Keys returns the cached asset ids in sorted order.
func (c *BufferCache) Keys() []string {
	c.mu.RLock()
	ret := make([]string, 0, len(c.buffers))
	for k := range c.buffers {
		ret = append(ret, k)
	}
	c.mu.RUnlock()
	sort.Strings(ret)
	return ret
}
