package cache_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/vaist/studio"
	"github.com/vaist/studio/cache"
)

func TestBufferCache(t *testing.T) {
	c := cache.New()
	buf := studio.NewAudioBuffer(48000, 2, 16)
	if c.Has("kick") {
		t.Fatalf("empty cache should not have kick")
	}
	if _, err := c.MustGet("kick"); !errors.Is(err, cache.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	c.Set("kick", buf)
	c.Set("snare", nil)
	if got, ok := c.Get("kick"); !ok || got != buf {
		t.Fatalf("Get(kick) = %v, %v", got, ok)
	}
	if c.Has("snare") {
		t.Errorf("nil buffers must not populate the cache")
	}
	c.Set("hat", buf)
	if keys := c.Keys(); len(keys) != 2 || keys[0] != "hat" || keys[1] != "kick" {
		t.Errorf("Keys() = %v", keys)
	}
	c.Delete("hat")
	if c.Len() != 1 {
		t.Errorf("Len() = %d after delete, want 1", c.Len())
	}
	c.Clear()
	if c.Len() != 0 || c.Has("kick") {
		t.Errorf("cache not cleared")
	}
}

func TestBufferCacheConcurrentWriters(t *testing.T) {
	c := cache.New()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Set(string(rune('a'+i)), studio.NewAudioBuffer(48000, 1, 1))
			c.Has("a")
		}(i)
	}
	wg.Wait()
	if c.Len() != 16 {
		t.Errorf("Len() = %d, want 16", c.Len())
	}
}
