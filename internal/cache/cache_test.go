package cache

import (
	"testing"
	"time"
)

func TestCacheGetSet(t *testing.T) {
	c := New[int](10, time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Error("Get() on empty cache returned a value")
	}

	c.Set("a", 1)
	got, ok := c.Get("a")
	if !ok || got != 1 {
		t.Errorf("Get(a) = %v, %v, want 1, true", got, ok)
	}

	c.Set("a", 2)
	if got, _ := c.Get("a"); got != 2 {
		t.Errorf("Get(a) after overwrite = %v, want 2", got)
	}
}

func TestCacheTTL(t *testing.T) {
	c := New[string](10, 10*time.Millisecond)

	c.Set("a", "fresh")
	if _, ok := c.Get("a"); !ok {
		t.Fatal("value missing before TTL")
	}

	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Error("value survived past its TTL")
	}
	if c.Size() != 0 {
		t.Errorf("Size() = %d after expired Get, want 0", c.Size())
	}
}

func TestCacheLRUEviction(t *testing.T) {
	c := New[int](2, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // touch a so b becomes the eviction candidate
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("least recently used entry was not evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("recently used entry was evicted")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("newest entry was evicted")
	}
}

func TestCacheClear(t *testing.T) {
	c := New[int](10, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Clear()

	if c.Size() != 0 {
		t.Errorf("Size() after Clear = %d, want 0", c.Size())
	}
	if _, ok := c.Get("a"); ok {
		t.Error("Get() returned a value after Clear")
	}

	c.Set("a", 3)
	if got, _ := c.Get("a"); got != 3 {
		t.Error("cache unusable after Clear")
	}
}

func TestCacheDelete(t *testing.T) {
	c := New[int](10, time.Minute)

	c.Set("a", 1)
	c.Delete("a")
	c.Delete("never-existed")

	if _, ok := c.Get("a"); ok {
		t.Error("Get() returned a deleted value")
	}
}

func TestCleanExpired(t *testing.T) {
	c := New[int](10, 10*time.Millisecond)

	c.Set("a", 1)
	c.Set("b", 2)
	time.Sleep(20 * time.Millisecond)
	c.Set("c", 3)

	if n := c.CleanExpired(); n != 2 {
		t.Errorf("CleanExpired() = %d, want 2", n)
	}
	if c.Size() != 1 {
		t.Errorf("Size() = %d, want 1", c.Size())
	}
}

func TestJanitor(t *testing.T) {
	c := New[int](10, 5*time.Millisecond)
	j := NewJanitor()
	j.Register(c)
	j.Start(10 * time.Millisecond)
	defer j.Stop()

	c.Set("a", 1)

	deadline := time.After(time.Second)
	for c.Size() > 0 {
		select {
		case <-deadline:
			t.Fatal("janitor never swept the expired entry")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
