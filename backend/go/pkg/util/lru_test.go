package util

import (
	"testing"
	"time"
)

func TestLRUCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c, err := New[string, int](CacheConfig{Capacity: 2})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	c.Put("a", 1)
	c.Put("b", 2)
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("Get(a) missing")
	}
	c.Put("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatalf("b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("Get(a) = %d, %v", v, ok)
	}
	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}
}

func TestLRUCacheExpires(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	c, err := New[string, string](CacheConfig{Capacity: 4, TTL: time.Hour, Now: func() time.Time { return now }})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	c.Put("k", "v")

	now = now.Add(59 * time.Minute)
	if _, ok := c.Get("k"); !ok {
		t.Fatalf("entry expired too early")
	}
	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Fatalf("entry should have expired")
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry not removed, Len() = %d", c.Len())
	}
}

func TestLRUCacheDelete(t *testing.T) {
	c, _ := New[int, int](CacheConfig{Capacity: 1})
	c.Put(1, 1)
	if !c.Delete(1) || c.Delete(1) {
		t.Fatalf("Delete() should report presence exactly once")
	}
}

func TestNewRejectsZeroCapacity(t *testing.T) {
	if _, err := New[string, int](CacheConfig{}); err == nil {
		t.Fatalf("New() error = nil for zero capacity")
	}
}
