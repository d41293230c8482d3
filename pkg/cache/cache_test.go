package cache

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newWithClock[V any]() (*Cache[V], *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, time.June, 15, 9, 0, 0, 0, time.UTC)}
	c := New[V]()
	c.now = clock.now
	return c, clock
}

func TestSetAndGet(t *testing.T) {
	c := New[string]()
	c.Set("daraja:token", "abc", 1*time.Second)
	val, ok := c.Get("daraja:token")
	if !ok || val != "abc" {
		t.Fatalf("expected abc, got %v, exists=%v", val, ok)
	}
}

func TestExpiration(t *testing.T) {
	c, clock := newWithClock[string]()
	c.Set("daraja:token", "abc", time.Minute)
	clock.advance(time.Minute)
	if _, ok := c.Get("daraja:token"); ok {
		t.Fatalf("expected expired key to return false")
	}
}

func TestDelete(t *testing.T) {
	c := New[int]()
	c.Set("key1", 1, 1*time.Second)
	c.Delete("key1")
	if _, ok := c.Get("key1"); ok {
		t.Fatalf("expected deleted key to return false")
	}
}

func TestInvalidate(t *testing.T) {
	c := New[string]()
	c.Set("daraja:token:a", "t1", 1*time.Second)
	c.Set("daraja:token:b", "t2", 1*time.Second)
	c.Set("report:1", "r1", 1*time.Second)
	c.Invalidate("daraja:")
	_, ok1 := c.Get("daraja:token:a")
	_, ok2 := c.Get("daraja:token:b")
	_, ok3 := c.Get("report:1")
	if ok1 || ok2 {
		t.Fatalf("expected daraja keys to be invalidated")
	}
	if !ok3 {
		t.Fatalf("expected report:1 to still exist")
	}
}

func TestPurge(t *testing.T) {
	c, clock := newWithClock[string]()
	c.Set("short", "a", time.Second)
	c.Set("long", "b", time.Hour)
	clock.advance(time.Minute)
	if n := c.Purge(); n != 1 {
		t.Fatalf("expected 1 purged entry, got %d", n)
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 remaining entry, got %d", c.Len())
	}
}
