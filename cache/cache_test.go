package cache

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/use-agent/mapscout/models"
)

func named(names ...string) []models.Place {
	out := make([]models.Place, len(names))
	for i, n := range names {
		out[i] = models.Place{Name: &n, Link: "https://www.google.com/maps/place/" + n}
	}
	return out
}

func TestKey(t *testing.T) {
	base := Key("Coffee  in Lisbon", 20, "en")

	if Key("coffee in lisbon", 20, "EN") != base {
		t.Error("Key should ignore case and repeated whitespace")
	}
	if Key("coffee in lisbon", 10, "en") == base {
		t.Error("Key should depend on maxPlaces")
	}
	if Key("coffee in lisbon", 20, "pt") == base {
		t.Error("Key should depend on lang")
	}
}

func TestGetSet(t *testing.T) {
	c := New(10, time.Hour)
	defer c.Close()

	key := Key("bakery", 5, "en")
	if _, ok := c.Get(key); ok {
		t.Fatal("empty cache should miss")
	}

	want := named("a", "b")
	c.Set(key, want)

	got, ok := c.Get(key)
	if !ok {
		t.Fatal("expected hit")
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("places mismatch (-want +got):\n%s", diff)
	}

	got[0].Link = "mutated"
	again, _ := c.Get(key)
	if again[0].Link == "mutated" {
		t.Error("Get should return a copy")
	}
}

func TestSet_SkipsEmpty(t *testing.T) {
	c := New(10, time.Hour)
	defer c.Close()

	c.Set("k", nil)
	c.Set("k2", []models.Place{})
	if c.Len() != 0 {
		t.Errorf("Len = %d, want 0", c.Len())
	}
}

func TestExpiry(t *testing.T) {
	c := New(10, time.Hour)
	defer c.Close()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("k", named("a"))
	now = now.Add(59 * time.Minute)
	if _, ok := c.Get("k"); !ok {
		t.Error("entry should still be fresh")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Error("entry should have expired")
	}

	c.evictExpired()
	if c.Len() != 0 {
		t.Errorf("Len after eviction = %d, want 0", c.Len())
	}
}

func TestCapacity(t *testing.T) {
	c := New(2, time.Hour)
	defer c.Close()

	c.Set("a", named("a"))
	c.Set("b", named("b"))
	c.Set("b", named("b2"))
	if c.Len() != 2 {
		t.Fatalf("overwriting an existing key should not evict, Len = %d", c.Len())
	}

	c.Set("c", named("c"))
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("newest entry should be present")
	}
}

func TestGetSetDoNotShareMemory(t *testing.T) {
	c := New(10, time.Hour)
	defer c.Close()
	key := Key("bakery", 5, "en")

	stored := named("Padaria")
	stored[0].Categories = []string{"Bakery"}
	c.Set(key, stored)
	*stored[0].Name = "changed by the producer"

	got, _ := c.Get(key)
	*got[0].Name = "changed by a reader"
	got[0].Categories[0] = "changed"

	again, _ := c.Get(key)
	want := []models.Place{{
		Name:       ptr("Padaria"),
		Categories: []string{"Bakery"},
		Link:       "https://www.google.com/maps/place/Padaria",
	}}
	if diff := cmp.Diff(want, again); diff != "" {
		t.Errorf("cached places changed (-want +got):\n%s", diff)
	}
}

func ptr[T any](v T) *T { return &v }
