package cache

import (
	"fmt"
	"testing"
	"time"

	"ragengine/internal/domain"
	"ragengine/internal/port"
)

func TestCacheHitAndMiss(t *testing.T) {
	c := New(10, time.Minute)

	result := domain.QueryResult{Answer: "42"}
	c.Put("q", 3, nil, 1, result)

	got, ok := c.Get("q", 3, nil, 1)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.Answer != "42" {
		t.Errorf("expected answer 42, got %s", got.Answer)
	}

	if _, ok := c.Get("other", 3, nil, 1); ok {
		t.Error("different question must miss")
	}
	if _, ok := c.Get("q", 4, nil, 1); ok {
		t.Error("different top-k must miss")
	}
	if _, ok := c.Get("q", 3, port.SearchFilter{"document_type": "md"}, 1); ok {
		t.Error("different filter must miss")
	}
}

func TestCacheGenerationInvalidates(t *testing.T) {
	c := New(10, time.Minute)
	c.Put("q", 3, nil, 1, domain.QueryResult{Answer: "stale"})

	if _, ok := c.Get("q", 3, nil, 2); ok {
		t.Error("entry from an older index generation must miss")
	}
	if c.Size() != 0 {
		t.Error("stale entry should be dropped on access")
	}
}

func TestCacheEquivalentFiltersShareKey(t *testing.T) {
	c := New(10, time.Minute)
	c.Put("q", 3, port.SearchFilter{"a": "1", "b": "2"}, 1, domain.QueryResult{Answer: "x"})

	// Same filter, different construction order.
	if _, ok := c.Get("q", 3, port.SearchFilter{"b": "2", "a": "1"}, 1); !ok {
		t.Error("equal filters must hit regardless of map ordering")
	}
}

func TestCacheLRUEviction(t *testing.T) {
	c := New(3, time.Minute)
	for i := 0; i < 3; i++ {
		c.Put(fmt.Sprintf("q%d", i), 1, nil, 1, domain.QueryResult{})
	}

	// Touch q0 so q1 is the oldest.
	if _, ok := c.Get("q0", 1, nil, 1); !ok {
		t.Fatal("q0 should be cached")
	}

	c.Put("q3", 1, nil, 1, domain.QueryResult{})

	if _, ok := c.Get("q1", 1, nil, 1); ok {
		t.Error("q1 should have been evicted as least recently used")
	}
	if _, ok := c.Get("q0", 1, nil, 1); !ok {
		t.Error("q0 was recently used and should survive")
	}
	if _, ok := c.Get("q3", 1, nil, 1); !ok {
		t.Error("q3 was just inserted and should be present")
	}
}
