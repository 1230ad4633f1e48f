package memory

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"ragengine/internal/domain"
	"ragengine/internal/log"
)

// fakeClock drives the registry's notion of time in tests.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestRegistry(timeout time.Duration, maxSessions, maxHistory int) (*Registry, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	r := NewRegistry(timeout, maxSessions, maxHistory, log.NewNop())
	r.now = clock.Now
	return r, clock
}

func userTurn(content string) domain.Turn {
	return domain.Turn{Role: domain.RoleUser, Content: content, Timestamp: time.Now()}
}

func TestCreateAndGet(t *testing.T) {
	r, _ := newTestRegistry(time.Minute, 10, 20)

	id, err := r.Create(map[string]any{"channel": "cli"})
	if err != nil {
		t.Fatal(err)
	}
	if id == "" {
		t.Fatal("expected non-empty session id")
	}

	info, err := r.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	if info.ID != id {
		t.Errorf("expected id %s, got %s", id, info.ID)
	}
	if info.Metadata["channel"] != "cli" {
		t.Error("session metadata lost")
	}
	if len(info.History) != 0 {
		t.Errorf("new session should have empty history, got %d turns", len(info.History))
	}
	if !info.CreatedAt.Equal(info.LastActivity) {
		t.Error("created_at and last_activity should match on creation")
	}
}

func TestGetUnknownSession(t *testing.T) {
	r, _ := newTestRegistry(time.Minute, 10, 20)

	if _, err := r.Get("nope"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
	if err := r.AppendTurn("nope", userTurn("hi")); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := r.ContextWindow("nope", 5); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestAppendAndContextWindow(t *testing.T) {
	r, _ := newTestRegistry(time.Minute, 10, 20)
	id, _ := r.Create(nil)

	for i := 0; i < 6; i++ {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		err := r.AppendTurn(id, domain.Turn{Role: role, Content: fmt.Sprintf("m%d", i)})
		if err != nil {
			t.Fatal(err)
		}
	}

	window, err := r.ContextWindow(id, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(window) != 4 {
		t.Fatalf("expected window of 4, got %d", len(window))
	}
	for i, turn := range window {
		if want := fmt.Sprintf("m%d", i+2); turn.Content != want {
			t.Errorf("window[%d] = %q, want %q", i, turn.Content, want)
		}
	}

	// Full history stays retrievable past the window.
	info, err := r.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	if len(info.History) != 6 {
		t.Errorf("expected full history of 6, got %d", len(info.History))
	}
}

func TestHistoryCap(t *testing.T) {
	r, _ := newTestRegistry(time.Minute, 10, 5)
	id, _ := r.Create(nil)

	for i := 0; i < 9; i++ {
		if err := r.AppendTurn(id, userTurn(fmt.Sprintf("m%d", i))); err != nil {
			t.Fatal(err)
		}
	}

	info, _ := r.Get(id)
	if len(info.History) != 5 {
		t.Fatalf("expected history capped at 5, got %d", len(info.History))
	}
	if info.History[0].Content != "m4" {
		t.Errorf("oldest retained turn should be m4, got %s", info.History[0].Content)
	}
}

func TestSessionExpiry(t *testing.T) {
	r, clock := newTestRegistry(10*time.Minute, 10, 20)
	id, _ := r.Create(nil)

	if err := r.AppendTurn(id, userTurn("one")); err != nil {
		t.Fatal(err)
	}
	if err := r.AppendTurn(id, userTurn("two")); err != nil {
		t.Fatal(err)
	}

	clock.Advance(11 * time.Minute)

	if err := r.AppendTurn(id, userTurn("three")); !errors.Is(err, domain.ErrSessionExpired) {
		t.Errorf("expected ErrSessionExpired on append, got %v", err)
	}
	if _, err := r.ContextWindow(id, 5); !errors.Is(err, domain.ErrSessionExpired) {
		t.Errorf("expected ErrSessionExpired on window, got %v", err)
	}

	// Inspection still answers until the session is reaped.
	info, err := r.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	if len(info.History) != 2 {
		t.Errorf("expected 2 retained turns, got %d", len(info.History))
	}

	if reaped := r.Sweep(clock.Now()); reaped != 1 {
		t.Errorf("expected 1 reaped session, got %d", reaped)
	}
	if _, err := r.Get(id); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound after reap, got %v", err)
	}
}

func TestActivityRefreshPreventsExpiry(t *testing.T) {
	r, clock := newTestRegistry(10*time.Minute, 10, 20)
	id, _ := r.Create(nil)

	for i := 0; i < 3; i++ {
		clock.Advance(8 * time.Minute)
		if err := r.AppendTurn(id, userTurn("ping")); err != nil {
			t.Fatalf("turn %d: session should still be active: %v", i, err)
		}
	}
}

func TestLRUEviction(t *testing.T) {
	r, clock := newTestRegistry(time.Hour, 2, 20)

	s1, _ := r.Create(nil)
	clock.Advance(time.Minute)
	s2, _ := r.Create(nil)
	clock.Advance(time.Minute)

	// Touch s1 so s2 becomes the least recently active.
	if err := r.AppendTurn(s1, userTurn("keepalive")); err != nil {
		t.Fatal(err)
	}
	clock.Advance(time.Minute)

	s3, err := r.Create(nil)
	if err != nil {
		t.Fatal(err)
	}

	if r.Count() != 2 {
		t.Fatalf("expected 2 sessions after eviction, got %d", r.Count())
	}
	if _, err := r.Get(s2); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Error("s2 was least recently active and should have been evicted")
	}
	if _, err := r.Get(s1); err != nil {
		t.Errorf("s1 should survive eviction: %v", err)
	}
	if _, err := r.Get(s3); err != nil {
		t.Errorf("s3 should be retrievable: %v", err)
	}
}

func TestDelete(t *testing.T) {
	r, _ := newTestRegistry(time.Minute, 10, 20)
	id, _ := r.Create(nil)

	if err := r.Delete(id); err != nil {
		t.Fatal(err)
	}
	if err := r.Delete(id); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound on double delete, got %v", err)
	}
	if r.Count() != 0 {
		t.Errorf("expected empty registry, got %d", r.Count())
	}
}

func TestAppendAfterDeleteFails(t *testing.T) {
	r, _ := newTestRegistry(time.Minute, 10, 20)
	id, _ := r.Create(nil)

	// A caller can hold the session between lookup and append while the
	// session is deleted underneath it. The append must fail rather than
	// land in the orphaned object.
	s, err := r.lookup(id)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Delete(id); err != nil {
		t.Fatal(err)
	}

	if err := r.appendTurn(s, userTurn("late")); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound for append into deleted session, got %v", err)
	}
	if len(s.turns) != 0 {
		t.Errorf("turn landed in deleted session, history %d", len(s.turns))
	}
}

func TestAppendAfterEvictionFails(t *testing.T) {
	r, clock := newTestRegistry(time.Hour, 1, 20)

	first, _ := r.Create(nil)
	s, err := r.lookup(first)
	if err != nil {
		t.Fatal(err)
	}

	// Creating a second session evicts the first (capacity 1).
	clock.Advance(time.Second)
	if _, err := r.Create(nil); err != nil {
		t.Fatal(err)
	}

	if err := r.appendTurn(s, userTurn("late")); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound for append into evicted session, got %v", err)
	}
}

func TestConcurrentTurnsSerialize(t *testing.T) {
	r, _ := newTestRegistry(time.Hour, 10, 1000)
	id, _ := r.Create(nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if err := r.AppendTurn(id, userTurn(fmt.Sprintf("m%d", n))); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	info, err := r.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	if len(info.History) != 20 {
		t.Errorf("expected 20 turns, got %d (turns lost to a race)", len(info.History))
	}
}

func TestConcurrentSessionsIndependent(t *testing.T) {
	r, _ := newTestRegistry(time.Hour, 100, 100)

	var wg sync.WaitGroup
	ids := make([]string, 10)
	for i := range ids {
		ids[i], _ = r.Create(nil)
	}

	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if err := r.AppendTurn(id, userTurn("x")); err != nil {
					t.Error(err)
				}
			}
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		info, err := r.Get(id)
		if err != nil {
			t.Fatal(err)
		}
		if len(info.History) != 10 {
			t.Errorf("session %s: expected 10 turns, got %d", id, len(info.History))
		}
	}
}
