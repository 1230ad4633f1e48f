package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"ragengine/internal/domain"
	"ragengine/internal/port"
)

func populatedIndex(t *testing.T) *VectorIndex {
	t.Helper()
	idx := newTestIndex()
	err := idx.Add([]domain.Entry{
		entry("a", []float32{1, 0}, map[string]any{"document_type": "txt", "chunk_index": 0}),
		entry("b", []float32{0.6, 0.8}, map[string]any{"document_type": "md", "chunk_index": 1}),
		entry("c", []float32{0, 1}, map[string]any{"document_type": "md", "tags": []any{"go", "search"}}),
	})
	if err != nil {
		t.Fatal(err)
	}
	return idx
}

func TestPersistLoadRoundTrip(t *testing.T) {
	idx := populatedIndex(t)
	path := filepath.Join(t.TempDir(), "index.db")

	if err := idx.Persist(path); err != nil {
		t.Fatal(err)
	}

	restored := newTestIndex()
	if err := restored.Load(path); err != nil {
		t.Fatal(err)
	}

	if got, want := restored.Stats().Entries, idx.Stats().Entries; got != want {
		t.Fatalf("expected %d entries after load, got %d", want, got)
	}
	if got := restored.Stats().Dimension; got != 2 {
		t.Errorf("expected dimension 2 after load, got %d", got)
	}

	// Every query must answer identically against the restored index.
	queries := [][]float32{{1, 0}, {0, 1}, {0.7, 0.7}}
	filters := []port.SearchFilter{nil, {"document_type": "md"}, {"tags": "go"}}

	for _, q := range queries {
		for _, f := range filters {
			want, err := idx.Search(q, 3, f)
			if err != nil {
				t.Fatal(err)
			}
			got, err := restored.Search(q, 3, f)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(want) {
				t.Fatalf("query %v filter %v: got %d results, want %d", q, f, len(got), len(want))
			}
			for i := range want {
				if got[i].Entry.ID != want[i].Entry.ID {
					t.Errorf("query %v filter %v rank %d: got %s, want %s", q, f, i, got[i].Entry.ID, want[i].Entry.ID)
				}
				if got[i].Score != want[i].Score {
					t.Errorf("query %v filter %v rank %d: score %f != %f", q, f, i, got[i].Score, want[i].Score)
				}
				if got[i].Entry.Text != want[i].Entry.Text {
					t.Errorf("entry %s text changed across round trip", want[i].Entry.ID)
				}
			}
		}
	}
}

func TestPersistOverwritesPreviousSnapshot(t *testing.T) {
	idx := populatedIndex(t)
	path := filepath.Join(t.TempDir(), "index.db")

	if err := idx.Persist(path); err != nil {
		t.Fatal(err)
	}

	idx.Clear()
	if err := idx.Add([]domain.Entry{entry("only", []float32{1, 1}, nil)}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Persist(path); err != nil {
		t.Fatal(err)
	}

	restored := newTestIndex()
	if err := restored.Load(path); err != nil {
		t.Fatal(err)
	}
	if got := restored.Stats().Entries; got != 1 {
		t.Errorf("expected 1 entry from the newer snapshot, got %d", got)
	}
}

func TestLoadMissingSnapshot(t *testing.T) {
	idx := populatedIndex(t)
	before := idx.Stats()

	err := idx.Load(filepath.Join(t.TempDir(), "missing.db"))
	if !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}

	after := idx.Stats()
	if after.Entries != before.Entries || after.Dimension != before.Dimension {
		t.Error("failed load must leave the in-memory index untouched")
	}
}

func TestLoadRejectsCorruptSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	if err := os.WriteFile(path, []byte("not a database"), 0600); err != nil {
		t.Fatal(err)
	}

	idx := populatedIndex(t)
	before := idx.Stats()

	if err := idx.Load(path); !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if idx.Stats().Entries != before.Entries {
		t.Error("failed load must leave the in-memory index untouched")
	}
}

func TestPersistUnwritableLocation(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	idx := populatedIndex(t)
	// Parent "directory" is a regular file, so the snapshot cannot be
	// created there.
	err := idx.Persist(filepath.Join(blocker, "index.db"))
	if !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if idx.Stats().Entries != 3 {
		t.Error("failed persist must leave the in-memory index untouched")
	}
}

func TestLoadEmptySnapshot(t *testing.T) {
	empty := newTestIndex()
	path := filepath.Join(t.TempDir(), "index.db")
	if err := empty.Persist(path); err != nil {
		t.Fatal(err)
	}

	restored := newTestIndex()
	if err := restored.Load(path); err != nil {
		t.Fatal(err)
	}
	if got := restored.Stats().Entries; got != 0 {
		t.Errorf("expected empty index, got %d entries", got)
	}

	results, err := restored.Search([]float32{1, 0}, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Error("empty restored index must return no results")
	}
}
