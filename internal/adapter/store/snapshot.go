package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"

	"ragengine/internal/domain"
)

// Snapshot layout: a manifest bucket recording dimension and entry
// count, a vectors bucket and a parallel entries bucket, both keyed by
// big-endian insertion sequence so load preserves insertion order.
var (
	bucketManifest = []byte("manifest")
	bucketVectors  = []byte("vectors")
	bucketEntries  = []byte("entries")
	keyManifest    = []byte("manifest")
)

type manifest struct {
	Dimension int `json:"dimension"`
	Count     int `json:"count"`
}

type storedVector struct {
	Vector []float32 `json:"v"`
}

type storedEntry struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Persist writes a snapshot of the index to path, replacing any
// previous snapshot there. Failure leaves the in-memory index
// untouched; errors are wrapped as ErrPersistence.
func (x *VectorIndex) Persist(path string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%w: create snapshot directory: %v", domain.ErrPersistence, err)
	}

	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return fmt.Errorf("%w: open snapshot: %v", domain.ErrPersistence, err)
	}
	defer db.Close()

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketManifest, bucketVectors, bucketEntries} {
			if tx.Bucket(name) != nil {
				if err := tx.DeleteBucket(name); err != nil {
					return err
				}
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}

		man, err := json.Marshal(manifest{Dimension: x.dimension, Count: len(x.entries)})
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketManifest).Put(keyManifest, man); err != nil {
			return err
		}

		vectors := tx.Bucket(bucketVectors)
		entries := tx.Bucket(bucketEntries)
		for i, e := range x.entries {
			key := seqKey(i)

			vec, err := json.Marshal(storedVector{Vector: e.Vector})
			if err != nil {
				return err
			}
			if err := vectors.Put(key, vec); err != nil {
				return err
			}

			ent, err := json.Marshal(storedEntry{ID: e.ID, Text: e.Text, Metadata: e.Metadata})
			if err != nil {
				return err
			}
			if err := entries.Put(key, ent); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: write snapshot: %v", domain.ErrPersistence, err)
	}

	x.logger.Debug("snapshot persisted", "path", path, "entries", len(x.entries))
	return nil
}

// Load replaces the in-memory index with the snapshot at path. The
// snapshot is fully read and validated against its manifest before the
// index is swapped, so a failed load leaves the index untouched.
func (x *VectorIndex) Load(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: snapshot not readable: %v", domain.ErrPersistence, err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("%w: open snapshot: %v", domain.ErrPersistence, err)
	}
	defer db.Close()

	var man manifest
	var loaded []domain.Entry

	err = db.View(func(tx *bbolt.Tx) error {
		mb := tx.Bucket(bucketManifest)
		if mb == nil {
			return fmt.Errorf("missing manifest bucket")
		}
		data := mb.Get(keyManifest)
		if data == nil {
			return fmt.Errorf("missing manifest")
		}
		if err := json.Unmarshal(data, &man); err != nil {
			return fmt.Errorf("corrupt manifest: %v", err)
		}
		if man.Count < 0 || (man.Count > 0 && man.Dimension < 1) {
			return fmt.Errorf("inconsistent manifest: count=%d dimension=%d", man.Count, man.Dimension)
		}

		vectors := tx.Bucket(bucketVectors)
		entries := tx.Bucket(bucketEntries)
		if vectors == nil || entries == nil {
			return fmt.Errorf("missing data buckets")
		}

		loaded = make([]domain.Entry, 0, man.Count)
		cur := entries.Cursor()
		for k, v := cur.First(); k != nil; k, v = cur.Next() {
			var ent storedEntry
			if err := json.Unmarshal(v, &ent); err != nil {
				return fmt.Errorf("corrupt entry %x: %v", k, err)
			}
			vecData := vectors.Get(k)
			if vecData == nil {
				return fmt.Errorf("entry %x has no vector", k)
			}
			var vec storedVector
			if err := json.Unmarshal(vecData, &vec); err != nil {
				return fmt.Errorf("corrupt vector %x: %v", k, err)
			}
			if len(vec.Vector) != man.Dimension {
				return fmt.Errorf("entry %x dimension %d does not match manifest %d", k, len(vec.Vector), man.Dimension)
			}
			meta := ent.Metadata
			if meta == nil {
				meta = map[string]any{}
			}
			loaded = append(loaded, domain.Entry{ID: ent.ID, Vector: vec.Vector, Text: ent.Text, Metadata: meta})
		}

		if len(loaded) != man.Count {
			return fmt.Errorf("snapshot holds %d entries, manifest says %d", len(loaded), man.Count)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}

	x.mu.Lock()
	x.entries = loaded
	x.dimension = man.Dimension
	x.generation++
	x.mu.Unlock()

	x.logger.Debug("snapshot loaded", "path", path, "entries", len(loaded))
	return nil
}

func seqKey(i int) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(i))
	return key
}
