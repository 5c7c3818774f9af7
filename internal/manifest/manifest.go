// Package manifest implements the engine's single source of on-disk
// truth: for every shard, the ordered list of live segment generations
// and the high-watermark numeric id. A per-segment tombstone-generation
// map is part of the format, but the engine never fills it: tombstone
// bitsets are rewritten in place rather than versioned.
//
// The manifest is a small JSON document, atomically replaced via
// temp-write-then-rename — grounded directly on the schema.json
// handling in storage/database.go (save()) and storage/persistence-
// files.go (WriteSchema's rescue-copy rename).
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SchemaVersion is bumped whenever the on-disk layout changes in a way
// that is not backward compatible.
const SchemaVersion = 1

// ShardManifest is the durable state of one shard.
type ShardManifest struct {
	Segments     []uint64 `json:"segments"`      // ordered live generations, oldest first
	TombGen      map[uint64]uint64 `json:"tomb_gen"` // segment generation -> tombstone-file generation; the engine never writes entries, so this map stays empty
	HighWatermark uint64  `json:"high_watermark"` // engine-wide numeric id counter as of this shard's last manifest update; never below the highest id assigned in this shard
}

// Manifest is the whole database's durable state.
type Manifest struct {
	SchemaVersion int                       `json:"schema_version"`
	Shards        map[string]*ShardManifest `json:"shards"`
}

func New() *Manifest {
	return &Manifest{SchemaVersion: SchemaVersion, Shards: map[string]*ShardManifest{}}
}

// Path returns the manifest file path inside a database directory.
func Path(databasePath string) string {
	return filepath.Join(databasePath, "manifest.json")
}

// Load reads and parses the manifest at databasePath. A missing
// manifest is not an error — it means a brand-new, empty database —
// and yields a fresh Manifest.
func Load(databasePath string) (*Manifest, error) {
	raw, err := os.ReadFile(Path(databasePath))
	if os.IsNotExist(err) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("manifest: read %s: %w", Path(databasePath), err)
	}
	m := New()
	if err := json.Unmarshal(raw, m); err != nil {
		return nil, fmt.Errorf("manifest: parse %s: %w", Path(databasePath), err)
	}
	if m.Shards == nil {
		m.Shards = map[string]*ShardManifest{}
	}
	return m, nil
}

// Save atomically rewrites the manifest: write to a temp file in the
// same directory, fsync it, then rename over the live manifest. Same-
// directory rename is atomic on any POSIX filesystem. The commit
// protocol treats the fsync of this rename as the durability boundary
// for a batch.
func (m *Manifest) Save(databasePath string) error {
	if err := os.MkdirAll(databasePath, 0o750); err != nil {
		return fmt.Errorf("manifest: mkdir %s: %w", databasePath, err)
	}
	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("manifest: marshal: %w", err)
	}
	tmp := Path(databasePath) + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("manifest: create temp %s: %w", tmp, err)
	}
	if _, err := f.Write(raw); err != nil {
		f.Close()
		return fmt.Errorf("manifest: write temp %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("manifest: fsync temp %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, Path(databasePath)); err != nil {
		return fmt.Errorf("manifest: rename %s -> %s: %w", tmp, Path(databasePath), err)
	}
	return nil
}

// Shard returns (creating if necessary) the manifest entry for shard.
func (m *Manifest) Shard(shard string) *ShardManifest {
	sm, ok := m.Shards[shard]
	if !ok {
		sm = &ShardManifest{TombGen: map[uint64]uint64{}}
		m.Shards[shard] = sm
	}
	if sm.TombGen == nil {
		sm.TombGen = map[uint64]uint64{}
	}
	return sm
}

// ShardDir returns the on-disk directory for one shard inside a
// database directory.
func ShardDir(databasePath, shard string) string {
	return filepath.Join(databasePath, "shards", shard)
}
