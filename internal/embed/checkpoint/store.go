// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

// Package checkpoint persists training snapshots.
//
// Snapshots are gob-encoded, gzip-compressed and written atomically as
// {name}_v{version}.gob.gz with a monotonically increasing version per
// name. A SHA-256 checksum of the uncompressed payload is stored with
// each file and verified on load, so a truncated or tampered checkpoint
// fails loudly instead of producing a silently wrong model.
//
// # Thread Safety
//
// All store operations are safe for concurrent use.
package checkpoint

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Snapshot is the serializable state of one training run at its best
// evaluation so far.
type Snapshot struct {
	// RunID identifies the training run, typically "seed{N}".
	RunID string

	// Seed is the rng seed the run was started with.
	Seed int64

	// Epoch is the zero-based epoch the snapshot was taken at.
	Epoch int

	// HitsAt10 is the evaluation score that triggered the snapshot.
	HitsAt10 float64

	// Weights holds every parameter tensor keyed by its name.
	Weights map[string][]float64

	// Embedding is the normalized fused embedding at snapshot time.
	Embedding [][]float64

	// CreatedAt is when the snapshot was taken.
	CreatedAt time.Time
}

// Metadata describes a stored snapshot without its payload.
type Metadata struct {
	Name      string    `json:"name"`
	Version   int       `json:"version"`
	Seed      int64     `json:"seed"`
	Epoch     int       `json:"epoch"`
	HitsAt10  float64   `json:"hits_at_10"`
	Nodes     int       `json:"nodes"`
	Dim       int       `json:"dim"`
	Checksum  string    `json:"checksum"`
	SizeBytes int64     `json:"size_bytes"`
	SavedAt   time.Time `json:"saved_at"`
}

// storedFile is the on-disk format.
type storedFile struct {
	Metadata       Metadata
	CompressedData []byte
}

// Store manages snapshot files under one directory.
type Store struct {
	baseDir string

	mu       sync.RWMutex
	versions map[string]int
}

// NewStore opens (creating if needed) a snapshot directory and indexes
// the versions already present.
func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("create checkpoint directory: %w", err)
	}
	s := &Store{
		baseDir:  baseDir,
		versions: make(map[string]int),
	}
	if err := s.scan(); err != nil {
		return nil, fmt.Errorf("scan existing checkpoints: %w", err)
	}
	return s, nil
}

func (s *Store) scan() error {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name, version, ok := parseSnapshotFilename(entry.Name())
		if !ok {
			continue
		}
		if current, found := s.versions[name]; !found || version > current {
			s.versions[name] = version
		}
	}
	return nil
}

// parseSnapshotFilename splits "{name}_v{version}.gob.gz" into its parts.
func parseSnapshotFilename(filename string) (name string, version int, ok bool) {
	base, found := strings.CutSuffix(filename, ".gob.gz")
	if !found {
		return "", 0, false
	}
	idx := strings.LastIndex(base, "_v")
	if idx < 1 {
		return "", 0, false
	}
	version, err := strconv.Atoi(base[idx+2:])
	if err != nil || version < 1 {
		return "", 0, false
	}
	return base[:idx], version, true
}

// Save writes the snapshot under the next version for its RunID and
// returns that version.
func (s *Store) Save(ctx context.Context, snap *Snapshot) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(snap); err != nil {
		return 0, fmt.Errorf("encode snapshot: %w", err)
	}
	hash := sha256.Sum256(raw.Bytes())

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(raw.Bytes()); err != nil {
		return 0, fmt.Errorf("compress snapshot: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return 0, fmt.Errorf("finalize compression: %w", err)
	}

	version := s.versions[snap.RunID] + 1
	sf := storedFile{
		Metadata: Metadata{
			Name:      snap.RunID,
			Version:   version,
			Seed:      snap.Seed,
			Epoch:     snap.Epoch,
			HitsAt10:  snap.HitsAt10,
			Nodes:     len(snap.Embedding),
			Checksum:  hex.EncodeToString(hash[:]),
			SizeBytes: int64(compressed.Len()),
			SavedAt:   time.Now().UTC(),
		},
		CompressedData: compressed.Bytes(),
	}
	if len(snap.Embedding) > 0 {
		sf.Metadata.Dim = len(snap.Embedding[0])
	}

	if err := s.writeAtomic(s.snapshotPath(snap.RunID, version), sf); err != nil {
		return 0, err
	}
	s.versions[snap.RunID] = version
	return version, nil
}

func (s *Store) writeAtomic(path string, sf storedFile) error {
	tmp, err := os.CreateTemp(s.baseDir, ".checkpoint-*")
	if err != nil {
		return fmt.Errorf("create temp checkpoint: %w", err)
	}
	tmpName := tmp.Name()
	if err := gob.NewEncoder(tmp).Encode(sf); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close checkpoint: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("publish checkpoint: %w", err)
	}
	return nil
}

// Load reads one snapshot. Version 0 loads the latest.
func (s *Store) Load(ctx context.Context, name string, version int) (*Snapshot, *Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if version == 0 {
		var ok bool
		version, ok = s.versions[name]
		if !ok {
			return nil, nil, fmt.Errorf("no checkpoint found for %q", name)
		}
	}

	f, err := os.Open(s.snapshotPath(name, version))
	if err != nil {
		return nil, nil, fmt.Errorf("open checkpoint: %w", err)
	}
	defer func() { _ = f.Close() }()

	var sf storedFile
	if err := gob.NewDecoder(f).Decode(&sf); err != nil {
		return nil, nil, fmt.Errorf("read checkpoint: %w", err)
	}

	gzr, err := gzip.NewReader(bytes.NewReader(sf.CompressedData))
	if err != nil {
		return nil, nil, fmt.Errorf("decompress checkpoint: %w", err)
	}
	defer func() { _ = gzr.Close() }()

	raw, err := io.ReadAll(gzr)
	if err != nil {
		return nil, nil, fmt.Errorf("read decompressed checkpoint: %w", err)
	}

	hash := sha256.Sum256(raw)
	if checksum := hex.EncodeToString(hash[:]); checksum != sf.Metadata.Checksum {
		return nil, nil, fmt.Errorf("checksum mismatch for %s v%d: stored %s, computed %s",
			name, version, sf.Metadata.Checksum, checksum)
	}

	var snap Snapshot
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&snap); err != nil {
		return nil, nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, &sf.Metadata, nil
}

// LoadLatest reads the newest snapshot for a run.
func (s *Store) LoadLatest(ctx context.Context, name string) (*Snapshot, *Metadata, error) {
	return s.Load(ctx, name, 0)
}

// LatestVersion reports the highest stored version for a run.
func (s *Store) LatestVersion(name string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	version, ok := s.versions[name]
	return version, ok
}

// List returns metadata for the latest version of every stored run.
func (s *Store) List(ctx context.Context) ([]Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	metas := make([]Metadata, 0, len(s.versions))
	for name, version := range s.versions {
		f, err := os.Open(s.snapshotPath(name, version))
		if err != nil {
			continue
		}
		var sf storedFile
		err = gob.NewDecoder(f).Decode(&sf)
		_ = f.Close()
		if err != nil {
			continue
		}
		metas = append(metas, sf.Metadata)
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].Name < metas[j].Name })
	return metas, nil
}

// Prune deletes old versions of a run, keeping the newest keep files.
func (s *Store) Prune(ctx context.Context, name string, keep int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if keep < 1 {
		keep = 1
	}
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return fmt.Errorf("read checkpoint directory: %w", err)
	}

	var versions []int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		entryName, version, ok := parseSnapshotFilename(entry.Name())
		if !ok || entryName != name {
			continue
		}
		versions = append(versions, version)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(versions)))

	for i := keep; i < len(versions); i++ {
		_ = os.Remove(s.snapshotPath(name, versions[i]))
	}
	return nil
}

func (s *Store) snapshotPath(name string, version int) string {
	return filepath.Join(s.baseDir, fmt.Sprintf("%s_v%d.gob.gz", name, version))
}
