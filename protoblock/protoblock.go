// Package protoblock persists ProtoBlock versions to disk: one JSON file
// per block_id holding every revision ever produced for it, written
// atomically so a crash mid-write never corrupts the file a concurrent
// reader might be looking at.
package protoblock

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/renameio/v2"

	"tac/core/types"
)

// File is the on-disk shape of a block's version history.
type File struct {
	BlockID  string                   `json:"block_id"`
	Versions []types.ProtoBlockVersion `json:"versions"`
}

// Store persists ProtoBlock versions under a directory, one file per
// block_id.
type Store struct {
	dir string
}

// NewStore creates a Store rooted at dir, creating it if missing.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create protoblock dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(blockID string) string {
	return filepath.Join(s.dir, blockID+".json")
}

// Load reads a block's version history. Legacy single-version files (a
// bare ProtoBlock JSON object rather than a {block_id, versions} wrapper)
// are accepted and wrapped as a one-element Versions slice.
func (s *Store) Load(blockID string) (*File, error) {
	data, err := os.ReadFile(s.path(blockID))
	if err != nil {
		if os.IsNotExist(err) {
			return &File{BlockID: blockID}, nil
		}
		return nil, fmt.Errorf("failed to read protoblock file: %w", err)
	}

	var f File
	if err := json.Unmarshal(data, &f); err == nil && len(f.Versions) > 0 {
		return &f, nil
	}

	// Fall back to legacy single-version format.
	var legacy types.ProtoBlock
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, fmt.Errorf("failed to parse protoblock file %s: %w", blockID, err)
	}
	return &File{
		BlockID:  blockID,
		Versions: []types.ProtoBlockVersion{{ProtoBlock: legacy, Timestamp: time.Now()}},
	}, nil
}

// AppendVersion appends block as a new version and writes the file
// atomically via renameio (write-to-temp-then-rename), so readers never
// observe a partially written file.
func (s *Store) AppendVersion(block *types.ProtoBlock) error {
	f, err := s.Load(block.BlockID)
	if err != nil {
		return err
	}

	f.Versions = append(f.Versions, types.ProtoBlockVersion{
		ProtoBlock: *block,
		Timestamp:  time.Now(),
	})

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal protoblock file: %w", err)
	}

	return renameio.WriteFile(s.path(block.BlockID), data, 0644)
}

// Latest returns the most recent version of blockID, or an error if the
// block has no recorded versions.
func (s *Store) Latest(blockID string) (*types.ProtoBlock, error) {
	f, err := s.Load(blockID)
	if err != nil {
		return nil, err
	}
	if len(f.Versions) == 0 {
		return nil, fmt.Errorf("no versions recorded for block %q", blockID)
	}

	latest := f.Versions[0]
	for _, v := range f.Versions[1:] {
		if v.Timestamp.After(latest.Timestamp) {
			latest = v
		}
	}
	pb := latest.ProtoBlock
	return &pb, nil
}

// List returns the block_ids of every persisted ProtoBlock, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list protoblock dir: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		ids = append(ids, e.Name()[:len(e.Name())-len(".json")])
	}
	sort.Strings(ids)
	return ids, nil
}
