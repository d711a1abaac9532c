// Package runlog writes and reads the per-block run log
// (.tac_log_<block_id>) described in spec.md §6: a JSON document
// recording the config active for the run plus one execution entry per
// attempt.
package runlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"

	"tac/core/types"
)

// Execution is one attempt's recorded outcome.
type Execution struct {
	ProtoBlock      types.ProtoBlock `json:"protoblock"`
	Timestamp       string           `json:"timestamp"`
	Attempt         int              `json:"attempt"`
	Success         bool             `json:"success"`
	GitDiff         string           `json:"git_diff"`
	TestResults     string           `json:"test_results,omitempty"`
	Message         string           `json:"message"`
	FailureAnalysis string           `json:"failure_analysis,omitempty"`
}

// Log is the on-disk shape of a block's run log.
type Log struct {
	Config     map[string]interface{} `json:"config"`
	Executions []Execution             `json:"executions"`
}

// Store reads and appends to run log files under dir, one file per
// block_id named .tac_log_<block_id>.
type Store struct {
	dir string
}

// NewStore creates a Store rooted at dir.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create run log dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(blockID string) string {
	return filepath.Join(s.dir, ".tac_log_"+blockID)
}

// Load reads a block's run log, returning an empty Log if none exists yet.
func (s *Store) Load(blockID string, config map[string]interface{}) (*Log, error) {
	data, err := os.ReadFile(s.path(blockID))
	if err != nil {
		if os.IsNotExist(err) {
			return &Log{Config: config}, nil
		}
		return nil, fmt.Errorf("failed to read run log: %w", err)
	}

	var l Log
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("failed to parse run log %s: %w", blockID, err)
	}
	return &l, nil
}

// AppendExecution records one attempt's outcome, writing the file
// atomically.
func (s *Store) AppendExecution(blockID string, config map[string]interface{}, exec Execution) error {
	l, err := s.Load(blockID, config)
	if err != nil {
		return err
	}
	l.Executions = append(l.Executions, exec)

	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run log: %w", err)
	}

	return renameio.WriteFile(s.path(blockID), data, 0644)
}
