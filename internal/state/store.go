// Package state persists the download manager's full state as a single
// JSON document and reconciles resume records against the files actually on
// disk after a restart.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"

	"github.com/tidechart/tidechart/internal/chart"
	"github.com/tidechart/tidechart/internal/logging"
)

// Snapshot is the serialized form of the manager state. Field names are
// stable across versions: the same process reads them back after restart.
type Snapshot struct {
	Queue      []chart.DownloadTask              `json:"queue"`
	Downloads  map[string]chart.DownloadProgress `json:"downloads"`
	ResumeData map[string]chart.ResumeRecord     `json:"resumeData"`
}

// NewSnapshot returns an empty snapshot with allocated maps.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Queue:      []chart.DownloadTask{},
		Downloads:  map[string]chart.DownloadProgress{},
		ResumeData: map[string]chart.ResumeRecord{},
	}
}

// Store owns the on-disk state file. Saves are serialized internally and an
// advisory file lock keeps concurrent processes from interleaving writes; a
// save in progress also blocks a concurrent load.
type Store struct {
	mu   sync.Mutex // serializes in-process saves and loads
	path string
	fl   *flock.Flock // keeps other processes out
	log  zerolog.Logger
}

// NewStore creates a store for the state file at path.
func NewStore(path string) *Store {
	return &Store{
		path: path,
		fl:   flock.New(path + ".lock"),
		log:  logging.Component("state"),
	}
}

// Path returns the state file location.
func (s *Store) Path() string { return s.path }

// Save serializes the snapshot to disk. The write goes to a temp file first
// and is renamed into place so a crash mid-write never corrupts the
// previous snapshot.
func (s *Store) Save(snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fl.Lock(); err != nil {
		return fmt.Errorf("failed to lock state file: %w", err)
	}
	defer func() { _ = s.fl.Unlock() }()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// Load deserializes the snapshot. A missing file yields an empty state at
// debug level; a corrupted file yields an empty state with a warning.
// Neither is fatal: startup always succeeds.
func (s *Store) Load() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fl.Lock(); err == nil {
		defer func() { _ = s.fl.Unlock() }()
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.log.Debug().Str("path", s.path).Msg("no state file, starting empty")
		} else {
			s.log.Warn().Err(err).Str("path", s.path).Msg("state file unreadable, starting empty")
		}
		return NewSnapshot()
	}

	snap := NewSnapshot()
	if err := json.Unmarshal(data, snap); err != nil {
		s.log.Warn().Err(err).Str("path", s.path).Msg("state file corrupted, starting empty")
		return NewSnapshot()
	}
	if snap.Downloads == nil {
		snap.Downloads = map[string]chart.DownloadProgress{}
	}
	if snap.ResumeData == nil {
		snap.ResumeData = map[string]chart.ResumeRecord{}
	}
	return snap
}
