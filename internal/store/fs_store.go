package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
)

// FSStore implements the Store interface on the filesystem.
// Runs are stored in a directory structure: <baseDir>/runs/<runID>/
//
// Thread-safety: writes go through temp file + rename, so no locks are
// needed for concurrent callers.
type FSStore struct {
	baseDir string
}

// NewFSStore creates a new filesystem-based store.
// The baseDir will be created if it doesn't exist.
func NewFSStore(baseDir string) (*FSStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &FSStore{
		baseDir: baseDir,
	}, nil
}

// BaseDir returns the root directory of the store.
func (fs *FSStore) BaseDir() string {
	return fs.baseDir
}

func (fs *FSStore) runDir(id string) string {
	return filepath.Join(fs.baseDir, "runs", id)
}

func (fs *FSStore) runPath(id string) string {
	return filepath.Join(fs.runDir(id), "run.json")
}

// CheckRunID rejects IDs that are not UUIDs, so an ID can never name a path
// outside the store.
func CheckRunID(id string) error {
	if id == "" {
		return &ValidationError{Field: "ID", Reason: "cannot be empty"}
	}
	if _, err := uuid.Parse(id); err != nil {
		return &ValidationError{Field: "ID", Reason: fmt.Sprintf("not a UUID: %v", err)}
	}
	return nil
}

// RunDir returns the artifact directory of a run, creating it.
func (fs *FSStore) RunDir(id string) (string, error) {
	if err := CheckRunID(id); err != nil {
		return "", err
	}
	dir := fs.runDir(id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create run directory: %w", err)
	}
	return dir, nil
}

// SaveRun atomically saves a run record.
func (fs *FSStore) SaveRun(run *Run) error {
	if run == nil {
		return fmt.Errorf("run cannot be nil")
	}
	if err := run.Validate(); err != nil {
		return err
	}

	if _, err := fs.RunDir(run.ID); err != nil {
		return err
	}

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize run: %w", err)
	}

	finalPath := fs.runPath(run.ID)
	tempPath := finalPath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp run file: %w", err)
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename run file: %w", err)
	}

	slog.Debug("Run saved", "runID", run.ID, "path", finalPath)
	return nil
}

// LoadRun retrieves a run record.
func (fs *FSStore) LoadRun(id string) (*Run, error) {
	if err := CheckRunID(id); err != nil {
		return nil, err
	}

	path := fs.runPath(id)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, &NotFoundError{RunID: id}
	} else if err != nil {
		return nil, fmt.Errorf("failed to read run file: %w", err)
	}

	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to deserialize run: %w", err)
	}

	slog.Debug("Run loaded", "runID", id, "path", path)
	return &run, nil
}

// ListRuns returns metadata for all stored runs, newest first.
func (fs *FSStore) ListRuns() ([]RunInfo, error) {
	runsDir := filepath.Join(fs.baseDir, "runs")

	entries, err := os.ReadDir(runsDir)
	if os.IsNotExist(err) {
		return []RunInfo{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read runs directory: %w", err)
	}

	infos := []RunInfo{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		id := entry.Name()
		if _, err := os.Stat(fs.runPath(id)); os.IsNotExist(err) {
			continue // artifacts without a record
		}

		run, err := fs.LoadRun(id)
		if err != nil {
			slog.Warn("Failed to load run for listing", "runID", id, "error", err)
			continue
		}
		infos = append(infos, run.ToInfo())
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Timestamp.After(infos[j].Timestamp)
	})

	slog.Debug("Listed runs", "count", len(infos))
	return infos, nil
}

// DeleteRun removes the run and all associated artifacts.
func (fs *FSStore) DeleteRun(id string) error {
	if err := CheckRunID(id); err != nil {
		return err
	}

	dir := fs.runDir(id)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return &NotFoundError{RunID: id}
	} else if err != nil {
		return fmt.Errorf("failed to stat run directory: %w", err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove run directory: %w", err)
	}

	slog.Debug("Run deleted", "runID", id, "path", dir)
	return nil
}
