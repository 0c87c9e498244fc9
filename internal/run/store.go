package run

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	fileutil "davbackup/internal/file"
)

// RunStore persists run records. The default implementation keeps one JSON
// document per run under dataDir/runs/<id>/run.json.
type RunStore interface {
	SaveRun(ctx context.Context, r *Run) error
	LoadRuns(ctx context.Context) ([]*Run, error)
}

type fileStore struct {
	dataDir string
}

func NewFileStore(dataDir string) RunStore { //nolint:ireturn
	if dataDir == "" {
		dataDir = "data"
	}
	return &fileStore{dataDir: dataDir}
}

func (s *fileStore) runDir(runID string) string {
	return filepath.Join(s.dataDir, "runs", runID)
}

func (s *fileStore) runPath(runID string) string {
	return filepath.Join(s.runDir(runID), "run.json")
}

func (s *fileStore) SaveRun(_ context.Context, r *Run) error {
	if err := fileutil.EnsureDir(s.runDir(r.ID)); err != nil {
		return fmt.Errorf("ensure run dir: %w", err)
	}
	return fileutil.WriteJSONAtomic(s.runPath(r.ID), r) //nolint:wrapcheck
}

// LoadRuns skips directories without a readable run.json.
func (s *fileStore) LoadRuns(_ context.Context) ([]*Run, error) {
	root := filepath.Join(s.dataDir, "runs")
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read dir: %w", err)
	}
	runs := make([]*Run, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		b, err := os.ReadFile(s.runPath(e.Name())) //nolint:gosec // path is controlled by application
		if err != nil {
			continue
		}
		var r Run
		if err := json.Unmarshal(b, &r); err != nil {
			continue
		}
		runs = append(runs, &r)
	}
	return runs, nil
}
