package run

import (
	"context"
	"fmt"
)

// LoadFromDisk restores persisted runs. A run still marked running was cut
// short by a previous process exit and is marked failed.
func (m *Manager) LoadFromDisk() error {
	if m.store == nil {
		return nil
	}
	loaded, err := m.store.LoadRuns(context.Background())
	if err != nil {
		return fmt.Errorf("load runs: %w", err)
	}
	for _, r := range loaded {
		if r.Status == StatusRunning {
			r.Status = StatusFailed
			r.Error = "interrupted"
			_ = m.persistRun(r)
		}
		m.mu.Lock()
		m.runs[r.ID] = r
		m.mu.Unlock()
	}
	return nil
}
