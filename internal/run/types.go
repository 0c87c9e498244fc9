package run

import (
	"time"

	"davbackup/internal/backup"
)

type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Run is one invocation of the backup pipeline. Report is set once the
// pipeline returns; Error is set when it could not start (e.g. unreadable
// source root) or the process stopped while it was running.
type Run struct {
	ID         string         `json:"id"`
	Status     Status         `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Report     *backup.Report `json:"report,omitempty"`
	Error      string         `json:"error,omitempty"`
}

func (r *Run) clone() Run {
	c := *r
	if r.Report != nil {
		rep := *r.Report
		rep.Results = append([]backup.TaskResult(nil), r.Report.Results...)
		rep.Failed = append([]string(nil), r.Report.Failed...)
		c.Report = &rep
	}
	return c
}

type Options struct {
	DataDir string
	Root    string
}
