package backup

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Task is one top-level source directory scheduled for backup.
type Task struct {
	ID           int    `json:"id"`
	SourcePath   string `json:"source_path"`
	ArtifactPath string `json:"artifact_path"`
}

type Stage string

const (
	StageArchive Stage = "archive_encrypt"
	StageUpload  Stage = "upload"
	StageVerify  Stage = "verify"
	StageDone    Stage = "done"
)

// Outcome is reported exactly once per task by its worker. Stage is the
// last stage reached; Err is nil when the backup is verified remotely.
type Outcome struct {
	TaskID     int
	SourcePath string
	Stage      Stage
	Err        error
}

func (o Outcome) Failed() bool { return o.Err != nil }

// TaskResult is the serialisable form of an Outcome.
type TaskResult struct {
	ID         int    `json:"id"`
	SourcePath string `json:"source_path"`
	Stage      Stage  `json:"stage"`
	Error      string `json:"error,omitempty"`
}

// Report summarises one run. Failed lists source paths in the order their
// workers finished.
type Report struct {
	RunID      string        `json:"run_id,omitempty"`
	Root       string        `json:"root"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`
	Tasks      int           `json:"tasks"`
	Results    []TaskResult  `json:"results"`
	Failed     []string      `json:"failed"`
}

func (r Report) AllSucceeded() bool { return len(r.Failed) == 0 }

// Archiver produces the encrypted artifact for a source path.
type Archiver interface {
	ArchiveAndEncrypt(ctx context.Context, logger zerolog.Logger, sourcePath string) (string, error)
}

// RemoteStore uploads artifacts and reports their stored size.
type RemoteStore interface {
	URL(remoteName string) string
	Upload(ctx context.Context, localPath, remoteName string) (int, error)
	RemoteSize(ctx context.Context, remoteURL string) (*int64, error)
}
