package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"davbackup/internal/encryptor"
)

// DefaultExclude names the directory recreated by filesystem recovery tools.
const DefaultExclude = "lost+found"

// Discover lists the immediate children of root that are directories and
// whose name does not contain exclude. IDs follow enumeration order, which
// carries no meaning beyond labelling log lines.
func Discover(root, exclude string) ([]Task, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	entries, err := os.ReadDir(absRoot)
	if err != nil {
		return nil, fmt.Errorf("read source root: %w", err)
	}

	tasks := make([]Task, 0, len(entries))
	for _, entry := range entries {
		if exclude != "" && strings.Contains(entry.Name(), exclude) {
			continue
		}
		sourcePath := filepath.Join(absRoot, entry.Name())
		// Stat follows symlinks and drops entries removed since ReadDir
		info, err := os.Stat(sourcePath)
		if err != nil || !info.IsDir() {
			continue
		}
		tasks = append(tasks, Task{
			ID:           len(tasks),
			SourcePath:   sourcePath,
			ArtifactPath: encryptor.ArtifactPath(sourcePath),
		})
	}
	return tasks, nil
}

// Options configures an Orchestrator.
type Options struct {
	Exclude string
	Logger  zerolog.Logger

	// MaxParallel caps concurrent workers; zero runs one worker per task.
	MaxParallel int
}

// Orchestrator runs one worker per discovered task and gathers outcomes.
type Orchestrator struct {
	archiver    Archiver
	sequencer   *Sequencer
	exclude     string
	maxParallel int
	logger      zerolog.Logger
}

func NewOrchestrator(archiver Archiver, sequencer *Sequencer, opts Options) *Orchestrator {
	if opts.Exclude == "" {
		opts.Exclude = DefaultExclude
	}
	return &Orchestrator{
		archiver:    archiver,
		sequencer:   sequencer,
		exclude:     opts.Exclude,
		maxParallel: opts.MaxParallel,
		logger:      opts.Logger,
	}
}

// Run backs up every eligible directory below root and returns once each
// worker has reported. Only discovery errors are returned; task failures are
// listed in the report.
func (o *Orchestrator) Run(ctx context.Context, root string) (Report, error) {
	report := Report{Root: root, StartedAt: time.Now()}

	tasks, err := Discover(root, o.exclude)
	if err != nil {
		return report, err
	}
	report.Tasks = len(tasks)
	o.logger.Info().Str("root", root).Int("tasks", len(tasks)).Msg("starting backup")

	outcomes := make(chan Outcome, len(tasks))
	var g errgroup.Group
	if o.maxParallel > 0 {
		g.SetLimit(o.maxParallel)
	}
	go func() {
		for _, task := range tasks {
			g.Go(func() error {
				outcomes <- o.work(ctx, task)
				return nil
			})
		}
		_ = g.Wait()
		close(outcomes)
	}()

	report.Results = make([]TaskResult, 0, len(tasks))
	report.Failed = make([]string, 0)
	for out := range outcomes {
		result := TaskResult{ID: out.TaskID, SourcePath: out.SourcePath, Stage: out.Stage}
		if out.Failed() {
			result.Error = out.Err.Error()
			report.Failed = append(report.Failed, out.SourcePath)
		}
		report.Results = append(report.Results, result)
	}

	report.FinishedAt = time.Now()
	report.Duration = report.FinishedAt.Sub(report.StartedAt)
	return report, nil
}

// work runs archive-encrypt and then the sequencer for one task. Each stage
// starts only if the previous one succeeded.
func (o *Orchestrator) work(ctx context.Context, task Task) Outcome {
	logger := o.logger.With().Int("worker", task.ID).Logger()
	logger.Info().Str("path", task.SourcePath).Msg("starting")
	out := Outcome{TaskID: task.ID, SourcePath: task.SourcePath, Stage: StageArchive}

	artifact, err := o.archiver.ArchiveAndEncrypt(ctx, logger, task.SourcePath)
	if err != nil {
		if !errors.Is(err, ErrArchiveEncrypt) {
			err = fmt.Errorf("%w: %w", ErrArchiveEncrypt, err)
		}
		out.Err = err
		logger.Error().Err(err).Msg("interrupted through errors")
		return out
	}
	task.ArtifactPath = artifact

	out.Stage, out.Err = o.sequencer.finalize(ctx, logger, task)
	if out.Failed() {
		logger.Warn().Msg("done with errors")
	} else {
		logger.Info().Msg("done without errors")
	}
	return out
}
