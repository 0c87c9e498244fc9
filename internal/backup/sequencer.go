package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"davbackup/internal/webdav"
)

// Sequencer drives an artifact from local disk to verified remote copy.
type Sequencer struct {
	store RemoteStore

	// remove deletes the local artifact; swapped in tests.
	remove func(path string) error
}

func NewSequencer(store RemoteStore) *Sequencer {
	return &Sequencer{store: store, remove: os.Remove}
}

// Finalize uploads task.ArtifactPath, compares the remote size with the
// local one and deletes the artifact only when they match. A failed delete is
// logged and does not fail the task. The returned error wraps ErrUpload or
// ErrVerify; the artifact is left in place in both cases.
func (s *Sequencer) Finalize(ctx context.Context, logger zerolog.Logger, task Task) error {
	_, err := s.finalize(ctx, logger, task)
	return err
}

// finalize also reports the stage reached so the worker can record it.
func (s *Sequencer) finalize(ctx context.Context, logger zerolog.Logger, task Task) (Stage, error) {
	remoteName := filepath.Base(task.ArtifactPath)

	status, err := s.store.Upload(ctx, task.ArtifactPath, remoteName)
	if err != nil {
		evt := logger.Error().Str("file", remoteName)
		var se *webdav.StatusError
		if errors.As(err, &se) {
			evt = evt.Int("status", se.Status).Str("body", se.Body)
		}
		evt.Err(err).Msg("upload failed")
		return StageUpload, fmt.Errorf("%w: %w", ErrUpload, err)
	}
	logger.Debug().Int("status", status).Str("file", remoteName).Msg("upload accepted")

	info, err := os.Stat(task.ArtifactPath)
	if err != nil {
		logger.Error().Err(err).Msg("could not measure local file size")
		return StageVerify, fmt.Errorf("%w: local size: %w", ErrVerify, err)
	}
	localSize := info.Size()

	remoteSize, err := s.store.RemoteSize(ctx, s.store.URL(remoteName))
	if err != nil {
		logger.Error().Err(err).Msg("could not verify remote file size")
		return StageVerify, fmt.Errorf("%w: %w", ErrVerify, err)
	}
	if remoteSize == nil {
		logger.Error().Str("file", remoteName).Msg("upload status unknown: remote size not reported")
		return StageVerify, fmt.Errorf("%w: remote size absent", ErrVerify)
	}
	if *remoteSize != localSize {
		logger.Error().Str("file", remoteName).Int64("local_size", localSize).Int64("remote_size", *remoteSize).
			Msg("upload status unknown: file size mismatch")
		return StageVerify, fmt.Errorf("%w: remote size %d != local size %d", ErrVerify, *remoteSize, localSize)
	}
	logger.Info().Str("file", remoteName).Int64("size", localSize).Msg("file uploaded successfully")

	if err := s.remove(task.ArtifactPath); err != nil {
		logger.Warn().Err(err).Str("path", task.ArtifactPath).Msg("could not remove local file")
	} else {
		logger.Info().Str("path", task.ArtifactPath).Msg("removed local file")
	}
	return StageDone, nil
}
