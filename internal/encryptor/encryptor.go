// Package encryptor runs the external archive-encrypt utility for one source
// path and relays its output to the log while it runs.
package encryptor

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/rs/zerolog"
)

// ArtifactSuffix is appended to the source path by the utility on success.
const ArtifactSuffix = ".zip.enc"

var ErrArchiveEncrypt = errors.New("archive-encrypt failed")

// waitDelay bounds how long Wait keeps reading output after the child was
// killed.
const waitDelay = 2 * time.Second

// ArtifactPath derives the artifact written for sourcePath.
func ArtifactPath(sourcePath string) string { return sourcePath + ArtifactSuffix }

// Runner invokes Command followed by the source path and KeyPath.
type Runner struct {
	// Command is the argv prefix, e.g. {"zipenc"} or {"/usr/local/bin/zipenc", "-k"}.
	Command []string
	KeyPath string

	// Timeout kills the child after the given duration; zero waits forever.
	Timeout time.Duration
}

// ArchiveAndEncrypt runs the utility for sourcePath. stdout and stderr are
// logged line by line as they arrive. A zero exit yields the derived artifact
// path, which is not checked against the filesystem. When ctx ends first the
// child and everything it started are killed.
func (r *Runner) ArchiveAndEncrypt(ctx context.Context, logger zerolog.Logger, sourcePath string) (string, error) {
	if len(r.Command) == 0 {
		return "", fmt.Errorf("%w: no command configured", ErrArchiveEncrypt)
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	args := append(append([]string{}, r.Command[1:]...), sourcePath, r.KeyPath)
	cmd := exec.CommandContext(ctx, r.Command[0], args...) //nolint:gosec // command comes from operator config
	// the utility may run helpers of its own; cancellation kills the group
	// and WaitDelay stops Wait from blocking on pipes they still hold
	killGroup(cmd)
	cmd.WaitDelay = waitDelay

	stdout := newLineWriter(logger.With().Str("stream", "stdout").Logger(), zerolog.InfoLevel)
	stderr := newLineWriter(logger.With().Str("stream", "stderr").Logger(), zerolog.WarnLevel)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("%w: start: %v", ErrArchiveEncrypt, err)
	}
	err := cmd.Wait()
	stdout.Flush()
	stderr.Flush()

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.DeadlineExceeded) && r.Timeout > 0 {
				return "", fmt.Errorf("%w: killed after %s: %w", ErrArchiveEncrypt, r.Timeout, ctxErr)
			}
			return "", fmt.Errorf("%w: killed: %w", ErrArchiveEncrypt, ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("%w: exit code %d", ErrArchiveEncrypt, exitErr.ExitCode())
		}
		return "", fmt.Errorf("%w: %v", ErrArchiveEncrypt, err)
	}
	return ArtifactPath(sourcePath), nil
}

