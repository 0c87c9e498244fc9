// Package zipenc implements the archive-encrypt utility run by the backup
// workers for every source directory.
package zipenc

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"davbackup/internal/archive"
	"davbackup/internal/crypt"
	fileutil "davbackup/internal/file"
)

type Mode string

const (
	ModeZipEncrypt  Mode = "zip_enc"
	ModeZipOnly     Mode = "ozip"
	ModeEncryptOnly Mode = "oenc"
)

// EncryptedSuffix names the artifact produced in ModeZipEncrypt.
const EncryptedSuffix = archive.Suffix + ".enc"

var ErrSourceMissing = errors.New("source does not exist")

// Options mirrors the command line of the utility.
type Options struct {
	Source string
	Key    string
	Mode   Mode

	// Output overrides the derived output path when set.
	Output string

	// Keep retains the intermediate zip in ModeZipEncrypt.
	Keep bool
}

// ParseMode validates a mode name; empty selects ModeZipEncrypt.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeZipEncrypt:
		return ModeZipEncrypt, nil
	case ModeZipOnly, ModeEncryptOnly:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown mode %q (want zip_enc, ozip or oenc)", s)
}

// Run performs the requested operation and returns the path written.
// Any error means the output must not be trusted.
func Run(opts Options, logger zerolog.Logger) (string, error) {
	if _, err := os.Stat(opts.Source); err != nil {
		return "", fmt.Errorf("%w: %s", ErrSourceMissing, opts.Source)
	}

	switch opts.Mode {
	case ModeZipOnly:
		out := outputPath(opts, archive.Suffix)
		if _, err := archive.ZipPath(opts.Source, out); err != nil {
			return "", fmt.Errorf("zipping failed: %w", err)
		}
		logger.Info().Str("src", opts.Source).Str("out", out).Msg("zipped")
		return out, nil

	case ModeEncryptOnly:
		key, err := crypt.ReadKey(opts.Key)
		if err != nil {
			return "", err
		}
		out := outputPath(opts, ".enc")
		if err := encryptFile(opts.Source, out, key); err != nil {
			return "", err
		}
		logger.Info().Str("src", opts.Source).Str("out", out).Msg("encrypted")
		return out, nil

	case ModeZipEncrypt, "":
		return zipAndEncrypt(opts, logger)
	}
	return "", fmt.Errorf("unknown mode %q", opts.Mode)
}

func zipAndEncrypt(opts Options, logger zerolog.Logger) (string, error) {
	key, err := crypt.ReadKey(opts.Key)
	if err != nil {
		return "", err
	}

	zipOut := opts.Source + archive.Suffix
	entries, err := archive.ZipPath(opts.Source, zipOut)
	if err != nil {
		_ = os.Remove(zipOut)
		return "", fmt.Errorf("zipping failed: %w", err)
	}
	if opts.Keep {
		logger.Info().Str("src", opts.Source).Str("out", zipOut).Int("entries", entries).Msg("zipped")
	}

	out := outputPath(opts, EncryptedSuffix)
	if err := encryptFile(zipOut, out, key); err != nil {
		if !opts.Keep {
			_ = os.Remove(zipOut)
			logger.Warn().Str("zip", zipOut).Msg("zip file removed due to encryption failure")
		}
		return "", err
	}

	if !opts.Keep {
		if err := os.Remove(zipOut); err != nil {
			logger.Warn().Err(err).Str("zip", zipOut).Msg("could not remove intermediate zip")
		}
	}
	logger.Info().Str("src", opts.Source).Str("out", out).Msg("encrypted")
	return out, nil
}

func outputPath(opts Options, suffix string) string {
	if opts.Output != "" {
		return opts.Output
	}
	return opts.Source + suffix
}

func encryptFile(src, dest, key string) error {
	in, err := os.Open(src) //nolint:gosec // operator-provided path
	if err != nil {
		return fmt.Errorf("encryption failed: %w", err)
	}
	defer func() { _ = in.Close() }()

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(crypt.Encrypt(pw, in, key))
	}()
	if err := fileutil.CopyAtomic(dest, pr); err != nil {
		_ = pr.CloseWithError(err)
		return fmt.Errorf("encryption failed: %w", err)
	}
	return nil
}
