package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"davbackup/internal/encryptor"
)

// fakeArchiver writes a fixed-size artifact next to the source, like the
// real utility, unless the directory name is listed in fail.
type fakeArchiver struct {
	mu     sync.Mutex
	fail   map[string]bool
	size   int
	calls  []string
	before func(sourcePath string)

	// suffix replaces the artifact suffix when set.
	suffix string
}

func (f *fakeArchiver) ArchiveAndEncrypt(_ context.Context, _ zerolog.Logger, sourcePath string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, sourcePath)
	f.mu.Unlock()
	if f.before != nil {
		f.before(sourcePath)
	}
	if f.fail[filepath.Base(sourcePath)] {
		return "", fmt.Errorf("%w: exit code 1", encryptor.ErrArchiveEncrypt)
	}
	artifact := encryptor.ArtifactPath(sourcePath)
	if f.suffix != "" {
		artifact = sourcePath + f.suffix
	}
	if err := os.WriteFile(artifact, make([]byte, f.size), 0o600); err != nil {
		return "", err
	}
	return artifact, nil
}

type archiverFunc func(ctx context.Context, logger zerolog.Logger, sourcePath string) (string, error)

func (f archiverFunc) ArchiveAndEncrypt(ctx context.Context, logger zerolog.Logger, sourcePath string) (string, error) {
	return f(ctx, logger, sourcePath)
}

// fakeStore records uploads and reports sizes from its tables.
type fakeStore struct {
	mu sync.Mutex

	// uploadErr fails the upload of the named remote file.
	uploadErr map[string]error

	// sizeOverride replaces the uploaded size; a nil entry means absent.
	sizeOverride map[string]*int64
	sizeErr      map[string]error
	uploaded     map[string]int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		uploadErr:    map[string]error{},
		sizeOverride: map[string]*int64{},
		sizeErr:      map[string]error{},
		uploaded:     map[string]int64{},
	}
}

func (s *fakeStore) URL(remoteName string) string { return "dav://backup/" + remoteName }

func (s *fakeStore) Upload(_ context.Context, localPath, remoteName string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.uploadErr[remoteName]; err != nil {
		return 507, err
	}
	info, err := os.Stat(localPath)
	if err != nil {
		return 0, err
	}
	s.uploaded[remoteName] = info.Size()
	return 201, nil
}

func (s *fakeStore) RemoteSize(_ context.Context, remoteURL string) (*int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := filepath.Base(remoteURL)
	if err := s.sizeErr[name]; err != nil {
		return nil, err
	}
	if override, ok := s.sizeOverride[name]; ok {
		return override, nil
	}
	size, ok := s.uploaded[name]
	if !ok {
		return nil, nil
	}
	return &size, nil
}

func (s *fakeStore) uploads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.uploaded)
}

func makeDirs(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.MkdirAll(filepath.Join(root, name), 0o750); err != nil {
			t.Fatalf("mkdir %s: %v", name, err)
		}
	}
}

func int64p(v int64) *int64 { return &v }
