package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/driveline/driveline/internal/core"
	"github.com/driveline/driveline/internal/domain/upload"
)

// LocalStore keeps archived blobs in a directory of an afero filesystem.
type LocalStore struct {
	fs  afero.Fs
	dir string
}

var _ core.BlobArchive = (*LocalStore)(nil)

// NewLocalStore creates dir if needed and returns a store rooted there.
func NewLocalStore(fsys afero.Fs, dir string) (*LocalStore, error) {
	if fsys == nil {
		return nil, errors.New("filesystem is required")
	}
	if dir == "" {
		return nil, errors.New("archive dir is required")
	}
	if err := fsys.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return &LocalStore{fs: fsys, dir: dir}, nil
}

// Put writes r to key, replacing any previous copy. The write goes through a
// temporary file so a crash never leaves a truncated blob under key.
func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader, _ int64) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := afero.TempFile(s.fs, s.dir, ".put-*")
	if err != nil {
		return fmt.Errorf("create temp archive file: %w", err)
	}
	tmpName := tmp.Name()

	_, copyErr := io.Copy(tmp, r)
	closeErr := tmp.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("write archive %s: %w", key, err)
	}
	if err := s.fs.Rename(tmpName, s.path(key)); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("commit archive %s: %w", key, err)
	}
	return nil
}

// Get opens the archived copy of key.
func (s *LocalStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	f, err := s.fs.Open(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("archive %s: %w", key, upload.ErrBlobNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", key, err)
	}
	return f, nil
}

// Delete removes key. Missing keys are not an error.
func (s *LocalStore) Delete(_ context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := s.fs.Remove(s.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete archive %s: %w", key, err)
	}
	return nil
}

// PurgeOlderThan removes blobs last modified before cutoff.
func (s *LocalStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return 0, fmt.Errorf("list archive: %w", err)
	}

	var (
		removed int
		errs    []error
	)
	for _, e := range entries {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}
		if e.IsDir() || !e.ModTime().Before(cutoff) {
			continue
		}
		if err := s.fs.Remove(filepath.Join(s.dir, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

func (s *LocalStore) path(key string) string {
	return filepath.Join(s.dir, key)
}
