package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore keeps objects under dir/<bucket>/<path>.
type LocalStore struct {
	dir       string
	publicURL string
}

func NewLocalStore(dir, publicURL string) *LocalStore {
	return &LocalStore{dir: dir, publicURL: publicURL}
}

func (s *LocalStore) resolve(bucket, path string) (string, error) {
	root := filepath.Join(s.dir, bucket)
	full := filepath.Join(root, filepath.FromSlash(path))
	if full != root && !strings.HasPrefix(full, root+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid object path %q", path)
	}
	return full, nil
}

func (s *LocalStore) Upload(_ context.Context, bucket, path string, data []byte, _ string) error {
	full, err := s.resolve(bucket, path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return err
	}
	return os.WriteFile(full, data, 0644)
}

func (s *LocalStore) Delete(_ context.Context, bucket, path string) error {
	full, err := s.resolve(bucket, path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *LocalStore) PublicURL(bucket, path string) string {
	return joinURL(s.publicURL, bucket, path)
}

// Dir is the root served under the public URL.
func (s *LocalStore) Dir() string {
	return s.dir
}
