// Package storage is the object store for uploaded product images.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"
)

var ErrInvalidPath = errors.New("invalid object path")

type Store struct {
	fs      afero.Fs
	baseURL string
}

func New(fs afero.Fs, baseURL string) *Store {
	return &Store{fs: fs, baseURL: strings.TrimRight(baseURL, "/")}
}

// NewDir stores objects under dir on the local filesystem.
func NewDir(dir, baseURL string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create %s: %w", dir, err)
	}
	return New(afero.NewBasePathFs(afero.NewOsFs(), dir), baseURL), nil
}

// cleanKey validates a relative object key and returns its rooted path, the
// form the file server asks for.
func cleanKey(key string) (string, error) {
	if key == "" || strings.Contains(key, "..") || strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, key)
	}
	return path.Join("/", key), nil
}

// Upload writes r to key, replacing any existing object.
func (s *Store) Upload(ctx context.Context, key string, r io.Reader) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if dir := path.Dir(key); dir != "/" {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("storage: mkdir %s: %w", dir, err)
		}
	}

	f, err := s.fs.OpenFile(key, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("storage: open %s: %w", key, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return fmt.Errorf("storage: write %s: %w", key, err)
	}
	return f.Close()
}

func (s *Store) PublicURL(key string) string {
	return s.baseURL + "/" + strings.TrimLeft(key, "/")
}

func (s *Store) Exists(key string) bool {
	name, err := cleanKey(key)
	if err != nil {
		return false
	}
	ok, err := afero.Exists(s.fs, name)
	return err == nil && ok
}

// Handler serves stored objects; mount it under the public base URL with the
// prefix stripped.
func (s *Store) Handler() http.Handler {
	return http.FileServer(afero.NewHttpFs(s.fs).Dir("/"))
}
