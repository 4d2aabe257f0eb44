package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage reads site folders from a directory. Used in development in
// place of the bucket.
type LocalStorage struct {
	root   string
	logger *slog.Logger
}

// NewLocalStorage creates a LocalStorage rooted at cfg.BasePath, creating
// the directory when missing.
func NewLocalStorage(cfg LocalConfig, logger *slog.Logger) (*LocalStorage, error) {
	root, err := filepath.Abs(cfg.BasePath)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}

	logger.Info("serving frontends from disk", "root", root)
	return &LocalStorage{root: root, logger: logger}, nil
}

// Get opens the file at key. Directories count as missing.
func (s *LocalStorage) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, ObjectInfo{}, err
	}

	path, err := s.path(key)
	if err != nil {
		return nil, ObjectInfo{}, objectErr("get", key, err)
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ObjectInfo{}, objectErr("get", key, ErrNotFound)
	}
	if err != nil {
		return nil, ObjectInfo{}, objectErr("get", key, err)
	}

	stat, err := f.Stat()
	if err != nil || stat.IsDir() {
		f.Close()
		if err == nil {
			err = ErrNotFound
		}
		return nil, ObjectInfo{}, objectErr("get", key, err)
	}

	return f, ObjectInfo{
		Key:          key,
		Size:         stat.Size(),
		ContentType:  DetectContentType("", key),
		LastModified: stat.ModTime(),
	}, nil
}

// path maps key to a file under root, refusing anything that escapes it.
func (s *LocalStorage) path(key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	p := filepath.Join(s.root, filepath.FromSlash(key))
	if !strings.HasPrefix(p, s.root+string(filepath.Separator)) {
		return "", ErrInvalidKey
	}
	return p, nil
}
