package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/custdesk/apiserver/config"
)

// LocalClient stores objects on the local filesystem under a root directory.
// It mirrors the cloud backends' response shape by fabricating a version
// integer and embedding it in the returned reference path. The version is
// cosmetic only; Get strips it before resolving the key.
type LocalClient struct {
	root string
}

// NewLocalClient constructs a local-disk client from config.
func NewLocalClient(cfg config.LocalConfig) (*LocalClient, error) {
	if strings.TrimSpace(cfg.Root) == "" {
		return nil, errors.New("local storage root is required")
	}
	return &LocalClient{root: cfg.Root}, nil
}

// EnsureBucket creates the root directory when missing.
func (l *LocalClient) EnsureBucket(ctx context.Context) error {
	return os.MkdirAll(l.root, 0o755)
}

// Put writes an object under the root directory and returns a versioned
// reference of the form /v{n}/{key}.
func (l *LocalClient) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	path := filepath.Join(l.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}

	file, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(file, r); err != nil {
		_ = file.Close()
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", err
	}

	version := rand.Intn(999999999) + 1000000000
	return fmt.Sprintf("/v%d/%s", version, key), nil
}

// Get opens a stored object. The key may carry the cosmetic /v{n}/ prefix
// produced by Put.
func (l *LocalClient) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	file, err := os.Open(filepath.Join(l.root, filepath.FromSlash(stripVersion(key))))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, err
	}
	return file, nil
}

// Delete removes a stored object.
func (l *LocalClient) Delete(ctx context.Context, key string) error {
	return os.Remove(filepath.Join(l.root, filepath.FromSlash(stripVersion(key))))
}

// Bucket returns the root directory.
func (l *LocalClient) Bucket() string {
	return l.root
}

func stripVersion(key string) string {
	if !strings.HasPrefix(key, "/v") {
		return key
	}
	rest := strings.TrimPrefix(key, "/v")
	slash := strings.IndexByte(rest, '/')
	if slash < 0 {
		return key
	}
	for _, c := range rest[:slash] {
		if c < '0' || c > '9' {
			return key
		}
	}
	return rest[slash+1:]
}
