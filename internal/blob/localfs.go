package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// LocalFS stores blobs as files under Root. Versions are content hashes.
// Conditional writes are serialized by a process-wide mutex, so the
// guarantee holds for a single process only.
type LocalFS struct {
	filesPrefix
	Root string
	mu   sync.Mutex
}

// NewLocalFS creates a filesystem store rooted at root.
func NewLocalFS(root, baseURL string) (*LocalFS, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob root %s: %w", root, err)
	}
	return &LocalFS{filesPrefix: filesPrefix{baseURL: baseURL}, Root: root}, nil
}

func (l *LocalFS) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return filepath.Join(l.Root, clean), nil
}

func contentVersion(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Get implements Store.
func (l *LocalFS) Get(_ context.Context, key string) (*Object, error) {
	abs, err := l.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, unavailable("get", key, err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(abs))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return &Object{Data: data, ContentType: contentType, Version: contentVersion(data)}, nil
}

// Put implements Store. The file is written to a temp file and renamed so a
// reader never observes a partial document.
func (l *LocalFS) Put(_ context.Context, key string, data []byte, _ string, cond Condition) (string, error) {
	abs, err := l.path(key)
	if err != nil {
		return "", err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if cond.IfAbsent || cond.IfVersion != "" {
		current, err := os.ReadFile(abs)
		exists := err == nil
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", unavailable("put", key, err)
		}
		if cond.IfAbsent && exists {
			return "", ErrPreconditionFailed
		}
		if cond.IfVersion != "" && (!exists || contentVersion(current) != cond.IfVersion) {
			return "", ErrPreconditionFailed
		}
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", unavailable("put", key, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(abs), ".blob-*")
	if err != nil {
		return "", unavailable("put", key, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", unavailable("put", key, err)
	}
	if err := tmp.Close(); err != nil {
		return "", unavailable("put", key, err)
	}
	if err := os.Rename(tmp.Name(), abs); err != nil {
		return "", unavailable("put", key, err)
	}
	return l.PublicURL(key), nil
}

// Delete implements Store.
func (l *LocalFS) Delete(_ context.Context, key string) error {
	abs, err := l.path(key)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.Remove(abs); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return unavailable("delete", key, err)
	}
	return nil
}
