// Package blob provides key-addressed byte storage with optimistic-concurrency
// tokens. Backends: S3, PostgreSQL, local filesystem and in-memory.
package blob

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/jonathan/campaign-studio/internal/apperr"
)

var (
	// ErrNotFound is returned by Get and Delete when the key is absent.
	ErrNotFound = apperr.New(apperr.KindNotFound, "blob not found")
	// ErrPreconditionFailed is returned by a conditional Put whose condition
	// no longer holds.
	ErrPreconditionFailed = apperr.New(apperr.KindConcurrentModification, "blob changed since it was read")
)

// Object is one stored blob.
// Version is an opaque token that changes on every write.
type Object struct {
	Data        []byte
	ContentType string
	Version     string
}

// Condition restricts a Put. The zero value is an unconditional write.
type Condition struct {
	// IfVersion makes the write succeed only if the stored version equals it.
	IfVersion string
	// IfAbsent makes the write succeed only if the key does not exist.
	IfAbsent bool
}

// Unconditional is the zero Condition.
var Unconditional = Condition{}

// Store is the blob tier contract. There is no listing and no transaction
// spanning keys.
type Store interface {
	// Get returns the object at key, or ErrNotFound.
	Get(ctx context.Context, key string) (*Object, error)
	// Put stores data at key and returns its public reference.
	Put(ctx context.Context, key string, data []byte, contentType string, cond Condition) (string, error)
	// Delete removes key, or returns ErrNotFound.
	Delete(ctx context.Context, key string) error
	// PublicURL returns the deterministic public reference for key.
	PublicURL(key string) string
	// KeyFromURL recovers the key from a reference produced by PublicURL.
	KeyFromURL(ref string) (string, error)
}

func unavailable(op, key string, err error) error {
	return apperr.Wrap(apperr.KindUnavailable, "blob storage unavailable", fmt.Errorf("%s %s: %w", op, key, err))
}

// escapeKey escapes each path segment of key for use in a URL.
func escapeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// filesPrefix serves PublicURL/KeyFromURL for backends whose blobs are
// exposed through the service's own /files/ route.
type filesPrefix struct {
	baseURL string
}

func (p filesPrefix) PublicURL(key string) string {
	return strings.TrimRight(p.baseURL, "/") + "/files/" + escapeKey(key)
}

func (p filesPrefix) KeyFromURL(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid blob reference %q: %w", ref, err)
	}
	path := strings.TrimPrefix(u.Path, "/")
	if base, err := url.Parse(p.baseURL); err == nil {
		path = strings.TrimPrefix(path, strings.Trim(base.Path, "/"))
		path = strings.TrimPrefix(path, "/")
	}
	key, ok := strings.CutPrefix(path, "files/")
	if !ok || key == "" {
		return "", fmt.Errorf("blob reference %q is not a /files/ URL", ref)
	}
	return key, nil
}
