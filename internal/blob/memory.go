package blob

import (
	"context"
	"strconv"
	"sync"
)

type memoryObject struct {
	data        []byte
	contentType string
	version     uint64
}

// Memory is an in-process Store. It is safe for concurrent use.
type Memory struct {
	filesPrefix
	mu      sync.Mutex
	objects map[string]memoryObject
	seq     uint64
}

// NewMemory creates an empty in-memory store whose public references are
// rooted at baseURL.
func NewMemory(baseURL string) *Memory {
	return &Memory{
		filesPrefix: filesPrefix{baseURL: baseURL},
		objects:     make(map[string]memoryObject),
	}
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, key string) (*Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	obj, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &Object{
		Data:        append([]byte(nil), obj.data...),
		ContentType: obj.contentType,
		Version:     strconv.FormatUint(obj.version, 10),
	}, nil
}

// Put implements Store.
func (m *Memory) Put(_ context.Context, key string, data []byte, contentType string, cond Condition) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, exists := m.objects[key]
	if cond.IfAbsent && exists {
		return "", ErrPreconditionFailed
	}
	if cond.IfVersion != "" && (!exists || strconv.FormatUint(existing.version, 10) != cond.IfVersion) {
		return "", ErrPreconditionFailed
	}

	m.seq++
	m.objects[key] = memoryObject{
		data:        append([]byte(nil), data...),
		contentType: contentType,
		version:     m.seq,
	}
	return m.PublicURL(key), nil
}

// Delete implements Store.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.objects[key]; !ok {
		return ErrNotFound
	}
	delete(m.objects, key)
	return nil
}

// Len returns the number of stored keys.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
