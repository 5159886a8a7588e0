package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rmitchellscott/creativeforge/internal/security"
)

type memoryObject struct {
	data    []byte
	modTime time.Time
}

// MemoryBackend keeps objects in process memory. It is used for serverless
// deployments, where the filesystem is read-only, and in tests.
type MemoryBackend struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	now     func() time.Time
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		objects: make(map[string]memoryObject),
		now:     time.Now,
	}
}

func (m *MemoryBackend) Put(ctx context.Context, key string, data io.Reader) error {
	if err := security.ValidateStorageKey(key); err != nil {
		return fmt.Errorf("invalid storage key %s: %w", key, err)
	}
	buf, err := io.ReadAll(data)
	if err != nil {
		return fmt.Errorf("failed to read data for %s: %w", key, err)
	}

	m.mu.Lock()
	m.objects[key] = memoryObject{data: buf, modTime: m.now().UTC()}
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	obj, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (m *MemoryBackend) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend) List(ctx context.Context, prefix string) ([]string, error) {
	infos, _ := m.ListWithInfo(ctx, prefix)
	keys := make([]string, 0, len(infos))
	for _, info := range infos {
		keys = append(keys, info.Key)
	}
	return keys, nil
}

func (m *MemoryBackend) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	_, ok := m.objects[key]
	m.mu.RUnlock()
	return ok, nil
}

func (m *MemoryBackend) Copy(ctx context.Context, srcKey, dstKey string) error {
	if err := security.ValidateStorageKey(dstKey); err != nil {
		return fmt.Errorf("invalid destination storage key %s: %w", dstKey, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[srcKey]
	if !ok {
		return fmt.Errorf("failed to open source %s: %w", srcKey, ErrNotFound)
	}
	m.objects[dstKey] = memoryObject{data: obj.data, modTime: m.now().UTC()}
	return nil
}

func (m *MemoryBackend) ListWithInfo(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	m.mu.RLock()
	infos := []ObjectInfo{}
	for key, obj := range m.objects {
		if strings.HasPrefix(key, prefix) {
			infos = append(infos, ObjectInfo{Key: key, Size: int64(len(obj.data)), LastModified: obj.modTime})
		}
	}
	m.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

func (m *MemoryBackend) GetInfo(ctx context.Context, key string) (*ObjectInfo, error) {
	m.mu.RLock()
	obj, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return &ObjectInfo{Key: key, Size: int64(len(obj.data)), LastModified: obj.modTime}, nil
}
