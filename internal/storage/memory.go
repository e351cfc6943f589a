package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-memory BlobStore for tests. Failures can be injected
// per key to exercise compensation paths.
type MemoryStore struct {
	mu       sync.Mutex
	objects  map[string][]byte
	failCopy map[string]bool
	failDel  map[string]bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects:  make(map[string][]byte),
		failCopy: make(map[string]bool),
		failDel:  make(map[string]bool),
	}
}

// Put seeds an object.
func (m *MemoryStore) Put(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
}

// FailCopyTo makes the next Copy with this destination fail.
func (m *MemoryStore) FailCopyTo(dstKey string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failCopy[dstKey] = true
}

// FailDelete makes Delete on this key fail.
func (m *MemoryStore) FailDelete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failDel[key] = true
}

// Keys returns every stored key.
func (m *MemoryStore) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	return keys
}

func (m *MemoryStore) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

func (m *MemoryStore) Copy(ctx context.Context, srcKey, dstKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCopy[dstKey] {
		return fmt.Errorf("copy to %s: injected failure", dstKey)
	}
	data, ok := m.objects[srcKey]
	if !ok {
		return fmt.Errorf("copy %s: no such key", srcKey)
	}
	m.objects[dstKey] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDel[key] {
		return fmt.Errorf("delete %s: injected failure", key)
	}
	delete(m.objects, key)
	return nil
}

func (m *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *MemoryStore) PresignPut(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "memory://put/" + key, nil
}

func (m *MemoryStore) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return "", fmt.Errorf("presign get %s: no such key", key)
	}
	return "memory://get/" + key, nil
}
