package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// SnapshotStore keeps snapshot blobs in memory. URIs use the mem:// scheme.
type SnapshotStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewSnapshotStore constructs an empty SnapshotStore.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{objects: make(map[string][]byte)}
}

// PutObject stores a copy of data under path.
func (s *SnapshotStore) PutObject(_ context.Context, path string, _ string, data []byte) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	s.objects[path] = buf
	return "mem://" + path, nil
}

// GetObject returns the stored bytes for path, or false if absent.
func (s *SnapshotStore) GetObject(path string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[path]
	return data, ok
}
