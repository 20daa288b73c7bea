package store

import (
	"context"
	"strconv"
	"sync"
)

type memoryBlob struct {
	data    []byte
	version int64
}

// MemoryMedium is an in-memory Medium with the same version-token
// semantics as the durable media.
type MemoryMedium struct {
	mu    sync.Mutex
	blobs map[string]memoryBlob
}

func NewMemoryMedium() *MemoryMedium {
	return &MemoryMedium{blobs: make(map[string]memoryBlob)}
}

func (m *MemoryMedium) Read(_ context.Context, key string) ([]byte, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	blob, ok := m.blobs[key]
	if !ok {
		return nil, "", ErrNotFound
	}
	data := make([]byte, len(blob.data))
	copy(data, blob.data)
	return data, strconv.FormatInt(blob.version, 10), nil
}

func (m *MemoryMedium) Write(_ context.Context, key string, data []byte, version string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	blob, exists := m.blobs[key]

	if version == "" {
		if exists {
			return "", ErrConflict
		}
		m.blobs[key] = memoryBlob{data: append([]byte(nil), data...), version: 1}
		return "1", nil
	}

	current, err := strconv.ParseInt(version, 10, 64)
	if err != nil || !exists || blob.version != current {
		return "", ErrConflict
	}
	m.blobs[key] = memoryBlob{data: append([]byte(nil), data...), version: current + 1}
	return strconv.FormatInt(current+1, 10), nil
}
