package storage

import (
	"context"
	"sync"

	"cover-studio/internal/domain/ports/adapter"
)

var _ adapter.ObjectStorage = (*NoopStorage)(nil)

// NoopStorage keeps payloads in memory. Dev mode only.
type NoopStorage struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewNoopStorage() *NoopStorage {
	return &NoopStorage{objects: make(map[string][]byte)}
}

func (n *NoopStorage) Upload(ctx context.Context, data []byte, params adapter.UploadParams) (*adapter.Upload, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	n.objects[params.Key] = cp
	url := "https://storage.invalid/" + params.Key
	return &adapter.Upload{
		Ref:       params.Key,
		URL:       url,
		SecureURL: url,
		Bytes:     int64(len(data)),
		Format:    "png",
	}, nil
}

func (n *NoopStorage) Download(ctx context.Context, ref string) ([]byte, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	data, ok := n.objects[ref]
	if !ok {
		return nil, &notFoundError{ref: ref}
	}
	return data, nil
}

func (n *NoopStorage) Delete(ctx context.Context, ref string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.objects, ref)
	return nil
}

type notFoundError struct{ ref string }

func (e *notFoundError) Error() string { return "object not found: " + e.ref }
