package registry

import (
	"context"
	"sort"
	"sync"
)

type memoryRegistry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemory returns a registry whose contents are lost on restart.
func NewMemory() Registry {
	return &memoryRegistry{entries: make(map[string]Entry)}
}

func (r *memoryRegistry) Get(ctx context.Context, name string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[name]
	if !ok {
		return nil, ErrNotFound
	}
	return &entry, nil
}

func (r *memoryRegistry) Put(ctx context.Context, entry Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[entry.Name] = entry
	return nil
}

func (r *memoryRegistry) Delete(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, name)
	return nil
}

func (r *memoryRegistry) List(ctx context.Context) ([]Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]Entry, 0, len(r.entries))
	for _, entry := range r.entries {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (r *memoryRegistry) Close() error {
	return nil
}
