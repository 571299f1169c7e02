package version

import (
	"context"
	"slices"
	"sync"
)

// MemoryStore keeps heads in process memory, in insertion order.
type MemoryStore struct {
	mu    sync.Mutex
	heads []string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Heads(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.heads), nil
}

func (s *MemoryStore) Insert(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertHead(&s.heads, id)
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteHead(&s.heads, id)
}

func (s *MemoryStore) Update(_ context.Context, from, to string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateHead(&s.heads, from, to)
}

func (s *MemoryStore) Close() error { return nil }

func insertHead(heads *[]string, id string) error {
	if slices.Contains(*heads, id) {
		return duplicateError(id)
	}
	*heads = append(*heads, id)
	return nil
}

func deleteHead(heads *[]string, id string) error {
	i := slices.Index(*heads, id)
	if i < 0 {
		return rowCountError("deleting", id, 0)
	}
	*heads = slices.Delete(*heads, i, i+1)
	return nil
}

func updateHead(heads *[]string, from, to string) error {
	i := slices.Index(*heads, from)
	if i < 0 {
		return rowCountError("updating", from, 0)
	}
	if from != to && slices.Contains(*heads, to) {
		return duplicateError(to)
	}
	(*heads)[i] = to
	return nil
}
