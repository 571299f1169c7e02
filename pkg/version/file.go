package version

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps heads in a JSON document of the form {"heads": [...]}.
// Every call rereads the file so concurrent processes see each other's
// writes; writes replace the file atomically.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore returns a store backed by path. A missing file is an empty
// store.
func NewFileStore(path string) (*FileStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return &FileStore{path: path}, nil
}

type fileDoc struct {
	Heads []any `json:"heads"`
}

func (s *FileStore) read() ([]string, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var doc fileDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return coerce(doc.Heads)
}

func (s *FileStore) write(heads []string) error {
	doc := struct {
		Heads []string `json:"heads"`
	}{Heads: heads}
	if doc.Heads == nil {
		doc.Heads = []string{}
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *FileStore) modify(fn func(*[]string) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	heads, err := s.read()
	if err != nil {
		return err
	}
	if err := fn(&heads); err != nil {
		return err
	}
	return s.write(heads)
}

func (s *FileStore) Heads(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *FileStore) Insert(_ context.Context, id string) error {
	return s.modify(func(h *[]string) error { return insertHead(h, id) })
}

func (s *FileStore) Delete(_ context.Context, id string) error {
	return s.modify(func(h *[]string) error { return deleteHead(h, id) })
}

func (s *FileStore) Update(_ context.Context, from, to string) error {
	return s.modify(func(h *[]string) error { return updateHead(h, from, to) })
}

func (s *FileStore) Close() error { return nil }
