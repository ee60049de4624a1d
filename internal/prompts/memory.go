// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package prompts

import (
	"context"
	"sort"
	"sync"
	"time"

	quillerr "github.com/quill-dev/quill/pkg/errors"
)

func init() {
	RegisterBackend("memory", func(string) (Store, error) {
		return NewMemoryStore(), nil
	})
}

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)

// MemoryStore implements Store in process memory. Used by tests and the
// "memory" storage backend; contents are lost on exit.
type MemoryStore struct {
	mu        sync.Mutex
	templates map[string]*Template
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{templates: map[string]*Template{}}
}

func (s *MemoryStore) Get(_ context.Context, name string) (*Template, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmpl, ok := s.templates[name]
	if !ok {
		return nil, quillerr.New(quillerr.CodePromptNotFound, "prompt not found", quillerr.FieldPrompt(name))
	}

	cp := *tmpl
	return &cp, nil
}

func (s *MemoryStore) Set(_ context.Context, name, content string) error {
	if err := validateName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.templates[name] = &Template{Name: name, Content: content, UpdatedAt: time.Now()}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.templates[name]; !ok {
		return quillerr.New(quillerr.CodePromptNotFound, "prompt not found", quillerr.FieldPrompt(name))
	}
	delete(s.templates, name)
	return nil
}

func (s *MemoryStore) ListNames(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.templates))
	for name := range s.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *MemoryStore) Close() error { return nil }
