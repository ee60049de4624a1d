// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

// Package prompts stores named prompt templates. Templates are selected at
// send time and prepended to the user's message as the system prompt.
package prompts

import (
	"context"
	"strings"
	"sync"
	"time"

	quillerr "github.com/quill-dev/quill/pkg/errors"
)

// Template is a named system-prompt template.
type Template struct {
	Name      string
	Content   string
	UpdatedAt time.Time
}

// Store persists prompt templates. Implementations must be safe for
// concurrent use.
type Store interface {
	// Get returns the template with the given name.
	Get(ctx context.Context, name string) (*Template, error)

	// Set creates or replaces the template with the given name.
	Set(ctx context.Context, name, content string) error

	// Delete removes the named template. Deleting an absent template is an
	// error so callers can report typos.
	Delete(ctx context.Context, name string) error

	// ListNames returns all template names sorted ascending.
	ListNames(ctx context.Context) ([]string, error)

	Close() error
}

// Factory creates a Store rooted at the given data directory.
type Factory func(dataDir string) (Store, error)

var (
	factories   = map[string]Factory{}
	factoriesMu sync.RWMutex
)

// RegisterBackend registers a factory for a named storage backend.
// Backend files call this from init(). Goroutine-safe.
func RegisterBackend(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// NewStore creates a Store for the named backend, defaulting to "sqlite"
// when backend is empty.
func NewStore(backend, dataDir string) (Store, error) {
	if backend == "" {
		backend = "sqlite"
	}

	factoriesMu.RLock()
	factory, ok := factories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, quillerr.Errorf(quillerr.CodePromptBackendUnsupported, "unsupported prompt store backend: %q", backend)
	}

	return factory(dataDir)
}

// validateName rejects empty or whitespace-only template names before they
// reach a backend.
func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return quillerr.New(quillerr.CodePromptInvalidInput, "prompt name must not be empty")
	}
	return nil
}
