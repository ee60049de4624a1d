// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

// Package session manages the in-memory registry of chat sessions. The
// registry holds insertion-ordered sessions with exactly one current at all
// times and never lets the set become empty. Chat content lives only for the
// lifetime of the hosting panel; durability is the prompt store's concern.
package session

import (
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	quillerr "github.com/quill-dev/quill/pkg/errors"
)

const (
	// DefaultSessionID is the id of the session every registry starts with.
	DefaultSessionID = "default"

	defaultSessionName = "New chat"
)

// Session is one named conversation with an append-only message log.
type Session struct {
	ID       string
	Name     string
	Messages []string
}

// Info is a read-only row for session selectors.
type Info struct {
	ID       string
	Name     string
	IsActive bool
}

// Notifier receives UI refresh triggers after registry mutations. Calls are
// made outside the registry lock, after the mutation is fully applied.
type Notifier interface {
	SessionListChanged(entries []Info)
	HistoryReloaded(messages []string)
}

// Registry is the process-wide session state, owned by whoever constructs
// the chat surface. All methods are safe for concurrent use; each operation
// applies atomically.
type Registry struct {
	mu       sync.Mutex
	sessions []*Session
	current  string
	notifier Notifier
}

// NewRegistry returns a registry seeded with the default session, which is
// current. notifier may be nil.
func NewRegistry(notifier Notifier) *Registry {
	return &Registry{
		sessions: []*Session{{ID: DefaultSessionID, Name: defaultSessionName}},
		current:  DefaultSessionID,
		notifier: notifier,
	}
}

// Create adds a session at the end of the list and makes it current.
// A blank proposedName yields the positional default "Chat N".
func (r *Registry) Create(proposedName string) string {
	r.mu.Lock()

	name := strings.TrimSpace(proposedName)
	if name == "" {
		name = defaultName(len(r.sessions) + 1)
	}

	id := uuid.NewString()
	r.sessions = append(r.sessions, &Session{ID: id, Name: name})
	r.current = id

	list, history := r.snapshotLocked()
	r.mu.Unlock()

	r.notifyList(list)
	r.notifyHistory(history)
	return id
}

// SwitchCurrent makes id current. Already-current or unknown ids are no-ops.
func (r *Registry) SwitchCurrent(id string) {
	r.mu.Lock()

	if id == r.current || r.findLocked(id) == nil {
		r.mu.Unlock()
		return
	}

	r.current = id
	list, history := r.snapshotLocked()
	r.mu.Unlock()

	r.notifyList(list)
	r.notifyHistory(history)
}

// Delete removes id from the registry. Deleting the last remaining session
// is rejected. Removing the current session reassigns current to the first
// remaining entry. Unknown ids are a silent no-op.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()

	if len(r.sessions) <= 1 {
		r.mu.Unlock()
		return quillerr.New(quillerr.CodeSessionLastDelete, "cannot delete the only session")
	}

	idx := -1
	for i, s := range r.sessions {
		if s.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		r.mu.Unlock()
		return nil
	}

	r.sessions = append(r.sessions[:idx], r.sessions[idx+1:]...)

	// Reassigning current and removing the entry happen under one lock
	// hold: no observer ever sees a current pointing at a removed session.
	wasCurrent := r.current == id
	if wasCurrent {
		r.current = r.sessions[0].ID
	}

	list, history := r.snapshotLocked()
	r.mu.Unlock()

	r.notifyList(list)
	if wasCurrent {
		r.notifyHistory(history)
	}
	return nil
}

// Rename replaces the display name of id. The id is immutable.
func (r *Registry) Rename(id, newName string) error {
	name := strings.TrimSpace(newName)
	if name == "" {
		return quillerr.New(quillerr.CodeSessionNameEmpty, "session name must not be blank", quillerr.FieldSessionID(id))
	}

	r.mu.Lock()

	s := r.findLocked(id)
	if s == nil {
		r.mu.Unlock()
		return quillerr.New(quillerr.CodeSessionNotFound, "session does not exist", quillerr.FieldSessionID(id))
	}

	s.Name = name
	list, _ := r.snapshotLocked()
	r.mu.Unlock()

	r.notifyList(list)
	return nil
}

// Append adds text to the identified session's log. Returns false when the
// session no longer exists. Deletion may race with an in-flight response;
// losing the append is the intended outcome.
func (r *Registry) Append(sessionID, text string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.findLocked(sessionID)
	if s == nil {
		return false
	}
	s.Messages = append(s.Messages, text)
	return true
}

// AppendResponse commits an assembled response as "<prefix><text>".
func (r *Registry) AppendResponse(sessionID, prefix, text string) bool {
	return r.Append(sessionID, prefix+text)
}

// ClearCurrent truncates the current session's message log.
func (r *Registry) ClearCurrent() {
	r.mu.Lock()
	if s := r.findLocked(r.current); s != nil {
		s.Messages = nil
	}
	r.mu.Unlock()
}

// CurrentID returns the id of the current session.
func (r *Registry) CurrentID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// List returns the selector rows in display order.
func (r *Registry) List() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	list, _ := r.snapshotLocked()
	return list
}

// History returns a copy of the current session's message log.
func (r *Registry) History() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, history := r.snapshotLocked()
	return history
}

func (r *Registry) findLocked(id string) *Session {
	for _, s := range r.sessions {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (r *Registry) snapshotLocked() ([]Info, []string) {
	list := make([]Info, 0, len(r.sessions))
	var history []string
	for _, s := range r.sessions {
		list = append(list, Info{ID: s.ID, Name: s.Name, IsActive: s.ID == r.current})
		if s.ID == r.current {
			history = append([]string(nil), s.Messages...)
		}
	}
	return list, history
}

func (r *Registry) notifyList(list []Info) {
	if r.notifier != nil {
		r.notifier.SessionListChanged(list)
	}
}

func (r *Registry) notifyHistory(history []string) {
	if r.notifier != nil {
		r.notifier.HistoryReloaded(history)
	}
}

func defaultName(n int) string {
	// Positional default matching the selector's 1-based ordering.
	return "Chat " + strconv.Itoa(n)
}
