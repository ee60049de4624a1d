// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

// Package assistant drives the chat surface: it dispatches user intents,
// runs the streaming response protocol, and keeps the renderer in sync with
// session and prompt state.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/quill-dev/quill/internal/completion"
	"github.com/quill-dev/quill/internal/prompts"
	"github.com/quill-dev/quill/internal/session"
	"github.com/quill-dev/quill/internal/stream"
	"github.com/quill-dev/quill/internal/view"
	quillerr "github.com/quill-dev/quill/pkg/errors"
)

// Completer issues one completion request. Satisfied by *completion.Client.
type Completer interface {
	SendRequest(ctx context.Context, systemPrompt, userContent string, onFragment stream.FragmentFunc) (string, error)
}

// HostCommander executes commands in the hosting editor on the user's
// behalf. Implementations are host-specific and opaque to the controller.
type HostCommander interface {
	Execute(ctx context.Context, commandID string) error
}

// Controller owns the session registry and routes every user intent. It is
// driven from a single event loop; only renderer attachment is touched from
// other goroutines.
type Controller struct {
	registry  *session.Registry
	prompts   prompts.Store
	completer Completer
	host      HostCommander
	now       func() time.Time

	rendererMu sync.Mutex
	renderer   view.Renderer
}

// ControllerOptions wires a Controller's collaborators. Host may be nil
// when no editor integration is available.
type ControllerOptions struct {
	Prompts   prompts.Store
	Completer Completer
	Host      HostCommander

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// NewController creates a Controller with a freshly seeded session registry.
func NewController(opts ControllerOptions) *Controller {
	c := &Controller{
		prompts:   opts.Prompts,
		completer: opts.Completer,
		host:      opts.Host,
		now:       opts.Now,
	}
	if c.now == nil {
		c.now = time.Now
	}
	c.registry = session.NewRegistry(c)
	return c
}

// Registry exposes the controller's session registry for read access.
func (c *Controller) Registry() *session.Registry {
	return c.registry
}

// Attach connects a renderer and replays current state into it: session
// list, current history, prompt list.
func (c *Controller) Attach(ctx context.Context, r view.Renderer) {
	c.rendererMu.Lock()
	c.renderer = r
	c.rendererMu.Unlock()

	c.emit(view.UpdateSessionList{Sessions: toEntries(c.registry.List())})
	c.emit(view.RestoreHistory{Messages: c.registry.History()})
	c.emitPromptList(ctx)
}

// Detach disconnects the renderer. Later emissions are silent no-ops, so
// in-flight responses finish without a display surface.
func (c *Controller) Detach() {
	c.rendererMu.Lock()
	c.renderer = nil
	c.rendererMu.Unlock()
}

// emit forwards a display command to the attached renderer, dropping it
// silently when none is attached.
func (c *Controller) emit(cmd view.Command) {
	c.rendererMu.Lock()
	r := c.renderer
	c.rendererMu.Unlock()

	if r == nil {
		return
	}
	r.Emit(cmd)
}

// SessionListChanged implements session.Notifier.
func (c *Controller) SessionListChanged(list []session.Info) {
	c.emit(view.UpdateSessionList{Sessions: toEntries(list)})
}

// HistoryReloaded implements session.Notifier.
func (c *Controller) HistoryReloaded(messages []string) {
	c.emit(view.RestoreHistory{Messages: messages})
}

// HandleIntent dispatches one user intent. The command set is closed;
// every variant is handled here. Returned errors are protocol-level
// (unrecognized variants); user-facing failures surface as notices.
func (c *Controller) HandleIntent(ctx context.Context, intent view.Intent) error {
	switch in := intent.(type) {
	case view.SendMessage:
		c.handleSend(ctx, in)
	case view.NewSession:
		c.registry.Create(in.Name)
	case view.DeleteSession:
		if err := c.registry.Delete(in.ID); err != nil {
			c.notifyError(err)
		}
	case view.SwitchSession:
		c.registry.SwitchCurrent(in.ID)
	case view.RenameSession:
		if err := c.registry.Rename(in.ID, in.Name); err != nil {
			c.notifyError(err)
		}
	case view.RequestPromptList:
		c.emitPromptList(ctx)
	case view.RequestSessionList:
		c.emit(view.UpdateSessionList{Sessions: toEntries(c.registry.List())})
	case view.ClearCurrentHistory:
		c.registry.ClearCurrent()
		c.emit(view.ClearHistory{})
		c.emit(view.Notice{Text: "Chat history cleared"})
	case view.InvokeHostCommand:
		c.handleHostCommand(ctx, in)
	default:
		return quillerr.Errorf(quillerr.CodeBridgeRequestInvalid, "unhandled intent type %T", intent)
	}
	return nil
}

// handleSend runs the full send protocol: resolve the system prompt, record
// the user message, then stream the response through an assembler. The
// target session is captured up front so a mid-stream session switch or
// deletion cannot misroute the committed response.
func (c *Controller) handleSend(ctx context.Context, in view.SendMessage) {
	systemPrompt := completion.DefaultSystemPrompt

	if in.PromptName != "" {
		tmpl, err := c.prompts.Get(ctx, in.PromptName)
		if err == nil {
			systemPrompt = tmpl.Content
		} else if !quillerr.HasCode(err, quillerr.CodePromptNotFound) {
			c.notifyError(err)
			return
		}
		c.addMessage(fmt.Sprintf("Using prompt: %s", in.PromptName))
	}

	c.addMessage(UserPrefix + in.Text)

	sessionID := c.registry.CurrentID()
	asm := newResponseAssembler(c.now(), c.emit)

	full, err := c.completer.SendRequest(ctx, systemPrompt, in.Text, asm.Fragment)
	if err != nil {
		// The partial output stays visible with the error appended, but
		// only the user's message persists in the session log.
		asm.Abort(err)
		slog.Warn("completion request failed", "session_id", sessionID, "error", err)
		return
	}

	asm.Finalize()
	if !c.registry.AppendResponse(sessionID, ResponsePrefix, full) {
		slog.Debug("session deleted mid-response, dropping assembled text", "session_id", sessionID)
	}
}

func (c *Controller) handleHostCommand(ctx context.Context, in view.InvokeHostCommand) {
	if c.host == nil {
		c.emit(view.Notice{Text: "No host commands available"})
		return
	}
	if err := c.host.Execute(ctx, in.CommandID); err != nil {
		c.notifyError(err)
	}
}

// addMessage appends to the current session's log and mirrors the line
// into the transcript.
func (c *Controller) addMessage(text string) {
	c.registry.Append(c.registry.CurrentID(), text)
	c.emit(view.TranscriptMessage{Text: text})
}

func (c *Controller) emitPromptList(ctx context.Context) {
	names, err := c.prompts.ListNames(ctx)
	if err != nil {
		c.notifyError(err)
		return
	}
	c.emit(view.UpdatePromptList{Names: names})
}

func (c *Controller) notifyError(err error) {
	c.emit(view.Notice{Text: "Error: " + err.Error()})
}

func toEntries(list []session.Info) []view.SessionEntry {
	entries := make([]view.SessionEntry, len(list))
	for i, info := range list {
		entries[i] = view.SessionEntry{ID: info.ID, Name: info.Name, IsActive: info.IsActive}
	}
	return entries
}
