// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

// Package view defines the boundary between the assistant core and the host
// UI: display commands flowing out, user intents flowing in. Both sets are
// closed: every member is a concrete type, so dispatch is an exhaustive
// type switch rather than string matching.
package view

import "encoding/json"

// Command is a display instruction for the host renderer.
type Command interface {
	// Name is the wire discriminator for the command.
	Name() string
}

// SessionEntry is one row of the session selector.
type SessionEntry struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"isActive"`
}

// BeginResponse starts a new streaming display region.
type BeginResponse struct {
	ID     string `json:"id"`
	Prefix string `json:"prefix"`
}

func (BeginResponse) Name() string { return "beginResponse" }

// AppendFragment appends text to the region identified by ID.
type AppendFragment struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

func (AppendFragment) Name() string { return "appendFragment" }

// FinalizeResponse marks the region complete, removing any streaming styling.
type FinalizeResponse struct {
	ID string `json:"id"`
}

func (FinalizeResponse) Name() string { return "finalizeResponse" }

// ClearHistory wipes the visible transcript.
type ClearHistory struct{}

func (ClearHistory) Name() string { return "clearHistory" }

// RestoreHistory repopulates the transcript after a session switch.
type RestoreHistory struct {
	Messages []string `json:"messages"`
}

func (RestoreHistory) Name() string { return "restoreHistory" }

// UpdateSessionList refreshes the session selector.
type UpdateSessionList struct {
	Sessions []SessionEntry `json:"sessions"`
}

func (UpdateSessionList) Name() string { return "updateSessionList" }

// UpdatePromptList refreshes the prompt-template selector.
type UpdatePromptList struct {
	Names []string `json:"names"`
}

func (UpdatePromptList) Name() string { return "updatePromptList" }

// TranscriptMessage appends one completed message to the transcript
// (user sends, prompt-selection notes). Streaming output goes through the
// response-region commands instead.
type TranscriptMessage struct {
	Text string `json:"text"`
}

func (TranscriptMessage) Name() string { return "receiveMessage" }

// Notice is a transient user notification (errors, rejected operations).
type Notice struct {
	Text string `json:"text"`
}

func (Notice) Name() string { return "notice" }

// MarshalCommand encodes a command as JSON with its discriminator in a
// "command" field. The bridge also repeats the discriminator as the SSE
// event name, so clients can route on either.
func MarshalCommand(cmd Command) ([]byte, error) {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return nil, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = map[string]json.RawMessage{}
	}

	name, err := json.Marshal(cmd.Name())
	if err != nil {
		return nil, err
	}
	fields["command"] = name

	return json.Marshal(fields)
}

// Renderer consumes display commands. Implementations must tolerate being
// called after teardown; the core checks liveness via nil-ness of its
// renderer reference, and emissions to a torn-down surface are dropped.
type Renderer interface {
	Emit(cmd Command)
}
