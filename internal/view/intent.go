// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package view

import (
	"encoding/json"

	quillerr "github.com/quill-dev/quill/pkg/errors"
)

// Intent is a user action arriving from the host UI.
type Intent interface {
	intentName() string
}

// SendMessage submits user text, optionally under a named prompt template.
type SendMessage struct {
	Text       string `json:"text"`
	PromptName string `json:"selectedPrompt,omitempty"`
}

func (SendMessage) intentName() string { return "sendMessage" }

// NewSession creates a chat session. An empty Name requests the positional
// default.
type NewSession struct {
	Name string `json:"name,omitempty"`
}

func (NewSession) intentName() string { return "newSession" }

// DeleteSession removes the identified session.
type DeleteSession struct {
	ID string `json:"chatId"`
}

func (DeleteSession) intentName() string { return "deleteSession" }

// SwitchSession makes the identified session current.
type SwitchSession struct {
	ID string `json:"chatId"`
}

func (SwitchSession) intentName() string { return "switchSession" }

// RenameSession replaces the display name of the identified session.
type RenameSession struct {
	ID   string `json:"chatId"`
	Name string `json:"name"`
}

func (RenameSession) intentName() string { return "renameSession" }

// RequestPromptList asks for an updatePromptList refresh.
type RequestPromptList struct{}

func (RequestPromptList) intentName() string { return "requestPromptList" }

// RequestSessionList asks for an updateSessionList refresh.
type RequestSessionList struct{}

func (RequestSessionList) intentName() string { return "requestSessionList" }

// ClearCurrentHistory truncates the current session's message log.
type ClearCurrentHistory struct{}

func (ClearCurrentHistory) intentName() string { return "clearHistory" }

// InvokeHostCommand forwards an opaque command identifier to the host.
type InvokeHostCommand struct {
	CommandID string `json:"commandId"`
}

func (InvokeHostCommand) intentName() string { return "invokeHostCommand" }

// intentEnvelope carries the discriminator plus the raw payload.
type intentEnvelope struct {
	Intent string `json:"intent"`
}

// DecodeIntent parses a JSON-encoded intent. Unknown or missing
// discriminators are an error.
func DecodeIntent(data []byte) (Intent, error) {
	var env intentEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, quillerr.Wrap(err, quillerr.CodeBridgeRequestInvalid, "decoding intent envelope")
	}

	switch env.Intent {
	case "sendMessage":
		var v SendMessage
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, decodeErr(err, env.Intent)
		}
		return v, nil
	case "newSession":
		var v NewSession
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, decodeErr(err, env.Intent)
		}
		return v, nil
	case "deleteSession":
		var v DeleteSession
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, decodeErr(err, env.Intent)
		}
		return v, nil
	case "switchSession":
		var v SwitchSession
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, decodeErr(err, env.Intent)
		}
		return v, nil
	case "renameSession":
		var v RenameSession
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, decodeErr(err, env.Intent)
		}
		return v, nil
	case "requestPromptList":
		return RequestPromptList{}, nil
	case "requestSessionList":
		return RequestSessionList{}, nil
	case "clearHistory":
		return ClearCurrentHistory{}, nil
	case "invokeHostCommand":
		var v InvokeHostCommand
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, decodeErr(err, env.Intent)
		}
		return v, nil
	case "":
		return nil, quillerr.New(quillerr.CodeBridgeRequestInvalid, "intent field is required")
	default:
		return nil, quillerr.Errorf(quillerr.CodeBridgeRequestInvalid, "unknown intent %q", env.Intent)
	}
}

func decodeErr(err error, name string) error {
	return quillerr.Wrapf(err, quillerr.CodeBridgeRequestInvalid, "decoding %s intent", name)
}
