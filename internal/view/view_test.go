// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package view_test

import (
	"testing"

	"github.com/quill-dev/quill/internal/view"
	quillerr "github.com/quill-dev/quill/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeIntent_SendMessage(t *testing.T) {
	raw := []byte(`{"intent":"sendMessage","text":"Hello","selectedPrompt":"reviewer"}`)

	intent, err := view.DecodeIntent(raw)
	require.NoError(t, err)

	send, ok := intent.(view.SendMessage)
	require.True(t, ok, "expected SendMessage, got %T", intent)
	assert.Equal(t, "Hello", send.Text)
	assert.Equal(t, "reviewer", send.PromptName)
}

func TestDecodeIntent_SessionOperations(t *testing.T) {
	tests := []struct {
		raw  string
		want view.Intent
	}{
		{`{"intent":"newSession","name":"Refactoring"}`, view.NewSession{Name: "Refactoring"}},
		{`{"intent":"deleteSession","chatId":"abc"}`, view.DeleteSession{ID: "abc"}},
		{`{"intent":"switchSession","chatId":"abc"}`, view.SwitchSession{ID: "abc"}},
		{`{"intent":"renameSession","chatId":"abc","name":"Better"}`, view.RenameSession{ID: "abc", Name: "Better"}},
		{`{"intent":"requestPromptList"}`, view.RequestPromptList{}},
		{`{"intent":"requestSessionList"}`, view.RequestSessionList{}},
		{`{"intent":"clearHistory"}`, view.ClearCurrentHistory{}},
		{`{"intent":"invokeHostCommand","commandId":"quill.addPrompt"}`, view.InvokeHostCommand{CommandID: "quill.addPrompt"}},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			intent, err := view.DecodeIntent([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, intent)
		})
	}
}

func TestDecodeIntent_UnknownTag(t *testing.T) {
	_, err := view.DecodeIntent([]byte(`{"intent":"teleport"}`))
	require.Error(t, err)
	assert.True(t, quillerr.HasCode(err, quillerr.CodeBridgeRequestInvalid))

	_, err = view.DecodeIntent([]byte(`{"text":"no tag"}`))
	require.Error(t, err)

	_, err = view.DecodeIntent([]byte(`not json`))
	require.Error(t, err)
}

func TestCommandNames(t *testing.T) {
	tests := []struct {
		cmd  view.Command
		want string
	}{
		{view.BeginResponse{}, "beginResponse"},
		{view.AppendFragment{}, "appendFragment"},
		{view.FinalizeResponse{}, "finalizeResponse"},
		{view.ClearHistory{}, "clearHistory"},
		{view.RestoreHistory{}, "restoreHistory"},
		{view.UpdateSessionList{}, "updateSessionList"},
		{view.UpdatePromptList{}, "updatePromptList"},
		{view.TranscriptMessage{}, "receiveMessage"},
		{view.Notice{}, "notice"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.cmd.Name())
	}
}

func TestMarshalCommand(t *testing.T) {
	data, err := view.MarshalCommand(view.AppendFragment{ID: "response-1", Text: "hi"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"command":"appendFragment","id":"response-1","text":"hi"}`, string(data))

	data, err = view.MarshalCommand(view.ClearHistory{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"command":"clearHistory"}`, string(data))
}
