// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quill-dev/quill/internal/view"
	quillerr "github.com/quill-dev/quill/pkg/errors"
)

// recordingHandler captures intents and optionally fails.
type recordingHandler struct {
	intents []view.Intent
	err     error
}

func (h *recordingHandler) HandleIntent(_ context.Context, intent view.Intent) error {
	h.intents = append(h.intents, intent)
	return h.err
}

func newTestBridge(t *testing.T, handler IntentHandler) *Server {
	t.Helper()
	s, err := New(Config{ListenAddr: "127.0.0.1:0"}, handler)
	require.NoError(t, err)
	return s
}

func TestNew_RequiresListenAddr(t *testing.T) {
	_, err := New(Config{}, &recordingHandler{})
	require.Error(t, err)
	assert.True(t, quillerr.HasCode(err, quillerr.CodeBridgeStartFailure))
}

func TestHealthz(t *testing.T) {
	s := newTestBridge(t, &recordingHandler{})

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestHandleIntent(t *testing.T) {
	handler := &recordingHandler{}
	s := newTestBridge(t, handler)

	body := strings.NewReader(`{"intent":"sendMessage","text":"Hello","selectedPrompt":"reviewer"}`)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/intents", body))

	assert.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, handler.intents, 1)
	assert.Equal(t, view.SendMessage{Text: "Hello", PromptName: "reviewer"}, handler.intents[0])
}

func TestHandleIntent_UnknownTag(t *testing.T) {
	handler := &recordingHandler{}
	s := newTestBridge(t, handler)

	body := strings.NewReader(`{"intent":"selfDestruct"}`)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/intents", body))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, handler.intents)

	var resp struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, string(quillerr.CodeBridgeRequestInvalid), resp.Code)
}

func TestHandleIntent_MalformedBody(t *testing.T) {
	s := newTestBridge(t, &recordingHandler{})

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/intents", strings.NewReader("{not json")))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleIntent_HandlerError(t *testing.T) {
	handler := &recordingHandler{err: quillerr.New(quillerr.CodeSessionLastDelete, "last session")}
	s := newTestBridge(t, handler)

	body := strings.NewReader(`{"intent":"deleteSession","chatId":"default"}`)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/intents", body))

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestEmit_NoSubscribersIsSilent(t *testing.T) {
	s := newTestBridge(t, &recordingHandler{})

	// Must not block or panic with nobody listening.
	s.Emit(view.Notice{Text: "anyone there?"})
	assert.Equal(t, 0, s.Subscribers())
}

func TestEvents_StreamsCommands(t *testing.T) {
	s := newTestBridge(t, &recordingHandler{})

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/events")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	// Wait for the subscription to register before emitting.
	require.Eventually(t, func() bool { return s.Subscribers() == 1 },
		time.Second, 10*time.Millisecond)

	s.Emit(view.BeginResponse{ID: "response-1", Prefix: "Assistant: "})
	s.Emit(view.AppendFragment{ID: "response-1", Text: "Hi"})

	reader := bufio.NewReader(resp.Body)
	readEvent := func() (string, string) {
		var event, data string
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			switch {
			case strings.HasPrefix(line, "event: "):
				event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			case line == "" && event != "":
				return event, data
			}
		}
	}

	event, data := readEvent()
	assert.Equal(t, "beginResponse", event)
	assert.JSONEq(t, `{"command":"beginResponse","id":"response-1","prefix":"Assistant: "}`, data)

	event, data = readEvent()
	assert.Equal(t, "appendFragment", event)
	assert.JSONEq(t, `{"command":"appendFragment","id":"response-1","text":"Hi"}`, data)
}

func TestEvents_UnsubscribeOnDisconnect(t *testing.T) {
	s := newTestBridge(t, &recordingHandler{})

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/events", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Eventually(t, func() bool { return s.Subscribers() == 1 },
		time.Second, 10*time.Millisecond)

	cancel()

	require.Eventually(t, func() bool { return s.Subscribers() == 0 },
		time.Second, 10*time.Millisecond)
}
