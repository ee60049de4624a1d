// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package completion

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	quillerr "github.com/quill-dev/quill/pkg/errors"
)

// fakePrompter records what was asked and returns canned answers.
type fakePrompter struct {
	credential  string
	replacement string
	endpoint    string
	model       string

	credentialAsked   int
	replacementOffers []string
	endpointAsked     int
	modelAsked        int
}

func (p *fakePrompter) RequestCredential(context.Context) (string, error) {
	p.credentialAsked++
	return p.credential, nil
}

func (p *fakePrompter) OfferCredentialReplacement(_ context.Context, reason string) (string, error) {
	p.replacementOffers = append(p.replacementOffers, reason)
	return p.replacement, nil
}

func (p *fakePrompter) RequestEndpoint(context.Context) (string, error) {
	p.endpointAsked++
	return p.endpoint, nil
}

func (p *fakePrompter) RequestModel(context.Context) (string, error) {
	p.modelAsked++
	return p.model, nil
}

// fakeSettings records persisted values.
type fakeSettings struct {
	apiURL string
	model  string
	apiKey string
}

func (s *fakeSettings) SetAPIURL(url string) error { s.apiURL = url; return nil }
func (s *fakeSettings) SetModel(model string) error {
	s.model = model
	return nil
}
func (s *fakeSettings) SetAPIKey(key string) error { s.apiKey = key; return nil }

func streamingServer(t *testing.T, fragments []string, capture *chatRequest) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if capture != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(capture))
		}
		assert.Equal(t, "Bearer sk-test-key-123", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "text/event-stream")
		for _, frag := range fragments {
			chunk := map[string]any{
				"choices": []map[string]any{{"delta": map[string]any{"content": frag}}},
			}
			raw, err := json.Marshal(chunk)
			require.NoError(t, err)
			fmt.Fprintf(w, "data: %s\n\n", raw)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func TestSendRequest_Streaming(t *testing.T) {
	var captured chatRequest
	srv := streamingServer(t, []string{"Hi", " there"}, &captured)
	defer srv.Close()

	client := NewClient(Options{
		APIURL: srv.URL,
		Model:  "gpt-3.5-turbo",
		APIKey: "sk-test-key-123",
	})

	var fragments []string
	text, err := client.SendRequest(context.Background(), "You are a helpful assistant.", "Hello",
		func(frag string) { fragments = append(fragments, frag) })
	require.NoError(t, err)

	assert.Equal(t, "Hi there", text)
	assert.Equal(t, []string{"Hi", " there"}, fragments)

	assert.Equal(t, "gpt-3.5-turbo", captured.Model)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, chatMessage{Role: "system", Content: "You are a helpful assistant."}, captured.Messages[0])
	assert.Equal(t, chatMessage{Role: "user", Content: "Hello"}, captured.Messages[1])
	assert.InDelta(t, 0.7, captured.Temperature, 0.0001)
	assert.Equal(t, 1000, captured.MaxTokens)
	assert.True(t, captured.Stream)
}

func TestSendRequest_NonStreaming(t *testing.T) {
	var captured chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		resp := map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": "Hi there"}}},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	client := NewClient(Options{APIURL: srv.URL, Model: "gpt-3.5-turbo", APIKey: "sk-test-key-123"})

	text, err := client.SendRequest(context.Background(), "sys", "user", nil)
	require.NoError(t, err)
	assert.Equal(t, "Hi there", text)
	assert.False(t, captured.Stream)
}

func TestSendRequest_MissingCredential(t *testing.T) {
	client := NewClient(Options{APIURL: "http://127.0.0.1:1", Model: "m"})

	_, err := client.SendRequest(context.Background(), "sys", "user", nil)
	require.Error(t, err)
	assert.True(t, quillerr.HasCode(err, quillerr.CodeCompletionCredentialMissing))
}

func TestSendRequest_CredentialPrompted(t *testing.T) {
	srv := streamingServer(t, []string{"ok"}, nil)
	defer srv.Close()

	prompter := &fakePrompter{credential: "sk-test-key-123"}
	settings := &fakeSettings{}
	client := NewClient(Options{
		APIURL:   srv.URL,
		Model:    "m",
		Prompter: prompter,
		Settings: settings,
	})

	text, err := client.SendRequest(context.Background(), "sys", "user", func(string) {})
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, 1, prompter.credentialAsked)
	assert.Equal(t, "sk-test-key-123", settings.apiKey, "prompted key should persist")
}

func TestSendRequest_CredentialDeclined(t *testing.T) {
	prompter := &fakePrompter{}
	client := NewClient(Options{APIURL: "http://127.0.0.1:1", Model: "m", Prompter: prompter})

	_, err := client.SendRequest(context.Background(), "sys", "user", nil)
	require.Error(t, err)
	assert.True(t, quillerr.HasCode(err, quillerr.CodeCompletionCredentialMissing))
	assert.Equal(t, 1, prompter.credentialAsked)
}

func TestSendRequest_ShapeWarningOfferedOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": "ok"}}},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	prompter := &fakePrompter{replacement: "sk-replacement-key"}
	client := NewClient(Options{
		APIURL:   srv.URL,
		Model:    "m",
		APIKey:   "short",
		Prompter: prompter,
	})

	_, err := client.SendRequest(context.Background(), "sys", "user", nil)
	require.NoError(t, err)
	require.Len(t, prompter.replacementOffers, 1)
	assert.Contains(t, prompter.replacementOffers[0], "too short")
	assert.Equal(t, "sk-replacement-key", client.apiKey)

	// Second call must not re-check the shape.
	_, err = client.SendRequest(context.Background(), "sys", "user", nil)
	require.NoError(t, err)
	assert.Len(t, prompter.replacementOffers, 1)
}

func TestSendRequest_ShapeWarningKeepKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer odd-but-mine", r.Header.Get("Authorization"))
		resp := map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": "ok"}}},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	prompter := &fakePrompter{} // declines the replacement
	client := NewClient(Options{APIURL: srv.URL, Model: "m", APIKey: "odd-but-mine", Prompter: prompter})

	text, err := client.SendRequest(context.Background(), "sys", "user", nil)
	require.NoError(t, err, "a failing shape check must not block the call")
	assert.Equal(t, "ok", text)
	assert.Len(t, prompter.replacementOffers, 1)
}

func TestSendRequest_EndpointDefaultPersisted(t *testing.T) {
	prompter := &fakePrompter{} // declines endpoint and model
	settings := &fakeSettings{}
	client := NewClient(Options{
		APIKey:   "sk-test-key-123",
		Prompter: prompter,
		Settings: settings,
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			assert.Equal(t, DefaultAPIURL, r.URL.String())
			return nil, fmt.Errorf("offline")
		})},
	})

	_, err := client.SendRequest(context.Background(), "sys", "user", nil)
	require.Error(t, err)

	assert.Equal(t, 1, prompter.endpointAsked)
	assert.Equal(t, 1, prompter.modelAsked)
	assert.Equal(t, DefaultAPIURL, settings.apiURL)
	assert.Equal(t, DefaultModel, settings.model)
	assert.Equal(t, DefaultAPIURL, client.apiURL, "declined default sticks for later calls")
	assert.Equal(t, DefaultModel, client.model)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func errorServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
}

func TestSendRequest_StatusClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode quillerr.Code
		wantMsg  string
	}{
		{
			name:     "401 auth failed",
			status:   http.StatusUnauthorized,
			wantCode: quillerr.CodeCompletionAuthFailed,
		},
		{
			name:     "429 rate limited",
			status:   http.StatusTooManyRequests,
			wantCode: quillerr.CodeCompletionRateLimited,
		},
		{
			name:     "404 with server detail",
			status:   http.StatusNotFound,
			body:     `{"error":{"message":"model gpt-9 does not exist"}}`,
			wantCode: quillerr.CodeCompletionEndpointNotFound,
			wantMsg:  "model gpt-9 does not exist",
		},
		{
			name:     "500 api failure",
			status:   http.StatusInternalServerError,
			body:     `{"error":{"message":"backend exploded"}}`,
			wantCode: quillerr.CodeCompletionAPIFailure,
			wantMsg:  "backend exploded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := errorServer(t, tt.status, tt.body)
			defer srv.Close()

			client := NewClient(Options{APIURL: srv.URL, Model: "m", APIKey: "sk-test-key-123"})

			_, err := client.SendRequest(context.Background(), "sys", "user", nil)
			require.Error(t, err)
			assert.True(t, quillerr.HasCode(err, tt.wantCode),
				"expected code %s, got %s", tt.wantCode, quillerr.CodeOf(err))
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestSendRequest_AuthFailedOffersReplacement(t *testing.T) {
	srv := errorServer(t, http.StatusUnauthorized, "")
	defer srv.Close()

	prompter := &fakePrompter{replacement: "sk-fresh-key-456"}
	client := NewClient(Options{APIURL: srv.URL, Model: "m", APIKey: "sk-test-key-123", Prompter: prompter})

	_, err := client.SendRequest(context.Background(), "sys", "user", nil)
	require.Error(t, err)
	assert.True(t, quillerr.HasCode(err, quillerr.CodeCompletionAuthFailed),
		"the call fails even when a replacement is supplied; the user retries explicitly")
	require.NotEmpty(t, prompter.replacementOffers)
	assert.Equal(t, "sk-fresh-key-456", client.apiKey, "replacement is kept for the next attempt")
}

func TestSendRequest_NetworkUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	client := NewClient(Options{APIURL: srv.URL, Model: "m", APIKey: "sk-test-key-123"})

	_, err := client.SendRequest(context.Background(), "sys", "user", nil)
	require.Error(t, err)
	assert.True(t, quillerr.HasCode(err, quillerr.CodeCompletionNetworkUnreachable))
}

func TestCredentialShapeIssue(t *testing.T) {
	assert.Empty(t, credentialShapeIssue("sk-abcdefghij"))
	assert.NotEmpty(t, credentialShapeIssue("sk-a"))
	assert.NotEmpty(t, credentialShapeIssue("abcdefghijklmnop"))
	assert.NotEmpty(t, credentialShapeIssue("   "))
}
