// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/quill-dev/quill/internal/stream"
	quillerr "github.com/quill-dev/quill/pkg/errors"
)

// Options configures a Client. APIURL, Model, and APIKey may be empty; gaps
// are resolved through the Prompter on first use.
type Options struct {
	APIURL      string
	Model       string
	APIKey      string
	Temperature float64
	MaxTokens   int

	// HTTPClient defaults to a client without a timeout: streaming
	// responses stay open for as long as the server produces fragments,
	// and cancellation arrives through the request context.
	HTTPClient *http.Client

	// Prompter may be nil; configuration gaps then fall through to the
	// fixed defaults (or a hard error for the credential).
	Prompter Prompter

	// Settings may be nil; resolved values are then used for this call
	// only and not persisted.
	Settings SettingsWriter
}

// Client issues completion requests. Safe for sequential use from the event
// loop; it keeps resolved configuration between calls.
type Client struct {
	httpClient *http.Client
	prompter   Prompter
	settings   SettingsWriter

	apiURL      string
	model       string
	apiKey      string
	temperature float64
	maxTokens   int

	// set once the shape warning has been shown, so a deliberately odd
	// key is not re-litigated on every request
	shapeChecked bool
}

// NewClient creates a Client from Options, applying payload defaults for
// unset tuning values.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	temperature := opts.Temperature
	if temperature == 0 {
		temperature = 0.7
	}
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1000
	}

	return &Client{
		httpClient:  httpClient,
		prompter:    opts.Prompter,
		settings:    opts.Settings,
		apiURL:      opts.APIURL,
		model:       opts.Model,
		apiKey:      opts.APIKey,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// apiError is the error envelope OpenAI-compatible servers return on
// non-2xx responses.
type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// SendRequest sends systemPrompt and userContent as a two-message
// completion request and returns the full response text. When onFragment is
// non-nil the request streams: every fragment is delivered synchronously,
// in arrival order, before the call returns. There are no automatic
// retries on any failure path.
func (c *Client) SendRequest(ctx context.Context, systemPrompt, userContent string, onFragment stream.FragmentFunc) (string, error) {
	if err := c.resolveCredential(ctx); err != nil {
		return "", err
	}
	if err := c.resolveEndpoint(ctx); err != nil {
		return "", err
	}

	streaming := onFragment != nil

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userContent},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Stream:      streaming,
	})
	if err != nil {
		return "", quillerr.Wrapf(err, quillerr.CodeCompletionUnknown, "encoding request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", quillerr.Wrapf(err, quillerr.CodeCompletionUnknown, "building request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", quillerr.Wrapf(err, quillerr.CodeCompletionNetworkUnreachable, "no response from %s", c.apiURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", c.classifyStatus(ctx, resp)
	}

	if streaming {
		text, err := stream.Decode(ctx, resp.Body, onFragment)
		slog.Debug("completion stream finished",
			"model", c.model, "chars", len(text), "elapsed", time.Since(start), "error", err)
		return text, err
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", quillerr.Wrapf(err, quillerr.CodeCompletionUnknown, "decoding response")
	}
	if len(parsed.Choices) == 0 {
		return "", quillerr.New(quillerr.CodeCompletionUnknown, "response contained no choices")
	}

	slog.Debug("completion finished", "model", c.model, "elapsed", time.Since(start))
	return parsed.Choices[0].Message.Content, nil
}

// resolveCredential ensures an API key is present, asking the prompter when
// configured. A key that fails the shape heuristic triggers a one-time
// replacement offer but never blocks the request.
func (c *Client) resolveCredential(ctx context.Context) error {
	if c.apiKey == "" && c.prompter != nil {
		key, err := c.prompter.RequestCredential(ctx)
		if err != nil {
			return quillerr.Wrapf(err, quillerr.CodeCompletionCredentialMissing, "requesting API key")
		}
		if key != "" {
			c.setCredential(key)
		}
	}
	if c.apiKey == "" {
		return quillerr.New(quillerr.CodeCompletionCredentialMissing, "no API key configured")
	}

	if c.shapeChecked || c.prompter == nil {
		return nil
	}
	c.shapeChecked = true

	if issue := credentialShapeIssue(c.apiKey); issue != "" {
		replacement, err := c.prompter.OfferCredentialReplacement(ctx, issue)
		if err != nil {
			return quillerr.Wrapf(err, quillerr.CodeCompletionCredentialMissing, "offering API key replacement")
		}
		if replacement != "" {
			c.setCredential(replacement)
		}
	}

	return nil
}

// resolveEndpoint fills in the endpoint URL and model, prompting when
// possible and persisting the fixed default when the user declines.
func (c *Client) resolveEndpoint(ctx context.Context) error {
	if c.apiURL == "" {
		url := ""
		if c.prompter != nil {
			var err error
			url, err = c.prompter.RequestEndpoint(ctx)
			if err != nil {
				return quillerr.Wrapf(err, quillerr.CodeCompletionUnknown, "requesting endpoint URL")
			}
		}
		if url == "" {
			url = DefaultAPIURL
		}
		c.apiURL = url
		if c.settings != nil {
			if err := c.settings.SetAPIURL(url); err != nil {
				slog.Warn("could not persist endpoint URL", "error", err)
			}
		}
	}

	if c.model == "" {
		model := ""
		if c.prompter != nil {
			var err error
			model, err = c.prompter.RequestModel(ctx)
			if err != nil {
				return quillerr.Wrapf(err, quillerr.CodeCompletionUnknown, "requesting model")
			}
		}
		if model == "" {
			model = DefaultModel
		}
		c.model = model
		if c.settings != nil {
			if err := c.settings.SetModel(model); err != nil {
				slog.Warn("could not persist model", "error", err)
			}
		}
	}

	return nil
}

func (c *Client) setCredential(key string) {
	c.apiKey = strings.TrimSpace(key)
	if c.settings != nil {
		if err := c.settings.SetAPIKey(c.apiKey); err != nil {
			slog.Warn("could not persist API key", "error", err)
		}
	}
}

// classifyStatus maps a non-200 response to the error taxonomy, in priority
// order. On 401 the prompter is offered one credential replacement before
// the call fails; the caller decides whether to retry.
func (c *Client) classifyStatus(ctx context.Context, resp *http.Response) error {
	detail := serverDetail(resp.Body)

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		if c.prompter != nil {
			replacement, err := c.prompter.OfferCredentialReplacement(ctx, "the API rejected the configured key")
			if err == nil && replacement != "" {
				c.setCredential(replacement)
			}
		}
		return quillerr.New(quillerr.CodeCompletionAuthFailed, "authentication failed")
	case http.StatusTooManyRequests:
		return quillerr.New(quillerr.CodeCompletionRateLimited, "rate limited by the API")
	case http.StatusNotFound:
		msg := "endpoint or model not found"
		if detail != "" {
			msg += ": " + detail
		}
		return quillerr.New(quillerr.CodeCompletionEndpointNotFound, msg)
	default:
		msg := "API request failed"
		if detail != "" {
			msg += ": " + detail
		}
		return quillerr.New(quillerr.CodeCompletionAPIFailure, msg,
			quillerr.Field("status", resp.StatusCode))
	}
}

// serverDetail extracts the error message OpenAI-compatible servers embed
// in failure bodies. Unreadable or unparseable bodies yield "".
func serverDetail(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 64*1024))
	if err != nil {
		return ""
	}

	var envelope apiError
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}

	return strings.TrimSpace(string(raw))
}
