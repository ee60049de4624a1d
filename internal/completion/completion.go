// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

// Package completion issues chat-completion requests against an
// OpenAI-compatible endpoint, resolving missing configuration interactively
// and classifying failures into the shared error taxonomy. No call in this
// package retries; retries are always user-initiated.
package completion

import (
	"context"
	"strings"
)

const (
	// DefaultAPIURL is the fallback endpoint persisted when the user
	// declines to supply one.
	DefaultAPIURL = "https://api.openai.com/v1/chat/completions"

	// DefaultModel is the fallback model persisted when the user declines
	// to supply one.
	DefaultModel = "gpt-3.5-turbo"

	// DefaultSystemPrompt is used when no prompt template is selected.
	DefaultSystemPrompt = "You are a helpful assistant."

	minCredentialLength = 10
	credentialPrefix    = "sk-"
)

// Prompter collects configuration from the user when it is missing. An
// implementation may pop an editor input box, read from the terminal, or
// always decline (headless mode). Returning an empty string means the user
// declined; only a transport-level failure should return an error.
type Prompter interface {
	// RequestCredential asks for an API key when none is configured.
	RequestCredential(ctx context.Context) (string, error)

	// OfferCredentialReplacement warns that the current credential looks
	// wrong or was rejected, and offers a replacement. Empty means keep.
	OfferCredentialReplacement(ctx context.Context, reason string) (string, error)

	// RequestEndpoint asks for the completion endpoint URL.
	RequestEndpoint(ctx context.Context) (string, error)

	// RequestModel asks for the model identifier.
	RequestModel(ctx context.Context) (string, error)
}

// SettingsWriter persists configuration resolved during a request so the
// next call does not ask again.
type SettingsWriter interface {
	SetAPIURL(url string) error
	SetModel(model string) error
	SetAPIKey(key string) error
}

// credentialShapeIssue reports why a credential looks malformed, or ""
// when it passes the heuristic. The check never blocks a call; a failing
// shape only triggers a replacement offer.
func credentialShapeIssue(key string) string {
	trimmed := strings.TrimSpace(key)
	if len(trimmed) < minCredentialLength {
		return "the configured API key looks too short"
	}
	if !strings.HasPrefix(trimmed, credentialPrefix) {
		return "the configured API key does not start with \"" + credentialPrefix + "\""
	}
	return ""
}
