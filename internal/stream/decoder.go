// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

// Package stream decodes the line-oriented event streams produced by
// chat-completion endpoints. Each logical record arrives as a single
// "data: <payload>" line; the payload is either a JSON chunk carrying an
// optional content delta or the literal [DONE] sentinel.
package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"

	quillerr "github.com/quill-dev/quill/pkg/errors"
)

const (
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"

	// Completion chunks are small, but a single line may carry a large
	// payload when the server batches deltas.
	initialBufSize = 64 * 1024
	maxLineSize    = 1024 * 1024
)

// FragmentFunc receives each content fragment in stream order. It is invoked
// synchronously before the next line is read.
type FragmentFunc func(text string)

// chunk is the subset of a streaming completion record we care about.
// Records without a content delta (role announcements, usage-only chunks)
// decode fine and simply yield no fragment.
type chunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Decode reads SSE lines from r until the [DONE] sentinel, end of stream, a
// transport error, or context cancellation. Fragments are delivered to
// onFragment strictly in input order; concatenating them reconstructs the
// returned text exactly. The accumulated text is returned on every outcome,
// including errors, so callers keep whatever was already streamed.
func Decode(ctx context.Context, r io.Reader, onFragment FragmentFunc) (string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, initialBufSize), maxLineSize)

	var full strings.Builder

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return full.String(), quillerr.Wrap(ctx.Err(), quillerr.CodeCompletionNetworkUnreachable, "stream cancelled")
		default:
		}

		line := strings.TrimSpace(scanner.Text())

		// Empty lines, comments, and keep-alives are skipped for
		// forward compatibility.
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}

		data := strings.TrimPrefix(line, dataPrefix)

		if data == doneSentinel {
			return full.String(), nil
		}

		var c chunk
		if err := json.Unmarshal([]byte(data), &c); err != nil {
			slog.Debug("skipping malformed stream chunk", "error", err)
			continue
		}

		if len(c.Choices) == 0 {
			continue
		}

		if content := c.Choices[0].Delta.Content; content != "" {
			full.WriteString(content)
			if onFragment != nil {
				onFragment(content)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		// Context cancellation closes the response body underneath the
		// scanner; report the cancellation rather than the IO error.
		if ctx.Err() != nil {
			return full.String(), quillerr.Wrap(ctx.Err(), quillerr.CodeCompletionNetworkUnreachable, "stream cancelled")
		}
		return full.String(), quillerr.Wrap(err, quillerr.CodeCompletionNetworkUnreachable, "reading stream")
	}

	// Stream ended without [DONE]. The transport signalled a clean end, so
	// treat it as normal completion.
	return full.String(), nil
}
