// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package assistant

import (
	"fmt"
	"strings"
	"time"

	"github.com/quill-dev/quill/internal/view"
)

// ResponsePrefix labels assembled assistant responses in the transcript and
// the session log.
const ResponsePrefix = "Assistant: "

// UserPrefix labels user messages in the session log.
const UserPrefix = "You: "

type assemblerState int

const (
	stateCreated assemblerState = iota
	stateStreaming
	stateFinalized
	stateAborted
)

// responseAssembler ties one request's streamed fragments to one display
// region. Created -> Streaming -> Finalized, with Aborted reachable while
// the stream is open. All display output goes through emit, which is
// expected to handle renderer teardown by dropping commands.
type responseAssembler struct {
	id    string
	emit  func(view.Command)
	text  strings.Builder
	state assemblerState
}

// newResponseAssembler allocates a response id from the clock and emits the
// begin command for its display region.
func newResponseAssembler(now time.Time, emit func(view.Command)) *responseAssembler {
	a := &responseAssembler{
		id:   fmt.Sprintf("response-%d", now.UnixMilli()),
		emit: emit,
	}
	a.emit(view.BeginResponse{ID: a.id, Prefix: ResponsePrefix})
	return a
}

// Fragment accumulates one streamed fragment and forwards it to the display
// region, in arrival order.
func (a *responseAssembler) Fragment(text string) {
	if a.state == stateFinalized || a.state == stateAborted {
		return
	}
	a.state = stateStreaming
	a.text.WriteString(text)
	a.emit(view.AppendFragment{ID: a.id, Text: text})
}

// Finalize marks the display region complete and returns the accumulated
// text for committing to the session log.
func (a *responseAssembler) Finalize() string {
	if a.state == stateFinalized || a.state == stateAborted {
		return a.text.String()
	}
	a.state = stateFinalized
	a.emit(view.FinalizeResponse{ID: a.id})
	return a.text.String()
}

// Abort appends the error detail to the display region so the partial
// output and the failure are both visible, and raises a user notice. The
// error text is not part of the accumulated response.
func (a *responseAssembler) Abort(err error) {
	if a.state == stateFinalized || a.state == stateAborted {
		return
	}
	a.state = stateAborted
	a.emit(view.AppendFragment{ID: a.id, Text: "\n\nError: " + err.Error()})
	a.emit(view.Notice{Text: "Error: " + err.Error()})
}

// Partial returns the text accumulated so far.
func (a *responseAssembler) Partial() string {
	return a.text.String()
}
