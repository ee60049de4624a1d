// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package main

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/quill-dev/quill/internal/assistant"
	"github.com/quill-dev/quill/internal/view"
)

// --- lipgloss styles ---

var (
	chatTitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	userStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	assistantStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	noticeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	chatDimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	inputFrameStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("62")).Padding(0, 1)
)

// displayMsg wraps a renderer command for delivery into the bubbletea loop.
type displayMsg struct {
	cmd view.Command
}

// sendDoneMsg signals that HandleIntent returned for a user send.
type sendDoneMsg struct{}

// tuiRenderer forwards display commands into the running program. Safe to
// call from the controller's goroutine; program.Send is concurrency-safe.
type tuiRenderer struct {
	program *tea.Program
}

func (r *tuiRenderer) Emit(cmd view.Command) {
	r.program.Send(displayMsg{cmd: cmd})
}

// chatModel is the bubbletea model for the interactive chat screen.
type chatModel struct {
	controller *assistant.Controller

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	width  int
	height int
	ready  bool

	// transcript lines plus the in-flight streaming region
	lines       []string
	streamingID string
	streaming   string

	sessionName string
	notice      string
	waiting     bool
}

func newChatModel(controller *assistant.Controller) chatModel {
	input := textinput.New()
	input.Placeholder = "type a message, /new /clear /quit"
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return chatModel{
		controller:  controller,
		input:       input,
		spinner:     sp,
		sessionName: "New chat",
	}
}

func (m chatModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vpHeight := msg.Height - 6
		if vpHeight < 3 {
			vpHeight = 3
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = vpHeight
		}
		m.input.Width = msg.Width - 6
		m.refreshViewport()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		}

	case displayMsg:
		return m.applyCommand(msg.cmd)

	case sendDoneMsg:
		m.waiting = false
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.waiting {
			return m, cmd
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit handles Enter: local slash commands first, everything else goes to
// the controller as a send intent.
func (m chatModel) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" || m.waiting {
		return m, nil
	}
	m.input.Reset()
	m.notice = ""

	controller := m.controller
	var intent view.Intent

	switch text {
	case "/quit":
		return m, tea.Quit
	case "/new":
		intent = view.NewSession{}
	case "/clear":
		intent = view.ClearCurrentHistory{}
	default:
		intent = view.SendMessage{Text: text}
		m.waiting = true
	}

	dispatch := func() tea.Msg {
		// Errors surface through the renderer as notices.
		_ = controller.HandleIntent(context.Background(), intent)
		return sendDoneMsg{}
	}

	if m.waiting {
		return m, tea.Batch(dispatch, m.spinner.Tick)
	}
	return m, dispatch
}

// applyCommand folds one display command into the transcript state. The
// command set is closed; every variant is handled.
func (m chatModel) applyCommand(cmd view.Command) (tea.Model, tea.Cmd) {
	switch c := cmd.(type) {
	case view.BeginResponse:
		m.streamingID = c.ID
		m.streaming = c.Prefix
	case view.AppendFragment:
		if c.ID == m.streamingID {
			m.streaming += c.Text
		}
	case view.FinalizeResponse:
		if c.ID == m.streamingID {
			m.lines = append(m.lines, m.streaming)
			m.streamingID = ""
			m.streaming = ""
		}
	case view.TranscriptMessage:
		m.lines = append(m.lines, c.Text)
	case view.ClearHistory:
		m.lines = nil
	case view.RestoreHistory:
		m.lines = append([]string(nil), c.Messages...)
		m.streamingID = ""
		m.streaming = ""
	case view.UpdateSessionList:
		for _, entry := range c.Sessions {
			if entry.IsActive {
				m.sessionName = entry.Name
			}
		}
	case view.UpdatePromptList:
		// The terminal surface selects templates via the --prompt flag;
		// nothing to refresh here.
	case view.Notice:
		m.notice = c.Text
	}

	m.refreshViewport()
	return m, nil
}

func (m *chatModel) refreshViewport() {
	if !m.ready {
		return
	}

	rendered := make([]string, 0, len(m.lines)+1)
	for _, line := range m.lines {
		rendered = append(rendered, styleLine(line))
	}
	if m.streamingID != "" {
		rendered = append(rendered, assistantStyle.Render(m.streaming))
	}

	m.viewport.SetContent(strings.Join(rendered, "\n"))
	m.viewport.GotoBottom()
}

func styleLine(line string) string {
	switch {
	case strings.HasPrefix(line, assistant.UserPrefix):
		return userStyle.Render(line)
	case strings.HasPrefix(line, assistant.ResponsePrefix):
		return assistantStyle.Render(line)
	default:
		return chatDimStyle.Render(line)
	}
}

func (m chatModel) View() string {
	if !m.ready {
		return "loading..."
	}

	header := chatTitleStyle.Render("quill / " + m.sessionName)

	status := ""
	switch {
	case m.waiting:
		status = m.spinner.View() + " waiting for response"
	case m.notice != "":
		status = noticeStyle.Render(m.notice)
	default:
		status = chatDimStyle.Render("enter to send · esc to quit")
	}

	return strings.Join([]string{
		header,
		m.viewport.View(),
		inputFrameStyle.Render(m.input.View()),
		status,
	}, "\n")
}
