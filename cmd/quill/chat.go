// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quill-dev/quill/internal/completion"
	"github.com/quill-dev/quill/internal/config"
	quillerr "github.com/quill-dev/quill/pkg/errors"
)

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Chat from the terminal",
		Long:  "Send one message and print the streamed answer, or start the interactive chat screen when no message is given.",
		RunE:  runChat,
	}

	cmd.Flags().StringP("prompt", "p", "", "prompt template to use as the system prompt")
	cmd.Flags().StringP("model", "m", "", "model override")
	_ = viper.BindPFlag("api.model", cmd.Flags().Lookup("model"))

	return cmd
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if len(args) > 0 {
		return runChatOneShot(cmd, cfg, strings.Join(args, " "))
	}
	return runChatTUI(cmd, cfg)
}

// runChatOneShot streams a single answer to stdout. Configuration gaps are
// resolved on the terminal.
func runChatOneShot(cmd *cobra.Command, cfg *config.Config, message string) error {
	app, err := WireApp(cfg, &terminalPrompter{cmd: cmd})
	if err != nil {
		return err
	}
	defer app.Close()

	systemPrompt := completion.DefaultSystemPrompt
	if name, _ := cmd.Flags().GetString("prompt"); name != "" {
		tmpl, err := app.Prompts.Get(cmd.Context(), name)
		if err != nil {
			return err
		}
		systemPrompt = tmpl.Content
	}

	out := cmd.OutOrStdout()
	_, err = app.Client.SendRequest(cmd.Context(), systemPrompt, message,
		func(fragment string) { fmt.Fprint(out, fragment) })
	fmt.Fprintln(out)
	return err
}

// runChatTUI runs the interactive chat screen. No prompter: the terminal is
// owned by the TUI, so missing configuration surfaces as an in-screen
// notice instead of an inline dialog.
func runChatTUI(cmd *cobra.Command, cfg *config.Config) error {
	app, err := WireApp(cfg, nil)
	if err != nil {
		return err
	}
	defer app.Close()

	program := tea.NewProgram(newChatModel(app.Controller), tea.WithAltScreen())

	app.Controller.Attach(cmd.Context(), &tuiRenderer{program: program})
	defer app.Controller.Detach()

	_, err = program.Run()
	return err
}

// terminalPrompter resolves configuration gaps by asking on the terminal.
// Empty answers decline.
type terminalPrompter struct {
	cmd *cobra.Command
}

func (p *terminalPrompter) ask(question string) (string, error) {
	fmt.Fprint(p.cmd.OutOrStdout(), question)

	reader := bufio.NewReader(p.cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", quillerr.Wrapf(err, quillerr.CodeCLIInputInvalid, "reading input")
	}
	return strings.TrimSpace(line), nil
}

func (p *terminalPrompter) RequestCredential(context.Context) (string, error) {
	return p.ask("No API key configured. Enter one (blank to abort): ")
}

func (p *terminalPrompter) OfferCredentialReplacement(_ context.Context, reason string) (string, error) {
	return p.ask(fmt.Sprintf("Warning: %s. Enter a replacement (blank to keep): ", reason))
}

func (p *terminalPrompter) RequestEndpoint(context.Context) (string, error) {
	return p.ask(fmt.Sprintf("No endpoint configured. Enter one (blank for %s): ", completion.DefaultAPIURL))
}

func (p *terminalPrompter) RequestModel(context.Context) (string, error) {
	return p.ask(fmt.Sprintf("No model configured. Enter one (blank for %s): ", completion.DefaultModel))
}
