// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/quill-dev/quill/internal/config"
	"github.com/quill-dev/quill/internal/prompts"
	quillerr "github.com/quill-dev/quill/pkg/errors"
	"github.com/spf13/cobra"
)

func newPromptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Manage prompt templates",
		Long:  "Create, inspect, and delete the named system-prompt templates offered in the chat panel.",
	}

	cmd.AddCommand(
		newPromptAddCmd(),
		newPromptEditCmd(),
		newPromptShowCmd(),
		newPromptListCmd(),
		newPromptDeleteCmd(),
	)

	return cmd
}

// openPromptStore builds the configured prompt store for one CLI operation.
func openPromptStore() (prompts.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	dataDir := cfg.Storage.DataDir
	if dataDir == "" {
		dataDir, err = config.DefaultDataDir()
		if err != nil {
			return nil, quillerr.Wrapf(err, quillerr.CodeCLISetupFailure, "resolving data directory")
		}
	}

	return prompts.NewStore(cfg.Storage.Backend, dataDir)
}

// promptContent joins trailing args as the template body, falling back to
// stdin so longer templates can be piped in.
func promptContent(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}

	raw, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", quillerr.Wrapf(err, quillerr.CodeCLIInputInvalid, "reading template content from stdin")
	}

	content := strings.TrimSpace(string(raw))
	if content == "" {
		return "", quillerr.New(quillerr.CodeCLIInputInvalid, "template content is empty; pass it as arguments or on stdin")
	}
	return content, nil
}

func newPromptAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <name> [content...]",
		Short: "Add a prompt template",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openPromptStore()
			if err != nil {
				return err
			}
			defer store.Close()

			content, err := promptContent(cmd, args[1:])
			if err != nil {
				return err
			}

			if err := store.Set(cmd.Context(), args[0], content); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Prompt %q saved.\n", args[0])
			return nil
		},
	}
}

func newPromptEditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit <name> [content...]",
		Short: "Replace an existing prompt template",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openPromptStore()
			if err != nil {
				return err
			}
			defer store.Close()

			// Unlike add, edit refuses to create new names, so typos fail
			// loudly instead of forking the template.
			if _, err := store.Get(cmd.Context(), args[0]); err != nil {
				return err
			}

			content, err := promptContent(cmd, args[1:])
			if err != nil {
				return err
			}

			if err := store.Set(cmd.Context(), args[0], content); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Prompt %q updated.\n", args[0])
			return nil
		},
	}
}

func newPromptShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Print a prompt template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openPromptStore()
			if err != nil {
				return err
			}
			defer store.Close()

			tmpl, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tmpl.Content)
			return nil
		},
	}
}

func newPromptListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List prompt template names",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openPromptStore()
			if err != nil {
				return err
			}
			defer store.Close()

			names, err := store.ListNames(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(names) == 0 {
				fmt.Fprintln(out, "No prompt templates stored.")
				return nil
			}
			for _, name := range names {
				fmt.Fprintln(out, name)
			}
			return nil
		},
	}
}

func newPromptDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a prompt template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openPromptStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Prompt %q deleted.\n", args[0])
			return nil
		},
	}
}
