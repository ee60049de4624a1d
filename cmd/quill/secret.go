// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/quill-dev/quill/internal/secrets"
	quillerr "github.com/quill-dev/quill/pkg/errors"
	"github.com/spf13/cobra"
)

func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage the API credential in the OS keyring",
	}

	cmd.AddCommand(
		newSecretSetCmd(),
		newSecretResetCmd(),
	)

	return cmd
}

func newSecretSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set",
		Short: "Store the completion API key",
		Long:  "Read the API key from stdin and store it in the operating system keyring under the quill service.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprint(cmd.OutOrStdout(), "API key: ")

			reader := bufio.NewReader(cmd.InOrStdin())
			line, err := reader.ReadString('\n')
			if err != nil && line == "" {
				return quillerr.Wrapf(err, quillerr.CodeCLIInputInvalid, "reading API key")
			}

			key := strings.TrimSpace(line)
			if key == "" {
				return quillerr.New(quillerr.CodeCLIInputInvalid, "API key must not be empty")
			}

			store := secretStoreFactory()
			if err := store.Store(secrets.Service, secrets.APIKeyName, key); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "API key saved.")
			return nil
		},
	}
}

func newSecretResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Remove the stored API key",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store := secretStoreFactory()
			if err := store.Delete(secrets.Service, secrets.APIKeyName); err != nil {
				if quillerr.HasCode(err, quillerr.CodeSecretNotFound) {
					fmt.Fprintln(cmd.OutOrStdout(), "No API key stored.")
					return nil
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "API key removed.")
			return nil
		},
	}
}
