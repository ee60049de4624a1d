// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/quill-dev/quill/internal/bridge"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the host bridge",
		Long:  "Start the localhost bridge the editor panel connects to: display commands stream out over SSE, user intents post back in.",
		RunE:  runServe,
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")
	_ = viper.BindPFlag("bridge.listen", cmd.Flags().Lookup("listen"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Headless: configuration gaps fall back to defaults, a missing
	// credential surfaces as an error on the first send.
	app, err := WireApp(cfg, nil)
	if err != nil {
		return err
	}
	defer app.Close()

	srv, err := bridge.New(bridge.Config{
		ListenAddr:  cfg.Bridge.Listen,
		CORSOrigins: cfg.Bridge.CORSOrigins,
	}, app.Controller)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app.Controller.Attach(ctx, srv)
	defer app.Controller.Detach()

	fmt.Fprintf(cmd.OutOrStdout(), "quill bridge listening on %s\n", cfg.Bridge.Listen)
	return srv.Start(ctx)
}
