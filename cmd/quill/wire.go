// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package main

import (
	"log/slog"

	"github.com/quill-dev/quill/internal/assistant"
	"github.com/quill-dev/quill/internal/completion"
	"github.com/quill-dev/quill/internal/config"
	"github.com/quill-dev/quill/internal/prompts"
	"github.com/quill-dev/quill/internal/secrets"
	quillerr "github.com/quill-dev/quill/pkg/errors"
	"github.com/spf13/viper"
)

// secretStoreFactory creates a secrets.Store. It is a package-level variable
// so tests can substitute a mock implementation.
var secretStoreFactory = func() secrets.Store {
	return secrets.NewKeyringStore()
}

// App holds all wired subsystems.
type App struct {
	Config     *config.Config
	Controller *assistant.Controller
	Prompts    prompts.Store
	Client     *completion.Client
}

// Close releases the prompt store.
func (a *App) Close() error {
	return a.Prompts.Close()
}

// WireApp creates the prompt store, completion client, and chat controller
// from the resolved configuration. The prompter may be nil for headless use.
func WireApp(cfg *config.Config, prompter completion.Prompter) (*App, error) {
	dataDir := cfg.Storage.DataDir
	if dataDir == "" {
		var err error
		dataDir, err = config.DefaultDataDir()
		if err != nil {
			return nil, quillerr.Wrapf(err, quillerr.CodeCLISetupFailure, "resolving data directory")
		}
	}

	store, err := prompts.NewStore(cfg.Storage.Backend, dataDir)
	if err != nil {
		return nil, quillerr.Wrapf(err, quillerr.CodeCLISetupFailure, "creating prompt store")
	}

	secretStore := secretStoreFactory()
	apiKey, err := secrets.ResolveAPIKey(viper.GetViper(), secretStore)
	if err != nil {
		store.Close()
		return nil, quillerr.Wrapf(err, quillerr.CodeCLISetupFailure, "resolving API key")
	}

	client := completion.NewClient(completion.Options{
		APIURL:      cfg.API.URL,
		Model:       cfg.API.Model,
		APIKey:      apiKey,
		Temperature: cfg.API.Temperature,
		MaxTokens:   cfg.API.MaxTokens,
		Prompter:    prompter,
		Settings:    &viperSettings{secrets: secretStore},
	})

	controller := assistant.NewController(assistant.ControllerOptions{
		Prompts:   store,
		Completer: client,
	})

	return &App{
		Config:     cfg,
		Controller: controller,
		Prompts:    store,
		Client:     client,
	}, nil
}

// loadConfig builds the validated Config from the already-initialized
// global Viper, honoring API overrides from subcommand flags.
func loadConfig() (*config.Config, error) {
	return config.FromViper(viper.GetViper())
}

// viperSettings persists configuration resolved mid-request: endpoint and
// model go back into the config file, the credential into the OS keyring.
type viperSettings struct {
	secrets secrets.Store
}

func (s *viperSettings) SetAPIURL(url string) error {
	return s.persist("api.url", url)
}

func (s *viperSettings) SetModel(model string) error {
	return s.persist("api.model", model)
}

func (s *viperSettings) SetAPIKey(key string) error {
	return s.secrets.Store(secrets.Service, secrets.APIKeyName, key)
}

func (s *viperSettings) persist(key, value string) error {
	v := viper.GetViper()
	v.Set(key, value)

	if v.ConfigFileUsed() == "" {
		slog.Debug("no config file in use, keeping setting in memory only", "key", key)
		return nil
	}
	return v.WriteConfig()
}
