// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

// Package secrets stores the completion API credential outside the config
// file, in the operating system keyring.
package secrets

const (
	// Service is the keyring service name all Quill secrets live under.
	Service = "quill"

	// APIKeyName is the keyring key holding the completion API credential.
	APIKeyName = "api_key"
)

// Store provides secure secret storage operations. Implementations may use
// OS keyrings, encrypted files, or an in-memory map for tests.
type Store interface {
	// Store saves a secret value under the given service and key.
	Store(service, key, value string) error

	// Retrieve fetches the secret value for the given service and key.
	// Absent keys yield CodeSecretNotFound.
	Retrieve(service, key string) (string, error)

	// Delete removes the secret for the given service and key.
	// Absent keys yield CodeSecretNotFound.
	Delete(service, key string) error
}
