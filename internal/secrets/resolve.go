// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package secrets

import (
	quillerr "github.com/quill-dev/quill/pkg/errors"
	"github.com/spf13/viper"
)

// ResolveAPIKey returns the completion credential using the standard
// precedence: explicit config/env value (viper key "api.key", env
// QUILL_API_KEY) first, then the OS keyring. An empty result with a nil
// error means no credential is configured anywhere; callers decide whether
// to prompt.
func ResolveAPIKey(v *viper.Viper, store Store) (string, error) {
	if key := v.GetString("api.key"); key != "" {
		return key, nil
	}

	key, err := store.Retrieve(Service, APIKeyName)
	if err != nil {
		if quillerr.HasCode(err, quillerr.CodeSecretNotFound) {
			return "", nil
		}
		return "", err
	}
	return key, nil
}
