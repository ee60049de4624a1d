// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeCompletionCredentialMissing  Code = "completion.credential.missing"
	CodeCompletionAuthFailed         Code = "completion.auth.failed"
	CodeCompletionRateLimited        Code = "completion.rate_limited"
	CodeCompletionEndpointNotFound   Code = "completion.endpoint.not_found"
	CodeCompletionAPIFailure         Code = "completion.api.failure"
	CodeCompletionNetworkUnreachable Code = "completion.network.unreachable"
	CodeCompletionUnknown            Code = "completion.unknown"

	CodeSessionNotFound   Code = "session.get.not_found"
	CodeSessionNameEmpty  Code = "session.rename.empty_name"
	CodeSessionLastDelete Code = "session.delete.last_remaining"

	CodePromptNotFound           Code = "prompts.get.not_found"
	CodePromptInvalidInput       Code = "prompts.invalid_input"
	CodePromptDatabaseFailure    Code = "prompts.database.failure"
	CodePromptBackendUnsupported Code = "prompts.backend.unsupported"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodeSecretInvalidInput  Code = "secret.invalid_input"
	CodeSecretNotFound      Code = "secret.get.not_found"
	CodeSecretStoreFailure  Code = "secret.store.failure"
	CodeSecretDeleteFailure Code = "secret.delete.failure"
	CodeSecretListFailure   Code = "secret.list.failure"

	CodeBridgeRequestInvalid  Code = "bridge.request.invalid"
	CodeBridgeStartFailure    Code = "bridge.start.failure"
	CodeBridgeInternalFailure Code = "bridge.internal.failure"

	CodeCLISetupFailure Code = "cli.setup.failure"
	CodeCLIInputInvalid Code = "cli.input.invalid"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldSessionID(value string) Attr {
	return Field("session_id", value)
}

func FieldResponseID(value string) Attr {
	return Field("response_id", value)
}

func FieldPrompt(value string) Attr {
	return Field("prompt", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).Wrapf(err, format, args...)
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}

	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}

	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" || r == "empty_name"
}

// IsRejectedOperation reports whether err is a rejection that surfaces as a
// user notice rather than a failure (last-session delete, empty rename).
func IsRejectedOperation(err error) bool {
	return HasCode(err, CodeSessionLastDelete) || HasCode(err, CodeSessionNameEmpty)
}

func HTTPStatus(err error) int {
	switch {
	case IsNotFound(err):
		return http.StatusNotFound
	case IsInvalidInput(err):
		return http.StatusBadRequest
	case HasCode(err, CodeSessionLastDelete):
		return http.StatusConflict
	case HasCode(err, CodeCompletionRateLimited):
		return http.StatusTooManyRequests
	case HasCode(err, CodeCompletionNetworkUnreachable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func Join(errs ...error) error {
	return oops.Code(CodeBridgeInternalFailure).Wrap(stderrors.Join(errs...))
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
