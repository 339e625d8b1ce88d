package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrorType is the OpenAI error envelope "type" value.
type ErrorType string

const (
	ErrTypeInvalidRequest ErrorType = "invalid_request_error"
	ErrTypeAuthentication ErrorType = "authentication_error"
	ErrTypeAPI            ErrorType = "api_error"
)

// ValidationError reports a malformed or out-of-range request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// UnrecognizedModelError reports a model name the resolver cannot map.
type UnrecognizedModelError struct {
	Model          string
	ExpectedPrefix string
}

func (e *UnrecognizedModelError) Error() string {
	if e.ExpectedPrefix != "" {
		return fmt.Sprintf("unrecognized model %q: expected prefix %q", e.Model, e.ExpectedPrefix)
	}
	return fmt.Sprintf("unrecognized model %q", e.Model)
}

// AuthenticationError never says which part of the token format failed.
type AuthenticationError struct{}

func (e *AuthenticationError) Error() string {
	return "invalid API key format"
}

// UnsupportedFeatureError names a capability with no backend mapping. The translator
// logs it and degrades instead of failing.
type UnsupportedFeatureError struct {
	Feature string
	Detail  string
}

func (e *UnsupportedFeatureError) Error() string {
	return fmt.Sprintf("unsupported %s: %s", e.Feature, e.Detail)
}

// BackendError wraps any failure of the backend collaborator. Its message is generic;
// the cause is only available through Unwrap for logging.
type BackendError struct {
	Err error
}

func (e *BackendError) Error() string {
	return "the backend failed to process the request"
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// APIError is the wire shape of an error response.
type APIError struct {
	Message string    `json:"message"`
	Type    ErrorType `json:"type"`
	Param   *string   `json:"param"`
	Code    *string   `json:"code"`
}

// ErrorResponse is the {"error": {...}} envelope.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// ToAPIError maps an error from any layer to an HTTP status and wire envelope.
func ToAPIError(err error) (int, ErrorResponse) {
	var (
		validationErr *ValidationError
		modelErr      *UnrecognizedModelError
		authErr       *AuthenticationError
		backendErr    *BackendError
	)

	switch {
	case errors.As(err, &validationErr):
		param := validationErr.Field
		resp := ErrorResponse{Error: APIError{Message: validationErr.Error(), Type: ErrTypeInvalidRequest}}
		if param != "" {
			resp.Error.Param = &param
		}
		return http.StatusBadRequest, resp
	case errors.As(err, &modelErr):
		code := "model_not_found"
		param := "model"
		return http.StatusNotFound, ErrorResponse{Error: APIError{
			Message: modelErr.Error(),
			Type:    ErrTypeInvalidRequest,
			Param:   &param,
			Code:    &code,
		}}
	case errors.As(err, &authErr):
		code := "invalid_api_key"
		return http.StatusUnauthorized, ErrorResponse{Error: APIError{
			Message: authErr.Error(),
			Type:    ErrTypeAuthentication,
			Code:    &code,
		}}
	case errors.As(err, &backendErr):
		return http.StatusBadGateway, ErrorResponse{Error: APIError{Message: backendErr.Error(), Type: ErrTypeAPI}}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: APIError{
			Message: "internal server error",
			Type:    ErrTypeAPI,
		}}
	}
}

// asValidationError turns a decode failure into a ValidationError, prefixing field paths.
func asValidationError(prefix string, err error) error {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return &ValidationError{Field: joinField(prefix, validationErr.Field), Message: validationErr.Message}
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return &ValidationError{
			Field:   joinField(prefix, typeErr.Field),
			Message: fmt.Sprintf("cannot be a JSON %s", typeErr.Value),
		}
	}

	field := prefix
	if field == "" {
		field = "body"
	}
	return &ValidationError{Field: field, Message: "malformed JSON"}
}

func joinField(prefix, field string) string {
	switch {
	case prefix == "":
		return field
	case field == "":
		return prefix
	}
	return prefix + "." + field
}
