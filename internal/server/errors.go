package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/ujjwalparashar30/github-assisstance/internal/assessment"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
	Err     error
}

func (e *ErrValidation) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation error: %s", e.Message)
	}
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

func (e *ErrValidation) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var validationErr *ErrValidation
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest
	}

	var assessmentErr *assessment.Error
	if errors.As(err, &assessmentErr) {
		switch {
		case assessmentErr.Kind == assessment.KindClient && assessmentErr.Code == assessment.CodeFileTooLarge:
			return http.StatusRequestEntityTooLarge
		case assessmentErr.Kind == assessment.KindClient:
			return http.StatusBadRequest
		case assessmentErr.Code == assessment.CodeTimeout:
			return http.StatusGatewayTimeout
		case assessmentErr.Kind == assessment.KindUpstream:
			return http.StatusBadGateway
		}
	}
	return http.StatusInternalServerError
}

// errorCode returns the stable code reported with an error response.
func errorCode(err error) string {
	var validationErr *ErrValidation
	if errors.As(err, &validationErr) {
		return assessment.CodeInvalidRequest
	}
	var assessmentErr *assessment.Error
	if errors.As(err, &assessmentErr) {
		return assessmentErr.Code
	}
	return "internal_error"
}
