package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/npezzotti/go-chatgateway/internal/auth"
	"github.com/npezzotti/go-chatgateway/internal/database"
	"github.com/npezzotti/go-chatgateway/internal/history"
)

// ApiError is the JSON body of every failed HTTP request.
type ApiError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Err        error  `json:"-"`
}

func (e *ApiError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}

	return e.Message
}

func (e *ApiError) Unwrap() error {
	return e.Err
}

// newApiError falls back to the lower-cased status text when message is
// empty.
func newApiError(status int, message string, cause error) *ApiError {
	if message == "" {
		message = strings.ToLower(http.StatusText(status))
	}

	return &ApiError{StatusCode: status, Message: message, Err: cause}
}

func NewBadRequestError() *ApiError {
	return newApiError(http.StatusBadRequest, "", nil)
}

func NewValidationError(err error) *ApiError {
	return newApiError(http.StatusBadRequest, "invalid request", err)
}

func NewUnauthorizedError() *ApiError {
	return newApiError(http.StatusUnauthorized, "", nil)
}

func NewNotFoundError(message string) *ApiError {
	return newApiError(http.StatusNotFound, message, nil)
}

func NewConflictError(message string) *ApiError {
	return newApiError(http.StatusConflict, message, nil)
}

func NewInternalServerError(err error) *ApiError {
	return newApiError(http.StatusInternalServerError, "", err)
}

// apiErrorFrom maps an error returned by the lower layers to the response
// a client should see. Unknown errors are internal.
func apiErrorFrom(err error) *ApiError {
	var apiErr *ApiError
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, history.ErrInvalidRoom):
		return NewNotFoundError("unknown room")
	case errors.Is(err, history.ErrMissingRecipient):
		return newApiError(http.StatusBadRequest, "missing recipient", err)
	case errors.Is(err, database.ErrDuplicateAccount):
		return NewConflictError("username already exists")
	case errors.Is(err, auth.ErrUnauthorized):
		return NewUnauthorizedError()
	default:
		return NewInternalServerError(err)
	}
}

func (s *GoChatApp) writeError(w http.ResponseWriter, err error) {
	apiErr := apiErrorFrom(err)
	s.writeJson(w, apiErr.StatusCode, apiErr)
}
