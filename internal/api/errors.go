package api

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/clipbox/clipbox/internal/errors"
	"github.com/clipbox/clipbox/internal/store"
)

// APIError is the error body of every failed response. It implements
// huma.StatusError.
type APIError struct { //nolint:revive // name reads better at call sites
	status  int
	Code    string `json:"code" doc:"Machine-readable error code"`
	Message string `json:"message" doc:"Human-readable error message"`
	Details any    `json:"details,omitempty" doc:"Additional error details"`
}

func (e *APIError) Error() string { return e.Message }

// GetStatus implements huma.StatusError.
func (e *APIError) GetStatus() int { return e.status }

// ContentType implements huma.ContentTypeFilter.
func (e *APIError) ContentType(string) string { return "application/json" }

// RegisterErrorHandler makes huma build APIErrors. Client errors built
// from a coded or store error take that error's status. A 5xx chosen by a
// handler is kept, whatever the wrapped cause. Call it before registering
// routes.
func RegisterErrorHandler() {
	huma.NewError = newAPIError
}

func newAPIError(status int, message string, errs ...error) huma.StatusError {
	if status < http.StatusInternalServerError {
		for _, err := range errs {
			if e, ok := fromError(err); ok {
				return e
			}
		}
	}

	e := &APIError{status: status, Code: string(domainerrors.CodeForStatus(status)), Message: message}
	if status < http.StatusInternalServerError {
		var details []string
		for _, err := range errs {
			if err != nil {
				details = append(details, err.Error())
			}
		}
		if len(details) > 0 {
			e.Details = details
		}
	}
	return e
}

func fromError(err error) (*APIError, bool) {
	var coded *domainerrors.Error
	if errors.As(err, &coded) {
		return &APIError{status: coded.HTTPStatus(), Code: string(coded.Code), Message: coded.Message, Details: coded.Details}, true
	}
	var storeErr *store.Error
	if errors.As(err, &storeErr) {
		status := storeErr.HTTPCode()
		return &APIError{status: status, Code: string(domainerrors.CodeForStatus(status)), Message: storeErr.Message}, true
	}
	return nil, false
}
