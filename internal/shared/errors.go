package shared

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

// Machine-readable reasons attached to error responses.
const (
	ReasonValidation          = "VALIDATION"
	ReasonNotFound            = "NOT_FOUND"
	ReasonUnauthorized        = "UNAUTHORIZED"
	ReasonForbidden           = "FORBIDDEN"
	ReasonTenantMismatch      = "TENANT_MISMATCH"
	ReasonRedirectToSubdomain = "REDIRECT_TO_SUBDOMAIN"
)

var (
	// ErrNotFound indicates the resource is absent or belongs to another tenant.
	ErrNotFound = errors.New("not found")
	// ErrUnauthenticated indicates the request carries no usable identity.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrTenantScopeMissing indicates the acting identity has no tenant.
	ErrTenantScopeMissing = errors.New("tenant scope required")
)

// DomainError carries an HTTP status and a machine-readable reason alongside
// the message. Handlers render it verbatim; anything else becomes a 500.
type DomainError struct {
	Status  int
	Reason  string
	Message string
	Meta    map[string]any
}

func (e *DomainError) Error() string { return e.Message }

// NewValidation builds a 400 validation error.
func NewValidation(msg string) *DomainError {
	return &DomainError{Status: http.StatusBadRequest, Reason: ReasonValidation, Message: msg}
}

// NewNotFound builds a 404 error. Foreign-tenant rows use the same message as
// missing rows so existence never leaks across tenants.
func NewNotFound(msg string) *DomainError {
	return &DomainError{Status: http.StatusNotFound, Reason: ReasonNotFound, Message: msg}
}

// NewForbidden builds a 403 error with the supplied reason code.
func NewForbidden(reason, msg string) *DomainError {
	return &DomainError{Status: http.StatusForbidden, Reason: reason, Message: msg}
}

// WriteJSON serialises v with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error  string         `json:"error"`
	Reason string         `json:"reason,omitempty"`
	Meta   map[string]any `json:"meta,omitempty"`
}

// RenderError maps domain errors onto JSON responses.
func RenderError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var de *DomainError
	switch {
	case errors.As(err, &de):
		WriteJSON(w, de.Status, errorBody{Error: de.Message, Reason: de.Reason, Meta: de.Meta})
	case errors.Is(err, ErrNotFound):
		WriteJSON(w, http.StatusNotFound, errorBody{Error: "not found", Reason: ReasonNotFound})
	case errors.Is(err, ErrUnauthenticated):
		WriteJSON(w, http.StatusUnauthorized, errorBody{Error: err.Error(), Reason: ReasonUnauthorized})
	case errors.Is(err, ErrTenantScopeMissing):
		WriteJSON(w, http.StatusForbidden, errorBody{Error: err.Error(), Reason: ReasonForbidden})
	default:
		if logger != nil {
			logger.Error("internal error", slog.Any("error", err))
		}
		WriteJSON(w, http.StatusInternalServerError, errorBody{Error: http.StatusText(http.StatusInternalServerError)})
	}
}
