package gateway

import (
	"encoding/json"
	"errors"
	"fmt"

	"surveychat/internal/model"
)

var (
	// ErrAlreadySubmitted matches any *ConflictError
	ErrAlreadySubmitted = errors.New("response already submitted")
	// ErrUnauthorized means the session could not be refreshed; log in again
	ErrUnauthorized = errors.New("unauthorized")
)

// ConflictError carries the existing submission for a duplicate response
type ConflictError struct {
	Info model.ConflictInfo
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("already submitted as %s", e.Info.ResponseID)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrAlreadySubmitted
}

// FetchKind classifies why a survey could not be loaded
type FetchKind int

const (
	FetchOther FetchKind = iota
	FetchNotFound
	FetchNotActive
)

func (k FetchKind) String() string {
	switch k {
	case FetchNotFound:
		return "not_found"
	case FetchNotActive:
		return "not_active"
	}
	return "other"
}

// FetchError is returned when a survey cannot be loaded. NotFound and
// NotActive are final; Other may succeed on retry.
type FetchError struct {
	Kind    FetchKind
	Message string
	Err     error
}

func (e *FetchError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("fetch survey (%s): %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("fetch survey (%s): %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Retryable reports whether trying again could help
func (e *FetchError) Retryable() bool { return e.Kind == FetchOther }

// APIError is a non-2xx response from the server
type APIError struct {
	Status  int
	Message string
	Data    json.RawMessage
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}
