package shared

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrNotLinked        = fmt.Errorf("spotify account not linked")
	ErrForbidden        = fmt.Errorf("forbidden")
	ErrRefreshFailed    = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken   = fmt.Errorf("no refresh token available")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrPlaylistNotFound   = fmt.Errorf("playlist not found")
	ErrTrackNotFound      = fmt.Errorf("track not found")
	ErrUserNotFound       = fmt.Errorf("user not found")
	ErrIndexOutOfRange    = fmt.Errorf("index out of range")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)

// AuthError is returned by the authorization server for failed code exchanges and refreshes.
type AuthError struct {
	Code        string
	Description string
	Err         error
}

func (e *AuthError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("authorization failed: %s", e.Code)
	}
	return fmt.Sprintf("authorization failed: %s (%s)", e.Description, e.Code)
}

func (e *AuthError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrAuthFailed
}

// NotFoundError reports a missing local entity.
type NotFoundError struct {
	Entity string
	Key    any
	Err    error
}

// NewNotFoundError builds a [NotFoundError] that also matches the entity's sentinel error.
func NewNotFoundError(entity string, key any) *NotFoundError {
	var sentinel error
	switch entity {
	case "playlist":
		sentinel = ErrPlaylistNotFound
	case "track":
		sentinel = ErrTrackNotFound
	case "user":
		sentinel = ErrUserNotFound
	case "index":
		sentinel = ErrIndexOutOfRange
	}
	return &NotFoundError{Entity: entity, Key: key, Err: sentinel}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %v", e.Entity, e.Key)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// RemoteServiceError is a non-2xx response from the remote API, or a failed transport.
type RemoteServiceError struct {
	Method  string
	Path    string
	Status  int
	Message string
	Err     error
}

func (e *RemoteServiceError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status == 0 {
		return fmt.Sprintf("remote %s %s failed: %s", e.Method, e.Path, msg)
	}
	return fmt.Sprintf("remote %s %s returned %d: %s", e.Method, e.Path, e.Status, msg)
}

func (e *RemoteServiceError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrAPIRequest
}

// ConflictError reports a stale cached version of a remote resource.
type ConflictError struct {
	Resource string
	Expected string
	Actual   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s changed remotely: expected snapshot %q, found %q", e.Resource, e.Expected, e.Actual)
}

// StatusCode maps err onto the HTTP status reported at the request boundary.
func StatusCode(err error) int {
	var (
		validationErr *ValidationError
		notFoundErr   *NotFoundError
		authErr       *AuthError
		remoteErr     *RemoteServiceError
		conflictErr   *ConflictError
	)

	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &validationErr), errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound
	case errors.As(err, &conflictErr):
		return http.StatusConflict
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.As(err, &authErr), errors.Is(err, ErrNotAuthenticated), errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrNotLinked):
		return http.StatusUnauthorized
	case errors.As(err, &remoteErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
