package shared

import (
	"errors"
	"fmt"
)

// Code is the numeric outcome of a core operation.
type Code int

const (
	// CodeOK marks success.
	CodeOK Code = 0
	// CodeGeneral covers uninitialised components and unexpected failures.
	CodeGeneral Code = -1
	// CodePermissionDenied marks ownership or privilege failures.
	CodePermissionDenied Code = -2
	// CodeUnavailable marks a permit already held by someone.
	CodeUnavailable Code = -3
	// CodeInvalidInput marks malformed requests.
	CodeInvalidInput Code = -4
	// CodeStorage marks persistence failures.
	CodeStorage Code = -5
)

var (
	// ErrGeneral indicates a general failure.
	ErrGeneral = errors.New("general error")
	// ErrPermissionDenied indicates the caller may not perform the action.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrUnavailable indicates the permit is held.
	ErrUnavailable = errors.New("resource unavailable")
	// ErrInvalidInput indicates a malformed request.
	ErrInvalidInput = errors.New("invalid input")
	// ErrStorage indicates the storage engine failed.
	ErrStorage = errors.New("storage error")

	// ErrNoHolder is returned by the ownership gate when nobody holds the permit.
	ErrNoHolder = fmt.Errorf("%w: no writer currently holds the permit", ErrPermissionDenied)
	// ErrNotHolder is returned when someone else holds the permit.
	ErrNotHolder = fmt.Errorf("%w: requester does not hold the permit", ErrPermissionDenied)
	// ErrNotFoundOrNotOwned is returned when a message is missing or authored by someone else.
	ErrNotFoundOrNotOwned = fmt.Errorf("%w: message not found or not owned", ErrPermissionDenied)
	// ErrWritingDisabled is returned when an administrator disabled writing.
	ErrWritingDisabled = fmt.Errorf("%w: writer access is globally disabled", ErrPermissionDenied)
	// ErrNotPrivileged is returned when an identity is not on the admin policy.
	ErrNotPrivileged = fmt.Errorf("%w: admin privileges required", ErrPermissionDenied)
)

// CodeOf maps an error onto the numeric taxonomy.
func CodeOf(err error) Code {
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, ErrPermissionDenied):
		return CodePermissionDenied
	case errors.Is(err, ErrUnavailable):
		return CodeUnavailable
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, ErrStorage):
		return CodeStorage
	default:
		return CodeGeneral
	}
}
