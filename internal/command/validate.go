package command

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/AkZcH/MutexTalk/internal/shared"
)

type identityInput struct {
	User string `validate:"required,max=64"`
}

type createInput struct {
	User    string `validate:"required,max=64"`
	Message string `validate:"required,max=2000"`
}

type updateInput struct {
	User    string `validate:"required,max=64"`
	Message string `validate:"required,max=2000"`
	ID      int64  `validate:"gt=0"`
}

type deleteInput struct {
	User string `validate:"required,max=64"`
	ID   int64  `validate:"gt=0"`
}

type pageInput struct {
	Page  int `validate:"gte=1"`
	Limit int `validate:"gte=1,lte=100"`
}

type toggleInput struct {
	User    string `validate:"required,max=64"`
	Enabled *bool  `validate:"required"`
}

// Validation messages per kind.
var validationMessages = map[Kind]string{
	KindAcquirePermit:     "Username required for TRY_ACQUIRE",
	KindReleasePermit:     "Username required for RELEASE",
	KindCreateMessage:     "Username and message required for CREATE",
	KindUpdateMessage:     "Username, message, and valid ID required for UPDATE",
	KindDeleteMessage:     "Username and valid ID required for DELETE",
	KindListMessages:      "Invalid page or limit parameters",
	KindGetLogs:           "Invalid page or limit parameters",
	KindSetWritingEnabled: "Username and enabled flag required for TOGGLE",
}

// validationError carries the client-facing text for a rejected command.
type validationError struct {
	message string
	cause   error
}

func (e *validationError) Error() string { return e.message + ": " + e.cause.Error() }

func (e *validationError) Unwrap() error { return shared.ErrInvalidInput }

func validate(v *validator.Validate, cmd Command) error {
	var input any
	switch cmd.Kind {
	case KindAcquirePermit, KindReleasePermit:
		input = identityInput{User: cmd.User}
	case KindCreateMessage:
		input = createInput{User: cmd.User, Message: cmd.Message}
	case KindUpdateMessage:
		input = updateInput{User: cmd.User, Message: cmd.Message, ID: cmd.ID}
	case KindDeleteMessage:
		input = deleteInput{User: cmd.User, ID: cmd.ID}
	case KindListMessages, KindGetLogs:
		input = pageInput{Page: cmd.Page, Limit: cmd.Limit}
	case KindSetWritingEnabled:
		input = toggleInput{User: cmd.User, Enabled: cmd.Enabled}
	case KindGetStatus:
		return nil
	default:
		return fmt.Errorf("%w: unknown command kind", shared.ErrInvalidInput)
	}

	err := v.Struct(input)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	return &validationError{message: validationMessages[cmd.Kind], cause: fieldErrs}
}
