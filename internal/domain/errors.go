package domain

import (
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeUnsupportedStatus = "STATUS_UNSUPPORTED"
	textCodeUnknownStatus     = "STATUS_UNKNOWN"
	textCodeUnknownFilter     = "STATUS_FILTER_UNKNOWN"
	textCodeInvalidModel      = "STATUS_MODEL_INVALID"
	textCodeInvalidName       = "STATUS_NAME_INVALID"
)

var (
	// ErrUnsupportedStatus reports a status string token that is not an event
	// of the entity type, or whose backing field was never installed.
	ErrUnsupportedStatus = errors.New("status: unsupported status")
	// ErrUnknownStatus reports a status name that is not active on the entity type.
	ErrUnknownStatus = errors.New("status: unknown status")
	// ErrUnknownFilter reports a filter name that was neither installed nor resolvable.
	ErrUnknownFilter = errors.New("status: unknown filter")
	// ErrInvalidModel reports a model that is not a struct or pointer to struct.
	ErrInvalidModel = errors.New("status: model must be a struct or pointer to struct")
	// ErrInvalidStatusName reports a status name rejected at install time.
	ErrInvalidStatusName = errors.New("status: invalid status name")
)

// NewUnsupportedStatusError builds the error returned for a bad status token.
func NewUnsupportedStatusError(token, reason string) error {
	return goerrors.Wrap(ErrUnsupportedStatus, goerrors.CategoryValidation, token+" "+reason).
		WithTextCode(textCodeUnsupportedStatus)
}

// NewUnknownStatusError builds the error returned when operations reference
// statuses the entity type does not have.
func NewUnknownStatusError(statuses ...string) error {
	return goerrors.Wrap(ErrUnknownStatus, goerrors.CategoryValidation, "unknown status: "+strings.Join(statuses, ", ")).
		WithTextCode(textCodeUnknownStatus)
}

// NewUnknownFilterError builds the error returned for unresolvable filter names.
func NewUnknownFilterError(name string) error {
	return goerrors.Wrap(ErrUnknownFilter, goerrors.CategoryValidation, "unknown filter: "+name).
		WithTextCode(textCodeUnknownFilter)
}

// NewInvalidModelError builds the error returned for non-struct models.
func NewInvalidModelError(detail string) error {
	return goerrors.Wrap(ErrInvalidModel, goerrors.CategoryValidation, detail).
		WithTextCode(textCodeInvalidModel)
}

// NewInvalidStatusNameError wraps a validation failure for a status name.
func NewInvalidStatusNameError(name string, cause error) error {
	msg := "invalid status name " + `"` + name + `"`
	if cause != nil {
		msg += ": " + cause.Error()
	}
	return goerrors.Wrap(ErrInvalidStatusName, goerrors.CategoryValidation, msg).
		WithTextCode(textCodeInvalidName)
}
