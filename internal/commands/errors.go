package commands

import (
	"context"
	"errors"

	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeInvalidCommand = "STATUS_COMMAND_INVALID"
	textCodeCancelled      = "STATUS_COMMAND_CANCELLED"
	textCodeDeadline       = "STATUS_COMMAND_DEADLINE"
	textCodeFailed         = "STATUS_COMMAND_FAILED"
)

// Errors that already carry a go-errors category, such as the status
// validation errors, are returned unchanged.

func classifyValidation(err error) error {
	if goerrors.IsWrapped(err) {
		return err
	}
	return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid status command").
		WithTextCode(textCodeInvalidCommand)
}

func classifyContext(err error) error {
	if goerrors.IsWrapped(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return goerrors.Wrap(err, goerrors.CategoryCommand, "status command deadline exceeded").
			WithTextCode(textCodeDeadline)
	}
	return goerrors.Wrap(err, goerrors.CategoryCommand, "status command cancelled").
		WithTextCode(textCodeCancelled)
}

func classifyFailure(err error) error {
	if goerrors.IsWrapped(err) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return classifyContext(err)
	}
	return goerrors.Wrap(err, goerrors.CategoryCommand, "status command failed").
		WithTextCode(textCodeFailed)
}
