package statuscmd

import (
	"context"

	"github.com/goliatone/go-statusfor/internal/commands"
	"github.com/goliatone/go-statusfor/internal/logging"
	"github.com/goliatone/go-statusfor/pkg/interfaces"
	"github.com/google/uuid"
)

// Loader fetches the entity a command targets.
type Loader[T any] interface {
	GetByID(ctx context.Context, id uuid.UUID) (T, error)
}

// Service applies and reads status strings. The root Module satisfies it.
type Service interface {
	SetStatus(ctx context.Context, entity any, text string) error
	Status(entity any) (string, error)
	Current(entity any) (string, error)
}

// SetStatusHandler loads an entity, applies a status string and reports the
// resulting status.
type SetStatusHandler[T any] struct {
	inner *commands.Handler[SetStatusCommand]
}

// NewSetStatusHandler constructs a handler wired to loader and service.
func NewSetStatusHandler[T any](loader Loader[T], service Service, logger interfaces.Logger, opts ...commands.HandlerOption[SetStatusCommand]) *SetStatusHandler[T] {
	baseLogger := logger
	if baseLogger == nil {
		baseLogger = logging.NoOp()
	}

	exec := func(ctx context.Context, msg SetStatusCommand) error {
		entity, err := loader.GetByID(ctx, msg.EntityID)
		if err != nil {
			return err
		}
		if err := service.SetStatus(ctx, entity, msg.Status); err != nil {
			return err
		}
		if msg.ResultCallback == nil {
			return nil
		}
		status, err := service.Status(entity)
		if err != nil {
			return err
		}
		current, err := service.Current(entity)
		if err != nil {
			return err
		}
		msg.ResultCallback(ResultEnvelope{
			EntityID: msg.EntityID,
			Status:   status,
			Current:  current,
		})
		return nil
	}

	handlerOpts := []commands.HandlerOption[SetStatusCommand]{
		commands.WithLogger[SetStatusCommand](baseLogger),
		commands.WithOperation[SetStatusCommand]("status.set"),
		commands.WithMessageFields(func(msg SetStatusCommand) map[string]any {
			fields := map[string]any{"entity_id": msg.EntityID.String()}
			if msg.Status == "" {
				fields["clear"] = true
			} else {
				fields["status"] = msg.Status
			}
			return fields
		}),
		commands.WithTelemetry(commands.DefaultTelemetry[SetStatusCommand](baseLogger)),
	}
	handlerOpts = append(handlerOpts, opts...)

	return &SetStatusHandler[T]{
		inner: commands.NewHandler(exec, handlerOpts...),
	}
}

// Execute satisfies command.Commander[SetStatusCommand].
func (h *SetStatusHandler[T]) Execute(ctx context.Context, msg SetStatusCommand) error {
	return h.inner.Execute(ctx, msg)
}
