package commands

import (
	"context"
	"time"

	command "github.com/goliatone/go-command"
	"github.com/goliatone/go-statusfor/internal/logging"
	"github.com/goliatone/go-statusfor/pkg/interfaces"
)

// Outcome classifies a finished status command.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

// TelemetryInfo describes one command execution.
type TelemetryInfo struct {
	Command   string
	Operation string
	Fields    map[string]any
	Duration  time.Duration
	Error     error
	Outcome   Outcome
	Logger    interfaces.Logger
}

// Telemetry is invoked once per executed command.
type Telemetry[T command.Message] func(ctx context.Context, msg T, info TelemetryInfo)

// CommandObserver receives command timings, typically a metrics collector.
type CommandObserver interface {
	CommandObserved(command, outcome string, duration time.Duration)
}

// DefaultTelemetry logs outcomes through logger, falling back to the
// per-execution logger carried by TelemetryInfo.
func DefaultTelemetry[T command.Message](logger interfaces.Logger) Telemetry[T] {
	return func(_ context.Context, _ T, info TelemetryInfo) {
		if logger != nil {
			info.Logger = logging.WithFields(logger, info.Fields)
		}
		logOutcome(info.Logger, info)
	}
}

// ObservedTelemetry forwards timings to observer.
func ObservedTelemetry[T command.Message](observer CommandObserver) Telemetry[T] {
	return func(_ context.Context, _ T, info TelemetryInfo) {
		if observer != nil {
			observer.CommandObserved(info.Command, string(info.Outcome), info.Duration)
		}
	}
}

// ChainTelemetry runs each non-nil callback in order.
func ChainTelemetry[T command.Message](callbacks ...Telemetry[T]) Telemetry[T] {
	return func(ctx context.Context, msg T, info TelemetryInfo) {
		for _, cb := range callbacks {
			if cb != nil {
				cb(ctx, msg, info)
			}
		}
	}
}

func logOutcome(logger interfaces.Logger, info TelemetryInfo) {
	if logger == nil {
		return
	}
	args := []any{"duration_ms", info.Duration.Milliseconds()}
	switch info.Outcome {
	case OutcomeApplied:
		logger.Info("status.command.applied", args...)
	case OutcomeCancelled:
		logger.Warn("status.command.cancelled", append(args, "error", info.Error)...)
	default:
		logger.Error("status.command.failed", append(args, "error", info.Error)...)
	}
}
