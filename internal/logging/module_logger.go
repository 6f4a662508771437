package logging

import (
	"context"
	"maps"
	"strings"

	"github.com/goliatone/go-statusfor/pkg/interfaces"
)

const (
	rootModule      = "statusfor"
	registryModule  = "statusfor.registry"
	installerModule = "statusfor.installer"
	evaluatorModule = "statusfor.evaluator"
	commandsModule  = "statusfor.commands"
)

const (
	fieldEntityType = "entity_type"
	fieldStatus     = "status"
)

// ModuleLogger returns a module-scoped logger, defaulting to a no-op
// implementation when no provider is supplied. The returned logger attaches
// the module identifier as structured context so downstream entries can be
// filtered predictably.
func ModuleLogger(provider interfaces.LoggerProvider, module string) interfaces.Logger {
	if module == "" {
		module = rootModule
	}

	logger := NoOp()
	if provider != nil {
		if provided := provider.GetLogger(module); provided != nil {
			logger = provided
		}
	}

	return WithFields(logger, map[string]any{
		"module": module,
	})
}

// RegistryLogger returns the logger namespace reserved for the status registry.
func RegistryLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, registryModule)
}

// InstallerLogger returns the logger namespace reserved for status installation.
func InstallerLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, installerModule)
}

// EvaluatorLogger returns the logger namespace reserved for runtime status evaluation.
func EvaluatorLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, evaluatorModule)
}

// CommandsLogger returns the logger namespace reserved for command handlers.
func CommandsLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, commandsModule)
}

// WithStatusContext enriches the provided logger with the entity type and
// status being operated on. Empty values are ignored.
func WithStatusContext(logger interfaces.Logger, entityType, status string) interfaces.Logger {
	fields := map[string]any{}
	if trimmed := strings.TrimSpace(entityType); trimmed != "" {
		fields[fieldEntityType] = trimmed
	}
	if trimmed := strings.TrimSpace(status); trimmed != "" {
		fields[fieldStatus] = trimmed
	}
	return WithFields(logger, fields)
}

// WithFields attaches fields when logger implements interfaces.FieldsLogger.
// Other loggers are returned unchanged.
func WithFields(logger interfaces.Logger, fields map[string]any) interfaces.Logger {
	if logger == nil || len(fields) == 0 {
		return logger
	}
	if fieldsLogger, ok := logger.(interfaces.FieldsLogger); ok {
		return fieldsLogger.WithFields(maps.Clone(fields))
	}
	return logger
}

// NoOp returns a logger that drops every log entry.
func NoOp() interfaces.Logger {
	return noopLogger{}
}

type noopLogger struct{}

var _ interfaces.Logger = noopLogger{}

func (noopLogger) Trace(string, ...any) {}
func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
func (noopLogger) Fatal(string, ...any) {}

func (n noopLogger) WithFields(map[string]any) interfaces.Logger {
	return n
}

func (n noopLogger) WithContext(context.Context) interfaces.Logger {
	return n
}
