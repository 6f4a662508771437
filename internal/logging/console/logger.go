package console

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/goliatone/go-statusfor/internal/logging"
	"github.com/goliatone/go-statusfor/pkg/interfaces"
)

// Level is a slog level extended with trace and fatal.
type Level = slog.Level

const (
	LevelTrace Level = slog.LevelDebug - 4
	LevelDebug Level = slog.LevelDebug
	LevelInfo  Level = slog.LevelInfo
	LevelWarn  Level = slog.LevelWarn
	LevelError Level = slog.LevelError
	LevelFatal Level = slog.LevelError + 4
)

// ParseLevel maps a configured level name to a Level. Unknown names report false.
func ParseLevel(name string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace":
		return LevelTrace, true
	case "debug":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarn, true
	case "error":
		return LevelError, true
	case "fatal":
		return LevelFatal, true
	default:
		return LevelInfo, false
	}
}

func levelName(level Level) string {
	switch {
	case level < LevelDebug:
		return "TRACE"
	case level > LevelError:
		return "FATAL"
	default:
		return level.String()
	}
}

// Options configures the console provider. Entries go to stdout at DEBUG and
// above unless overridden.
type Options struct {
	Writer   io.Writer
	TimeFunc func() time.Time
	MinLevel *Level
}

type provider struct {
	handler slog.Handler
}

// NewProvider returns a provider writing logfmt lines through slog's text handler.
func NewProvider(opts Options) interfaces.LoggerProvider {
	writer := opts.Writer
	if writer == nil {
		writer = os.Stdout
	}
	clock := opts.TimeFunc
	if clock == nil {
		clock = time.Now
	}
	minLevel := LevelDebug
	if opts.MinLevel != nil {
		minLevel = *opts.MinLevel
	}

	handler := slog.NewTextHandler(writer, &slog.HandlerOptions{
		Level: minLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) > 0 {
				return a
			}
			switch a.Key {
			case slog.TimeKey:
				a.Value = slog.TimeValue(clock().UTC())
			case slog.LevelKey:
				if level, ok := a.Value.Any().(slog.Level); ok {
					a.Value = slog.StringValue(levelName(level))
				}
			}
			return a
		},
	})
	return &provider{handler: handler}
}

func (p *provider) GetLogger(name string) interfaces.Logger {
	return &consoleLogger{
		logger: slog.New(p.handler).With("logger", name),
		ctx:    context.Background(),
	}
}

type consoleLogger struct {
	logger *slog.Logger
	ctx    context.Context
}

var (
	_ interfaces.Logger       = (*consoleLogger)(nil)
	_ interfaces.FieldsLogger = (*consoleLogger)(nil)
)

func (l *consoleLogger) Trace(msg string, args ...any) { l.log(LevelTrace, msg, args) }
func (l *consoleLogger) Debug(msg string, args ...any) { l.log(LevelDebug, msg, args) }
func (l *consoleLogger) Info(msg string, args ...any)  { l.log(LevelInfo, msg, args) }
func (l *consoleLogger) Warn(msg string, args ...any)  { l.log(LevelWarn, msg, args) }
func (l *consoleLogger) Error(msg string, args ...any) { l.log(LevelError, msg, args) }

// Fatal logs at FATAL without exiting.
func (l *consoleLogger) Fatal(msg string, args ...any) { l.log(LevelFatal, msg, args) }

func (l *consoleLogger) WithFields(fields map[string]any) interfaces.Logger {
	if len(fields) == 0 {
		return l
	}
	return &consoleLogger{logger: l.logger.With(sortedArgs(fields)...), ctx: l.ctx}
}

func (l *consoleLogger) WithContext(ctx context.Context) interfaces.Logger {
	if ctx == nil {
		ctx = context.Background()
	}
	return &consoleLogger{logger: l.logger, ctx: ctx}
}

func (l *consoleLogger) log(level Level, msg string, args []any) {
	if !l.logger.Enabled(l.ctx, level) {
		return
	}
	if fields := logging.ContextFields(l.ctx); len(fields) > 0 {
		args = append(sortedArgs(fields), args...)
	}
	l.logger.Log(l.ctx, level, msg, args...)
}

func sortedArgs(fields map[string]any) []any {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return args
}
