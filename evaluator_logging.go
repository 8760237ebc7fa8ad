package settings

import (
	"context"
	"log/slog"
	"time"
)

// EvaluatorLogEvent describes an evaluation attempt for logging.
type EvaluatorLogEvent struct {
	Engine   string
	Expr     string
	Level    string
	Duration time.Duration
	Err      error
}

// EvaluatorLogger records evaluator events.
type EvaluatorLogger interface {
	LogEvaluation(EvaluatorLogEvent)
}

// EvaluatorLoggerFunc adapts a function to EvaluatorLogger.
type EvaluatorLoggerFunc func(EvaluatorLogEvent)

// LogEvaluation implements EvaluatorLogger.
func (f EvaluatorLoggerFunc) LogEvaluation(event EvaluatorLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopEvaluatorLogger struct{}

func (noopEvaluatorLogger) LogEvaluation(EvaluatorLogEvent) {}

// MutationEvent describes a change applied to one dictionary level.
type MutationEvent struct {
	Op        string
	Level     string
	Key       string
	Value     string
	Recursive bool
	Count     int
	Err       error
}

// Logger records dictionary mutations.
type Logger interface {
	LogMutation(MutationEvent)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(MutationEvent)

// LogMutation implements Logger.
func (f LoggerFunc) LogMutation(event MutationEvent) {
	if f != nil {
		f(event)
	}
}

type noopLogger struct{}

func (noopLogger) LogMutation(MutationEvent) {}

// SlogLogger bridges mutation and evaluator events onto a slog.Logger.
type SlogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger wraps logger. A nil logger falls back to slog.Default().
func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogLogger{logger: logger}
}

// LogMutation implements Logger.
func (l *SlogLogger) LogMutation(event MutationEvent) {
	attrs := []slog.Attr{
		slog.String("op", event.Op),
		slog.String("chain_level", event.Level),
	}
	if event.Key != "" {
		attrs = append(attrs, slog.String("key", event.Key))
	}
	if event.Recursive {
		attrs = append(attrs, slog.Bool("recursive", true))
	}
	if event.Count > 0 {
		attrs = append(attrs, slog.Int("count", event.Count))
	}
	if event.Err != nil {
		attrs = append(attrs, slog.Any("error", event.Err))
		l.logger.LogAttrs(context.Background(), slog.LevelWarn, "settings mutation failed", attrs...)
		return
	}
	l.logger.LogAttrs(context.Background(), slog.LevelDebug, "settings mutation", attrs...)
}

// LogEvaluation implements EvaluatorLogger.
func (l *SlogLogger) LogEvaluation(event EvaluatorLogEvent) {
	attrs := []slog.Attr{
		slog.String("engine", event.Engine),
		slog.String("expr", event.Expr),
		slog.String("chain_level", event.Level),
		slog.Duration("duration", event.Duration),
	}
	if event.Err != nil {
		attrs = append(attrs, slog.Any("error", event.Err))
		l.logger.LogAttrs(context.Background(), slog.LevelWarn, "rule evaluation failed", attrs...)
		return
	}
	l.logger.LogAttrs(context.Background(), slog.LevelDebug, "rule evaluated", attrs...)
}
