package vqnet

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with vqnet-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithLayer adds a layer position field to the logger.
func (l *Logger) WithLayer(pos int) *Logger {
	return &Logger{
		Logger: l.Logger.With("layer", pos),
	}
}

// WithBatchSize adds a batch size field to the logger.
func (l *Logger) WithBatchSize(n int) *Logger {
	return &Logger{
		Logger: l.Logger.With("batch_size", n),
	}
}

// LogBuildLayer logs the construction of one layer. Scope the logger with
// WithLayer first.
func (l *Logger) LogBuildLayer(ctx context.Context, kind string, in, out, paramBytes int) {
	l.DebugContext(ctx, "layer built",
		"kind", kind,
		"in", in,
		"out", out,
		"param_bytes", paramBytes,
	)
}

// LogBuild logs network construction.
func (l *Logger) LogBuild(ctx context.Context, layers, inputDim, paramBytes int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "network build failed",
			"layers", layers,
			"input_dim", inputDim,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "network built",
			"layers", layers,
			"input_dim", inputDim,
			"param_bytes", paramBytes,
		)
	}
}

// LogTrainBatch logs a training batch. Scope the logger with WithBatchSize
// first.
func (l *Logger) LogTrainBatch(ctx context.Context, loss float32, shortCircuits int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "train batch failed",
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "train batch completed",
			"loss", loss,
			"short_circuits", shortCircuits,
			"duration", duration,
		)
	}
}

// LogPredictBatch logs a prediction batch. Scope the logger with
// WithBatchSize first.
func (l *Logger) LogPredictBatch(ctx context.Context, correct int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "predict batch failed",
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "predict batch completed",
			"correct", correct,
			"duration", duration,
		)
	}
}

// LogLearningRate logs a learning rate change.
func (l *Logger) LogLearningRate(ctx context.Context, from, to float32) {
	l.InfoContext(ctx, "learning rate changed",
		"from", from,
		"to", to,
	)
}
