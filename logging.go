package visibility

import (
	"context"
	"log/slog"
	"time"
)

// DecisionLogEvent describes one evaluated candidate.
type DecisionLogEvent struct {
	Node     string
	BatchID  string
	Decision Decision
	Targeted bool
	Duration time.Duration
	Err      error
}

// DecisionLogger records decision events.
type DecisionLogger interface {
	LogDecision(DecisionLogEvent)
}

// DecisionLoggerFunc adapts a function to DecisionLogger.
type DecisionLoggerFunc func(DecisionLogEvent)

// LogDecision implements DecisionLogger.
func (f DecisionLoggerFunc) LogDecision(event DecisionLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopDecisionLogger struct{}

func (noopDecisionLogger) LogDecision(DecisionLogEvent) {}

type multiDecisionLogger []DecisionLogger

func (m multiDecisionLogger) LogDecision(event DecisionLogEvent) {
	for _, logger := range m {
		logger.LogDecision(event)
	}
}

// MultiDecisionLogger fans events out to every non-nil logger.
func MultiDecisionLogger(loggers ...DecisionLogger) DecisionLogger {
	out := make(multiDecisionLogger, 0, len(loggers))
	for _, logger := range loggers {
		if logger != nil {
			out = append(out, logger)
		}
	}
	if len(out) == 0 {
		return noopDecisionLogger{}
	}
	return out
}

// SlogDecisionLogger writes decision events to logger. Fired decisions are
// logged at info level, everything else at debug.
func SlogDecisionLogger(logger *slog.Logger) DecisionLogger {
	if logger == nil {
		return noopDecisionLogger{}
	}
	return DecisionLoggerFunc(func(event DecisionLogEvent) {
		attrs := []slog.Attr{
			slog.String("node", event.Node),
			slog.String("outcome", event.Decision.Outcome.String()),
			slog.String("reason", string(event.Decision.Reason)),
			slog.String("start", event.Decision.StartVisibility.String()),
			slog.String("end", event.Decision.EndVisibility.String()),
			slog.Bool("targeted", event.Targeted),
			slog.Duration("duration", event.Duration),
		}
		if event.BatchID != "" {
			attrs = append(attrs, slog.String("batch", event.BatchID))
		}
		level := slog.LevelDebug
		msg := "visibility decision"
		switch {
		case event.Err != nil:
			level = slog.LevelError
			msg = "visibility decision failed"
			attrs = append(attrs, slog.Any("err", event.Err))
		case event.Decision.Fires():
			level = slog.LevelInfo
		}
		logger.LogAttrs(context.Background(), level, msg, attrs...)
	})
}

// WithDecisionLogger attaches a decision logger to the Decider.
func WithDecisionLogger(logger DecisionLogger) Option {
	return optionFunc(func(cfg *config) {
		if logger == nil {
			cfg.decisionLogger = noopDecisionLogger{}
			return
		}
		cfg.decisionLogger = logger
	})
}
