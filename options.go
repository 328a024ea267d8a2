package visibility

import (
	"log/slog"

	"github.com/goliatone/go-visibility/pkg/activity"
)

// Option configures a Decider.
type Option interface {
	applyOption(*config)
}

type optionFunc func(*config)

func (f optionFunc) applyOption(cfg *config) {
	if f != nil {
		f(cfg)
	}
}

type config struct {
	logger                *slog.Logger
	decisionLogger        DecisionLogger
	activityHooks         activity.Hooks
	activityChannel       string
	maxDepth              int
	requireAttachedParent bool
	workers               int
	targets               any
}

func applyOptions(opts []Option) config {
	cfg := config{}
	for _, opt := range opts {
		if opt != nil {
			opt.applyOption(&cfg)
		}
	}
	if cfg.maxDepth <= 0 {
		cfg.maxDepth = DefaultMaxDepth
	}
	if cfg.workers <= 0 {
		cfg.workers = 1
	}
	return cfg
}

// WithLogger sets the structured logger used for diagnostics such as a
// truncated ancestry walk or a failing target rule.
func WithLogger(logger *slog.Logger) Option {
	return optionFunc(func(cfg *config) {
		cfg.logger = logger
	})
}

// WithMaxDepth bounds how many container levels the ancestry walk visits
// before treating the ancestry as changing.
func WithMaxDepth(depth int) Option {
	return optionFunc(func(cfg *config) {
		cfg.maxDepth = depth
	})
}

// WithRequireAttachedParent makes untargeted nodes that have no parent in
// either scene never fire.
func WithRequireAttachedParent(require bool) Option {
	return optionFunc(func(cfg *config) {
		cfg.requireAttachedParent = require
	})
}

// WithWorkers sets how many candidates Batch.EvaluateAll evaluates at once.
func WithWorkers(workers int) Option {
	return optionFunc(func(cfg *config) {
		cfg.workers = workers
	})
}

// WithTargets restricts ancestry suppression to nodes outside set. Nodes in
// the set always fire when their own visibility changed.
func WithTargets[N comparable](set *TargetSet[N]) Option {
	return optionFunc(func(cfg *config) {
		if set == nil {
			cfg.targets = nil
			return
		}
		cfg.targets = Targeter[N](set)
	})
}

// WithTargeter installs a custom target membership test.
func WithTargeter[N comparable](targeter Targeter[N]) Option {
	return optionFunc(func(cfg *config) {
		cfg.targets = targeter
	})
}

// WithActivityHooks attaches activity hooks notified for every fired or
// suppressed decision. Hooks are cloned and nil entries dropped.
func WithActivityHooks(hooks activity.Hooks) Option {
	normalized := cloneActivityHooks(hooks)
	return optionFunc(func(cfg *config) {
		cfg.activityHooks = normalized
	})
}

// WithActivityChannel overrides the channel stamped on emitted events.
func WithActivityChannel(channel string) Option {
	return optionFunc(func(cfg *config) {
		cfg.activityChannel = channel
	})
}
