package platform

import (
	"log/slog"

	"github.com/aretw0/dispensa/internal/config"
	"github.com/aretw0/dispensa/pkg/core"
	"github.com/aretw0/dispensa/pkg/metrics"
)

// options holds the internal configuration for a dispensa runtime.
type options struct {
	config    config.Config
	logger    *slog.Logger
	store     core.Store
	sessions  core.SessionProvider
	confirmer core.Confirmer
	notifier  core.Notifier
	metrics   metrics.Recorder
	devSafety bool
}

// Option defines a functional option for configuring dispensa.
type Option func(*options)

// defaultOptions returns the default configuration.
func defaultOptions() *options {
	return &options{
		config:    config.Default(),
		devSafety: true,
	}
}

// WithConfig replaces the whole configuration. Options applied after it
// still override individual fields.
func WithConfig(cfg config.Config) Option {
	return func(o *options) {
		o.config = cfg
	}
}

// WithLogger sets the logger for the runtime.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithStore injects a document store (e.g. a hosted database client).
// If provided, the configured store driver is skipped.
func WithStore(store core.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithAdapter selects the store driver by name ("memory", "fs" or "local").
func WithAdapter(name string) Option {
	return func(o *options) {
		o.config.Store.Driver = name
	}
}

// WithFormat sets the extension used by the fs store for new documents.
func WithFormat(ext string) Option {
	return func(o *options) {
		o.config.Store.Format = ext
	}
}

// WithMustExist ensures the fs store directory already exists.
func WithMustExist(must bool) Option {
	return func(o *options) {
		o.config.Store.MustExist = must
	}
}

// WithReadOnly enables read-only mode on the fs store.
// Writes fail with core.ErrReadOnly and the dev sandbox is bypassed.
func WithReadOnly(enabled bool) Option {
	return func(o *options) {
		o.config.Store.ReadOnly = enabled
	}
}

// WithSessions injects the session provider.
func WithSessions(p core.SessionProvider) Option {
	return func(o *options) {
		o.sessions = p
	}
}

// WithConfirmer sets how destructive intents are confirmed.
// Without it every prompt is declined.
func WithConfirmer(c core.Confirmer) Option {
	return func(o *options) {
		o.confirmer = c
	}
}

// WithNotifier sets where failures are reported.
func WithNotifier(n core.Notifier) Option {
	return func(o *options) {
		o.notifier = n
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(r metrics.Recorder) Option {
	return func(o *options) {
		o.metrics = r
	}
}

// WithDevSafety controls the sandbox used when running via `go run` or
// `go test`. By default (true) on-disk stores are re-rooted into a
// temporary directory in that case.
//
// CAUTION: Only disable this if you are sure your code is safe.
func WithDevSafety(enabled bool) Option {
	return func(o *options) {
		o.devSafety = enabled
	}
}
