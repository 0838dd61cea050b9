package dispensa

import (
	"context"
	"log/slog"

	"github.com/aretw0/dispensa/internal/config"
	"github.com/aretw0/dispensa/internal/platform"
	"github.com/aretw0/dispensa/pkg/core"
	"github.com/aretw0/dispensa/pkg/metrics"
)

// --- Types ---

// Option configures a Runtime.
type Option = platform.Option

// Runtime is a wired App with the store and session provider it owns.
type Runtime = platform.Runtime

// Config is the file/env configuration.
type Config = config.Config

// --- Construction ---

// New builds a Runtime rooted at root. Call Start to follow the session.
func New(ctx context.Context, root string, opts ...Option) (*Runtime, error) {
	return platform.New(ctx, root, opts...)
}

// OpenStore builds only the document store selected by opts.
func OpenStore(ctx context.Context, root string, opts ...Option) (core.Store, func() error, error) {
	return platform.OpenStore(ctx, root, opts...)
}

// LoadConfig reads path (may be empty) over the defaults and applies the
// DISPENSA_* environment.
func LoadConfig(path string) (Config, error) {
	return config.Load(path)
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return config.Default()
}

// --- Options ---

// WithConfig replaces the configuration.
func WithConfig(cfg Config) Option {
	return platform.WithConfig(cfg)
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithStore injects a document store.
func WithStore(store core.Store) Option {
	return platform.WithStore(store)
}

// WithAdapter selects the store driver ("memory", "fs", "local").
func WithAdapter(name string) Option {
	return platform.WithAdapter(name)
}

// WithFormat sets the fs document format (".json" or ".yaml").
func WithFormat(ext string) Option {
	return platform.WithFormat(ext)
}

// WithMustExist requires the fs store directory to exist.
func WithMustExist(must bool) Option {
	return platform.WithMustExist(must)
}

// WithReadOnly rejects writes on the fs store.
func WithReadOnly(enabled bool) Option {
	return platform.WithReadOnly(enabled)
}

// WithSessions injects the session provider.
func WithSessions(p core.SessionProvider) Option {
	return platform.WithSessions(p)
}

// WithConfirmer sets how destructive intents are confirmed.
// Without it deletes and clears are declined.
func WithConfirmer(c core.Confirmer) Option {
	return platform.WithConfirmer(c)
}

// WithNotifier sets where failures are reported.
func WithNotifier(n core.Notifier) Option {
	return platform.WithNotifier(n)
}

// WithMetrics sets the metrics recorder.
func WithMetrics(r metrics.Recorder) Option {
	return platform.WithMetrics(r)
}

// WithDevSafety controls the `go run` / `go test` sandbox.
func WithDevSafety(enabled bool) Option {
	return platform.WithDevSafety(enabled)
}

// --- Utils ---

// FindRoot looks upwards for a .dispensa directory or dispensa.yaml file.
func FindRoot(startDir string) (string, error) {
	return platform.FindRoot(startDir)
}

// ConfigFile returns the configuration file of root, if any.
func ConfigFile(root string) string {
	return platform.ConfigFile(root)
}
