package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/dispensa/internal/config"
	"github.com/aretw0/dispensa/pkg/app"
	"github.com/aretw0/dispensa/pkg/core"
)

// Runtime is a wired application together with the resources it owns.
type Runtime struct {
	App      *app.App
	Store    core.Store
	Sessions core.SessionProvider
	Config   config.Config
	Root     string

	logger     *slog.Logger
	closeStore func() error
}

// New builds the store, the session provider and the App.
// rt, err := platform.New("./spesa", platform.WithAdapter("fs"))
// Nothing is subscribed until Start.
func New(ctx context.Context, root string, opts ...Option) (*Runtime, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.store == nil {
		if err := o.config.Validate(); err != nil {
			return nil, err
		}
	}

	store, closeStore, err := openStore(ctx, root, o)
	if err != nil {
		return nil, err
	}

	sessions := o.sessions
	if sessions == nil {
		sessions, err = OpenSessions(o.config.Auth)
		if err != nil {
			_ = closeStore()
			return nil, err
		}
	}

	confirmer := o.confirmer
	if confirmer == nil {
		confirmer = core.NeverConfirm
	}

	a := app.New(app.Config{
		Store:     store,
		Sessions:  sessions,
		Confirmer: confirmer,
		Notifier:  o.notifier,
		Logger:    o.logger,
		Metrics:   o.metrics,
	})

	return &Runtime{
		App:        a,
		Store:      store,
		Sessions:   sessions,
		Config:     o.config,
		Root:       root,
		logger:     o.logger,
		closeStore: closeStore,
	}, nil
}

// Start binds the App to the session provider. In token mode with a
// configured token the provider is signed in first.
func (r *Runtime) Start(ctx context.Context) error {
	if r.Config.Auth.Mode == config.AuthToken && (r.Config.Auth.Token != "" || r.Config.Auth.TokenFile != "") {
		if _, err := r.Sessions.SignIn(ctx); err != nil {
			return fmt.Errorf("sign in: %w", err)
		}
	}
	return r.App.Start(ctx)
}

// Close tears down the App, then the store.
func (r *Runtime) Close() error {
	return errors.Join(r.App.Close(), r.closeStore())
}
