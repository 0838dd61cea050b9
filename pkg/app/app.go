// Package app is the explicit state container tying the session, the
// active section and both collection controllers together.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/introspection"

	"github.com/aretw0/dispensa/pkg/collection"
	"github.com/aretw0/dispensa/pkg/core"
	"github.com/aretw0/dispensa/pkg/metrics"
	"github.com/aretw0/dispensa/pkg/model"
	"github.com/aretw0/dispensa/pkg/notes"
	"github.com/aretw0/dispensa/pkg/recipes"
)

// Section is the active area of the application.
type Section string

const (
	SectionLists   Section = "lists"
	SectionRecipes Section = "recipes"
)

// Config holds the collaborators of an App.
type Config struct {
	Store     core.Store
	Sessions  core.SessionProvider
	Confirmer core.Confirmer // nil declines every prompt
	Notifier  core.Notifier
	Logger    *slog.Logger
	Metrics   metrics.Recorder
}

// App owns the session and both controllers.
type App struct {
	Notes   *notes.Controller
	Recipes *recipes.Controller

	sessions core.SessionProvider
	logger   *slog.Logger

	mu        sync.Mutex
	session   *core.Session
	section   Section
	stop      []func()
	listeners map[int]func(View)
	next      int
	closed    bool
}

// New wires the controllers. Nothing is subscribed before Start or
// SetSession.
func New(cfg Config) *App {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	a := &App{
		Notes: notes.New(collection.Config[model.Note]{
			Store:     cfg.Store,
			Confirmer: cfg.Confirmer,
			Notifier:  cfg.Notifier,
			Logger:    cfg.Logger,
			Metrics:   cfg.Metrics,
		}),
		Recipes: recipes.New(collection.Config[model.Recipe]{
			Store:     cfg.Store,
			Confirmer: cfg.Confirmer,
			Notifier:  cfg.Notifier,
			Logger:    cfg.Logger,
			Metrics:   cfg.Metrics,
		}),
		sessions:  cfg.Sessions,
		logger:    cfg.Logger,
		section:   SectionLists,
		listeners: make(map[int]func(View)),
	}
	a.stop = append(a.stop,
		a.Notes.OnChange(a.emit),
		a.Recipes.OnChange(a.emit),
	)
	return a
}

// Start follows the session provider until ctx is done or Close is called.
// The current session is applied before Start returns.
func (a *App) Start(ctx context.Context) error {
	if a.sessions == nil {
		return fmt.Errorf("start: %w", core.ErrNoSession)
	}
	cancel := a.sessions.OnSessionChange(func(s *core.Session) {
		if err := a.SetSession(ctx, s); err != nil {
			a.logger.Warn("session change", "error", err)
		}
	})

	a.mu.Lock()
	a.stop = append(a.stop, cancel)
	a.mu.Unlock()
	return nil
}

// SignIn asks the provider for a session; the change reaches the
// controllers through the provider subscription.
func (a *App) SignIn(ctx context.Context) (*core.Session, error) {
	if a.sessions == nil {
		return nil, core.ErrNoSession
	}
	return a.sessions.SignIn(ctx)
}

// SignOut ends the session.
func (a *App) SignOut(ctx context.Context) error {
	if a.sessions == nil {
		return nil
	}
	return a.sessions.SignOut(ctx)
}

// SetSession resubscribes both collections for s. A nil session clears them.
func (a *App) SetSession(ctx context.Context, s *core.Session) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return core.ErrClosed
	}
	a.session = s
	a.mu.Unlock()

	if s != nil {
		a.logger.Info("signed in", "user", s.Label())
	} else {
		a.logger.Info("signed out")
	}

	a.Recipes.ResetDraft()
	return errors.Join(
		a.Notes.Subscribe(ctx, s),
		a.Recipes.Subscribe(ctx, s),
	)
}

// SetSection switches the active section. Leaving or entering the recipes
// section discards the edit draft; selections are kept.
func (a *App) SetSection(s Section) error {
	if s != SectionLists && s != SectionRecipes {
		return &core.ValidationError{Field: "section"}
	}
	a.mu.Lock()
	changed := a.section != s
	a.section = s
	a.mu.Unlock()

	if changed {
		a.Recipes.ResetDraft()
		a.emit()
	}
	return nil
}

// WaitLoaded blocks until both collections are loaded.
func (a *App) WaitLoaded(ctx context.Context) error {
	if err := a.Notes.WaitLoaded(ctx); err != nil {
		return err
	}
	return a.Recipes.WaitLoaded(ctx)
}

// OnChange registers fn to receive a fresh View after every change.
func (a *App) OnChange(fn func(View)) (cancel func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.next
	a.next++
	a.listeners[id] = fn
	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.listeners, id)
	}
}

func (a *App) emit() {
	a.mu.Lock()
	if a.closed || len(a.listeners) == 0 {
		a.mu.Unlock()
		return
	}
	fns := make([]func(View), 0, len(a.listeners))
	for _, fn := range a.listeners {
		fns = append(fns, fn)
	}
	a.mu.Unlock()

	v := a.View()
	for _, fn := range fns {
		fn(v)
	}
}

// Close tears down the provider subscription and both controllers.
func (a *App) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	stop := a.stop
	a.stop = nil
	clear(a.listeners)
	a.mu.Unlock()

	for _, fn := range stop {
		fn()
	}
	a.Notes.Close()
	a.Recipes.Close()
	return nil
}

// ComponentType implements introspection.Component.
func (a *App) ComponentType() string { return "app" }

// State implements introspection.Introspectable.
func (a *App) State() any { return a.View() }

var _ introspection.Introspectable = (*App)(nil)
var _ introspection.Component = (*App)(nil)
