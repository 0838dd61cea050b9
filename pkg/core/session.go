package core

import "context"

// SessionProvider supplies the current identity and notifies changes.
type SessionProvider interface {
	// OnSessionChange registers fn and calls it right away with the current
	// session. The returned func removes the listener.
	OnSessionChange(fn func(*Session)) (cancel func())

	// SignIn establishes a session.
	SignIn(ctx context.Context) (*Session, error)

	// SignOut ends the current session.
	SignOut(ctx context.Context) error

	// Current returns the active session or nil.
	Current() *Session
}

// Confirmer asks the user to approve a destructive operation.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) {
	return f(ctx, prompt)
}

// AlwaysConfirm approves every prompt.
var AlwaysConfirm Confirmer = ConfirmFunc(func(context.Context, string) (bool, error) { return true, nil })

// NeverConfirm declines every prompt.
var NeverConfirm Confirmer = ConfirmFunc(func(context.Context, string) (bool, error) { return false, nil })

// Notifier surfaces failures to the user (the alert-style side channel).
type Notifier interface {
	Notify(ctx context.Context, err error)
}

// NotifyFunc adapts a function to Notifier.
type NotifyFunc func(ctx context.Context, err error)

func (f NotifyFunc) Notify(ctx context.Context, err error) { f(ctx, err) }

// Discard ignores notifications.
var Discard Notifier = NotifyFunc(func(context.Context, error) {})
