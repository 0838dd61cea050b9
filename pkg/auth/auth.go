// Package auth provides session providers.
//
// Static signs in a fixed identity (local use, tests). Token signs in by
// verifying an HS256 JWT whose claims carry the identity.
package auth

import (
	"context"
	"sync"

	"github.com/aretw0/dispensa/pkg/core"
)

// broadcaster holds the current session and its listeners.
// Deliveries are serialized by dispatch, so listeners see changes in the
// order Current does. Listeners must not call SignIn or SignOut.
type broadcaster struct {
	dispatch  sync.Mutex
	mu        sync.Mutex
	current   *core.Session
	listeners map[int]func(*core.Session)
	next      int
}

// OnSessionChange implements core.SessionProvider. fn is called right away
// with the current session.
func (b *broadcaster) OnSessionChange(fn func(*core.Session)) (cancel func()) {
	b.dispatch.Lock()
	defer b.dispatch.Unlock()

	b.mu.Lock()
	if b.listeners == nil {
		b.listeners = make(map[int]func(*core.Session))
	}
	id := b.next
	b.next++
	b.listeners[id] = fn
	current := b.current
	b.mu.Unlock()

	fn(current)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.listeners, id)
	}
}

// Current implements core.SessionProvider.
func (b *broadcaster) Current() *core.Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

func (b *broadcaster) set(s *core.Session) {
	b.dispatch.Lock()
	defer b.dispatch.Unlock()

	b.mu.Lock()
	b.current = s
	fns := make([]func(*core.Session), 0, len(b.listeners))
	for _, fn := range b.listeners {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}

// Static signs in a fixed identity.
type Static struct {
	broadcaster
	identity core.Session
}

var _ core.SessionProvider = (*Static)(nil)

// NewStatic returns a provider for identity, already signed in when
// signedIn is true.
func NewStatic(identity core.Session, signedIn bool) *Static {
	s := &Static{identity: identity}
	if signedIn {
		s.current = s.session()
	}
	return s
}

func (s *Static) session() *core.Session {
	id := s.identity
	return &id
}

// SignIn implements core.SessionProvider.
func (s *Static) SignIn(ctx context.Context) (*core.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.identity.UID == "" {
		return nil, &core.ValidationError{Field: "uid"}
	}
	session := s.session()
	s.set(session)
	return session, nil
}

// SignOut implements core.SessionProvider.
func (s *Static) SignOut(context.Context) error {
	s.set(nil)
	return nil
}
