package memory

import "github.com/aretw0/introspection"

// StoreState exposes internal state for observability.
type StoreState struct {
	Collections   map[string]int `json:"collections"`
	Subscriptions int            `json:"subscriptions"`
	Persistent    bool           `json:"persistent"`
	Closed        bool           `json:"closed"`
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[string]int, len(s.collections))
	for name, docs := range s.collections {
		counts[name] = len(docs)
	}
	subs := 0
	for _, set := range s.subs {
		subs += len(set)
	}
	return StoreState{
		Collections:   counts,
		Subscriptions: subs,
		Persistent:    s.commit != nil,
		Closed:        s.closed,
	}
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "memory-store"
}

var _ introspection.Introspectable = (*Store)(nil)
var _ introspection.Component = (*Store)(nil)
