package fs

import (
	"slices"

	"github.com/aretw0/introspection"
)

// StoreState exposes internal state for observability.
type StoreState struct {
	Path          string   `json:"path"`
	Format        string   `json:"format"`
	Pattern       string   `json:"pattern"`
	ReadOnly      bool     `json:"read_only"`
	CacheSize     int      `json:"cache_size"`
	Serializers   []string `json:"serializers"`
	Subscriptions []string `json:"subscriptions,omitempty"`
	Watchers      int      `json:"watchers"`
	Closed        bool     `json:"closed"`
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	s.mu.Lock()
	defer s.mu.Unlock()

	serializers := make([]string, 0, len(s.serializers))
	for ext := range s.serializers {
		serializers = append(serializers, ext)
	}
	slices.Sort(serializers)

	subs := make([]string, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub.collection)
	}
	slices.Sort(subs)

	return StoreState{
		Path:          s.Path,
		Format:        s.config.Format,
		Pattern:       s.config.Pattern,
		ReadOnly:      s.config.ReadOnly,
		CacheSize:     s.cache.Len(),
		Serializers:   serializers,
		Subscriptions: subs,
		Watchers:      s.watchers,
		Closed:        s.closed,
	}
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "fs-store"
}

var _ introspection.Introspectable = (*Store)(nil)
var _ introspection.Component = (*Store)(nil)
