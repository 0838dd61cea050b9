// Package local is the persisted local fallback store: an in-memory store
// whose collections are saved as JSON arrays in a key/value table.
//
// Keys are fixed per collection name (lista-spesa-notes-v1,
// lista-spesa-recipes-v1) whatever the owning session, so the fallback is a
// single-user store. Each collection is read once, on first use.
package local

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"sync"

	"github.com/aretw0/dispensa/pkg/adapters/kv"
	"github.com/aretw0/dispensa/pkg/adapters/memory"
	"github.com/aretw0/dispensa/pkg/core"
)

const (
	NotesKey   = "lista-spesa-notes-v1"
	RecipesKey = "lista-spesa-recipes-v1"
)

// Key returns the storage key of a collection path ("users/u1/notes" ->
// "lista-spesa-notes-v1").
func Key(collection string) string {
	return "lista-spesa-" + path.Base(collection) + "-v1"
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithoutSeed starts a never-used store with empty lists.
func WithoutSeed() Option {
	return func(s *Store) { s.seed = false }
}

// Store is a memory store persisted to a kv table.
type Store struct {
	mem    *memory.Store
	db     *kv.Store
	logger *slog.Logger
	seed   bool

	mu     sync.Mutex
	loaded map[string]bool
}

var _ core.Store = (*Store)(nil)

// New layers persistence over db. The caller keeps ownership of db.
func New(db *kv.Store, opts ...Option) *Store {
	s := &Store{
		db:     db,
		logger: slog.Default(),
		seed:   true,
		loaded: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.mem = memory.New(
		memory.WithLogger(s.logger),
		memory.WithCommitHook(s.persist),
	)
	return s
}

// persist is the commit hook: the whole collection is rewritten.
func (s *Store) persist(ctx context.Context, collection string, docs []core.Document) error {
	data, err := encode(docs)
	if err != nil {
		return err
	}
	if err := s.db.Put(ctx, Key(collection), data); err != nil {
		return fmt.Errorf("persist %s: %w", collection, err)
	}
	return nil
}

// ensure loads collection from the table the first time it is touched.
func (s *Store) ensure(ctx context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded[collection] {
		return nil
	}

	key := Key(collection)
	data, ok, err := s.db.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("load %s: %w", collection, err)
	}

	var docs []core.Document
	switch {
	case !ok && s.seed && path.Base(collection) == "notes":
		docs = seedNotes(s.mem.NewID)
		if err := s.persist(ctx, collection, docs); err != nil {
			return err
		}
		s.logger.Info("seeded local notes", "key", key)
	case ok:
		if docs, err = decode(data); err != nil {
			// Unreadable data starts an empty list, like a fresh install.
			s.logger.Warn("discarding unreadable local data", "key", key, "error", err)
			docs = nil
		}
	}

	s.mem.Import(collection, docs)
	s.loaded[collection] = true
	return nil
}

func (s *Store) Create(ctx context.Context, collection string, fields core.Fields) (string, error) {
	if err := s.ensure(ctx, collection); err != nil {
		return "", err
	}
	return s.mem.Create(ctx, collection, fields)
}

func (s *Store) Update(ctx context.Context, collection, id string, fields core.Fields) error {
	if err := s.ensure(ctx, collection); err != nil {
		return err
	}
	return s.mem.Update(ctx, collection, id, fields)
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := s.ensure(ctx, collection); err != nil {
		return err
	}
	return s.mem.Delete(ctx, collection, id)
}

func (s *Store) Subscribe(ctx context.Context, collection string) (core.Subscription, error) {
	if err := s.ensure(ctx, collection); err != nil {
		return nil, err
	}
	return s.mem.Subscribe(ctx, collection)
}

// Close ends the subscriptions. The kv table stays open.
func (s *Store) Close() error { return s.mem.Close() }

// State implements introspection.Introspectable.
func (s *Store) State() any {
	state := s.mem.State().(memory.StoreState)
	state.Persistent = true
	return state
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string { return "local-store" }

// encode writes documents the way they were kept in browser storage:
// an array of objects carrying their own id.
func encode(docs []core.Document) ([]byte, error) {
	out := make([]map[string]any, len(docs))
	for i, d := range docs {
		m := d.Fields.Clone()
		if m == nil {
			m = core.Fields{}
		}
		m["id"] = d.ID
		out[i] = m
	}
	return json.Marshal(out)
}

func decode(data []byte) ([]core.Document, error) {
	var raw []map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	docs := make([]core.Document, 0, len(raw))
	for _, m := range raw {
		id := fmt.Sprint(m["id"])
		if m["id"] == nil || id == "" {
			continue
		}
		delete(m, "id")
		docs = append(docs, core.Document{ID: id, Fields: m})
	}
	return docs, nil
}

func seedNotes(newID func() string) []core.Document {
	item := func(id int64, name string) map[string]any {
		return map[string]any{"id": id, "name": name, "done": false}
	}
	return []core.Document{
		{ID: newID(), Fields: core.Fields{
			"title": "Spesa casa",
			"items": []any{item(1, "Latte"), item(2, "Pasta")},
		}},
		{ID: newID(), Fields: core.Fields{
			"title": "Spesa ufficio",
			"items": []any{item(3, "Caffè")},
		}},
	}
}
