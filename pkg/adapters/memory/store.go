// Package memory implements core.Store in process memory.
//
// Collections keep creation order, identifiers are ULIDs assigned on
// Create, and every change pushes a full snapshot to each live subscription.
// An optional commit hook sees the new content of a collection before the
// change is applied, which is how persistent adapters are layered on top.
package memory

import (
	"context"
	"crypto/rand"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/aretw0/dispensa/pkg/core"
)

// CommitFunc persists the full content of a collection after a change.
// Returning an error aborts the change.
type CommitFunc func(ctx context.Context, collection string, docs []core.Document) error

// Option configures a Store.
type Option func(*Store)

// WithCommitHook registers fn to run before every change is applied.
func WithCommitHook(fn CommitFunc) Option {
	return func(s *Store) { s.commit = fn }
}

// WithClock overrides the clock used for ids and snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// Store is an in-memory document store with live subscriptions.
type Store struct {
	mu          sync.Mutex
	collections map[string][]core.Document
	subs        map[string]map[*subscription]struct{}
	commit      CommitFunc
	now         func() time.Time
	entropy     io.Reader
	logger      *slog.Logger
	closed      bool
}

var _ core.Store = (*Store)(nil)

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		collections: make(map[string][]core.Document),
		subs:        make(map[string]map[*subscription]struct{}),
		now:         time.Now,
		entropy:     ulid.Monotonic(rand.Reader, 0),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Import replaces a collection without running the commit hook.
// Subscribers receive the new content.
func (s *Store) Import(collection string, docs []core.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[collection] = slices.Clone(docs)
	s.publish(collection)
}

// Export returns a copy of a collection.
func (s *Store) Export(collection string) []core.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.collections[collection])
}

// Collections lists the collections that hold documents.
func (s *Store) Collections() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.collections))
	for name, docs := range s.collections {
		if len(docs) > 0 {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// NewID returns a fresh identifier. It is exported for adapters that
// assign ids outside Create.
func (s *Store) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.newID()
}

func (s *Store) newID() string {
	return ulid.MustNew(ulid.Timestamp(s.now()), s.entropy).String()
}

// Create adds a document at the end of the collection.
func (s *Store) Create(ctx context.Context, collection string, fields core.Fields) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", core.ErrClosed
	}

	doc := core.Document{ID: s.newID(), Fields: fields.Clone()}
	next := append(slices.Clone(s.collections[collection]), doc)
	if err := s.apply(ctx, collection, next); err != nil {
		return "", err
	}
	return doc.ID, nil
}

// Update merges fields into an existing document.
func (s *Store) Update(ctx context.Context, collection, id string, fields core.Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return core.ErrClosed
	}

	docs := s.collections[collection]
	idx := slices.IndexFunc(docs, func(d core.Document) bool { return d.ID == id })
	if idx < 0 {
		return core.ErrNotFound
	}

	next := slices.Clone(docs)
	next[idx] = core.Document{ID: id, Fields: docs[idx].Fields.Merge(fields)}
	return s.apply(ctx, collection, next)
}

// Delete removes a document.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return core.ErrClosed
	}

	docs := s.collections[collection]
	idx := slices.IndexFunc(docs, func(d core.Document) bool { return d.ID == id })
	if idx < 0 {
		return core.ErrNotFound
	}

	next := slices.Delete(slices.Clone(docs), idx, idx+1)
	return s.apply(ctx, collection, next)
}

// apply runs the commit hook, swaps the collection and notifies subscribers.
// Callers hold s.mu.
func (s *Store) apply(ctx context.Context, collection string, next []core.Document) error {
	if s.commit != nil {
		if err := s.commit(ctx, collection, next); err != nil {
			return err
		}
	}
	s.collections[collection] = next
	s.publish(collection)
	return nil
}

// Subscribe opens a live query. The subscription ends on Unsubscribe,
// when ctx is cancelled, or when the store is closed.
func (s *Store) Subscribe(ctx context.Context, collection string) (core.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, core.ErrClosed
	}

	sub := &subscription{
		id:         uuid.NewString(),
		collection: collection,
		store:      s,
		ch:         make(chan core.Snapshot, 1),
	}
	if s.subs[collection] == nil {
		s.subs[collection] = make(map[*subscription]struct{})
	}
	s.subs[collection][sub] = struct{}{}
	sub.deliver(s.snapshot(collection))
	sub.stop = context.AfterFunc(ctx, sub.Unsubscribe)

	s.logger.Debug("subscription opened", "collection", collection, "subscription", sub.id)
	return sub, nil
}

// Close ends every subscription and rejects further calls.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for collection, subs := range s.subs {
		for sub := range subs {
			sub.close(core.ErrClosed)
		}
		delete(s.subs, collection)
	}
	return nil
}

func (s *Store) snapshot(collection string) core.Snapshot {
	return core.Snapshot{
		Collection: collection,
		Documents:  slices.Clone(s.collections[collection]),
		Timestamp:  s.now().UnixMilli(),
	}
}

// publish pushes the current content to every subscriber. Callers hold s.mu.
func (s *Store) publish(collection string) {
	subs := s.subs[collection]
	if len(subs) == 0 {
		return
	}
	snap := s.snapshot(collection)
	for sub := range subs {
		sub.deliver(snap)
	}
}

func (s *Store) unsubscribe(sub *subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	subs := s.subs[sub.collection]
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	sub.close(nil)
	s.logger.Debug("subscription closed", "collection", sub.collection, "subscription", sub.id)
}

type subscription struct {
	id         string
	collection string
	store      *Store
	ch         chan core.Snapshot
	stop       func() bool
	err        error
}

func (s *subscription) Snapshots() <-chan core.Snapshot { return s.ch }

func (s *subscription) Err() error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	return s.err
}

func (s *subscription) Unsubscribe() {
	s.store.unsubscribe(s)
}

// deliver replaces any unread snapshot with snap. Callers hold the store lock,
// so there is a single sender and the send never blocks.
func (s *subscription) deliver(snap core.Snapshot) {
	select {
	case <-s.ch:
	default:
	}
	s.ch <- snap
}

// close is called with the store lock held.
func (s *subscription) close(err error) {
	s.err = err
	if s.stop != nil {
		s.stop()
	}
	close(s.ch)
}
