// Package fs implements core.Store on a directory tree.
//
// Each collection is a directory and each document a file named after its
// id: <root>/<collection>/<id>.json (or .yaml / .yml). Writes are atomic.
// Subscriptions watch the collection directory, so documents edited by
// hand or by another process show up as snapshots too.
package fs

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/aretw0/dispensa/pkg/core"
)

// DefaultPattern matches the document files of a collection.
const DefaultPattern = "*.{json,yaml,yml}"

// Config holds the configuration for the filesystem store.
type Config struct {
	Path      string
	MustExist bool
	ReadOnly  bool
	// Format is the extension used for new documents (".json" or ".yaml").
	Format string
	// Pattern selects document files by name (doublestar syntax).
	Pattern string
	// Debounce is the quiet period before a burst of file events
	// produces a snapshot.
	Debounce time.Duration
	Logger   *slog.Logger
}

// Store is a directory-backed document store.
type Store struct {
	Path        string
	config      Config
	serializers map[string]Serializer
	cache       *cache
	logger      *slog.Logger

	mu       sync.Mutex
	entropy  io.Reader
	subs     map[*subscription]struct{}
	watchers int
	closed   bool
}

var _ core.Store = (*Store)(nil)

// NewStore creates a filesystem store. Call Initialize before use.
func NewStore(config Config) *Store {
	if config.Format == "" {
		config.Format = ".json"
	}
	if !strings.HasPrefix(config.Format, ".") {
		config.Format = "." + config.Format
	}
	if config.Pattern == "" {
		config.Pattern = DefaultPattern
	}
	if config.Debounce <= 0 {
		config.Debounce = 50 * time.Millisecond
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Store{
		Path:        config.Path,
		config:      config,
		serializers: DefaultSerializers(),
		cache:       newCache(),
		logger:      config.Logger.With("store", "fs"),
		entropy:     ulid.Monotonic(rand.Reader, 0),
		subs:        make(map[*subscription]struct{}),
	}
}

// Initialize creates the root directory (unless MustExist) and validates
// the configuration.
func (s *Store) Initialize(ctx context.Context) error {
	if _, ok := s.serializers[s.config.Format]; !ok {
		return fmt.Errorf("unsupported document format %q", s.config.Format)
	}
	if !doublestar.ValidatePattern(s.config.Pattern) {
		return fmt.Errorf("invalid document pattern %q", s.config.Pattern)
	}

	if s.config.MustExist || s.config.ReadOnly {
		info, err := os.Stat(s.Path)
		if os.IsNotExist(err) {
			return fmt.Errorf("store path does not exist: %s", s.Path)
		}
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("store path is not a directory: %s", s.Path)
		}
		return nil
	}
	if err := os.MkdirAll(s.Path, 0755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}
	return nil
}

// dir maps a collection path to its directory. Collections may be nested
// ("users/u1/notes") but never escape the root.
func (s *Store) dir(collection string) (string, error) {
	clean := filepath.ToSlash(filepath.Clean(collection))
	if collection == "" || clean == "." || strings.HasPrefix(clean, "../") || clean == ".." || filepath.IsAbs(collection) {
		return "", &core.ValidationError{Field: "collection"}
	}
	return filepath.Join(s.Path, filepath.FromSlash(clean)), nil
}

func validID(id string) bool {
	return id != "" && !strings.ContainsAny(id, `/\`) && id != "." && id != ".."
}

// isDocumentFile reports whether name is a document file of any collection.
func (s *Store) isDocumentFile(name string) bool {
	base := filepath.Base(name)
	if isTempFile(base) {
		return false
	}
	if _, ok := s.serializers[filepath.Ext(base)]; !ok {
		return false
	}
	ok, err := doublestar.Match(s.config.Pattern, base)
	return err == nil && ok
}

// find locates the file of id in dir.
func (s *Store) find(dir, id string) (string, bool) {
	for _, ext := range []string{".json", ".yaml", ".yml"} {
		path := filepath.Join(dir, id+ext)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

func (s *Store) writable() error {
	if s.closed {
		return core.ErrClosed
	}
	if s.config.ReadOnly {
		return core.ErrReadOnly
	}
	return nil
}

// Create writes a new document file named after a fresh ULID.
func (s *Store) Create(ctx context.Context, collection string, fields core.Fields) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dir, err := s.dir(collection)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	if err := s.writable(); err != nil {
		s.mu.Unlock()
		return "", err
	}
	id := ulid.MustNew(ulid.Now(), s.entropy).String()
	err = s.write(dir, filepath.Join(dir, id+s.config.Format), fields)
	s.mu.Unlock()
	if err != nil {
		return "", err
	}

	s.logger.Debug("document created", "collection", collection, "id", id)
	s.publish(collection)
	return id, nil
}

// Update merges fields into the document file, keeping its format.
func (s *Store) Update(ctx context.Context, collection, id string, fields core.Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir, err := s.dir(collection)
	if err != nil {
		return err
	}
	if !validID(id) {
		return core.ErrNotFound
	}

	s.mu.Lock()
	if err := s.writable(); err != nil {
		s.mu.Unlock()
		return err
	}
	path, ok := s.find(dir, id)
	if !ok {
		s.mu.Unlock()
		return core.ErrNotFound
	}
	current, err := s.read(path)
	if err == nil {
		err = s.write(dir, path, current.Merge(fields))
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.publish(collection)
	return nil
}

// Delete removes the document file.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir, err := s.dir(collection)
	if err != nil {
		return err
	}
	if !validID(id) {
		return core.ErrNotFound
	}

	s.mu.Lock()
	if err := s.writable(); err != nil {
		s.mu.Unlock()
		return err
	}
	path, ok := s.find(dir, id)
	if !ok {
		s.mu.Unlock()
		return core.ErrNotFound
	}
	err = os.Remove(path)
	s.cache.Delete(s.rel(path))
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	s.publish(collection)
	return nil
}

func (s *Store) write(dir, path string, fields core.Fields) error {
	serializer := s.serializers[filepath.Ext(path)]
	data, err := serializer.Serialize(fields)
	if err != nil {
		return fmt.Errorf("failed to serialize document: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create collection directory: %w", err)
	}
	return writeFileAtomic(path, data, 0644)
}

func (s *Store) read(path string) (core.Fields, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	rel := s.rel(path)
	if entry, ok := s.cache.Get(rel, info.ModTime(), info.Size()); ok {
		return entry.Fields.Clone(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fields, err := s.serializers[filepath.Ext(path)].Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rel, err)
	}
	s.cache.Set(rel, &cacheEntry{Fields: fields, LastModified: info.ModTime(), Size: info.Size()})
	return fields.Clone(), nil
}

func (s *Store) rel(path string) string {
	rel, err := filepath.Rel(s.Path, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

func inDir(relPath, dir string) bool {
	return filepath.ToSlash(filepath.Dir(relPath)) == dir
}

// List reads every document of a collection, ordered by id. Files that
// cannot be parsed are skipped.
func (s *Store) List(ctx context.Context, collection string) ([]core.Document, error) {
	dir, err := s.dir(collection)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return []core.Document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}

	docs := make([]core.Document, 0, len(entries))
	keep := make(map[string]bool, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := entry.Name()
		if entry.IsDir() || !s.isDocumentFile(name) {
			continue
		}
		id := strings.TrimSuffix(name, filepath.Ext(name))
		if seen[id] {
			s.logger.Warn("duplicate document id, skipping", "collection", collection, "file", name)
			continue
		}

		path := filepath.Join(dir, name)
		fields, err := s.read(path)
		if err != nil {
			s.logger.Warn("skipping unreadable document", "collection", collection, "file", name, "error", err)
			continue
		}
		seen[id] = true
		keep[s.rel(path)] = true
		docs = append(docs, core.Document{ID: id, Fields: fields})
	}
	s.cache.Prune(s.rel(dir), keep)

	slices.SortFunc(docs, func(a, b core.Document) int { return strings.Compare(a.ID, b.ID) })
	return docs, nil
}

func (s *Store) snapshot(ctx context.Context, collection string) (core.Snapshot, error) {
	docs, err := s.List(ctx, collection)
	if err != nil {
		return core.Snapshot{}, err
	}
	return core.Snapshot{Collection: collection, Documents: docs, Timestamp: time.Now().UnixMilli()}, nil
}

// Subscribe sends the current content of collection and a new snapshot
// after every change to its directory. The subscription ends on
// Unsubscribe, when ctx is cancelled, or when the store is closed.
func (s *Store) Subscribe(ctx context.Context, collection string) (core.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := s.dir(collection)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, core.ErrClosed
	}
	if !s.config.ReadOnly {
		if err := os.MkdirAll(dir, 0755); err != nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("failed to create collection directory: %w", err)
		}
	}
	sub := &subscription{
		id:         uuid.NewString(),
		collection: collection,
		store:      s,
		ch:         make(chan core.Snapshot, 1),
	}
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	sub.refresh()

	if _, err := os.Stat(dir); err == nil {
		sub.worker = newWatchWorker(s, sub, dir)
		if err := sub.worker.Start(ctx); err != nil {
			s.drop(sub, nil)
			return nil, err
		}
	} else {
		s.logger.Debug("collection directory missing, not watching", "collection", collection)
	}
	sub.stop = context.AfterFunc(ctx, sub.Unsubscribe)

	s.logger.Debug("subscription opened", "collection", collection, "subscription", sub.id)
	return sub, nil
}

// publish refreshes every subscription of collection.
func (s *Store) publish(collection string) {
	s.mu.Lock()
	subs := make([]*subscription, 0, len(s.subs))
	for sub := range s.subs {
		if sub.collection == collection {
			subs = append(subs, sub)
		}
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.refresh()
	}
}

// drop removes sub from the store and closes it with err.
func (s *Store) drop(sub *subscription, err error) {
	s.mu.Lock()
	delete(s.subs, sub)
	s.mu.Unlock()
	sub.close(err)
}

func (s *Store) watcherActive(delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers += delta
}

// Close ends every subscription and rejects further calls.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	subs := make([]*subscription, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	clear(s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.close(core.ErrClosed)
		sub.stopWorker()
	}
	return nil
}

type subscription struct {
	id         string
	collection string
	store      *Store
	ch         chan core.Snapshot
	worker     *watchWorker
	stop       func() bool

	refreshMu sync.Mutex // one refresh at a time, so deliveries keep listing order
	mu        sync.Mutex
	closed    bool
	err       error
}

func (sub *subscription) Snapshots() <-chan core.Snapshot { return sub.ch }

func (sub *subscription) Err() error {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return sub.err
}

func (sub *subscription) Unsubscribe() {
	sub.store.drop(sub, nil)
	sub.stopWorker()
	if sub.stop != nil {
		sub.stop()
	}
}

func (sub *subscription) stopWorker() {
	if sub.worker == nil {
		return
	}
	if err := sub.worker.Stop(context.Background()); err != nil {
		sub.store.logger.Debug("watcher stop", "error", err)
	}
}

// refresh lists the collection and delivers the result.
func (sub *subscription) refresh() {
	sub.refreshMu.Lock()
	defer sub.refreshMu.Unlock()

	snap, err := sub.store.snapshot(context.Background(), sub.collection)
	if err != nil {
		sub.store.logger.Error("snapshot failed", "collection", sub.collection, "error", err)
		return
	}
	sub.deliver(snap)
}

// deliver replaces any unread snapshot with snap.
func (sub *subscription) deliver(snap core.Snapshot) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return
	}
	select {
	case <-sub.ch:
	default:
	}
	sub.ch <- snap
}

func (sub *subscription) close(err error) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return
	}
	sub.closed = true
	sub.err = err
	close(sub.ch)
}
