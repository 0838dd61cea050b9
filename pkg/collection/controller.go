// Package collection keeps a local mirror of a store collection in sync
// through a live subscription and turns mutation intents into store writes.
//
// The mirror is only ever replaced by snapshots. Writes never touch it; they
// show up with the next snapshot. Reads (Visible, Get, Selected) see the
// mirror through a short-lived overlay of this controller's own successful
// writes, which the next snapshot always discards.
package collection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/dispensa/pkg/core"
	"github.com/aretw0/dispensa/pkg/metrics"
	"github.com/aretw0/dispensa/pkg/query"
	"github.com/aretw0/dispensa/pkg/selection"
	"github.com/aretw0/dispensa/pkg/typed"
)

// Config holds the collaborators of a Controller.
type Config[T typed.Entity] struct {
	// Name is the collection name under the session scope (e.g. "notes").
	Name      string
	Store     core.Store
	Confirmer core.Confirmer // nil declines every prompt
	Notifier  core.Notifier
	Logger    *slog.Logger
	Metrics   metrics.Recorder
	// Filter selects the visible entities. Nil shows everything.
	Filter query.Filter[T]
	// Pessimistic disables the read overlay of own writes.
	Pessimistic bool
}

// Controller mirrors one collection for the current session.
type Controller[T typed.Entity] struct {
	cfg   Config[T]
	codec typed.Codec[T]

	mu       sync.Mutex
	session  *core.Session
	sub      core.Subscription
	gen      uint64 // bumped on every (re)subscribe and teardown
	applied  uint64 // snapshots applied in the current generation
	mirror   []T
	overlay  map[string]T
	deleted  map[string]struct{}
	filter   query.Filter[T]
	sel      selection.Resolver
	loaded   bool
	loadedCh chan struct{}
	err      error
	closed   bool

	listeners map[int]func()
	nextID    int
}

// New creates a controller. It does nothing until Subscribe is called.
func New[T typed.Entity](cfg Config[T]) *Controller[T] {
	if cfg.Confirmer == nil {
		cfg.Confirmer = core.NeverConfirm
	}
	if cfg.Notifier == nil {
		cfg.Notifier = core.Discard
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop{}
	}
	cfg.Logger = cfg.Logger.With("collection", cfg.Name)

	return &Controller[T]{
		cfg:       cfg,
		codec:     typed.NewCodec[T](),
		filter:    cfg.Filter,
		loadedCh:  make(chan struct{}),
		listeners: make(map[int]func()),
	}
}

// Name returns the collection name.
func (c *Controller[T]) Name() string { return c.cfg.Name }

// Subscribe binds the controller to a session.
//
// A nil session clears the mirror and the selection and marks the
// controller loaded without touching the store. Otherwise the previous
// subscription is cancelled before the new one is opened, so snapshots of
// an old session can never reach the mirror. ctx bounds the lifetime of
// the subscription.
func (c *Controller[T]) Subscribe(ctx context.Context, session *core.Session) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return core.ErrClosed
	}

	c.teardownLocked()
	c.session = session
	c.mirror = nil
	c.overlay = nil
	c.deleted = nil
	c.err = nil
	c.sel.Clear()

	if session == nil {
		c.setLoadedLocked(true)
		c.mu.Unlock()
		c.cfg.Logger.Debug("signed out, mirror cleared")
		c.emit()
		return nil
	}

	c.setLoadedLocked(false)
	path := core.CollectionPath(session, c.cfg.Name)
	sub, err := c.cfg.Store.Subscribe(ctx, path)
	if err != nil {
		subErr := &core.SubscriptionError{Collection: path, Err: err}
		c.err = subErr
		c.setLoadedLocked(true)
		c.mu.Unlock()
		c.cfg.Logger.Error("subscribe failed", "error", err)
		c.cfg.Notifier.Notify(ctx, subErr)
		c.emit()
		return subErr
	}

	c.sub = sub
	gen := c.gen
	c.mu.Unlock()

	c.cfg.Metrics.Subscription(c.cfg.Name, 1)
	c.cfg.Logger.Debug("subscribed", "path", path)
	c.pump(ctx, gen, sub)
	c.emit()
	return nil
}

// pump applies the snapshots of one subscription generation.
func (c *Controller[T]) pump(ctx context.Context, gen uint64, sub core.Subscription) {
	lifecycle.Go(ctx, func(ctx context.Context) error {
		for {
			select {
			case <-ctx.Done():
				c.ended(ctx, gen, nil)
				return nil
			case snap, ok := <-sub.Snapshots():
				if !ok {
					c.ended(ctx, gen, sub.Err())
					return nil
				}
				c.apply(gen, snap)
			}
		}
	}, lifecycle.WithErrorHandler(func(err error) {
		c.cfg.Logger.Error("snapshot pump panic", "error", err)
	}))
}

// apply replaces the mirror with the snapshot content.
func (c *Controller[T]) apply(gen uint64, snap core.Snapshot) {
	items, errs := c.codec.DecodeAll(snap.Documents)
	for _, err := range errs {
		c.cfg.Logger.Warn("skipping invalid document", "error", err)
	}

	c.mu.Lock()
	if gen != c.gen || c.closed {
		c.mu.Unlock()
		return
	}
	c.mirror = items
	c.overlay = nil
	c.deleted = nil
	c.applied++
	c.setLoadedLocked(true)
	c.sel.Reconcile(c.visibleIDsLocked(), c.knownIDsLocked())
	c.mu.Unlock()

	c.cfg.Metrics.Snapshot(c.cfg.Name, len(items))
	c.emit()
}

// ended handles a subscription closed by the store or by its context.
// The mirror keeps its last content.
func (c *Controller[T]) ended(ctx context.Context, gen uint64, err error) {
	c.mu.Lock()
	if gen != c.gen || c.closed || c.sub == nil {
		c.mu.Unlock()
		return
	}
	c.sub.Unsubscribe()
	c.sub = nil
	c.setLoadedLocked(true)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if err != nil {
		c.err = &core.SubscriptionError{Collection: c.pathLocked(), Err: err}
	}
	subErr := c.err
	c.mu.Unlock()

	c.cfg.Metrics.Subscription(c.cfg.Name, -1)
	if err != nil {
		c.cfg.Logger.Error("subscription stopped", "error", err)
		c.cfg.Notifier.Notify(ctx, subErr)
	}
	c.emit()
}

// Close tears the controller down. No change is delivered afterwards.
func (c *Controller[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.teardownLocked()
	c.closed = true
	clear(c.listeners)
}

func (c *Controller[T]) teardownLocked() {
	c.gen++
	c.applied = 0
	if c.sub != nil {
		c.sub.Unsubscribe()
		c.sub = nil
		c.cfg.Metrics.Subscription(c.cfg.Name, -1)
	}
}

func (c *Controller[T]) setLoadedLocked(loaded bool) {
	if loaded == c.loaded {
		return
	}
	c.loaded = loaded
	if loaded {
		close(c.loadedCh)
	} else {
		c.loadedCh = make(chan struct{})
	}
}

func (c *Controller[T]) pathLocked() string {
	if c.session == nil {
		return c.cfg.Name
	}
	return core.CollectionPath(c.session, c.cfg.Name)
}

// --- Mutation intents ---

// Create adds a document with already validated fields. Once the store
// acknowledges it, the new document becomes the selection (as soon as it
// is visible).
func (c *Controller[T]) Create(ctx context.Context, fields core.Fields) (string, error) {
	session, path, err := c.target()
	if err != nil {
		return "", err
	}

	id, err := c.cfg.Store.Create(ctx, path, fields)
	c.cfg.Metrics.Write(c.cfg.Name, "create", err)
	if err != nil {
		return "", c.writeFailed(ctx, "create", path, "", err)
	}
	c.cfg.Logger.Debug("created", "id", id)

	c.mu.Lock()
	changed := false
	if c.session == session && !c.closed {
		changed = c.sel.Request(id, c.visibleIDsLocked(), c.knownIDsLocked())
	}
	c.mu.Unlock()
	if changed {
		c.emit()
	}
	return id, nil
}

// Update sends a partial update. The mirror is not modified; concurrent
// writers are last-write-wins at the store.
func (c *Controller[T]) Update(ctx context.Context, id string, patch core.Fields) error {
	session, path, err := c.target()
	if err != nil {
		return err
	}

	c.mu.Lock()
	applied, gen := c.applied, c.gen
	c.mu.Unlock()

	err = c.cfg.Store.Update(ctx, path, id, patch)
	c.cfg.Metrics.Write(c.cfg.Name, "update", err)
	if err != nil {
		return c.writeFailed(ctx, "update", path, id, err)
	}

	if c.cfg.Pessimistic {
		return nil
	}

	// Remember the write until the next snapshot, unless one already
	// arrived: snapshots always win.
	c.mu.Lock()
	changed := false
	if c.session == session && c.gen == gen && c.applied == applied && !c.closed {
		if cur, ok := c.getLocked(id); ok {
			if next, err := c.codec.Apply(cur, patch); err == nil {
				if c.overlay == nil {
					c.overlay = make(map[string]T)
				}
				c.overlay[id] = next
				c.sel.Reconcile(c.visibleIDsLocked(), c.knownIDsLocked())
				changed = true
			}
		}
	}
	c.mu.Unlock()
	if changed {
		c.emit()
	}
	return nil
}

// Modify reads the current value of id and issues the patch computed by fn.
// Errors from fn (e.g. validation) are returned without any store call.
func (c *Controller[T]) Modify(ctx context.Context, id string, fn func(cur T) (core.Fields, error)) error {
	cur, ok := c.Get(id)
	if !ok {
		return core.ErrNotFound
	}
	patch, err := fn(cur)
	if err != nil {
		return err
	}
	return c.Update(ctx, id, patch)
}

// Delete removes id after the Confirmer approves prompt. It reports
// whether the document was deleted. The selection moves away from id right
// away instead of waiting for the next snapshot.
func (c *Controller[T]) Delete(ctx context.Context, id, prompt string) (bool, error) {
	ok, err := c.cfg.Confirmer.Confirm(ctx, prompt)
	if err != nil {
		return false, err
	}
	if !ok {
		c.cfg.Logger.Debug("delete declined", "id", id)
		return false, nil
	}

	session, path, err := c.target()
	if err != nil {
		return false, err
	}

	err = c.cfg.Store.Delete(ctx, path, id)
	c.cfg.Metrics.Write(c.cfg.Name, "delete", err)
	if err != nil {
		return false, c.writeFailed(ctx, "delete", path, id, err)
	}

	c.mu.Lock()
	if c.session == session && !c.closed {
		if c.deleted == nil {
			c.deleted = make(map[string]struct{})
		}
		c.deleted[id] = struct{}{}
		c.sel.Reconcile(c.visibleIDsLocked(), c.knownIDsLocked())
	}
	c.mu.Unlock()
	c.emit()
	return true, nil
}

// Confirm asks the configured Confirmer.
func (c *Controller[T]) Confirm(ctx context.Context, prompt string) (bool, error) {
	return c.cfg.Confirmer.Confirm(ctx, prompt)
}

// Reject surfaces an intent refused before reaching the store
// (typically a ValidationError) and returns it.
func (c *Controller[T]) Reject(ctx context.Context, err error) error {
	c.cfg.Logger.Debug("intent rejected", "error", err)
	c.cfg.Notifier.Notify(ctx, err)
	return err
}

func (c *Controller[T]) target() (*core.Session, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, "", core.ErrClosed
	}
	if c.session == nil {
		return nil, "", core.ErrNoSession
	}
	return c.session, core.CollectionPath(c.session, c.cfg.Name), nil
}

func (c *Controller[T]) writeFailed(ctx context.Context, op, path, id string, err error) error {
	wErr := &core.RemoteWriteError{Op: op, Collection: path, ID: id, Err: err}
	c.cfg.Logger.Error("write failed", "op", op, "id", id, "error", err)
	if !errors.Is(err, context.Canceled) {
		c.cfg.Notifier.Notify(ctx, wErr)
	}
	return wErr
}

// --- Selection & filter ---

// Pick selects a visible entity on explicit user request.
func (c *Controller[T]) Pick(id string) error {
	c.mu.Lock()
	err := c.sel.Pick(id, c.visibleIDsLocked())
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("pick %s: %w", id, err)
	}
	c.emit()
	return nil
}

// SetFilter changes the visible set and reconciles the selection.
func (c *Controller[T]) SetFilter(f query.Filter[T]) {
	c.mu.Lock()
	c.filter = f
	c.sel.DropPending()
	c.sel.Reconcile(c.visibleIDsLocked(), c.knownIDsLocked())
	c.mu.Unlock()
	c.emit()
}

// Filter returns the active filter (nil means all).
func (c *Controller[T]) Filter() query.Filter[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

// --- Reads ---

// Mirror returns the content of the last snapshot, in store order.
func (c *Controller[T]) Mirror() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.mirror)
}

// All returns the mirror as seen through pending own writes.
func (c *Controller[T]) All() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// Visible returns the entities matching the filter.
func (c *Controller[T]) Visible() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return query.Apply(c.filter, c.viewLocked())
}

// Get returns the current value of id.
func (c *Controller[T]) Get(id string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(id)
}

// Selected returns the selected entity.
func (c *Controller[T]) Selected() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.sel.Selected()
	if !ok {
		var zero T
		return zero, false
	}
	return c.getLocked(id)
}

// SelectedID returns the selected id.
func (c *Controller[T]) SelectedID() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sel.Selected()
}

// Session returns the session the controller is bound to.
func (c *Controller[T]) Session() *core.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Loaded reports whether the first snapshot of the current session arrived
// (always true when signed out).
func (c *Controller[T]) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// WaitLoaded blocks until Loaded or ctx is done.
func (c *Controller[T]) WaitLoaded(ctx context.Context) error {
	c.mu.Lock()
	ch := c.loadedCh
	c.mu.Unlock()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the last subscription failure.
func (c *Controller[T]) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// OnChange registers fn to run after every state change. fn runs outside
// the controller lock and may call back into the controller. A listener
// already running when Close is called may still finish.
func (c *Controller[T]) OnChange(fn func()) (cancel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// Changed runs the change listeners. Domain controllers call it when state
// layered on top of the collection changes.
func (c *Controller[T]) Changed() { c.emit() }

func (c *Controller[T]) emit() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	ids := make([]int, 0, len(c.listeners))
	for id := range c.listeners {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	slices.Sort(ids)
	for _, id := range ids {
		c.mu.Lock()
		fn, ok := c.listeners[id]
		if c.closed {
			ok = false
		}
		c.mu.Unlock()
		if ok {
			fn()
		}
	}
}

func (c *Controller[T]) viewLocked() []T {
	out := make([]T, 0, len(c.mirror))
	for _, v := range c.mirror {
		if _, gone := c.deleted[v.Key()]; gone {
			continue
		}
		if o, ok := c.overlay[v.Key()]; ok {
			v = o
		}
		out = append(out, v)
	}
	return out
}

func (c *Controller[T]) getLocked(id string) (T, bool) {
	for _, v := range c.viewLocked() {
		if v.Key() == id {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func (c *Controller[T]) knownIDsLocked() []string {
	all := c.viewLocked()
	ids := make([]string, len(all))
	for i, v := range all {
		ids[i] = v.Key()
	}
	return ids
}

func (c *Controller[T]) visibleIDsLocked() []string {
	visible := query.Apply(c.filter, c.viewLocked())
	ids := make([]string, len(visible))
	for i, v := range visible {
		ids[i] = v.Key()
	}
	return ids
}
