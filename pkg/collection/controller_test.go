package collection_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/dispensa/pkg/adapters/memory"
	"github.com/aretw0/dispensa/pkg/collection"
	"github.com/aretw0/dispensa/pkg/core"
	"github.com/aretw0/dispensa/pkg/model"
	"github.com/aretw0/dispensa/pkg/query"
)

var alice = &core.Session{UID: "alice", Email: "alice@example.com"}

// faultyStore wraps a memory store, counts writes and fails on demand.
type faultyStore struct {
	*memory.Store
	writes atomic.Int32
	fail   atomic.Bool
}

var errOffline = errors.New("offline")

func (f *faultyStore) Create(ctx context.Context, c string, fields core.Fields) (string, error) {
	f.writes.Add(1)
	if f.fail.Load() {
		return "", errOffline
	}
	return f.Store.Create(ctx, c, fields)
}

func (f *faultyStore) Update(ctx context.Context, c, id string, fields core.Fields) error {
	f.writes.Add(1)
	if f.fail.Load() {
		return errOffline
	}
	return f.Store.Update(ctx, c, id, fields)
}

func (f *faultyStore) Delete(ctx context.Context, c, id string) error {
	f.writes.Add(1)
	if f.fail.Load() {
		return errOffline
	}
	return f.Store.Delete(ctx, c, id)
}

type notifications struct {
	mu   sync.Mutex
	errs []error
}

func (n *notifications) Notify(_ context.Context, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errs = append(n.errs, err)
}

func (n *notifications) all() []error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]error(nil), n.errs...)
}

type fixture struct {
	store    *faultyStore
	ctrl     *collection.Controller[model.Note]
	notified *notifications
	confirm  atomic.Bool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    &faultyStore{Store: memory.New()},
		notified: &notifications{},
	}
	f.confirm.Store(true)
	f.ctrl = collection.New(collection.Config[model.Note]{
		Name:  "notes",
		Store: f.store,
		Confirmer: core.ConfirmFunc(func(context.Context, string) (bool, error) {
			return f.confirm.Load(), nil
		}),
		Notifier: f.notified,
	})
	t.Cleanup(f.ctrl.Close)
	return f
}

func (f *fixture) path() string { return core.CollectionPath(alice, "notes") }

func (f *fixture) seed(t *testing.T, titles ...string) []string {
	t.Helper()
	var ids []string
	for _, title := range titles {
		fields, err := model.NewNoteFields(title)
		require.NoError(t, err)
		id, err := f.store.Store.Create(context.Background(), f.path(), fields)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func (f *fixture) subscribe(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.ctrl.Subscribe(context.Background(), alice))
	require.NoError(t, f.ctrl.WaitLoaded(ctx))
}

// settle waits until the controller mirror has n documents.
func (f *fixture) settle(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return len(f.ctrl.Mirror()) == n }, 2*time.Second, 5*time.Millisecond)
}

func ids(notes []model.Note) []string {
	out := make([]string, len(notes))
	for i, n := range notes {
		out[i] = n.ID
	}
	return out
}

func TestSnapshotReplacesMirror(t *testing.T) {
	f := newFixture(t)
	seeded := f.seed(t, "Spesa casa", "Spesa ufficio")
	f.subscribe(t)

	assert.Equal(t, seeded, ids(f.ctrl.Mirror()), "mirror holds exactly the snapshot in store order")

	f.store.Import(f.path(), nil)
	f.settle(t, 0)
	_, ok := f.ctrl.SelectedID()
	assert.False(t, ok, "empty collection has no selection")
}

func TestFirstSnapshotSelectsFirstVisible(t *testing.T) {
	f := newFixture(t)
	seeded := f.seed(t, "A", "B", "C")
	f.subscribe(t)

	id, ok := f.ctrl.SelectedID()
	require.True(t, ok)
	assert.Equal(t, seeded[0], id)
	assert.True(t, f.ctrl.Loaded())
}

func TestRemoteDeleteMovesSelection(t *testing.T) {
	f := newFixture(t)
	seeded := f.seed(t, "A", "B", "C")
	f.subscribe(t)
	require.NoError(t, f.ctrl.Pick(seeded[1]))

	// Another client removes the selected note.
	require.NoError(t, f.store.Store.Delete(context.Background(), f.path(), seeded[1]))
	f.settle(t, 2)

	id, ok := f.ctrl.SelectedID()
	require.True(t, ok)
	assert.Equal(t, seeded[0], id)
}

func TestPickRejectsInvisibleID(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "A")
	f.subscribe(t)

	err := f.ctrl.Pick("missing")
	assert.ErrorIs(t, err, core.ErrNotVisible)
}

func TestCreateSelectsNewDocument(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "A")
	f.subscribe(t)

	fields, err := model.NewNoteFields("Nuova")
	require.NoError(t, err)
	id, err := f.ctrl.Create(context.Background(), fields)
	require.NoError(t, err)

	f.settle(t, 2)
	require.Eventually(t, func() bool {
		sel, ok := f.ctrl.SelectedID()
		return ok && sel == id
	}, 2*time.Second, 5*time.Millisecond)
	assert.Len(t, f.ctrl.Mirror(), 2, "mirror only grows through the snapshot")
}

func TestDeleteConfirmed(t *testing.T) {
	f := newFixture(t)
	seeded := f.seed(t, "A", "B")
	f.subscribe(t)
	require.NoError(t, f.ctrl.Pick(seeded[1]))

	deleted, err := f.ctrl.Delete(context.Background(), seeded[1], "Eliminare B?")
	require.NoError(t, err)
	require.True(t, deleted)

	id, ok := f.ctrl.SelectedID()
	require.True(t, ok)
	assert.Equal(t, seeded[0], id, "selection moves before the snapshot arrives")

	f.settle(t, 1)
	assert.Equal(t, []string{seeded[0]}, ids(f.ctrl.Visible()))
}

func TestDeleteDeclinedMakesNoRemoteCall(t *testing.T) {
	f := newFixture(t)
	seeded := f.seed(t, "A")
	f.subscribe(t)
	f.confirm.Store(false)

	deleted, err := f.ctrl.Delete(context.Background(), seeded[0], "Eliminare A?")
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Zero(t, f.store.writes.Load())
	assert.Len(t, f.ctrl.Mirror(), 1)
}

func TestWriteFailureIsReported(t *testing.T) {
	f := newFixture(t)
	seeded := f.seed(t, "A")
	f.subscribe(t)
	f.store.fail.Store(true)

	err := f.ctrl.Update(context.Background(), seeded[0], core.Fields{"title": "B"})
	var wErr *core.RemoteWriteError
	require.ErrorAs(t, err, &wErr)
	assert.Equal(t, "update", wErr.Op)
	assert.ErrorIs(t, err, errOffline)

	_, err = f.ctrl.Delete(context.Background(), seeded[0], "?")
	require.Error(t, err)
	sel, ok := f.ctrl.SelectedID()
	assert.True(t, ok && sel == seeded[0], "failed delete keeps the selection")

	got := f.notified.all()
	require.Len(t, got, 2)
	assert.ErrorIs(t, got[0], errOffline)

	n, _ := f.ctrl.Get(seeded[0])
	assert.Equal(t, "A", n.Title, "failed write leaves state untouched")
}

func TestToggleTwiceRestoresItem(t *testing.T) {
	f := newFixture(t)
	seeded := f.seed(t, "A")
	f.subscribe(t)

	note, _ := f.ctrl.Get(seeded[0])
	item, err := model.NewItem(note, "Latte", time.Now())
	require.NoError(t, err)
	require.NoError(t, f.ctrl.Update(context.Background(), seeded[0], core.Fields{"items": model.ItemsField(note.WithItem(item))}))
	require.Eventually(t, func() bool {
		m := f.ctrl.Mirror()
		return len(m) == 1 && len(m[0].Items) == 1
	}, 2*time.Second, 5*time.Millisecond)

	toggle := func() {
		require.NoError(t, f.ctrl.Modify(context.Background(), seeded[0], func(n model.Note) (core.Fields, error) {
			items, ok := n.ToggledItems(item.ID)
			require.True(t, ok)
			return core.Fields{"items": model.ItemsField(items)}, nil
		}))
	}
	toggle()
	toggle()

	require.Eventually(t, func() bool {
		docs := f.store.Export(f.path())
		items, _ := docs[0].Fields["items"].([]any)
		if len(items) != 1 {
			return false
		}
		m, _ := items[0].(map[string]any)
		return m["done"] == false
	}, 2*time.Second, 5*time.Millisecond)

	n, _ := f.ctrl.Get(seeded[0])
	assert.False(t, n.Items[0].Done)
}

func TestModifyErrorSkipsStore(t *testing.T) {
	f := newFixture(t)
	seeded := f.seed(t, "A")
	f.subscribe(t)

	verr := &core.ValidationError{Field: "name"}
	err := f.ctrl.Modify(context.Background(), seeded[0], func(model.Note) (core.Fields, error) {
		return nil, verr
	})
	assert.ErrorIs(t, err, core.ErrValidation)
	assert.Zero(t, f.store.writes.Load())

	err = f.ctrl.Modify(context.Background(), "missing", func(model.Note) (core.Fields, error) { return nil, nil })
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestSignOutClearsState(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "A", "B")
	f.subscribe(t)
	require.Len(t, f.ctrl.Mirror(), 2)

	require.NoError(t, f.ctrl.Subscribe(context.Background(), nil))
	assert.Empty(t, f.ctrl.Mirror())
	_, ok := f.ctrl.SelectedID()
	assert.False(t, ok)
	assert.True(t, f.ctrl.Loaded())

	// Late snapshots of the old session are dropped.
	_, err := f.store.Store.Create(context.Background(), f.path(), core.Fields{"title": "C"})
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, f.ctrl.Mirror())

	_, err = f.ctrl.Create(context.Background(), core.Fields{"title": "D"})
	assert.ErrorIs(t, err, core.ErrNoSession)
}

func TestSubscriptionErrorKeepsMirror(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "A")
	f.subscribe(t)

	require.NoError(t, f.store.Close())
	require.Eventually(t, func() bool { return f.ctrl.Err() != nil }, 2*time.Second, 5*time.Millisecond)

	var subErr *core.SubscriptionError
	require.ErrorAs(t, f.ctrl.Err(), &subErr)
	assert.ErrorIs(t, subErr, core.ErrClosed)
	assert.Len(t, f.ctrl.Mirror(), 1)
	assert.True(t, f.ctrl.Loaded())
	require.NotEmpty(t, f.notified.all())
}

func TestFilterReconcilesSelection(t *testing.T) {
	f := newFixture(t)
	seeded := f.seed(t, "Latte", "Pane")
	f.subscribe(t)

	filter, err := query.Compile[model.Note](`title == "Pane"`)
	require.NoError(t, err)
	f.ctrl.SetFilter(filter)

	assert.Equal(t, []string{seeded[1]}, ids(f.ctrl.Visible()))
	id, _ := f.ctrl.SelectedID()
	assert.Equal(t, seeded[1], id)
	assert.Len(t, f.ctrl.Mirror(), 2, "filtering never alters the mirror")
}

func TestOnChangeAndClose(t *testing.T) {
	f := newFixture(t)
	var calls atomic.Int32
	cancel := f.ctrl.OnChange(func() { calls.Add(1) })
	defer cancel()

	f.seed(t, "A")
	f.subscribe(t)
	require.Eventually(t, func() bool { return calls.Load() > 0 }, 2*time.Second, 5*time.Millisecond)

	f.ctrl.Close()
	before := calls.Load()
	_, err := f.store.Store.Create(context.Background(), f.path(), core.Fields{"title": "B"})
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, before, calls.Load())
	assert.ErrorIs(t, f.ctrl.Subscribe(context.Background(), alice), core.ErrClosed)

	state := f.ctrl.State().(collection.State)
	assert.False(t, state.Subscribed)
}

// gauge sums subscription deltas.
type gauge struct {
	active atomic.Int32
}

func (g *gauge) Snapshot(string, int)             {}
func (g *gauge) Write(string, string, error)      {}
func (g *gauge) Subscription(_ string, delta int) { g.active.Add(int32(delta)) }

func TestCancelledContextReleasesSubscription(t *testing.T) {
	store := memory.New()
	g := &gauge{}
	notified := &notifications{}
	ctrl := collection.New(collection.Config[model.Note]{
		Name:     "notes",
		Store:    store,
		Notifier: notified,
		Metrics:  g,
	})
	t.Cleanup(ctrl.Close)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, ctrl.Subscribe(ctx, alice))
	assert.Equal(t, int32(1), g.active.Load())

	cancel()
	require.Eventually(t, func() bool {
		return !ctrl.State().(collection.State).Subscribed
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(0), g.active.Load())
	assert.True(t, ctrl.Loaded())
	assert.NoError(t, ctrl.Err())
	assert.Empty(t, notified.all(), "cancellation is not a failure")

	// A new subscription is counted once.
	require.NoError(t, ctrl.Subscribe(context.Background(), alice))
	assert.Equal(t, int32(1), g.active.Load())
	ctrl.Close()
	assert.Equal(t, int32(0), g.active.Load())
}

func TestDeleteDeclinedByDefault(t *testing.T) {
	store := &faultyStore{Store: memory.New()}
	ctrl := collection.New(collection.Config[model.Note]{Name: "notes", Store: store})
	t.Cleanup(ctrl.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, ctrl.Subscribe(context.Background(), alice))
	require.NoError(t, ctrl.WaitLoaded(ctx))

	id, err := store.Store.Create(ctx, core.CollectionPath(alice, "notes"), core.Fields{"title": "A"})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(ctrl.Mirror()) == 1 }, 2*time.Second, 5*time.Millisecond)

	deleted, err := ctrl.Delete(ctx, id, "Eliminare A?")
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Zero(t, store.writes.Load())
}

func TestCloseFromListenerStopsDelivery(t *testing.T) {
	f := newFixture(t)

	var calls atomic.Int32
	closer := func() {
		calls.Add(1)
		f.ctrl.Close()
	}
	f.ctrl.OnChange(closer)
	f.ctrl.OnChange(closer)

	f.ctrl.Changed()
	assert.Equal(t, int32(1), calls.Load(), "no listener runs once the controller is closed")

	f.ctrl.Changed()
	assert.Equal(t, int32(1), calls.Load())
}
