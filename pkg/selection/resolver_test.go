package selection

import (
	"errors"
	"math/rand"
	"slices"
	"testing"

	"github.com/aretw0/dispensa/pkg/core"
)

func TestResolver_Transitions(t *testing.T) {
	var r Resolver

	if r.Reconcile(nil, nil) {
		t.Fatal("empty set must not change an empty selection")
	}
	if _, ok := r.Selected(); ok {
		t.Fatal("expected unselected")
	}

	// Unselected -> first visible
	if !r.Reconcile([]string{"a", "b"}, nil) {
		t.Fatal("expected change")
	}
	assertSelected(t, &r, "a")

	// Explicit pick
	if err := r.Pick("b", []string{"a", "b"}); err != nil {
		t.Fatalf("Pick failed: %v", err)
	}
	assertSelected(t, &r, "b")

	// Stays while visible, independent of order
	if r.Reconcile([]string{"c", "b", "a"}, nil) {
		t.Fatal("selection must not move while still visible")
	}
	assertSelected(t, &r, "b")

	// Dropped -> first visible
	r.Reconcile([]string{"c", "a"}, nil)
	assertSelected(t, &r, "c")

	// Empty -> unselected
	r.Reconcile(nil, nil)
	if _, ok := r.Selected(); ok {
		t.Fatal("expected unselected after empty set")
	}
}

func TestResolver_PickRejectsHidden(t *testing.T) {
	var r Resolver
	r.Reconcile([]string{"a"}, nil)

	err := r.Pick("z", []string{"a"})
	if !errors.Is(err, core.ErrNotVisible) {
		t.Fatalf("expected ErrNotVisible, got %v", err)
	}
	assertSelected(t, &r, "a")
}

func TestResolver_RequestIsAdoptedWhenVisible(t *testing.T) {
	var r Resolver
	r.Reconcile([]string{"a"}, nil)

	if r.Request("new", []string{"a"}, []string{"a"}) {
		t.Fatal("request for a hidden id must not change the selection")
	}
	assertSelected(t, &r, "a")
	if r.Pending() != "new" {
		t.Fatalf("expected pending 'new', got %q", r.Pending())
	}

	r.Reconcile([]string{"a", "new"}, nil)
	assertSelected(t, &r, "new")
	if r.Pending() != "" {
		t.Fatal("pending must be consumed")
	}

	// Already visible: immediate.
	if !r.Request("a", []string{"a", "new"}, nil) {
		t.Fatal("expected change")
	}
	assertSelected(t, &r, "a")
}

func TestResolver_HiddenRequestIsDropped(t *testing.T) {
	var r Resolver
	r.Reconcile([]string{"a"}, []string{"a"})

	// Acknowledged before the snapshot: parked.
	r.Request("new", []string{"a"}, []string{"a"})
	if r.Pending() != "new" {
		t.Fatalf("expected pending 'new', got %q", r.Pending())
	}

	// The snapshot has it, but the filter hides it.
	if r.Reconcile([]string{"a"}, []string{"a", "new"}) {
		t.Fatal("a hidden request must not move the selection")
	}
	if r.Pending() != "" {
		t.Fatal("a hidden request must be dropped")
	}

	// Later the filter shows it: the selection stays.
	if r.Reconcile([]string{"a", "new"}, []string{"a", "new"}) {
		t.Fatal("selection must not move while still visible")
	}
	assertSelected(t, &r, "a")

	// Already known and hidden: never parked.
	r.Request("new", []string{"a"}, []string{"a", "new"})
	if r.Pending() != "" {
		t.Fatal("a known hidden id must not be parked")
	}
}

func TestResolver_ClearDropsPending(t *testing.T) {
	var r Resolver
	r.Request("x", nil, nil)
	r.Clear()
	r.Reconcile([]string{"y", "x"}, nil)
	assertSelected(t, &r, "y")
}

// The selected id is always absent or visible, for any sequence of sets.
func TestResolver_NeverDangles(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	universe := []string{"a", "b", "c", "d", "e"}
	var r Resolver

	for i := 0; i < 500; i++ {
		var visible []string
		for _, id := range universe {
			if rng.Intn(2) == 0 {
				visible = append(visible, id)
			}
		}
		switch rng.Intn(3) {
		case 0:
			if len(visible) > 0 {
				_ = r.Pick(visible[rng.Intn(len(visible))], visible)
			}
		case 1:
			r.Request(universe[rng.Intn(len(universe))], visible, universe)
		}
		r.Reconcile(visible, universe)

		id, ok := r.Selected()
		if ok && !slices.Contains(visible, id) {
			t.Fatalf("step %d: selected %q not in %v", i, id, visible)
		}
		if !ok && len(visible) > 0 {
			t.Fatalf("step %d: unselected with non-empty set %v", i, visible)
		}
	}
}

func assertSelected(t *testing.T, r *Resolver, want string) {
	t.Helper()
	got, ok := r.Selected()
	if !ok || got != want {
		t.Fatalf("expected selected %q, got %q (ok=%v)", want, got, ok)
	}
}
