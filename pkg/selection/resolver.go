// Package selection keeps the selected item of a collection valid while
// the visible set changes under it.
//
// The resolver is a small state machine:
//
//	Unselected   -> Selected(id)     explicit Pick, or any non-empty visible set
//	Selected(id) -> Selected(id)     while id stays visible
//	Selected(id) -> Selected(first)  id left the visible set, set non-empty
//	Selected(id) -> Unselected       visible set became empty
//
// A Request parks an id that is not known yet (typically a document whose
// creation was acknowledged before the snapshot containing it arrived); it is
// adopted as soon as a reconciliation sees it visible, and dropped when it
// shows up hidden by the filter.
package selection

import (
	"slices"

	"github.com/aretw0/dispensa/pkg/core"
)

// Resolver is not safe for concurrent use; callers hold their own lock.
type Resolver struct {
	selected string
	has      bool
	pending  string
}

// Selected returns the selected id.
func (r *Resolver) Selected() (string, bool) {
	return r.selected, r.has
}

// Pending returns the id waiting to become visible, if any.
func (r *Resolver) Pending() string {
	return r.pending
}

// Reconcile applies the transition rules against the visible ids, in order.
// known holds every id of the collection, filtered or not. It reports
// whether the selection changed.
func (r *Resolver) Reconcile(visible, known []string) bool {
	prev, had := r.selected, r.has

	if r.pending != "" && !slices.Contains(visible, r.pending) && slices.Contains(known, r.pending) {
		r.pending = ""
	}

	switch {
	case r.pending != "" && slices.Contains(visible, r.pending):
		r.selected, r.has = r.pending, true
		r.pending = ""
	case r.has && slices.Contains(visible, r.selected):
	case len(visible) > 0:
		r.selected, r.has = visible[0], true
	default:
		r.selected, r.has = "", false
	}

	return prev != r.selected || had != r.has
}

// Pick selects id on explicit user request. The id must be visible.
func (r *Resolver) Pick(id string, visible []string) error {
	if !slices.Contains(visible, id) {
		return core.ErrNotVisible
	}
	r.selected, r.has = id, true
	r.pending = ""
	return nil
}

// Request selects id now if visible, or parks it until it becomes known.
// A known but hidden id is not selected.
func (r *Resolver) Request(id string, visible, known []string) bool {
	if slices.Contains(visible, id) {
		r.pending = ""
		changed := r.selected != id || !r.has
		r.selected, r.has = id, true
		return changed
	}
	if slices.Contains(known, id) {
		r.pending = ""
		return false
	}
	r.pending = id
	return false
}

// DropPending forgets a parked request.
func (r *Resolver) DropPending() {
	r.pending = ""
}

// Clear resets to Unselected and drops any pending request.
func (r *Resolver) Clear() bool {
	changed := r.has
	r.selected, r.has, r.pending = "", false, ""
	return changed
}
