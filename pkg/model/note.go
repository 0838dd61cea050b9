// Package model holds the dispensa entities: shopping lists and recipes.
package model

import (
	"slices"
	"strings"
	"time"

	"github.com/aretw0/dispensa/pkg/core"
)

// Note is a shopping list.
type Note struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Items []Item `json:"items"`
}

// Item is an entry of a Note. It only exists inside its note's items field.
type Item struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Done bool   `json:"done"`
}

func (n Note) Key() string { return n.ID }

// Normalize fills defaults for documents missing fields.
func (n *Note) Normalize() {
	if n.Items == nil {
		n.Items = []Item{}
	}
}

// Item returns the item with the given id.
func (n Note) Item(id int64) (Item, bool) {
	for _, it := range n.Items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

// NewNoteFields validates a title and returns the fields of a new note.
func NewNoteFields(title string) (core.Fields, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, &core.ValidationError{Field: "title"}
	}
	return core.Fields{"title": title, "items": []any{}}, nil
}

// NewItem validates a name and builds an item whose id is derived from now.
// The id is bumped past existing ones so it stays unique within the note.
func NewItem(n Note, name string, now time.Time) (Item, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Item{}, &core.ValidationError{Field: "name"}
	}
	id := now.UnixMilli()
	for _, it := range n.Items {
		if it.ID >= id {
			id = it.ID + 1
		}
	}
	return Item{ID: id, Name: name}, nil
}

// WithItem returns the items of n followed by it.
func (n Note) WithItem(it Item) []Item {
	return append(slices.Clone(n.Items), it)
}

// ToggledItems returns a copy of the items with the done flag of id inverted.
func (n Note) ToggledItems(id int64) ([]Item, bool) {
	items := slices.Clone(n.Items)
	for i := range items {
		if items[i].ID == id {
			items[i].Done = !items[i].Done
			return items, true
		}
	}
	return items, false
}

// ItemsField converts items into the store representation of the items field.
func ItemsField(items []Item) []any {
	out := make([]any, 0, len(items))
	for _, it := range items {
		out = append(out, map[string]any{"id": it.ID, "name": it.Name, "done": it.Done})
	}
	return out
}
