// Package notes implements the shopping-list intents on top of a
// collection controller.
package notes

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/dispensa/pkg/collection"
	"github.com/aretw0/dispensa/pkg/core"
	"github.com/aretw0/dispensa/pkg/model"
)

// Collection is the collection name under the session scope.
const Collection = "notes"

const (
	PromptClear  = "Vuoi svuotare questa nota?"
	PromptDelete = "Vuoi eliminare questa nota con tutto il suo contenuto?"
)

// Controller exposes the notes mirror and the list intents.
type Controller struct {
	*collection.Controller[model.Note]
	now func() time.Time
}

// New creates a notes controller. cfg.Name defaults to Collection.
func New(cfg collection.Config[model.Note]) *Controller {
	if cfg.Name == "" {
		cfg.Name = Collection
	}
	return &Controller{
		Controller: collection.New(cfg),
		now:        time.Now,
	}
}

// AddNote creates an empty list and selects it once it is visible.
func (c *Controller) AddNote(ctx context.Context, title string) (string, error) {
	fields, err := model.NewNoteFields(title)
	if err != nil {
		return "", c.Reject(ctx, err)
	}
	return c.Create(ctx, fields)
}

// AddItem appends an unchecked item to a list.
func (c *Controller) AddItem(ctx context.Context, noteID, name string) (model.Item, error) {
	var added model.Item
	err := c.Modify(ctx, noteID, func(n model.Note) (core.Fields, error) {
		it, err := model.NewItem(n, name, c.now())
		if err != nil {
			return nil, err
		}
		added = it
		return core.Fields{"items": model.ItemsField(n.WithItem(it))}, nil
	})
	if err != nil {
		return model.Item{}, c.reject(ctx, err)
	}
	return added, nil
}

// ToggleItem flips the done flag of one item.
func (c *Controller) ToggleItem(ctx context.Context, noteID string, itemID int64) error {
	err := c.Modify(ctx, noteID, func(n model.Note) (core.Fields, error) {
		items, ok := n.ToggledItems(itemID)
		if !ok {
			return nil, fmt.Errorf("item %d: %w", itemID, core.ErrNotFound)
		}
		return core.Fields{"items": model.ItemsField(items)}, nil
	})
	return c.reject(ctx, err)
}

// ClearNote empties a list after confirmation.
func (c *Controller) ClearNote(ctx context.Context, noteID string) (bool, error) {
	if _, ok := c.Get(noteID); !ok {
		return false, core.ErrNotFound
	}
	ok, err := c.Confirm(ctx, PromptClear)
	if err != nil || !ok {
		return false, err
	}
	if err := c.Update(ctx, noteID, core.Fields{"items": []any{}}); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteNote removes a list and its items after confirmation.
func (c *Controller) DeleteNote(ctx context.Context, noteID string) (bool, error) {
	return c.Delete(ctx, noteID, PromptDelete)
}

// SelectedNote returns the selected list.
func (c *Controller) SelectedNote() (model.Note, bool) {
	return c.Selected()
}

// reject reports validation failures; remote failures were already
// reported by the collection controller.
func (c *Controller) reject(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if core.IsValidation(err) {
		return c.Reject(ctx, err)
	}
	return err
}
