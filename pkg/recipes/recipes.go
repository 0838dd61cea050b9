// Package recipes implements the recipe intents, the category and
// expression filters and the single-recipe edit draft.
package recipes

import (
	"context"
	"sync"

	"github.com/aretw0/dispensa/pkg/collection"
	"github.com/aretw0/dispensa/pkg/core"
	"github.com/aretw0/dispensa/pkg/model"
	"github.com/aretw0/dispensa/pkg/query"
)

// Collection is the collection name under the session scope.
const Collection = "recipes"

const PromptDelete = "Vuoi eliminare questa ricetta?"

// Draft is an edit in progress on an existing recipe.
type Draft struct {
	ID string `json:"id"`
	model.RecipeDraft
}

// Controller exposes the recipes mirror and the recipe intents.
type Controller struct {
	*collection.Controller[model.Recipe]

	mu       sync.Mutex
	category query.Filter[model.Recipe]
	where    *query.Expr[model.Recipe]
	draft    *Draft
}

// New creates a recipes controller showing every category.
func New(cfg collection.Config[model.Recipe]) *Controller {
	if cfg.Name == "" {
		cfg.Name = Collection
	}
	c := &Controller{category: query.All[model.Recipe]()}
	cfg.Filter = c.category
	c.Controller = collection.New(cfg)
	return c
}

// AddRecipe validates the draft and creates a recipe (not a favorite).
func (c *Controller) AddRecipe(ctx context.Context, d model.RecipeDraft) (string, error) {
	fields, err := model.NewRecipeFields(d)
	if err != nil {
		return "", c.Reject(ctx, err)
	}
	return c.Create(ctx, fields)
}

// ToggleFavorite flips the favorite flag.
func (c *Controller) ToggleFavorite(ctx context.Context, id string) error {
	return c.Modify(ctx, id, func(r model.Recipe) (core.Fields, error) {
		return core.Fields{"favorite": !r.Favorite}, nil
	})
}

// DeleteRecipe removes a recipe after confirmation. Deleting the selected
// or edited recipe discards the draft.
func (c *Controller) DeleteRecipe(ctx context.Context, id string) (bool, error) {
	selected, _ := c.SelectedID()
	deleted, err := c.Delete(ctx, id, PromptDelete)
	if err != nil || !deleted {
		return deleted, err
	}

	c.mu.Lock()
	reset := c.draft != nil && (id == selected || c.draft.ID == id)
	if reset {
		c.draft = nil
	}
	c.mu.Unlock()
	if reset {
		c.Changed()
	}
	return true, nil
}

// Pick selects a recipe and discards any draft.
func (c *Controller) Pick(id string) error {
	if err := c.Controller.Pick(id); err != nil {
		return err
	}
	c.ResetDraft()
	return nil
}

// SetCategoryFilter shows one category, or all of them for "Tutte".
func (c *Controller) SetCategoryFilter(label string) error {
	if label != "" && label != model.AllCategories && !model.IsCategory(label) {
		return &core.ValidationError{Field: "category"}
	}
	c.mu.Lock()
	c.category = query.ByCategory(label)
	f := c.filterLocked()
	c.mu.Unlock()
	c.SetFilter(f)
	return nil
}

// SetExprFilter narrows the visible recipes with an expression over the
// recipe fields. An empty source removes it.
func (c *Controller) SetExprFilter(src string) error {
	var where *query.Expr[model.Recipe]
	if src != "" {
		var err error
		if where, err = query.Compile[model.Recipe](src); err != nil {
			return err
		}
	}
	c.mu.Lock()
	c.where = where
	f := c.filterLocked()
	c.mu.Unlock()
	c.SetFilter(f)
	return nil
}

// CategoryFilter returns the active category label ("Tutte" for all).
func (c *Controller) CategoryFilter() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.category.String()
}

func (c *Controller) filterLocked() query.Filter[model.Recipe] {
	if c.where == nil {
		return c.category
	}
	return query.And[model.Recipe](c.category, c.where)
}

// BeginEdit copies the selected recipe into the draft.
func (c *Controller) BeginEdit() (Draft, error) {
	r, ok := c.Selected()
	if !ok {
		return Draft{}, core.ErrNotFound
	}
	d := Draft{ID: r.ID, RecipeDraft: model.DraftOf(r)}

	c.mu.Lock()
	c.draft = &d
	c.mu.Unlock()
	c.Changed()
	return d, nil
}

// EditDraft changes the draft in place. It fails when no edit is open.
func (c *Controller) EditDraft(fn func(d *model.RecipeDraft)) error {
	c.mu.Lock()
	if c.draft == nil {
		c.mu.Unlock()
		return core.ErrNotFound
	}
	fn(&c.draft.RecipeDraft)
	c.mu.Unlock()
	c.Changed()
	return nil
}

// SaveEdit validates the draft and writes every editable field. The draft
// is kept when validation or the write fails.
func (c *Controller) SaveEdit(ctx context.Context) error {
	d, ok := c.Draft()
	if !ok {
		return core.ErrNotFound
	}
	fields, err := d.Fields()
	if err != nil {
		return c.Reject(ctx, err)
	}
	if err := c.Update(ctx, d.ID, fields); err != nil {
		return err
	}
	c.ResetDraft()
	return nil
}

// CancelEdit discards the draft.
func (c *Controller) CancelEdit() { c.ResetDraft() }

// ResetDraft discards the draft, if any.
func (c *Controller) ResetDraft() {
	c.mu.Lock()
	had := c.draft != nil
	c.draft = nil
	c.mu.Unlock()
	if had {
		c.Changed()
	}
}

// Draft returns the edit in progress.
func (c *Controller) Draft() (Draft, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.draft == nil {
		return Draft{}, false
	}
	return *c.draft, true
}

// Editing reports whether an edit is open.
func (c *Controller) Editing() bool {
	_, ok := c.Draft()
	return ok
}
