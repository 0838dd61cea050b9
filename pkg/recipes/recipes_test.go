package recipes_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/dispensa/pkg/adapters/memory"
	"github.com/aretw0/dispensa/pkg/collection"
	"github.com/aretw0/dispensa/pkg/core"
	"github.com/aretw0/dispensa/pkg/model"
	"github.com/aretw0/dispensa/pkg/recipes"
)

var carol = &core.Session{UID: "carol"}

func setup(t *testing.T) (*recipes.Controller, *memory.Store) {
	t.Helper()
	store := memory.New()
	c := recipes.New(collection.Config[model.Recipe]{Store: store, Confirmer: core.AlwaysConfirm})
	t.Cleanup(c.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Subscribe(context.Background(), carol))
	require.NoError(t, c.WaitLoaded(ctx))
	return c, store
}

func add(t *testing.T, c *recipes.Controller, title, category string) string {
	t.Helper()
	id, err := c.AddRecipe(context.Background(), model.RecipeDraft{
		Title:    title,
		Category: category,
		Content:  "Ingredienti e procedimento",
	})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, ok := c.Get(id)
		return ok
	}, 2*time.Second, 5*time.Millisecond)
	return id
}

func visible(c *recipes.Controller) []string {
	var out []string
	for _, r := range c.Visible() {
		out = append(out, r.ID)
	}
	return out
}

func TestAddRecipeNormalizesCategory(t *testing.T) {
	c, store := setup(t)
	id := add(t, c, "Pasta e ceci", "Zuppe")

	r, ok := c.Get(id)
	require.True(t, ok)
	assert.Equal(t, model.Altro, r.Category)
	assert.False(t, r.Favorite)

	docs := store.Export(core.CollectionPath(carol, recipes.Collection))
	require.Len(t, docs, 1)
	assert.Equal(t, "Altro", docs[0].Fields["category"])

	_, err := c.AddRecipe(context.Background(), model.RecipeDraft{Title: "x"})
	assert.ErrorIs(t, err, core.ErrValidation)
	assert.Len(t, store.Export(core.CollectionPath(carol, recipes.Collection)), 1)
}

func TestCategoryFilterReconcilesSelection(t *testing.T) {
	c, _ := setup(t)
	tiramisu := add(t, c, "Tiramisù", "Dolci")
	carbonara := add(t, c, "Carbonara", "Primi")
	require.NoError(t, c.Pick(tiramisu))

	require.NoError(t, c.SetCategoryFilter("Primi"))
	assert.Equal(t, []string{carbonara}, visible(c))
	id, _ := c.SelectedID()
	assert.Equal(t, carbonara, id)
	assert.Equal(t, "Primi", c.CategoryFilter())

	require.NoError(t, c.SetCategoryFilter("Antipasti"))
	assert.Empty(t, visible(c))
	_, ok := c.SelectedID()
	assert.False(t, ok)

	require.NoError(t, c.SetCategoryFilter(model.AllCategories))
	assert.Equal(t, []string{tiramisu, carbonara}, visible(c))

	assert.ErrorIs(t, c.SetCategoryFilter("Zuppe"), core.ErrValidation)
}

func TestHiddenNewRecipeKeepsSelection(t *testing.T) {
	c, _ := setup(t)
	tiramisu := add(t, c, "Tiramisù", "Dolci")
	panna := add(t, c, "Panna cotta", "Dolci")

	require.NoError(t, c.SetCategoryFilter("Dolci"))
	require.NoError(t, c.Pick(tiramisu))

	// The new recipe lands outside the active filter.
	carbonara := add(t, c, "Carbonara", "Primi")
	assert.Equal(t, []string{tiramisu, panna}, visible(c))

	state := c.State().(collection.State)
	assert.Equal(t, tiramisu, state.Selected)
	assert.Empty(t, state.Pending)

	require.NoError(t, c.SetCategoryFilter(model.AllCategories))
	assert.Equal(t, []string{tiramisu, panna, carbonara}, visible(c))
	id, ok := c.SelectedID()
	require.True(t, ok)
	assert.Equal(t, tiramisu, id, "a visible selection never moves")
}

func TestExprFilter(t *testing.T) {
	c, _ := setup(t)
	tiramisu := add(t, c, "Tiramisù", "Dolci")
	add(t, c, "Panna cotta", "Dolci")
	require.NoError(t, c.ToggleFavorite(context.Background(), tiramisu))

	require.NoError(t, c.SetCategoryFilter("Dolci"))
	require.NoError(t, c.SetExprFilter("favorite"))
	assert.Equal(t, []string{tiramisu}, visible(c))

	require.NoError(t, c.SetExprFilter(""))
	assert.Len(t, visible(c), 2)

	assert.Error(t, c.SetExprFilter("favorite &&"))
}

func TestToggleFavoriteTwice(t *testing.T) {
	c, _ := setup(t)
	id := add(t, c, "Carbonara", "Primi")
	require.Eventually(t, func() bool { return len(c.Mirror()) == 1 }, 2*time.Second, 5*time.Millisecond)

	ctx := context.Background()
	require.NoError(t, c.ToggleFavorite(ctx, id))
	require.NoError(t, c.ToggleFavorite(ctx, id))

	require.Eventually(t, func() bool {
		m := c.Mirror()
		return len(m) == 1 && !m[0].Favorite
	}, 2*time.Second, 5*time.Millisecond)
	r, _ := c.Get(id)
	assert.False(t, r.Favorite)
}

func TestEditDraft(t *testing.T) {
	c, _ := setup(t)
	ctx := context.Background()
	id := add(t, c, "Carbonara", "Primi")
	require.NoError(t, c.Pick(id))

	d, err := c.BeginEdit()
	require.NoError(t, err)
	assert.Equal(t, id, d.ID)
	assert.Equal(t, "Carbonara", d.Title)
	assert.True(t, c.Editing())

	require.NoError(t, c.EditDraft(func(d *model.RecipeDraft) { d.Content = "  " }))
	assert.ErrorIs(t, c.SaveEdit(ctx), core.ErrValidation)
	assert.True(t, c.Editing(), "invalid draft is kept")

	require.NoError(t, c.EditDraft(func(d *model.RecipeDraft) {
		d.Title = "Carbonara romana"
		d.Content = "Guanciale, uova, pecorino"
		d.Category = "Secondi"
	}))
	require.NoError(t, c.SaveEdit(ctx))
	assert.False(t, c.Editing())

	require.Eventually(t, func() bool {
		m := c.Mirror()
		return len(m) == 1 && m[0].Title == "Carbonara romana" && m[0].Category == model.Secondi
	}, 2*time.Second, 5*time.Millisecond)

	_, err = c.BeginEdit()
	require.NoError(t, err)
	c.CancelEdit()
	assert.False(t, c.Editing())
	assert.ErrorIs(t, c.SaveEdit(ctx), core.ErrNotFound)
}

func TestPickAndDeleteResetDraft(t *testing.T) {
	c, _ := setup(t)
	ctx := context.Background()
	a := add(t, c, "A", "Primi")
	b := add(t, c, "B", "Primi")

	require.NoError(t, c.Pick(a))
	_, err := c.BeginEdit()
	require.NoError(t, err)
	require.NoError(t, c.Pick(b))
	assert.False(t, c.Editing(), "picking another recipe discards the draft")

	_, err = c.BeginEdit()
	require.NoError(t, err)
	deleted, err := c.DeleteRecipe(ctx, b)
	require.NoError(t, err)
	require.True(t, deleted)
	assert.False(t, c.Editing())

	id, _ := c.SelectedID()
	assert.Equal(t, a, id)
}
