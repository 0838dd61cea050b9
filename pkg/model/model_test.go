package model_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/dispensa/pkg/core"
	"github.com/aretw0/dispensa/pkg/model"
	"github.com/aretw0/dispensa/pkg/typed"
)

func TestNormalizeCategory(t *testing.T) {
	for _, c := range model.Categories {
		assert.Equal(t, c, model.NormalizeCategory(string(c)), "valid category must be preserved")
	}

	for _, raw := range []string{"", "Tutte", "dolci", "Contorni", " Primi", "Altro "} {
		assert.Equal(t, model.Altro, model.NormalizeCategory(raw), "input %q", raw)
	}
}

func TestRecipeDraftValidation(t *testing.T) {
	cases := []struct {
		name  string
		draft model.RecipeDraft
		field string
	}{
		{"empty title", model.RecipeDraft{Title: "  ", Content: "x"}, "title"},
		{"empty content", model.RecipeDraft{Title: "Tiramisù", Content: "\n\t"}, "content"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := model.NewRecipeFields(tc.draft)
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrValidation))

			var vErr *core.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tc.field, vErr.Field)
		})
	}

	fields, err := model.NewRecipeFields(model.RecipeDraft{
		Title:    "  Carbonara ",
		Category: "Pasta",
		Content:  " uova, guanciale ",
		URL:      " https://example.com ",
	})
	require.NoError(t, err)
	assert.Equal(t, core.Fields{
		"title":    "Carbonara",
		"category": "Altro",
		"content":  "uova, guanciale",
		"url":      "https://example.com",
		"favorite": false,
	}, fields)
}

func TestNewItem(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)

	_, err := model.NewItem(model.Note{}, "   ", now)
	require.ErrorIs(t, err, core.ErrValidation)

	n := model.Note{Items: []model.Item{{ID: now.UnixMilli(), Name: "Latte"}}}
	it, err := model.NewItem(n, " Pasta ", now)
	require.NoError(t, err)
	assert.Equal(t, "Pasta", it.Name)
	assert.False(t, it.Done)
	assert.Equal(t, now.UnixMilli()+1, it.ID, "id must stay unique within the note")
}

func TestToggledItemsIsPairwiseIdentity(t *testing.T) {
	n := model.Note{ID: "n1", Items: []model.Item{{ID: 1, Name: "Latte"}, {ID: 2, Name: "Pasta", Done: true}}}

	once, ok := n.ToggledItems(2)
	require.True(t, ok)
	assert.False(t, once[1].Done)
	assert.True(t, n.Items[1].Done, "source items must not be mutated")

	twice, _ := model.Note{ID: "n1", Items: once}.ToggledItems(2)
	assert.Equal(t, n.Items, twice)

	_, ok = n.ToggledItems(99)
	assert.False(t, ok)
}

func TestCodecDefaults(t *testing.T) {
	notes := typed.NewCodec[model.Note]()
	n, err := notes.Decode(core.Document{ID: "abc", Fields: core.Fields{"title": "Spesa"}})
	require.NoError(t, err)
	assert.Equal(t, "abc", n.ID)
	assert.NotNil(t, n.Items, "missing items must default to an empty list")
	assert.Empty(t, n.Items)

	recipes := typed.NewCodec[model.Recipe]()
	r, err := recipes.Decode(core.Document{ID: "r1", Fields: core.Fields{"title": "Tiramisù", "category": "Desserts"}})
	require.NoError(t, err)
	assert.Equal(t, model.Altro, r.Category)

	r, err = recipes.Decode(core.Document{ID: "r2", Fields: core.Fields{"title": "Panna cotta"}})
	require.NoError(t, err)
	assert.Equal(t, model.Altro, r.Category, "absent category defaults to Altro")

	_, err = notes.Decode(core.Document{ID: "bad", Fields: core.Fields{"title": 42}})
	assert.Error(t, err)
}

func TestCodecEncodeRoundTripsItems(t *testing.T) {
	codec := typed.NewCodec[model.Note]()
	in := model.Note{ID: "n1", Title: "Spesa", Items: []model.Item{{ID: 1_700_000_000_123, Name: "Caffè", Done: true}}}

	fields, err := codec.Encode(in)
	require.NoError(t, err)
	_, hasID := fields["id"]
	assert.False(t, hasID, "id is assigned by the store and never written as a field")

	out, err := codec.Decode(core.Document{ID: "n1", Fields: fields})
	require.NoError(t, err)
	assert.Equal(t, in, out)

	patched, err := codec.Apply(in, core.Fields{"items": model.ItemsField(nil)})
	require.NoError(t, err)
	assert.Empty(t, patched.Items)
	assert.Equal(t, "Spesa", patched.Title)
}
