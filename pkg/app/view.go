package app

import (
	"github.com/aretw0/dispensa/pkg/core"
	"github.com/aretw0/dispensa/pkg/model"
	"github.com/aretw0/dispensa/pkg/recipes"
)

// View is an immutable copy of everything a view renders.
type View struct {
	Session *core.Session `json:"session,omitempty"`
	Section Section       `json:"section"`

	Notes        []model.Note `json:"notes"`
	SelectedNote *model.Note  `json:"selectedNote,omitempty"`
	NotesLoaded  bool         `json:"notesLoaded"`
	NotesError   string       `json:"notesError,omitempty"`

	Recipes        []model.Recipe `json:"recipes"`
	SelectedRecipe *model.Recipe  `json:"selectedRecipe,omitempty"`
	Category       string         `json:"category"`
	Draft          *recipes.Draft `json:"draft,omitempty"`
	RecipesLoaded  bool           `json:"recipesLoaded"`
	RecipesError   string         `json:"recipesError,omitempty"`
}

// Loading reports whether a signed-in collection is still waiting for its
// first snapshot.
func (v View) Loading() bool {
	return v.Session != nil && (!v.NotesLoaded || !v.RecipesLoaded)
}

// View builds the current View.
func (a *App) View() View {
	a.mu.Lock()
	v := View{Section: a.section}
	if a.session != nil {
		s := *a.session
		v.Session = &s
	}
	a.mu.Unlock()

	v.Notes = a.Notes.Visible()
	if n, ok := a.Notes.Selected(); ok {
		v.SelectedNote = &n
	}
	v.NotesLoaded = a.Notes.Loaded()
	if err := a.Notes.Err(); err != nil {
		v.NotesError = err.Error()
	}

	v.Recipes = a.Recipes.Visible()
	if r, ok := a.Recipes.Selected(); ok {
		v.SelectedRecipe = &r
	}
	v.Category = a.Recipes.CategoryFilter()
	if d, ok := a.Recipes.Draft(); ok {
		v.Draft = &d
	}
	v.RecipesLoaded = a.Recipes.Loaded()
	if err := a.Recipes.Err(); err != nil {
		v.RecipesError = err.Error()
	}
	return v
}
