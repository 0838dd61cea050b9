package model

import (
	"strings"

	"github.com/aretw0/dispensa/pkg/core"
)

// Recipe is a stored recipe.
type Recipe struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Category Category `json:"category"`
	Content  string   `json:"content"`
	URL      string   `json:"url,omitempty"`
	Favorite bool     `json:"favorite"`
}

func (r Recipe) Key() string { return r.ID }

// Normalize maps the category into the closed set.
func (r *Recipe) Normalize() {
	r.Category = NormalizeCategory(string(r.Category))
}

// RecipeDraft holds the editable fields of a recipe, as typed by the user.
type RecipeDraft struct {
	Title    string `json:"title"`
	Category string `json:"category"`
	Content  string `json:"content"`
	URL      string `json:"url"`
}

// DraftOf copies the editable fields of r.
func DraftOf(r Recipe) RecipeDraft {
	return RecipeDraft{
		Title:    r.Title,
		Category: string(NormalizeCategory(string(r.Category))),
		Content:  r.Content,
		URL:      r.URL,
	}
}

// Fields validates the draft and returns the normalized editable fields.
// Title and content must be non-empty after trimming.
func (d RecipeDraft) Fields() (core.Fields, error) {
	title := strings.TrimSpace(d.Title)
	if title == "" {
		return nil, &core.ValidationError{Field: "title"}
	}
	content := strings.TrimSpace(d.Content)
	if content == "" {
		return nil, &core.ValidationError{Field: "content"}
	}
	return core.Fields{
		"title":    title,
		"category": string(NormalizeCategory(d.Category)),
		"content":  content,
		"url":      strings.TrimSpace(d.URL),
	}, nil
}

// NewRecipeFields validates a draft and returns the fields of a new recipe.
func NewRecipeFields(d RecipeDraft) (core.Fields, error) {
	fields, err := d.Fields()
	if err != nil {
		return nil, err
	}
	fields["favorite"] = false
	return fields, nil
}
