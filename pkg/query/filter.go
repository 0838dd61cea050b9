// Package query defines the filters that turn a mirror into a visible set.
package query

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/aretw0/dispensa/pkg/model"
)

// Filter decides which entities are visible.
type Filter[T any] interface {
	Match(v T) bool
	String() string
}

// Apply returns the entities matching f, in input order.
// A nil filter matches everything.
func Apply[T any](f Filter[T], items []T) []T {
	if f == nil {
		return items
	}
	out := make([]T, 0, len(items))
	for _, v := range items {
		if f.Match(v) {
			out = append(out, v)
		}
	}
	return out
}

type all[T any] struct{}

// All matches every entity.
func All[T any]() Filter[T] { return all[T]{} }

func (all[T]) Match(T) bool   { return true }
func (all[T]) String() string { return model.AllCategories }

// CategoryFilter shows the recipes of one category.
type CategoryFilter model.Category

// ByCategory returns the recipe filter for a filter label.
// "Tutte" (or an empty label) matches every recipe; any other label is
// normalized like a stored category.
func ByCategory(label string) Filter[model.Recipe] {
	if label == "" || label == model.AllCategories {
		return All[model.Recipe]()
	}
	return CategoryFilter(model.NormalizeCategory(label))
}

func (c CategoryFilter) Match(r model.Recipe) bool {
	return model.NormalizeCategory(string(r.Category)) == model.Category(c)
}

func (c CategoryFilter) String() string { return string(c) }

// Expr filters entities with an expression evaluated against their JSON
// fields, e.g. `favorite && category == "Dolci"` or `len(items) > 0`.
type Expr[T any] struct {
	src     string
	program *vm.Program
}

// Compile parses an expression filter.
func Compile[T any](src string) (*Expr[T], error) {
	program, err := expr.Compile(src,
		expr.Env(map[string]any{}),
		expr.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid filter %q: %w", src, err)
	}
	return &Expr[T]{src: src, program: program}, nil
}

// Match evaluates the expression. Errors and non-bool results count as no match.
func (e *Expr[T]) Match(v T) bool {
	env, err := envOf(v)
	if err != nil {
		return false
	}
	out, err := expr.Run(e.program, env)
	if err != nil {
		return false
	}
	ok, _ := out.(bool)
	return ok
}

func (e *Expr[T]) String() string { return e.src }

// And matches when every filter matches.
func And[T any](filters ...Filter[T]) Filter[T] {
	return and[T](filters)
}

type and[T any] []Filter[T]

func (a and[T]) Match(v T) bool {
	for _, f := range a {
		if f != nil && !f.Match(v) {
			return false
		}
	}
	return true
}

func (a and[T]) String() string {
	parts := make([]string, 0, len(a))
	for _, f := range a {
		if f != nil {
			parts = append(parts, "("+f.String()+")")
		}
	}
	return strings.Join(parts, " && ")
}

func envOf(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	env := map[string]any{}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return env, nil
}
