// Package dispensa is the composition root of a shared shopping list and
// recipe book.
//
// It wires the collection controllers (pkg/notes, pkg/recipes) to a document
// store and a session provider using the hexagonal layout: controllers only
// see core.Store and core.SessionProvider, adapters live under pkg/adapters.
//
// Features:
//
//   - **Live mirrors**: every collection is a local mirror replaced by each
//     snapshot the store pushes.
//   - **Selection**: the selected note or recipe follows creations, remote
//     deletions and filters.
//   - **Stores**: in-memory, a directory of JSON/YAML files watched with
//     fsnotify, or the local fallback persisted to SQLite or Postgres.
//   - **Auth**: a static identity or HS256 tokens.
//
// Usage:
//
//	rt, err := dispensa.New(ctx, "./spesa",
//		dispensa.WithAdapter("fs"),
//		dispensa.WithLogger(logger),
//	)
//	if err != nil { ... }
//	defer rt.Close()
//	_ = rt.Start(ctx)
//
//	id, err := rt.App.Notes.AddNote(ctx, "Spesa casa")
//	_, err = rt.App.Notes.AddItem(ctx, id, "Latte")
package dispensa
