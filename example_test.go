package dispensa_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/aretw0/dispensa"
)

// Example_basic creates a shopping list in a directory store and reads it back.
func Example_basic() {
	tmpDir, err := os.MkdirTemp("", "dispensa-example-*")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	ctx := context.Background()
	rt, err := dispensa.New(ctx, tmpDir, dispensa.WithAdapter("fs"))
	if err != nil {
		log.Fatal(err)
	}
	defer rt.Close()

	if err := rt.Start(ctx); err != nil {
		log.Fatal(err)
	}

	if err := rt.App.WaitLoaded(ctx); err != nil {
		log.Fatal(err)
	}

	// The mirror catches up with the store asynchronously.
	waitFor := func(cond func() bool) {
		for deadline := time.Now().Add(2 * time.Second); time.Now().Before(deadline) && !cond(); {
			time.Sleep(10 * time.Millisecond)
		}
	}

	id, err := rt.App.Notes.AddNote(ctx, "Spesa casa")
	if err != nil {
		log.Fatal(err)
	}
	waitFor(func() bool { _, ok := rt.App.Notes.Get(id); return ok })

	if _, err := rt.App.Notes.AddItem(ctx, id, "Latte"); err != nil {
		log.Fatal(err)
	}
	waitFor(func() bool { n, _ := rt.App.Notes.Get(id); return len(n.Items) == 1 })

	n, _ := rt.App.Notes.Get(id)
	fmt.Printf("%s: %s\n", n.Title, n.Items[0].Name)
	// Output:
	// Spesa casa: Latte
}
