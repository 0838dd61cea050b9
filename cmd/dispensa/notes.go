package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/dispensa"
	"github.com/aretw0/dispensa/pkg/model"
)

var (
	listJSON  bool
	listItems bool
)

var notesCmd = &cobra.Command{
	Use:     "notes",
	Aliases: []string{"lists"},
	Short:   "Manage shopping lists",
}

var notesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the shopping lists of the signed-in user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, func(ctx context.Context, rt *dispensa.Runtime) error {
			v := rt.App.View()
			if listJSON {
				return printJSON(os.Stdout, v.Notes)
			}
			selected := ""
			if v.SelectedNote != nil {
				selected = v.SelectedNote.ID
			}
			for _, n := range v.Notes {
				printNote(os.Stdout, n, n.ID == selected, listItems)
			}
			return nil
		})
	},
}

var notesAddCmd = &cobra.Command{
	Use:   "add [title]",
	Short: "Create an empty shopping list",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, func(ctx context.Context, rt *dispensa.Runtime) error {
			id, err := rt.App.Notes.AddNote(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Printf("List created: %s\n", id)
			return nil
		})
	},
}

var notesDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a shopping list with all its items",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, func(ctx context.Context, rt *dispensa.Runtime) error {
			ok, err := rt.App.Notes.DeleteNote(ctx, args[0])
			if err != nil {
				return err
			}
			report(ok, "List deleted: %s\n", args[0])
			return nil
		})
	},
}

var notesClearCmd = &cobra.Command{
	Use:   "clear [id]",
	Short: "Remove every item of a shopping list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, func(ctx context.Context, rt *dispensa.Runtime) error {
			ok, err := rt.App.Notes.ClearNote(ctx, args[0])
			if err != nil {
				return err
			}
			report(ok, "List cleared: %s\n", args[0])
			return nil
		})
	},
}

var notesPickCmd = &cobra.Command{
	Use:   "pick [id]",
	Short: "Select a shopping list and show it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, func(ctx context.Context, rt *dispensa.Runtime) error {
			if err := rt.App.Notes.Pick(args[0]); err != nil {
				return err
			}
			n, ok := rt.App.Notes.SelectedNote()
			if !ok {
				return fmt.Errorf("no list selected")
			}
			if listJSON {
				return printJSON(os.Stdout, n)
			}
			printNote(os.Stdout, n, true, true)
			return nil
		})
	},
}

var itemsCmd = &cobra.Command{
	Use:   "items",
	Short: "Manage the items of a shopping list",
}

var itemsAddCmd = &cobra.Command{
	Use:   "add [list-id] [name]",
	Short: "Append an item to a shopping list",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, func(ctx context.Context, rt *dispensa.Runtime) error {
			it, err := rt.App.Notes.AddItem(ctx, args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			fmt.Printf("Item added: %d %s\n", it.ID, it.Name)
			return nil
		})
	},
}

var itemsToggleCmd = &cobra.Command{
	Use:   "toggle [list-id] [item-id]",
	Short: "Check or uncheck an item",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		itemID, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid item id %q: %w", args[1], err)
		}
		return withRuntime(cmd, func(ctx context.Context, rt *dispensa.Runtime) error {
			if err := rt.App.Notes.ToggleItem(ctx, args[0], itemID); err != nil {
				return err
			}
			fmt.Printf("Item toggled: %d\n", itemID)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(notesCmd, itemsCmd)
	notesCmd.AddCommand(notesListCmd, notesAddCmd, notesDeleteCmd, notesClearCmd, notesPickCmd)
	itemsCmd.AddCommand(itemsAddCmd, itemsToggleCmd)

	notesListCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	notesListCmd.Flags().BoolVarP(&listItems, "items", "i", false, "Show the items of every list")
	notesPickCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
}

func printNote(w io.Writer, n model.Note, selected, items bool) {
	marker := " "
	if selected {
		marker = "*"
	}
	done := 0
	for _, it := range n.Items {
		if it.Done {
			done++
		}
	}
	fmt.Fprintf(w, "%s %s  %s (%d/%d)\n", marker, n.ID, n.Title, done, len(n.Items))
	if !items {
		return
	}
	for _, it := range n.Items {
		check := " "
		if it.Done {
			check = "x"
		}
		fmt.Fprintf(w, "    [%s] %d %s\n", check, it.ID, it.Name)
	}
}

func printJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// report prints the success message, or that the user declined.
func report(confirmed bool, format string, args ...any) {
	if !confirmed {
		fmt.Println("Cancelled.")
		return
	}
	fmt.Printf(format, args...)
}
