package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/dispensa/pkg/app"
)

var watchJSON bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print the state on every change until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := openRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		show := func(v app.View) {
			if watchJSON {
				_ = printJSON(os.Stdout, v)
				return
			}
			fmt.Println(summary(v))
		}
		cancel := rt.App.OnChange(show)
		defer cancel()
		show(rt.App.View())

		<-ctx.Done()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().BoolVar(&watchJSON, "json", false, "Print every state as JSON")
}

func summary(v app.View) string {
	user := "signed out"
	if v.Session != nil {
		user = v.Session.UID
	}
	selNote, selRecipe := "-", "-"
	if v.SelectedNote != nil {
		selNote = v.SelectedNote.Title
	}
	if v.SelectedRecipe != nil {
		selRecipe = v.SelectedRecipe.Title
	}
	line := fmt.Sprintf("%s %s lists=%d (%s) recipes=%d [%s] (%s)",
		time.Now().Format(time.TimeOnly), user,
		len(v.Notes), selNote, len(v.Recipes), v.Category, selRecipe)
	if v.Loading() {
		line += " loading"
	}
	for _, e := range []string{v.NotesError, v.RecipesError} {
		if e != "" {
			line += " error=" + e
		}
	}
	return line
}

