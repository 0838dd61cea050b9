package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/dispensa"
	"github.com/aretw0/dispensa/pkg/model"
)

var (
	recipeCategory string
	recipeWhere    string
	recipeContent  string
	recipeURL      string
	recipeTitle    string
	recipeFull     bool
)

var recipesCmd = &cobra.Command{
	Use:   "recipes",
	Short: "Manage the recipe book",
}

var recipesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recipes, optionally filtered",
	Long: `List recipes of the signed-in user.

--category keeps one category (Antipasti, Primi, Secondi, Dolci, Altro).
--where takes an expression over the recipe fields, e.g.
  --where 'favorite && title contains "torta"'`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, func(ctx context.Context, rt *dispensa.Runtime) error {
			if recipeCategory != "" {
				if err := rt.App.Recipes.SetCategoryFilter(recipeCategory); err != nil {
					return err
				}
			}
			if recipeWhere != "" {
				if err := rt.App.Recipes.SetExprFilter(recipeWhere); err != nil {
					return err
				}
			}
			v := rt.App.View()
			if listJSON {
				return printJSON(os.Stdout, v.Recipes)
			}
			for _, r := range v.Recipes {
				printRecipe(os.Stdout, r, recipeFull)
			}
			return nil
		})
	},
}

var recipesAddCmd = &cobra.Command{
	Use:   "add [title]",
	Short: "Add a recipe",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, func(ctx context.Context, rt *dispensa.Runtime) error {
			id, err := rt.App.Recipes.AddRecipe(ctx, model.RecipeDraft{
				Title:    strings.Join(args, " "),
				Category: recipeCategory,
				Content:  recipeContent,
				URL:      recipeURL,
			})
			if err != nil {
				return err
			}
			fmt.Printf("Recipe created: %s\n", id)
			return nil
		})
	},
}

var recipesEditCmd = &cobra.Command{
	Use:   "edit [id]",
	Short: "Change the fields of a recipe",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		return withRuntime(cmd, func(ctx context.Context, rt *dispensa.Runtime) error {
			recipes := rt.App.Recipes
			if err := recipes.Pick(args[0]); err != nil {
				return err
			}
			if _, err := recipes.BeginEdit(); err != nil {
				return err
			}
			err := recipes.EditDraft(func(d *model.RecipeDraft) {
				if flags.Changed("title") {
					d.Title = recipeTitle
				}
				if flags.Changed("category") {
					d.Category = recipeCategory
				}
				if flags.Changed("content") {
					d.Content = recipeContent
				}
				if flags.Changed("url") {
					d.URL = recipeURL
				}
			})
			if err != nil {
				return err
			}
			if err := recipes.SaveEdit(ctx); err != nil {
				return err
			}
			fmt.Printf("Recipe updated: %s\n", args[0])
			return nil
		})
	},
}

var recipesFavCmd = &cobra.Command{
	Use:   "fav [id]",
	Short: "Toggle the favorite flag of a recipe",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, func(ctx context.Context, rt *dispensa.Runtime) error {
			if err := rt.App.Recipes.ToggleFavorite(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("Favorite toggled: %s\n", args[0])
			return nil
		})
	},
}

var recipesDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a recipe",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, func(ctx context.Context, rt *dispensa.Runtime) error {
			ok, err := rt.App.Recipes.DeleteRecipe(ctx, args[0])
			if err != nil {
				return err
			}
			report(ok, "Recipe deleted: %s\n", args[0])
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(recipesCmd)
	recipesCmd.AddCommand(recipesListCmd, recipesAddCmd, recipesEditCmd, recipesFavCmd, recipesDeleteCmd)

	recipesListCmd.Flags().StringVar(&recipeCategory, "category", "", "Show only this category")
	recipesListCmd.Flags().StringVar(&recipeWhere, "where", "", "Filter expression over recipe fields")
	recipesListCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	recipesListCmd.Flags().BoolVar(&recipeFull, "full", false, "Show link and content")

	for _, c := range []*cobra.Command{recipesAddCmd, recipesEditCmd} {
		c.Flags().StringVar(&recipeCategory, "category", "", "Recipe category")
		c.Flags().StringVar(&recipeContent, "content", "", "Ingredients and steps")
		c.Flags().StringVar(&recipeURL, "url", "", "Source link")
	}
	recipesEditCmd.Flags().StringVar(&recipeTitle, "title", "", "New title")
}

func printRecipe(w io.Writer, r model.Recipe, full bool) {
	star := " "
	if r.Favorite {
		star = "★"
	}
	fmt.Fprintf(w, "%s %s  %s [%s]\n", star, r.ID, r.Title, r.Category)
	if !full {
		return
	}
	if r.URL != "" {
		fmt.Fprintf(w, "    %s\n", r.URL)
	}
	for _, line := range strings.Split(r.Content, "\n") {
		fmt.Fprintf(w, "    %s\n", line)
	}
}
