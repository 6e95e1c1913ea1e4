// Package main provides a cobra-based command-line tool for recipe
// graph inspection, independent of a running store process.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arcs-project/arcs-core/internal/config"
	"github.com/arcs-project/arcs-core/internal/recipe"
)

var rootCmd = &cobra.Command{
	Use:   "arcsctl",
	Short: "Inspect and normalize Arcs recipe graphs",
	Long:  "A command-line tool for validating, normalizing and digesting Arcs recipe graphs without a running store process.",
}

var strictOrphans bool

var recipeCmd = &cobra.Command{
	Use:   "recipe",
	Short: "Operate on a recipe graph read from a JSON file",
}

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Check a recipe graph's structural validity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := loadRecipe(args[0])
		if err != nil {
			return err
		}

		if !r.IsValid() {
			fmt.Println("invalid")
			os.Exit(1)
		}

		fmt.Println("valid")
		if orphans := r.OrphanSlots(); len(orphans) > 0 {
			fmt.Printf("orphan slots: %v\n", orphans)
		}
		return nil
	},
}

var normalizeCmd = &cobra.Command{
	Use:   "normalize [file]",
	Short: "Normalize a recipe graph and print its canonical form and digest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := loadRecipe(args[0])
		if err != nil {
			return err
		}

		if err := r.CheckOrphanSlots(strictOrphans); err != nil {
			return err
		}
		if err := r.Normalize(); err != nil {
			return fmt.Errorf("normalize: %w", err)
		}

		fmt.Println(r.ToString())
		fmt.Printf("digest: %s\n", r.Digest())
		fmt.Printf("resolved: %t\n", r.IsResolved())
		return nil
	},
}

var digestCmd = &cobra.Command{
	Use:   "digest [file]",
	Short: "Print a recipe graph's content digest without normalizing it in place",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := loadRecipe(args[0])
		if err != nil {
			return err
		}
		fmt.Println(r.Digest())
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective environment-derived configuration as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		out, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func loadRecipe(path string) (*recipe.Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read recipe file: %w", err)
	}
	var r recipe.Recipe
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse recipe json: %w", err)
	}
	return &r, nil
}

func init() {
	normalizeCmd.Flags().BoolVar(&strictOrphans, "strict-orphan-slots", false, "reject the recipe if any required slot is left unfilled")
	recipeCmd.AddCommand(validateCmd, normalizeCmd, digestCmd)
	rootCmd.AddCommand(recipeCmd, configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
