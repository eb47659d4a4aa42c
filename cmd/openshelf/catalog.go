// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openshelf/openshelf/internal/catalog"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the local book catalog (import, stats)",
	Long: `Catalog manages the local SQLite catalog that answers the first page
of every search. Use subcommands to import books from YAML or inspect
the catalog size.`,
}

var catalogImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import books from a YAML file into the catalog",
	Long: `Import reads a YAML list of books and upserts them into the catalog.
Re-importing the same file is safe: books are keyed by slug and updated
in place.`,
	Args: cobra.ExactArgs(1),
	RunE: runCatalogImport,
}

func runCatalogImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := catalog.Open(cfg.Catalog)
	if err != nil {
		return err
	}
	defer store.Close()

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	n, err := store.ImportYAML(context.Background(), f)
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d book(s) into %s\n", n, cfg.Catalog.Path)
	return nil
}

var catalogStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print catalog size",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store, err := catalog.Open(cfg.Catalog)
		if err != nil {
			return err
		}
		defer store.Close()

		n, err := store.Count(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("%d book(s) in %s\n", n, cfg.Catalog.Path)
		return nil
	},
}

func init() {
	catalogCmd.AddCommand(catalogImportCmd)
	catalogCmd.AddCommand(catalogStatsCmd)
	rootCmd.AddCommand(catalogCmd)
}
