// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the openshelf CLI. The serve
// subcommand runs the search API; search runs a one-shot query from the
// terminal; catalog manages the local SQLite catalog.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/openshelf/openshelf/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds provider API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// rootCmd is the base command for the openshelf CLI.
var rootCmd = &cobra.Command{
	Use:   "openshelf",
	Short: "Tiered book search across a local catalog and external providers",
	Long: `openshelf answers book searches from a local SQLite catalog first and
falls back to external providers (Open Library, Google Books) only when
the local catalog cannot fill a page. Provider results stream to
subscribers over websockets while the original response returns
immediately.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("secrets-dir")
		s, err := secrets.Load(dir)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./openshelf.yaml or ~/.config/openshelf/config.yaml)")
	rootCmd.PersistentFlags().String("secrets-dir", ".secrets/", "directory of plain-text secret files")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("openshelf")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "openshelf"))
		}
	}

	viper.SetEnvPrefix("OPENSHELF")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
