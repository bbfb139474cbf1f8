// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the refextract CLI.
// Implements: spec.md section 6 (External Interfaces, CLI surface);
//
//	SPEC_FULL.md SUPPLEMENTED FEATURES item 1 (debug subcommand group).
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time via ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "refextract",
	Short: "Extract bibliographic references from ArXiv fulltext",
	Long: `refextract compiles ArXiv TeX submissions (falling back to a PDF text
extraction backend) and recovers the raw reference-string list for each
item. It is driven in batch mode from a stream of jobs, or one stage at a
time via the debug subcommand group.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is not an error; scratch/pbase/tbase/texbase can
		// also come from the process environment or --config directly.
		_ = godotenv.Load()
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./refextract.yaml or ~/.config/refextract/refextract.yaml)")
	rootCmd.PersistentFlags().String("pbase", "", "base directory for input fulltext sources")
	rootCmd.PersistentFlags().String("tbase", "", "base directory for output .raw reference files")
	rootCmd.PersistentFlags().String("texbase", "", "root directory containing one subdirectory per historical TeX install")
	rootCmd.PersistentFlags().String("scratch", "", "scratch root for per-item workspaces (default: os.TempDir())")
	rootCmd.PersistentFlags().String("ledger", "", "path to the SQLite extraction ledger (default: disabled)")
	rootCmd.PersistentFlags().Bool("force", false, "recreate output files even when they are newer than the source")
	rootCmd.PersistentFlags().Bool("no-pdf", false, "never fall back to PDF extraction when TeX extraction fails")
	rootCmd.PersistentFlags().Bool("no-harvest", false, "do not invoke the PDF harvester before a PDF fallback attempt")
	rootCmd.PersistentFlags().Bool("skip-refs", false, "run the full pipeline but do not write output files")
	rootCmd.PersistentFlags().Bool("no-convert-ps", false, "never retry with PostScript graphics rewritten to PDF before giving up on a TeX source")
	rootCmd.PersistentFlags().CountP("debug", "d", "increase debug verbosity (repeatable); >1 keeps scratch directories")

	viper.BindPFlag("pbase", rootCmd.PersistentFlags().Lookup("pbase"))
	viper.BindPFlag("tbase", rootCmd.PersistentFlags().Lookup("tbase"))
	viper.BindPFlag("texbase", rootCmd.PersistentFlags().Lookup("texbase"))
	viper.BindPFlag("scratch", rootCmd.PersistentFlags().Lookup("scratch"))
	viper.BindPFlag("ledger", rootCmd.PersistentFlags().Lookup("ledger"))
	viper.BindPFlag("force", rootCmd.PersistentFlags().Lookup("force"))
	viper.BindPFlag("no-pdf", rootCmd.PersistentFlags().Lookup("no-pdf"))
	viper.BindPFlag("no-harvest", rootCmd.PersistentFlags().Lookup("no-harvest"))
	viper.BindPFlag("skip-refs", rootCmd.PersistentFlags().Lookup("skip-refs"))
	viper.BindPFlag("no-convert-ps", rootCmd.PersistentFlags().Lookup("no-convert-ps"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("refextract")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "refextract"))
		}
	}

	viper.SetEnvPrefix("REFEXTRACT")
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
