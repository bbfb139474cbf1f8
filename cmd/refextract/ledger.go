// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/meshintel/arxiv-refextract/internal/ledger"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect the durable ledger recorded by a previous process run",
}

var ledgerStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print aggregate success/failure counts across the ledger's full history",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := viper.GetString("ledger")
		if path == "" {
			return fmt.Errorf("--ledger (or the ledger config key) must be set")
		}
		l, err := ledger.Open(path)
		if err != nil {
			return err
		}
		defer l.Close()

		stats, err := l.Stats(context.Background())
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "total: %d  succeeded: %d  failed: %d\n", stats.Total, stats.Succeeded, stats.Failed)
		return nil
	},
}

var ledgerShowCmd = &cobra.Command{
	Use:   "show RELPATH",
	Short: "Print the last recorded outcome for one canonical relpath",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := viper.GetString("ledger")
		if path == "" {
			return fmt.Errorf("--ledger (or the ledger config key) must be set")
		}
		l, err := ledger.Open(path)
		if err != nil {
			return err
		}
		defer l.Close()

		outcome, found, err := l.LastRun(context.Background(), args[0])
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("no ledger entry for %s", args[0])
		}
		if outcome.ErrorKind != "" {
			fmt.Fprintf(os.Stdout, "%s: failed (%s): %s\n", outcome.Relpath, outcome.ErrorKind, outcome.ErrorMsg)
			return nil
		}
		fmt.Fprintf(os.Stdout, "%s: ok, out=%s bibcode=%s refs=%d duration=%s finished=%s\n",
			outcome.Relpath, outcome.OutPath, outcome.Bibcode, outcome.RefCount, outcome.Duration, outcome.FinishedAt)
		return nil
	},
}

func init() {
	ledgerCmd.AddCommand(ledgerStatusCmd)
	ledgerCmd.AddCommand(ledgerShowCmd)
	rootCmd.AddCommand(ledgerCmd)
}
