// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/theorem-miner/internal/ledger"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect the run ledger",
	Long: `History lists past pipeline runs recorded in the SQLite ledger. Use the
theorems subcommand to list the theorems a given run accepted.`,
	RunE: runHistory,
}

var historyTheoremsCmd = &cobra.Command{
	Use:   "theorems <run-id>",
	Short: "List the theorems accepted by a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryTheorems,
}

func init() {
	historyCmd.PersistentFlags().String("ledger-dir", "ledger", "run ledger directory")
	historyCmd.Flags().Int("limit", 20, "maximum runs to list (0 for all)")

	historyCmd.AddCommand(historyTheoremsCmd)
	rootCmd.AddCommand(historyCmd)
}

func openLedger(cmd *cobra.Command) (*ledger.Ledger, error) {
	dir, _ := cmd.Flags().GetString("ledger-dir")
	return ledger.Open(dir)
}

func runHistory(cmd *cobra.Command, args []string) error {
	l, err := openLedger(cmd)
	if err != nil {
		return err
	}
	defer l.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := l.Runs(limit)
	if err != nil {
		return err
	}

	for _, r := range runs {
		fmt.Printf("run %d  %s  %s  accepted=%d applied=%d\n",
			r.ID, r.StartedAt.Format(time.RFC3339), r.DatabaseFile,
			r.Report.TheoremsAccepted, r.Report.RewritesApplied)
	}
	return nil
}

func runHistoryTheorems(cmd *cobra.Command, args []string) error {
	runID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("parsing run id %q: %w", args[0], err)
	}

	l, err := openLedger(cmd)
	if err != nil {
		return err
	}
	defer l.Close()

	thms, err := l.Theorems(runID)
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(thms)
	if err != nil {
		return fmt.Errorf("rendering theorems: %w", err)
	}
	fmt.Print(string(out))
	return nil
}
