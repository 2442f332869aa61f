// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/theorem-miner/internal/database"
	"github.com/pdiddy/theorem-miner/internal/refactor"
	"github.com/pdiddy/theorem-miner/internal/verifier"
	"github.com/pdiddy/theorem-miner/pkg/types"
)

var refactorCmd = &cobra.Command{
	Use:   "refactor <database.mm>",
	Short: "Rewrite proofs to cite theorems already in the database",
	Long: `Refactor replays every proof and rewrites it wherever the proof re-derives
a theorem the database already contains. No new theorems are mined; use
extract or run for that. Rewritten proofs always re-verify before they
replace the original.`,
	Args: cobra.ExactArgs(1),
	RunE: runRefactor,
}

func init() {
	refactorCmd.Flags().String("output", "", "write the rewritten database to this file")
	refactorCmd.Flags().Int("min-height", 0, "minimum proof-tree height for citable theorems")
	refactorCmd.Flags().Int("max-sweeps", 0, "rewrite sweep limit per proof")

	rootCmd.AddCommand(refactorCmd)
}

func runRefactor(cmd *cobra.Command, args []string) error {
	cfg := pipelineConfig(cmd)

	db, err := loadDatabase(args[0])
	if err != nil {
		return err
	}

	theorems := db.Theorems()
	var thms []*database.Assertion
	for _, t := range theorems {
		steps, err := verifier.Replay(db, t)
		if err != nil {
			return fmt.Errorf("input proof %s: %w", t.Label, err)
		}
		if steps[len(steps)-1].Height >= cfg.Refactor.MinHeight {
			thms = append(thms, t)
		}
	}

	rw := refactor.New(db, cfg.Refactor)
	var outcomes []types.RewriteOutcome
	for _, owner := range theorems {
		out, err := rw.RewriteProof(owner.Label, thms)
		if err != nil {
			return err
		}
		outcomes = append(outcomes, out...)
	}

	if output, _ := cmd.Flags().GetString("output"); output != "" {
		if err := exportDatabase(db, output); err != nil {
			return err
		}
		log.WithField("file", output).Info("rewritten database written")
	}

	out, err := yaml.Marshal(outcomes)
	if err != nil {
		return fmt.Errorf("rendering outcomes: %w", err)
	}
	fmt.Print(string(out))
	return nil
}
