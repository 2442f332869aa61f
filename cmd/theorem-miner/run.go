// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/theorem-miner/internal/database"
	"github.com/pdiddy/theorem-miner/internal/ledger"
	"github.com/pdiddy/theorem-miner/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run <database.mm>",
	Short: "Run the full mining pipeline over a proof database",
	Long: `Run verifies the database, extracts and accepts new theorems, rewrites the
original proofs to cite them, writes the augmented database, records the run
in the ledger, and prints the run report.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().String("output", "", "augmented database file (default: augmented-<input>)")
	runCmd.Flags().String("oracle", "", "YAML file of ranked candidate step subsets")
	runCmd.Flags().Int("min-steps", 0, "minimum candidate sub-proof size")
	runCmd.Flags().Int("max-steps", 0, "maximum candidate sub-proof size")
	runCmd.Flags().Int("max-per-proof", 0, "candidate cap per proof for the structural search")
	runCmd.Flags().Int("min-height", 0, "minimum proof-tree height for citable theorems")
	runCmd.Flags().Int("max-sweeps", 0, "rewrite sweep limit per proof")
	runCmd.Flags().String("ledger-dir", "", "run ledger directory")
	runCmd.Flags().Bool("no-ledger", false, "skip recording the run in the ledger")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	started := time.Now()
	input := args[0]

	cfg := pipelineConfig(cmd)
	cfg.DatabaseFile = input
	cfg.OutputFile, _ = cmd.Flags().GetString("output")
	if cfg.OutputFile == "" {
		cfg.OutputFile = filepath.Join(filepath.Dir(input), "augmented-"+filepath.Base(input))
	}

	db, err := loadDatabase(input)
	if err != nil {
		return err
	}

	p, err := pipeline.New(db, cfg, log)
	if err != nil {
		return err
	}
	res, err := p.Run(context.Background())
	if err != nil {
		return err
	}

	if err := exportDatabase(db, cfg.OutputFile); err != nil {
		return err
	}
	log.WithField("file", cfg.OutputFile).Info("augmented database written")

	noLedger, _ := cmd.Flags().GetBool("no-ledger")
	if !noLedger && cfg.Ledger.Dir != "" {
		l, err := ledger.Open(cfg.Ledger.Dir)
		if err != nil {
			return err
		}
		defer l.Close()
		runID, err := l.RecordRun(input, started, res.Report, res.Accepted, res.Rewrites)
		if err != nil {
			return err
		}
		log.WithField("run", runID).Info("run recorded in ledger")
	}

	out, err := yaml.Marshal(res.Report)
	if err != nil {
		return fmt.Errorf("rendering report: %w", err)
	}
	fmt.Print(string(out))
	return nil
}

func exportDatabase(db *database.Database, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	if err := database.Export(db, f); err != nil {
		f.Close()
		return fmt.Errorf("exporting database: %w", err)
	}
	return f.Close()
}
