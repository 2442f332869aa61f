// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/theorem-miner/internal/canonical"
	"github.com/pdiddy/theorem-miner/internal/extract"
	"github.com/pdiddy/theorem-miner/internal/verifier"
	"github.com/pdiddy/theorem-miner/pkg/types"
)

var extractCmd = &cobra.Command{
	Use:   "extract <database.mm>",
	Short: "Mine and accept new theorems without rewriting any proofs",
	Long: `Extract searches every proof for candidate sub-derivations, verifies them,
deduplicates them up to variable renaming, and prints the accepted theorems.
With --output the augmented database (new theorems, original proofs
untouched) is written out.`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().String("output", "", "write the augmented database to this file")
	extractCmd.Flags().String("oracle", "", "YAML file of ranked candidate step subsets")
	extractCmd.Flags().Int("min-steps", 0, "minimum candidate sub-proof size")
	extractCmd.Flags().Int("max-steps", 0, "maximum candidate sub-proof size")
	extractCmd.Flags().Int("max-per-proof", 0, "candidate cap per proof for the structural search")

	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg := pipelineConfig(cmd)

	db, err := loadDatabase(args[0])
	if err != nil {
		return err
	}

	var oracle extract.Oracle
	if cfg.Extraction.OracleFile != "" {
		fo, err := extract.LoadFileOracle(cfg.Extraction.OracleFile)
		if err != nil {
			return err
		}
		oracle = fo
	}

	ix := canonical.NewIndex(db)
	var accepted []types.AcceptedTheorem
	for _, owner := range db.Theorems() {
		steps, err := verifier.Replay(db, owner)
		if err != nil {
			return fmt.Errorf("input proof %s: %w", owner.Label, err)
		}
		for _, c := range extract.Candidates(db, owner, steps, oracle, cfg.Extraction) {
			if c.Theorem == nil {
				continue
			}
			if err := verifier.Verify(db, c.Theorem); err != nil {
				log.WithField("candidate", c.Theorem.Label).WithError(err).Debug("candidate failed verification")
				continue
			}
			if _, ok := ix.Lookup(c.Theorem); ok {
				continue
			}
			if err := db.InsertBefore(c.Theorem, owner.Label); err != nil {
				log.WithField("candidate", c.Theorem.Label).WithError(err).Warn("candidate rejected at insertion")
				continue
			}
			ix.Insert(c.Theorem)
			accepted = append(accepted, types.AcceptedTheorem{
				Label:       c.Theorem.Label,
				SourceProof: owner.Label,
				Rank:        c.Rank,
				Statement:   c.Theorem.Statement.String(),
				Hypotheses:  len(c.Theorem.Hyps),
				ProofSteps:  len(c.Theorem.Proof),
			})
		}
	}

	if output, _ := cmd.Flags().GetString("output"); output != "" {
		if err := exportDatabase(db, output); err != nil {
			return err
		}
		log.WithField("file", output).Info("augmented database written")
	}

	out, err := yaml.Marshal(accepted)
	if err != nil {
		return fmt.Errorf("rendering accepted theorems: %w", err)
	}
	fmt.Print(string(out))
	return nil
}
