// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/theorem-miner/internal/database"
	"github.com/pdiddy/theorem-miner/internal/verifier"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <database.mm>",
	Short: "Parse a proof database and verify every proof",
	Long: `Verify parses a Metamath source database and replays every proof through
the kernel verifier. It reports each failing proof and exits non-zero if
any proof is invalid.`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

// loadDatabase parses the Metamath source file at path.
func loadDatabase(path string) (*database.Database, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	defer f.Close()

	db, err := database.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return db, nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	db, err := loadDatabase(args[0])
	if err != nil {
		return err
	}

	theorems := db.Theorems()
	failed := 0
	for _, a := range theorems {
		if err := verifier.Verify(db, a); err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "FAIL %s: %v\n", a.Label, err)
		}
	}

	fmt.Printf("%d assertions, %d proofs, %d failed\n", db.Len(), len(theorems), failed)
	if failed > 0 {
		return fmt.Errorf("%d proof(s) failed verification", failed)
	}
	return nil
}
