// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/theorem-miner/internal/database"
	"github.com/pdiddy/theorem-miner/internal/verifier"
)

// Oracle ranks candidate step subsets for a proof. Implementations return
// subsets of step-arena indices in descending priority; nil means the oracle
// has no opinion on this proof and the structural search takes over. Results
// need not be valid candidates; invalid subsets are skipped downstream.
type Oracle interface {
	RankCandidates(owner *database.Assertion, steps []verifier.Step) [][]int
}

// FileOracle serves rankings from a YAML file keyed by theorem label:
//
//	t2:
//	  - [0, 1, 2, 3]
//	  - [4, 5, 6]
//
// Step indices refer to the uncompressed proof's step arena.
type FileOracle struct {
	ranks map[string][][]int
}

// LoadFileOracle reads the rankings file.
func LoadFileOracle(path string) (*FileOracle, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading oracle file: %w", err)
	}
	var ranks map[string][][]int
	if err := yaml.Unmarshal(raw, &ranks); err != nil {
		return nil, fmt.Errorf("parsing oracle file %s: %w", path, err)
	}
	return &FileOracle{ranks: ranks}, nil
}

// RankCandidates returns the file's subsets for the proof, or nil when the
// file does not mention it.
func (o *FileOracle) RankCandidates(owner *database.Assertion, _ []verifier.Step) [][]int {
	return o.ranks[owner.Label]
}
