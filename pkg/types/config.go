// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types holds the configuration and report types shared across the
// pipeline stages and the CLI.
package types

// ExtractionConfig holds settings for the candidate extraction stage.
type ExtractionConfig struct {
	// MinSteps is the minimum number of proof steps a candidate sub-proof
	// must contain (default 2).
	MinSteps int `json:"min_steps" yaml:"min_steps"`

	// MaxSteps is the maximum number of proof steps a candidate sub-proof
	// may contain (default 64).
	MaxSteps int `json:"max_steps" yaml:"max_steps"`

	// MaxPerProof caps how many candidates the internal fallback search
	// enumerates per proof (default 8). Oracle-supplied rankings are not
	// capped.
	MaxPerProof int `json:"max_per_proof" yaml:"max_per_proof"`

	// OracleFile is an optional YAML file mapping proof labels to ranked
	// step-index subsets. When empty the internal structural search is used.
	OracleFile string `json:"oracle_file,omitempty" yaml:"oracle_file,omitempty"`
}

// RefactorConfig holds settings for the proof rewriting stage.
type RefactorConfig struct {
	// MinHeight is the minimum proof-tree height an extracted theorem must
	// have before it is worth citing in rewrites (default 3).
	MinHeight int `json:"min_height" yaml:"min_height"`

	// MaxSweeps bounds how many rewrite sweeps run over a single proof
	// (default 16). Each sweep applies at most one occurrence and re-scans.
	MaxSweeps int `json:"max_sweeps" yaml:"max_sweeps"`
}

// LedgerConfig holds settings for the SQLite run ledger.
type LedgerConfig struct {
	// Dir is the directory holding miner.db (default "ledger"). An empty
	// string disables the ledger.
	Dir string `json:"dir" yaml:"dir"`
}

// PipelineConfig groups all stage configurations for a pipeline run.
type PipelineConfig struct {
	// Workers is the number of concurrent extraction and refactoring
	// workers (default: GOMAXPROCS).
	Workers int `json:"workers" yaml:"workers"`

	// DatabaseFile is the input proof database in Metamath source format.
	DatabaseFile string `json:"database_file" yaml:"database_file"`

	// OutputFile receives the augmented database. Defaults to the input
	// name with an "augmented-" prefix.
	OutputFile string `json:"output_file" yaml:"output_file"`

	Extraction ExtractionConfig `json:"extraction" yaml:"extraction"`
	Refactor   RefactorConfig   `json:"refactor" yaml:"refactor"`
	Ledger     LedgerConfig     `json:"ledger" yaml:"ledger"`
}

// DefaultConfig returns a PipelineConfig with every default filled in.
func DefaultConfig() PipelineConfig {
	return PipelineConfig{
		Extraction: ExtractionConfig{
			MinSteps:    2,
			MaxSteps:    64,
			MaxPerProof: 8,
		},
		Refactor: RefactorConfig{
			MinHeight: 3,
			MaxSweeps: 16,
		},
		Ledger: LedgerConfig{Dir: "ledger"},
	}
}

// Normalize fills zero values with their defaults.
func (c *PipelineConfig) Normalize() {
	def := DefaultConfig()
	if c.Extraction.MinSteps <= 0 {
		c.Extraction.MinSteps = def.Extraction.MinSteps
	}
	if c.Extraction.MaxSteps <= 0 {
		c.Extraction.MaxSteps = def.Extraction.MaxSteps
	}
	if c.Extraction.MaxPerProof <= 0 {
		c.Extraction.MaxPerProof = def.Extraction.MaxPerProof
	}
	if c.Refactor.MinHeight <= 0 {
		c.Refactor.MinHeight = def.Refactor.MinHeight
	}
	if c.Refactor.MaxSweeps <= 0 {
		c.Refactor.MaxSweeps = def.Refactor.MaxSweeps
	}
}
