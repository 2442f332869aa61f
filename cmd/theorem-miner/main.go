// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the theorem-miner CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/theorem-miner/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var log = logrus.New()

// rootCmd is the base command for the theorem-miner CLI.
var rootCmd = &cobra.Command{
	Use:   "theorem-miner",
	Short: "Mine reusable theorems from formal proof databases",
	Long: `theorem-miner reads a Metamath-style proof database, searches its proofs
for reusable sub-derivations, verifies each candidate with the kernel
verifier, deduplicates them up to variable renaming, and rewrites the
original proofs to cite the newly accepted theorems.

Each stage is a subcommand: verify checks a database, extract mines and
accepts theorems, refactor rewrites proofs against existing theorems, and
run executes the full pipeline. history inspects the run ledger.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, _ := cmd.Flags().GetString("log-level")
		parsed, err := logrus.ParseLevel(level)
		if err != nil {
			return fmt.Errorf("parsing log level: %w", err)
		}
		log.SetLevel(parsed)
		log.SetOutput(os.Stderr)
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./theorem-miner.yaml or ~/.config/theorem-miner/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().Int("workers", 0, "concurrent workers (default: number of CPUs)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("theorem-miner")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "theorem-miner"))
		}
	}

	viper.SetEnvPrefix("THEOREM_MINER")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// pipelineConfig assembles a PipelineConfig from defaults, the config file,
// and command flags, in increasing precedence.
func pipelineConfig(cmd *cobra.Command) types.PipelineConfig {
	cfg := types.DefaultConfig()

	if v := viper.GetInt("extraction.min_steps"); v > 0 {
		cfg.Extraction.MinSteps = v
	}
	if v := viper.GetInt("extraction.max_steps"); v > 0 {
		cfg.Extraction.MaxSteps = v
	}
	if v := viper.GetInt("extraction.max_per_proof"); v > 0 {
		cfg.Extraction.MaxPerProof = v
	}
	if v := viper.GetString("extraction.oracle_file"); v != "" {
		cfg.Extraction.OracleFile = v
	}
	if v := viper.GetInt("refactor.min_height"); v > 0 {
		cfg.Refactor.MinHeight = v
	}
	if v := viper.GetInt("refactor.max_sweeps"); v > 0 {
		cfg.Refactor.MaxSweeps = v
	}
	if v := viper.GetString("ledger.dir"); v != "" {
		cfg.Ledger.Dir = v
	}

	if v, _ := rootCmd.PersistentFlags().GetInt("workers"); v > 0 {
		cfg.Workers = v
	}
	if f := cmd.Flags().Lookup("oracle"); f != nil && f.Changed {
		cfg.Extraction.OracleFile = f.Value.String()
	}
	if v, err := cmd.Flags().GetInt("min-steps"); err == nil && v > 0 {
		cfg.Extraction.MinSteps = v
	}
	if v, err := cmd.Flags().GetInt("max-steps"); err == nil && v > 0 {
		cfg.Extraction.MaxSteps = v
	}
	if v, err := cmd.Flags().GetInt("max-per-proof"); err == nil && v > 0 {
		cfg.Extraction.MaxPerProof = v
	}
	if v, err := cmd.Flags().GetInt("min-height"); err == nil && v > 0 {
		cfg.Refactor.MinHeight = v
	}
	if v, err := cmd.Flags().GetInt("max-sweeps"); err == nil && v > 0 {
		cfg.Refactor.MaxSweeps = v
	}
	if f := cmd.Flags().Lookup("ledger-dir"); f != nil && f.Changed {
		cfg.Ledger.Dir = f.Value.String()
	}

	cfg.Normalize()
	return cfg
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
