// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// RunReport holds the user-visible counts from one pipeline run.
type RunReport struct {
	// ProofsScanned is the number of theorems whose proofs were searched
	// for candidates.
	ProofsScanned int `json:"proofs_scanned" yaml:"proofs_scanned"`

	// CandidatesProposed counts candidate sub-proofs materialized across
	// all proofs, before verification.
	CandidatesProposed int `json:"candidates_proposed" yaml:"candidates_proposed"`

	// CandidatesVerified counts candidates whose standalone proof passed
	// the kernel.
	CandidatesVerified int `json:"candidates_verified" yaml:"candidates_verified"`

	// CandidatesDeduplicated counts verified candidates dropped as
	// duplicates of the database or of earlier-accepted candidates.
	CandidatesDeduplicated int `json:"candidates_deduplicated" yaml:"candidates_deduplicated"`

	// TheoremsAccepted counts new theorems appended to the database.
	TheoremsAccepted int `json:"theorems_accepted" yaml:"theorems_accepted"`

	// RewritesApplied counts rewrite occurrences whose rewritten proof
	// re-verified and was swapped in.
	RewritesApplied int `json:"rewrites_applied" yaml:"rewrites_applied"`

	// RewritesDiscarded counts matched occurrences whose rewritten proof
	// failed re-verification and was dropped.
	RewritesDiscarded int `json:"rewrites_discarded" yaml:"rewrites_discarded"`

	// ProofsRewritten counts distinct proofs with at least one applied
	// rewrite.
	ProofsRewritten int `json:"proofs_rewritten" yaml:"proofs_rewritten"`
}

// AcceptedTheorem records one extracted theorem for reporting and the ledger.
type AcceptedTheorem struct {
	Label       string `json:"label" yaml:"label"`
	SourceProof string `json:"source_proof" yaml:"source_proof"`
	Rank        int    `json:"rank" yaml:"rank"`
	Statement   string `json:"statement" yaml:"statement"`
	Hypotheses  int    `json:"hypotheses" yaml:"hypotheses"`
	ProofSteps  int    `json:"proof_steps" yaml:"proof_steps"`
}

// RewriteOutcome records the rewrite result for one (proof, theorem) pair.
type RewriteOutcome struct {
	Proof     string `json:"proof" yaml:"proof"`
	Theorem   string `json:"theorem" yaml:"theorem"`
	Applied   int    `json:"applied" yaml:"applied"`
	Discarded int    `json:"discarded" yaml:"discarded"`
}
