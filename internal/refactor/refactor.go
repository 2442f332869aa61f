// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package refactor rewrites proofs to cite accepted theorems. It matches a
// theorem's own proof tree against the dependency cones of a target proof,
// binds the theorem's hypotheses to the matched subtrees, replaces the cone
// with a single citation, and keeps the rewrite only if the whole proof still
// verifies. A rewrite that fails verification is discarded and never retried
// for the same theorem and conclusion.
package refactor

import (
	"fmt"

	"github.com/pdiddy/theorem-miner/internal/database"
	"github.com/pdiddy/theorem-miner/internal/formula"
	"github.com/pdiddy/theorem-miner/internal/verifier"
	"github.com/pdiddy/theorem-miner/pkg/types"
)

// Rewriter applies accepted theorems to proofs, one proof at a time. It is
// not safe for concurrent use; run one Rewriter per worker.
type Rewriter struct {
	db     *database.Database
	cfg    types.RefactorConfig
	failed map[string]bool
	trees  map[string][]verifier.Step // theorem label -> replayed proof tree
}

// New returns a Rewriter over the database.
func New(db *database.Database, cfg types.RefactorConfig) *Rewriter {
	return &Rewriter{
		db:     db,
		cfg:    cfg,
		failed: make(map[string]bool),
		trees:  make(map[string][]verifier.Step),
	}
}

// RewriteProof repeatedly rewrites the named proof with the given theorems
// until no further match applies or the sweep limit is reached. Only theorems
// defined strictly before the proof are considered. It returns one outcome
// per theorem that matched at least once, in theorem order.
func (r *Rewriter) RewriteProof(label string, thms []*database.Assertion) ([]types.RewriteOutcome, error) {
	counts := make(map[string]*types.RewriteOutcome)
	tally := func(thm string) *types.RewriteOutcome {
		if o, ok := counts[thm]; ok {
			return o
		}
		o := &types.RewriteOutcome{Proof: label, Theorem: thm}
		counts[thm] = o
		return o
	}

	for sweep := 0; sweep < r.cfg.MaxSweeps; sweep++ {
		owner, err := r.db.Get(label)
		if err != nil {
			return nil, err
		}
		steps, err := verifier.Replay(r.db, owner)
		if err != nil {
			return nil, fmt.Errorf("replaying %s: %w", label, err)
		}

		progressed := false
	scan:
		for i := range steps {
			if steps[i].Hyp {
				continue
			}
			for _, thm := range thms {
				if thm.Seq >= owner.Seq {
					continue
				}
				sig := thm.Label + "@" + steps[i].Expr.String()
				if r.failed[sig] {
					continue
				}
				b, ok := r.match(thm, steps, i)
				if !ok {
					continue
				}
				proof, err := rebuild(steps, i, thm, b)
				if err != nil {
					continue
				}
				if verifier.Verify(r.db, owner.WithProof(proof)) != nil {
					r.failed[sig] = true
					tally(thm.Label).Discarded++
					continue
				}
				if err := r.db.ReplaceProof(label, proof); err != nil {
					r.failed[sig] = true
					tally(thm.Label).Discarded++
					continue
				}
				tally(thm.Label).Applied++
				progressed = true
				break scan
			}
		}
		if !progressed {
			break
		}
	}

	var out []types.RewriteOutcome
	for _, thm := range thms {
		if o, ok := counts[thm.Label]; ok {
			out = append(out, *o)
		}
	}
	return out, nil
}

// bindings maps a theorem's hypotheses to step indices in the target proof.
type bindings struct {
	vars map[string]int // theorem metavariable -> bound subtree root
	hyps map[string]int // essential hypothesis label -> bound subtree root
}

// match replays the theorem's proof and structurally compares its tree
// against the cone rooted at step i: interior nodes must cite the same
// labels, floating-hypothesis leaves bind metavariables to subtrees, and
// essential-hypothesis leaves bind premises. The derived substitution must
// reproduce the theorem's essential hypotheses and its conclusion exactly.
func (r *Rewriter) match(thm *database.Assertion, steps []verifier.Step, root int) (bindings, bool) {
	// Cheap rejection before walking trees: the conclusion must at least
	// unify with the step's formula.
	if _, err := formula.Unify(thm.Statement, steps[root].Expr); err != nil {
		return bindings{}, false
	}

	tsteps, ok := r.trees[thm.Label]
	if !ok {
		var err error
		tsteps, err = verifier.Replay(r.db, thm)
		if err != nil {
			tsteps = nil
		}
		r.trees[thm.Label] = tsteps
	}
	if len(tsteps) == 0 {
		return bindings{}, false
	}
	b := bindings{vars: make(map[string]int), hyps: make(map[string]int)}
	if !r.matchNode(thm, tsteps, len(tsteps)-1, steps, root, &b) {
		return bindings{}, false
	}

	subst := make(formula.Subst, len(b.vars))
	for _, h := range thm.Floating() {
		oi, ok := b.vars[h.Variable()]
		if !ok {
			return bindings{}, false
		}
		subst[h.Variable()] = steps[oi].Expr[1:].Clone()
	}
	for _, h := range thm.Essential() {
		oi, ok := b.hyps[h.Label]
		if !ok {
			return bindings{}, false
		}
		want, err := formula.Apply(subst, h.Expr)
		if err != nil || !steps[oi].Expr.Equal(want) {
			return bindings{}, false
		}
	}
	want, err := formula.Apply(subst, thm.Statement)
	if err != nil || !steps[root].Expr.Equal(want) {
		return bindings{}, false
	}
	return b, true
}

func (r *Rewriter) matchNode(thm *database.Assertion, tsteps []verifier.Step, ti int, steps []verifier.Step, oi int, b *bindings) bool {
	ts := tsteps[ti]
	os := steps[oi]

	if ts.Hyp {
		h, ok := r.db.ResolveHyp(thm, ts.Label)
		if !ok {
			return false
		}
		if h.Kind == database.HypFloating {
			if len(os.Expr) == 0 || os.Expr[0] != h.Expr[0] {
				return false
			}
			v := h.Variable()
			if prev, bound := b.vars[v]; bound {
				return steps[prev].Expr.Equal(os.Expr)
			}
			b.vars[v] = oi
			return true
		}
		if prev, bound := b.hyps[ts.Label]; bound {
			return steps[prev].Expr.Equal(os.Expr)
		}
		b.hyps[ts.Label] = oi
		return true
	}

	if os.Hyp || os.Label != ts.Label || len(os.Args) != len(ts.Args) {
		return false
	}
	for k := range ts.Args {
		if !r.matchNode(thm, tsteps, ts.Args[k], steps, os.Args[k], b) {
			return false
		}
	}
	return true
}

// rebuild re-emits the proof's RPN with the matched cone collapsed to a
// single citation: the bound subtrees are emitted as the citation's arguments
// in the theorem's hypothesis order, followed by the theorem's label.
func rebuild(steps []verifier.Step, root int, thm *database.Assertion, b bindings) ([]string, error) {
	var out []string
	var emit func(i int) error
	emit = func(i int) error {
		if i == root {
			for _, h := range thm.Hyps {
				var oi int
				var ok bool
				if h.Kind == database.HypFloating {
					oi, ok = b.vars[h.Variable()]
				} else {
					oi, ok = b.hyps[h.Label]
				}
				if !ok {
					return fmt.Errorf("hypothesis %s of %s has no bound subtree", h.Label, thm.Label)
				}
				if err := emitSubtree(steps, oi, &out); err != nil {
					return err
				}
			}
			out = append(out, thm.Label)
			return nil
		}
		s := steps[i]
		if s.Hyp {
			out = append(out, s.Label)
			return nil
		}
		for _, a := range s.Args {
			if err := emit(a); err != nil {
				return err
			}
		}
		out = append(out, s.Label)
		return nil
	}
	if err := emit(len(steps) - 1); err != nil {
		return nil, err
	}
	return out, nil
}

// emitSubtree emits a cone verbatim, with no replacement.
func emitSubtree(steps []verifier.Step, i int, out *[]string) error {
	s := steps[i]
	if s.Hyp {
		*out = append(*out, s.Label)
		return nil
	}
	for _, a := range s.Args {
		if err := emitSubtree(steps, a, out); err != nil {
			return err
		}
	}
	*out = append(*out, s.Label)
	return nil
}
