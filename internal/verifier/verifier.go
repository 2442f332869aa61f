// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package verifier replays proofs on a stack machine and checks every step's
// substitution and disjointness constraints against the kernel rules. It is
// pure and deterministic: identical inputs yield identical accept/reject
// outcomes and identical failure reasons. Every candidate promotion and every
// rewritten proof goes through this package; nothing bypasses it.
package verifier

import (
	"errors"
	"fmt"

	"github.com/pdiddy/theorem-miner/internal/database"
	"github.com/pdiddy/theorem-miner/internal/formula"
)

var (
	// ErrHypothesisMismatch is returned when a substituted hypothesis does
	// not structurally equal the stack entry it must consume.
	ErrHypothesisMismatch = errors.New("step hypothesis mismatch")

	// ErrDisjointness is returned when a disjoint-variable constraint is
	// violated by a step's substitution.
	ErrDisjointness = errors.New("disjointness violation")

	// ErrIncompleteProof is returned when replay underflows, leaves more
	// than one stack entry, or proves a different statement.
	ErrIncompleteProof = errors.New("incomplete or mismatched proof")
)

// Step is one replayed proof step in the index-based arena. Hypothesis steps
// push their formula directly; assertion steps record the substitution the
// replay derived and the indices of the steps they consumed (floating
// arguments first, then essential, in the cited assertion's hypothesis
// order). Args references form the proof DAG.
type Step struct {
	Index  int
	Label  string
	Expr   formula.Formula
	Hyp    bool
	Subst  formula.Subst
	Args   []int
	Height int
}

// Verify replays the assertion's proof and reports the first kernel
// violation, or nil if the proof is valid.
func Verify(db *database.Database, a *database.Assertion) error {
	_, err := Replay(db, a)
	return err
}

// Replay runs the stack machine over the assertion's proof and returns the
// full step arena. The final stack must hold exactly one formula equal to the
// assertion's statement.
func Replay(db *database.Database, a *database.Assertion) ([]Step, error) {
	limit := a.Seq
	if !db.Has(a.Label) {
		// Not yet appended: the whole database precedes it.
		limit = db.Len()
	}

	var steps []Step
	var stack []int

	for i, label := range a.Proof {
		if h, ok := db.ResolveHyp(a, label); ok {
			steps = append(steps, Step{
				Index:  i,
				Label:  label,
				Expr:   h.Expr.Clone(),
				Hyp:    true,
				Height: 1,
			})
			stack = append(stack, i)
			continue
		}

		cited, err := db.Get(label)
		if err != nil {
			return nil, fmt.Errorf("step %d of %s: %w", i, a.Label, err)
		}
		if cited.Seq >= limit {
			return nil, fmt.Errorf("step %d of %s: %w: %s", i, a.Label, database.ErrForwardReference, label)
		}

		step, err := applyStep(db, a, cited, i, steps, stack)
		if err != nil {
			return nil, err
		}
		stack = stack[:len(stack)-len(cited.Hyps)]
		steps = append(steps, step)
		stack = append(stack, i)
	}

	if len(stack) != 1 {
		return nil, fmt.Errorf("proof of %s: %w: %d formulas left on stack", a.Label, ErrIncompleteProof, len(stack))
	}
	final := steps[stack[0]].Expr
	if !final.Equal(a.Statement) {
		return nil, fmt.Errorf("proof of %s: %w: proved %q, declared %q",
			a.Label, ErrIncompleteProof, final.String(), a.Statement.String())
	}
	return steps, nil
}

// applyStep pops the cited assertion's hypotheses off the stack, derives the
// step substitution from the floating hypotheses, checks the essential
// hypotheses and disjoint constraints, and produces the pushed step.
func applyStep(db *database.Database, owner, cited *database.Assertion, index int, steps []Step, stack []int) (Step, error) {
	npop := len(cited.Hyps)
	sp := len(stack) - npop
	if sp < 0 {
		return Step{}, fmt.Errorf("step %d of %s: %w: stack underflow citing %s",
			index, owner.Label, ErrIncompleteProof, cited.Label)
	}

	subst := make(formula.Subst, npop)
	args := make([]int, 0, npop)
	height := 1

	for _, h := range cited.Hyps {
		entry := steps[stack[sp]]
		switch h.Kind {
		case database.HypFloating:
			tc := h.Expr[0]
			if len(entry.Expr) == 0 || entry.Expr[0] != tc {
				return Step{}, fmt.Errorf("step %d of %s: %w: stack entry %q does not carry typecode %s for %s",
					index, owner.Label, ErrHypothesisMismatch, entry.Expr.String(), tc.Name, h.Variable())
			}
			subst[h.Variable()] = entry.Expr[1:].Clone()
		case database.HypEssential:
			want, err := formula.Apply(subst, h.Expr)
			if err != nil {
				return Step{}, fmt.Errorf("step %d of %s: %w", index, owner.Label, err)
			}
			if !entry.Expr.Equal(want) {
				return Step{}, fmt.Errorf("step %d of %s: %w: stack entry %q does not match hypothesis %q",
					index, owner.Label, ErrHypothesisMismatch, entry.Expr.String(), want.String())
			}
		}
		args = append(args, entry.Index)
		if entry.Height+1 > height {
			height = entry.Height + 1
		}
		sp++
	}

	if err := checkDisjoint(owner, cited, subst); err != nil {
		return Step{}, fmt.Errorf("step %d of %s: %w", index, owner.Label, err)
	}

	expr, err := formula.Apply(subst, cited.Statement)
	if err != nil {
		return Step{}, fmt.Errorf("step %d of %s: %w", index, owner.Label, err)
	}

	return Step{
		Index:  index,
		Label:  cited.Label,
		Expr:   expr,
		Subst:  subst,
		Args:   args,
		Height: height,
	}, nil
}

// checkDisjoint enforces every disjoint-variable constraint of the cited
// assertion: the substituted formulas of a constrained pair must share no
// metavariable, and each resulting variable pair must itself be constrained
// disjoint in the citing assertion's frame.
func checkDisjoint(owner, cited *database.Assertion, subst formula.Subst) error {
	for _, pair := range cited.Disjoint {
		fx, okx := subst[pair[0]]
		fy, oky := subst[pair[1]]
		if !okx || !oky {
			continue
		}
		if v, shared := formula.SharedVars(fx, fy); shared {
			return fmt.Errorf("%w: %s and %s both receive %s citing %s",
				ErrDisjointness, pair[0], pair[1], v, cited.Label)
		}
		for _, vx := range fx.Vars() {
			for _, vy := range fy.Vars() {
				if !owner.DisjointPair(vx, vy) {
					return fmt.Errorf("%w: %s , %s must be declared disjoint citing %s",
						ErrDisjointness, vx, vy, cited.Label)
				}
			}
		}
	}
	return nil
}
