// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract searches proofs for connected, single-exit sub-derivations
// and materializes them into self-contained candidate theorems with explicit
// hypotheses. Candidate step subsets come from an injected oracle ranking;
// absent an oracle, an internal structural search enumerates the dependency
// cone of every interior step.
package extract

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/pdiddy/theorem-miner/internal/database"
	"github.com/pdiddy/theorem-miner/internal/formula"
	"github.com/pdiddy/theorem-miner/internal/verifier"
	"github.com/pdiddy/theorem-miner/pkg/types"
)

// ErrInvalidCandidate marks a candidate subset that cannot be materialized:
// disconnected, multi-exit, hypothesis-free, self-extracting, or outside the
// configured size bounds. Such candidates are skipped, never fatal.
var ErrInvalidCandidate = errors.New("invalid candidate")

// Candidate is a materialized sub-derivation: the owning proof's included
// step indices, the exit step, and the standalone theorem built from them.
// The theorem's variables are already renamed into the outer-scope alphabet;
// its label is derived from the owner and the rank so acceptance needs no
// renumbering. A subset that fails materialization keeps its slot with a nil
// Theorem so callers can still count the proposal.
type Candidate struct {
	Owner *database.Assertion
	Steps []int
	Exit  int
	Rank  int

	Theorem *database.Assertion
}

// Candidates materializes the ranked step subsets for one proof, in rank
// order. Invalid subsets yield a theorem-less Candidate. When oracle is nil
// (or returns nothing for this proof) the internal structural search supplies
// the ranking.
func Candidates(db *database.Database, owner *database.Assertion, steps []verifier.Step, oracle Oracle, cfg types.ExtractionConfig) []Candidate {
	var subsets [][]int
	if oracle != nil {
		subsets = oracle.RankCandidates(owner, steps)
	}
	if subsets == nil {
		subsets = structuralSubsets(steps, cfg)
	}

	var out []Candidate
	for rank, subset := range subsets {
		c, err := Materialize(db, owner, steps, subset, rank, cfg)
		if err != nil {
			out = append(out, Candidate{Owner: owner, Steps: slices.Clone(subset), Rank: rank})
			continue
		}
		out = append(out, c)
	}
	return out
}

// structuralSubsets enumerates the full dependency cone of every interior
// step, in step-index order, bounded by the configured sizes and count.
// Cones are connected and single-exit by construction.
func structuralSubsets(steps []verifier.Step, cfg types.ExtractionConfig) [][]int {
	if len(steps) == 0 {
		return nil
	}
	root := len(steps) - 1
	var out [][]int
	for i, s := range steps {
		if s.Hyp || s.Height < 2 || i == root {
			continue
		}
		c := cone(steps, i)
		if len(c) < cfg.MinSteps || len(c) > cfg.MaxSteps {
			continue
		}
		out = append(out, c)
		if len(out) >= cfg.MaxPerProof {
			break
		}
	}
	return out
}

// cone returns the dependency closure of the step, ascending.
func cone(steps []verifier.Step, exit int) []int {
	seen := make(map[int]bool)
	var walk func(i int)
	walk = func(i int) {
		if seen[i] {
			return
		}
		seen[i] = true
		for _, a := range steps[i].Args {
			walk(a)
		}
	}
	walk(exit)
	out := make([]int, 0, len(seen))
	for i := range seen {
		out = append(out, i)
	}
	slices.Sort(out)
	return out
}

// Materialize validates a step subset and builds its standalone theorem:
// boundary references become hypotheses in first-reference order, variables
// are renamed into the outer-scope alphabet, the subset's interior steps are
// re-emitted as the new proof, and disjoint constraints are derived from the
// included steps' substitutions.
func Materialize(db *database.Database, owner *database.Assertion, steps []verifier.Step, subset []int, rank int, cfg types.ExtractionConfig) (Candidate, error) {
	if len(subset) < cfg.MinSteps || len(subset) > cfg.MaxSteps {
		return Candidate{}, fmt.Errorf("%w: %d steps outside [%d, %d]", ErrInvalidCandidate, len(subset), cfg.MinSteps, cfg.MaxSteps)
	}
	included := make(map[int]bool, len(subset))
	for _, i := range subset {
		if i < 0 || i >= len(steps) {
			return Candidate{}, fmt.Errorf("%w: step index %d out of range", ErrInvalidCandidate, i)
		}
		included[i] = true
	}

	exit, err := singleExit(steps, subset, included)
	if err != nil {
		return Candidate{}, err
	}
	if steps[exit].Hyp {
		return Candidate{}, fmt.Errorf("%w: exit step is a hypothesis", ErrInvalidCandidate)
	}
	if err := connected(steps, subset, included, exit); err != nil {
		return Candidate{}, err
	}
	if steps[exit].Expr.Equal(owner.Statement) {
		return Candidate{}, fmt.Errorf("%w: conclusion equals the owning proof's statement", ErrInvalidCandidate)
	}

	m := &materializer{
		db:       db,
		owner:    owner,
		steps:    steps,
		included: included,
		floatFor: make(map[string]int),
		essFor:   make(map[string]int),
	}
	if err := m.collect(exit); err != nil {
		return Candidate{}, err
	}
	if len(m.floats)+len(m.essentials) == 0 {
		return Candidate{}, fmt.Errorf("%w: no hypotheses, nothing reusable", ErrInvalidCandidate)
	}

	label := fmt.Sprintf("nt_%s_r%d", owner.Label, rank)
	thm, err := m.theorem(label, exit)
	if err != nil {
		return Candidate{}, err
	}
	return Candidate{Owner: owner, Steps: slices.Clone(subset), Exit: exit, Rank: rank, Theorem: thm}, nil
}

// singleExit finds the unique included step not consumed by another included
// step.
func singleExit(steps []verifier.Step, subset []int, included map[int]bool) (int, error) {
	consumed := make(map[int]bool)
	for _, i := range subset {
		for _, a := range steps[i].Args {
			if included[a] {
				consumed[a] = true
			}
		}
	}
	exit := -1
	for _, i := range subset {
		if consumed[i] {
			continue
		}
		if exit >= 0 {
			return 0, fmt.Errorf("%w: multiple exit steps (%d and %d)", ErrInvalidCandidate, exit, i)
		}
		exit = i
	}
	if exit < 0 {
		return 0, fmt.Errorf("%w: no exit step", ErrInvalidCandidate)
	}
	return exit, nil
}

// connected checks every included step is reachable from the exit through
// included steps.
func connected(steps []verifier.Step, subset []int, included map[int]bool, exit int) error {
	seen := make(map[int]bool)
	var walk func(i int)
	walk = func(i int) {
		if seen[i] {
			return
		}
		seen[i] = true
		for _, a := range steps[i].Args {
			if included[a] {
				walk(a)
			}
		}
	}
	walk(exit)
	for _, i := range subset {
		if !seen[i] {
			return fmt.Errorf("%w: step %d not connected to exit %d", ErrInvalidCandidate, i, exit)
		}
	}
	return nil
}

// materializer accumulates the boundary hypotheses of one candidate.
type materializer struct {
	db       *database.Database
	owner    *database.Assertion
	steps    []verifier.Step
	included map[int]bool

	floats   []string // metavariable names, first-reference order
	floatFor map[string]int

	essentials []formula.Formula // essential hypothesis formulas, first-reference order
	essFor     map[string]int
}

// collect walks the cone from the exit and classifies every boundary
// reference by the hypothesis position that consumes it: float positions must
// carry a bare typed metavariable and become floating hypotheses of the new
// theorem; essential positions become essential hypotheses. An included
// hypothesis step of the owner counts as a boundary reference too.
func (m *materializer) collect(exit int) error {
	var walk func(i int) error
	walk = func(i int) error {
		step := m.steps[i]
		cited, err := m.db.Get(step.Label)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidCandidate, err)
		}
		for k, arg := range step.Args {
			if m.included[arg] && !m.steps[arg].Hyp {
				if err := walk(arg); err != nil {
					return err
				}
				continue
			}
			entry := m.steps[arg]
			switch cited.Hyps[k].Kind {
			case database.HypFloating:
				if len(entry.Expr) != 2 || !entry.Expr[1].Var {
					return fmt.Errorf("%w: compound formula %q at a variable position", ErrInvalidCandidate, entry.Expr.String())
				}
				m.addFloat(entry.Expr[1].Name)
			case database.HypEssential:
				m.addEssential(entry.Expr)
			}
		}
		return nil
	}
	if err := walk(exit); err != nil {
		return err
	}

	// Variables occurring only inside essential hypotheses still need a
	// floating hypothesis, or the theorem could never be cited.
	for _, e := range m.essentials {
		for _, v := range e.Vars() {
			m.addFloat(v)
		}
	}
	for _, v := range m.steps[exit].Expr.Vars() {
		m.addFloat(v)
	}
	return nil
}

func (m *materializer) addFloat(v string) {
	if _, ok := m.floatFor[v]; ok {
		return
	}
	m.floatFor[v] = len(m.floats)
	m.floats = append(m.floats, v)
}

func (m *materializer) addEssential(e formula.Formula) {
	key := e.String()
	if _, ok := m.essFor[key]; ok {
		return
	}
	m.essFor[key] = len(m.essentials)
	m.essentials = append(m.essentials, e)
}

// theorem renames the candidate's variables into the outer-scope alphabet and
// assembles the standalone assertion.
func (m *materializer) theorem(label string, exit int) (*database.Assertion, error) {
	rename, floatHyps, err := m.standardize()
	if err != nil {
		return nil, err
	}

	conclusion, err := formula.Apply(rename, m.steps[exit].Expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCandidate, err)
	}

	hyps := floatHyps
	essLabels := make(map[string]string, len(m.essentials))
	for i, e := range m.essentials {
		renamed, err := formula.Apply(rename, e)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCandidate, err)
		}
		h := database.Hypothesis{
			Label: fmt.Sprintf("%s.%d", label, i+1),
			Kind:  database.HypEssential,
			Expr:  renamed,
		}
		hyps = append(hyps, h)
		essLabels[e.String()] = h.Label
	}

	proof, err := m.emit(exit, rename, essLabels)
	if err != nil {
		return nil, err
	}

	return &database.Assertion{
		Label:     label,
		Kind:      database.KindTheorem,
		Statement: conclusion,
		Hyps:      hyps,
		Disjoint:  m.disjoint(rename),
		Proof:     proof,
	}, nil
}

// standardize maps each candidate variable to an unused outer-scope variable
// of the same typecode, in first-reference order. The returned floating
// hypotheses are the matching outer $f hypotheses, sorted into declaration
// order so a re-parse of the exported theorem reconstructs the same mandatory
// order.
func (m *materializer) standardize() (formula.Subst, []database.Hypothesis, error) {
	outer := m.db.OuterFloats()
	declIdx := make(map[string]int, len(outer))
	for i, h := range outer {
		declIdx[h.Label] = i
	}

	usedVar := make(map[string]bool)
	rename := make(formula.Subst, len(m.floats))
	chosen := make([]database.Hypothesis, 0, len(m.floats))

	for _, v := range m.floats {
		tc, err := m.typecodeOf(v)
		if err != nil {
			return nil, nil, err
		}
		picked := -1
		for i, h := range outer {
			if h.Expr[0].Name == tc && !usedVar[h.Variable()] {
				picked = i
				break
			}
		}
		if picked < 0 {
			return nil, nil, fmt.Errorf("%w: outer-scope variable alphabet exhausted for typecode %s", ErrInvalidCandidate, tc)
		}
		h := outer[picked]
		usedVar[h.Variable()] = true
		rename[v] = formula.Formula{formula.Metavar(h.Variable())}
		chosen = append(chosen, h)
	}

	slices.SortFunc(chosen, func(a, b database.Hypothesis) int {
		return declIdx[a.Label] - declIdx[b.Label]
	})
	return rename, chosen, nil
}

// typecodeOf finds the typecode the owner's frame (or the outer scope)
// assigns to the variable.
func (m *materializer) typecodeOf(v string) (string, error) {
	for _, h := range m.owner.Hyps {
		if h.Kind == database.HypFloating && h.Variable() == v {
			return h.Expr[0].Name, nil
		}
	}
	for _, h := range m.db.OuterFloats() {
		if h.Variable() == v {
			return h.Expr[0].Name, nil
		}
	}
	return "", fmt.Errorf("%w: variable %s has no typing hypothesis", ErrInvalidCandidate, v)
}

// emit re-emits the cone as an RPN label sequence: boundary float positions
// become outer $f citations of the renamed variable, boundary essential
// positions become the new hypothesis labels, and interior steps keep their
// cited labels in the original relative order.
func (m *materializer) emit(exit int, rename formula.Subst, essLabels map[string]string) ([]string, error) {
	var out []string
	var walk func(i int) error
	walk = func(i int) error {
		step := m.steps[i]
		cited, err := m.db.Get(step.Label)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidCandidate, err)
		}
		for k, arg := range step.Args {
			if m.included[arg] && !m.steps[arg].Hyp {
				if err := walk(arg); err != nil {
					return err
				}
				continue
			}
			entry := m.steps[arg]
			switch cited.Hyps[k].Kind {
			case database.HypFloating:
				label, err := m.floatLabel(entry.Expr[1].Name, rename)
				if err != nil {
					return err
				}
				out = append(out, label)
			case database.HypEssential:
				out = append(out, essLabels[entry.Expr.String()])
			}
		}
		out = append(out, step.Label)
		return nil
	}
	if err := walk(exit); err != nil {
		return nil, err
	}
	return out, nil
}

// floatLabel resolves the outer $f label of the renamed variable.
func (m *materializer) floatLabel(v string, rename formula.Subst) (string, error) {
	renamed, ok := rename[v]
	if !ok || len(renamed) != 1 {
		return "", fmt.Errorf("%w: variable %s missing from rename map", ErrInvalidCandidate, v)
	}
	for _, h := range m.db.OuterFloats() {
		if h.Variable() == renamed[0].Name {
			return h.Label, nil
		}
	}
	return "", fmt.Errorf("%w: no outer hypothesis types %s", ErrInvalidCandidate, renamed[0].Name)
}

// disjoint derives the new theorem's $d constraints: every constraint of a
// cited assertion inside the cone, mapped through that step's substitution and
// the rename, contributes its variable pairs.
func (m *materializer) disjoint(rename formula.Subst) [][2]string {
	var out [][2]string
	for i := range m.included {
		step := m.steps[i]
		if step.Hyp {
			continue
		}
		cited, err := m.db.Get(step.Label)
		if err != nil {
			continue
		}
		for _, pair := range cited.Disjoint {
			fx, okx := step.Subst[pair[0]]
			fy, oky := step.Subst[pair[1]]
			if !okx || !oky {
				continue
			}
			for _, vx := range fx.Vars() {
				for _, vy := range fy.Vars() {
					rx, okx := rename[vx]
					ry, oky := rename[vy]
					if !okx || !oky || len(rx) != 1 || len(ry) != 1 {
						continue
					}
					x, y := rx[0].Name, ry[0].Name
					if x == y {
						continue
					}
					if x > y {
						x, y = y, x
					}
					p := [2]string{x, y}
					if !slices.Contains(out, p) {
						out = append(out, p)
					}
				}
			}
		}
	}
	slices.SortFunc(out, func(a, b [2]string) int {
		if a[0] != b[0] {
			return strings.Compare(a[0], b[0])
		}
		return strings.Compare(a[1], b[1])
	})
	return out
}
