// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package database holds the parsed proof database: an ordered, append-only
// store of assertions (axioms and theorems) with their hypotheses,
// disjoint-variable constraints, and proofs. Definitional ordering is the
// central soundness invariant: a proof may only cite labels defined strictly
// earlier, so no circular justification is possible.
package database

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"sync"

	"github.com/pdiddy/theorem-miner/internal/formula"
)

var (
	// ErrUnknownLabel is returned by Get for labels not in the database.
	ErrUnknownLabel = errors.New("unknown label")

	// ErrDuplicateLabel is returned by Append when the label is taken.
	ErrDuplicateLabel = errors.New("duplicate label")

	// ErrForwardReference is returned by Append when a proof cites a label
	// that is not defined strictly earlier in definition order.
	ErrForwardReference = errors.New("forward reference in proof")

	// ErrParse is the sentinel wrapped by all parse failures.
	ErrParse = errors.New("parse error")
)

// HypKind distinguishes floating (variable-typing) from essential
// (logical premise) hypotheses.
type HypKind int

const (
	HypFloating HypKind = iota
	HypEssential
)

// Hypothesis is a labeled hypothesis formula. Floating hypotheses have the
// two-symbol form "typecode metavariable".
type Hypothesis struct {
	Label string
	Kind  HypKind
	Expr  formula.Formula
}

// Variable returns the metavariable a floating hypothesis types.
func (h Hypothesis) Variable() string {
	if h.Kind != HypFloating || len(h.Expr) != 2 {
		return ""
	}
	return h.Expr[1].Name
}

// Kind distinguishes axioms from theorems.
type Kind int

const (
	KindAxiom Kind = iota
	KindTheorem
)

// Assertion is an axiom or theorem: a statement schema, its mandatory
// hypotheses (floating first, then essential, in frame order), its
// disjoint-variable constraints, and for theorems an RPN proof. Assertions
// are value objects; once appended they are never mutated in place.
type Assertion struct {
	Label     string
	Kind      Kind
	Seq       int
	Statement formula.Formula
	Hyps      []Hypothesis
	Disjoint  [][2]string
	Proof     []string
}

// Floating returns the floating hypotheses in mandatory order.
func (a *Assertion) Floating() []Hypothesis {
	var out []Hypothesis
	for _, h := range a.Hyps {
		if h.Kind == HypFloating {
			out = append(out, h)
		}
	}
	return out
}

// Essential returns the essential hypotheses in mandatory order.
func (a *Assertion) Essential() []Hypothesis {
	var out []Hypothesis
	for _, h := range a.Hyps {
		if h.Kind == HypEssential {
			out = append(out, h)
		}
	}
	return out
}

// Hyp looks up one of the assertion's own hypotheses by label.
func (a *Assertion) Hyp(label string) (Hypothesis, bool) {
	for _, h := range a.Hyps {
		if h.Label == label {
			return h, true
		}
	}
	return Hypothesis{}, false
}

// DisjointPair reports whether the two metavariables are constrained
// disjoint by this assertion.
func (a *Assertion) DisjointPair(x, y string) bool {
	if x > y {
		x, y = y, x
	}
	for _, p := range a.Disjoint {
		if p[0] == x && p[1] == y {
			return true
		}
	}
	return false
}

// WithProof returns a copy of the assertion carrying a different proof.
func (a *Assertion) WithProof(proof []string) *Assertion {
	b := *a
	b.Proof = slices.Clone(proof)
	return &b
}

// Database is the ordered label -> assertion store. Append, InsertBefore, and
// ReplaceProof are the only mutations; they take the write lock, and all
// accessors take the read lock, so concurrent workers may read while a rewrite
// lands. Assertions themselves are immutable values and safe to use after the
// lock is released.
type Database struct {
	mu sync.RWMutex

	asserts map[string]*Assertion
	order   []*Assertion
	hyps    map[string]Hypothesis

	constOrder []string
	consts     map[string]bool
	varOrder   []string
	vars       map[string]bool

	floatOrder []Hypothesis
	outerFloat map[string]bool
}

// New returns an empty database.
func New() *Database {
	return &Database{
		asserts:    make(map[string]*Assertion),
		hyps:       make(map[string]Hypothesis),
		consts:     make(map[string]bool),
		vars:       make(map[string]bool),
		outerFloat: make(map[string]bool),
	}
}

// Len returns the number of assertions.
func (db *Database) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.order)
}

// Get returns the assertion with the given label.
func (db *Database) Get(label string) (*Assertion, error) {
	db.mu.RLock()
	a, ok := db.asserts[label]
	db.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLabel, label)
	}
	return a, nil
}

// Has reports whether the label names an assertion.
func (db *Database) Has(label string) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	_, ok := db.asserts[label]
	return ok
}

// Assertions returns a snapshot of the assertions in definition order.
func (db *Database) Assertions() []*Assertion {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return slices.Clone(db.order)
}

// Theorems returns a snapshot of the assertions that carry proofs.
func (db *Database) Theorems() []*Assertion {
	db.mu.RLock()
	defer db.mu.RUnlock()
	var out []*Assertion
	for _, a := range db.order {
		if a.Kind == KindTheorem {
			out = append(out, a)
		}
	}
	return out
}

// ProofsCiting returns a restartable sequence of the theorems whose proofs
// cite the given label, in definition order. The sequence iterates a snapshot
// taken at call time.
func (db *Database) ProofsCiting(label string) iter.Seq[*Assertion] {
	snapshot := db.Theorems()
	return func(yield func(*Assertion) bool) {
		for _, a := range snapshot {
			if slices.Contains(a.Proof, label) {
				if !yield(a) {
					return
				}
			}
		}
	}
}

// ResolveHyp resolves a proof label to a hypothesis, checking the owning
// assertion's hypotheses first and then the database-wide hypothesis scope.
func (db *Database) ResolveHyp(owner *Assertion, label string) (Hypothesis, bool) {
	if owner != nil {
		if h, ok := owner.Hyp(label); ok {
			return h, true
		}
	}
	db.mu.RLock()
	defer db.mu.RUnlock()
	h, ok := db.hyps[label]
	return h, ok
}

// IsVar reports whether the name is a declared metavariable.
func (db *Database) IsVar(name string) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.vars[name]
}

// OuterFloats returns the outer-scope floating hypotheses in declaration
// order. They form the variable alphabet extracted theorems are renamed into.
func (db *Database) OuterFloats() []Hypothesis {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return slices.Clone(db.floatOrder)
}

// Append adds an assertion at the end of the definition order. It fails with
// ErrDuplicateLabel if the label (or a new hypothesis label) is taken, and
// with ErrForwardReference if the proof cites a label that is neither one of
// the assertion's own hypotheses nor already defined.
func (db *Database) Append(a *Assertion) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.checkLabels(a); err != nil {
		return err
	}
	for _, label := range a.Proof {
		if _, ok := a.Hyp(label); ok {
			continue
		}
		if _, ok := db.asserts[label]; ok {
			continue
		}
		if _, ok := db.hyps[label]; ok {
			continue
		}
		return fmt.Errorf("%w: %s cites %s", ErrForwardReference, a.Label, label)
	}

	b := *a
	b.Seq = len(db.order)
	for _, h := range b.Hyps {
		if _, ok := db.hyps[h.Label]; !ok {
			db.hyps[h.Label] = h
		}
	}
	db.asserts[b.Label] = &b
	db.order = append(db.order, &b)
	return nil
}

// checkLabels rejects label collisions for the assertion and its hypotheses.
// Shared outer-scope hypotheses are fine; a clash with a different expression
// is not. Callers hold the mutex.
func (db *Database) checkLabels(a *Assertion) error {
	if _, ok := db.asserts[a.Label]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateLabel, a.Label)
	}
	if _, ok := db.hyps[a.Label]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateLabel, a.Label)
	}
	for _, h := range a.Hyps {
		if existing, ok := db.hyps[h.Label]; ok {
			if existing.Kind != h.Kind || !existing.Expr.Equal(h.Expr) {
				return fmt.Errorf("%w: hypothesis %s", ErrDuplicateLabel, h.Label)
			}
			continue
		}
		if _, ok := db.asserts[h.Label]; ok {
			return fmt.Errorf("%w: hypothesis %s", ErrDuplicateLabel, h.Label)
		}
	}
	return nil
}

// InsertBefore adds an assertion immediately before an existing one in the
// definition order, renumbering everything after it. The inserted proof may
// only cite labels defined strictly before the insertion point, so proofs at
// or after it may legally cite the new assertion.
func (db *Database) InsertBefore(a *Assertion, before string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	anchor, ok := db.asserts[before]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownLabel, before)
	}
	if err := db.checkLabels(a); err != nil {
		return err
	}
	for _, label := range a.Proof {
		if _, ok := a.Hyp(label); ok {
			continue
		}
		if c, ok := db.asserts[label]; ok {
			if c.Seq >= anchor.Seq {
				return fmt.Errorf("%w: %s cites %s", ErrForwardReference, a.Label, label)
			}
			continue
		}
		if _, ok := db.hyps[label]; ok {
			continue
		}
		return fmt.Errorf("%w: %s cites %s", ErrForwardReference, a.Label, label)
	}

	b := *a
	b.Seq = anchor.Seq
	for _, h := range b.Hyps {
		if _, ok := db.hyps[h.Label]; !ok {
			db.hyps[h.Label] = h
		}
	}
	db.asserts[b.Label] = &b
	db.order = slices.Insert(db.order, anchor.Seq, &b)
	for i := b.Seq + 1; i < len(db.order); i++ {
		db.order[i].Seq = i
	}
	return nil
}

// ReplaceProof atomically swaps in a new proof for an existing theorem. The
// caller is responsible for verifying the proof first; ReplaceProof only
// re-checks the definitional-order invariant.
func (db *Database) ReplaceProof(label string, proof []string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	a, ok := db.asserts[label]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownLabel, label)
	}
	for _, cited := range proof {
		if _, ok := a.Hyp(cited); ok {
			continue
		}
		if c, ok := db.asserts[cited]; ok {
			if c.Seq >= a.Seq {
				return fmt.Errorf("%w: %s cites %s", ErrForwardReference, label, cited)
			}
			continue
		}
		if _, ok := db.hyps[cited]; ok {
			continue
		}
		return fmt.Errorf("%w: %s cites %s", ErrForwardReference, label, cited)
	}

	b := a.WithProof(proof)
	db.asserts[label] = b
	db.order[a.Seq] = b
	return nil
}

func (db *Database) declareConst(name string) error {
	if db.consts[name] || db.vars[name] {
		return fmt.Errorf("%w: symbol %s already declared", ErrParse, name)
	}
	db.consts[name] = true
	db.constOrder = append(db.constOrder, name)
	return nil
}

func (db *Database) declareVar(name string) error {
	if db.consts[name] {
		return fmt.Errorf("%w: symbol %s already declared as constant", ErrParse, name)
	}
	if !db.vars[name] {
		db.vars[name] = true
		db.varOrder = append(db.varOrder, name)
	}
	return nil
}

func (db *Database) registerHyp(h Hypothesis, outer bool) error {
	if _, ok := db.hyps[h.Label]; ok {
		return fmt.Errorf("%w: hypothesis label %s already defined", ErrParse, h.Label)
	}
	if _, ok := db.asserts[h.Label]; ok {
		return fmt.Errorf("%w: hypothesis label %s already defined", ErrParse, h.Label)
	}
	db.hyps[h.Label] = h
	if outer && h.Kind == HypFloating {
		db.floatOrder = append(db.floatOrder, h)
		db.outerFloat[h.Label] = true
	}
	return nil
}

// IsOuterFloat reports whether the label is an outer-scope floating
// hypothesis.
func (db *Database) IsOuterFloat(label string) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.outerFloat[label]
}
