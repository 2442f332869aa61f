// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package formula implements the symbolic expression model: typed symbols,
// formulas as ordered symbol sequences, and substitution of metavariables.
// Formulas are value objects; every operation returns a new Formula and never
// mutates its inputs.
package formula

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnboundVariable is returned when a substitution is missing a
	// metavariable required by the formula it is applied to.
	ErrUnboundVariable = errors.New("unbound metavariable")

	// ErrNoUnifier is returned when a pattern cannot be unified with a
	// concrete formula.
	ErrNoUnifier = errors.New("formulas do not unify")
)

// Symbol is a constant or a metavariable, identified by name within the
// database's fixed alphabet.
type Symbol struct {
	Name string
	Var  bool
}

// Formula is an ordered sequence of symbols. The first symbol of a statement
// is its typecode constant.
type Formula []Symbol

// Const returns a constant symbol.
func Const(name string) Symbol { return Symbol{Name: name} }

// Metavar returns a metavariable symbol.
func Metavar(name string) Symbol { return Symbol{Name: name, Var: true} }

// Equal reports structural equality: same length, same symbols in order.
func (f Formula) Equal(g Formula) bool {
	if len(f) != len(g) {
		return false
	}
	for i := range f {
		if f[i] != g[i] {
			return false
		}
	}
	return true
}

// String renders the formula as space-separated symbol names.
func (f Formula) String() string {
	var b strings.Builder
	for i, s := range f {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s.Name)
	}
	return b.String()
}

// Vars returns the distinct metavariable names in first-occurrence order.
func (f Formula) Vars() []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range f {
		if s.Var && !seen[s.Name] {
			seen[s.Name] = true
			out = append(out, s.Name)
		}
	}
	return out
}

// HasVar reports whether the metavariable name occurs in the formula.
func (f Formula) HasVar(name string) bool {
	for _, s := range f {
		if s.Var && s.Name == name {
			return true
		}
	}
	return false
}

// Clone returns an independent copy of the formula.
func (f Formula) Clone() Formula {
	out := make(Formula, len(f))
	copy(out, f)
	return out
}

// Subst maps metavariable names to the formulas that replace them. Bindings
// exclude the typecode of the expression they were taken from.
type Subst map[string]Formula

// Clone returns an independent copy of the substitution. Bound formulas are
// shared; they are immutable by convention.
func (s Subst) Clone() Subst {
	out := make(Subst, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Apply replaces every metavariable in f with its binding in s, producing a
// new formula. It fails with ErrUnboundVariable if f contains a metavariable
// absent from s.
func Apply(s Subst, f Formula) (Formula, error) {
	out := make(Formula, 0, len(f))
	for _, sym := range f {
		if !sym.Var {
			out = append(out, sym)
			continue
		}
		bound, ok := s[sym.Name]
		if !ok {
			return nil, fmt.Errorf("applying substitution to %q: %w: %s", f.String(), ErrUnboundVariable, sym.Name)
		}
		out = append(out, bound...)
	}
	return out, nil
}

// SharedVars reports whether any metavariable occurs in both formulas. It is
// the disjointness test the verifier runs on substituted formula pairs.
func SharedVars(f, g Formula) (string, bool) {
	inF := make(map[string]bool)
	for _, s := range f {
		if s.Var {
			inF[s.Name] = true
		}
	}
	for _, s := range g {
		if s.Var && inF[s.Name] {
			return s.Name, true
		}
	}
	return "", false
}

// Unify finds a substitution s such that Apply(s, pattern) equals concrete.
// Metavariables bind to non-empty symbol subsequences; the search backtracks
// and prefers the shortest binding, so the result is deterministic. Unify is
// used by candidate search and the refactoring engine to propose
// substitutions; the verifier itself only ever checks structural equality.
func Unify(pattern, concrete Formula) (Subst, error) {
	s := make(Subst)
	if !unify(s, pattern, concrete) {
		return nil, fmt.Errorf("unifying %q with %q: %w", pattern.String(), concrete.String(), ErrNoUnifier)
	}
	return s, nil
}

// UnifyInto extends s so that Apply(s, pattern) equals concrete, keeping all
// existing bindings. s is left unchanged on failure.
func UnifyInto(s Subst, pattern, concrete Formula) error {
	trial := s.Clone()
	if !unify(trial, pattern, concrete) {
		return fmt.Errorf("unifying %q with %q: %w", pattern.String(), concrete.String(), ErrNoUnifier)
	}
	for k, v := range trial {
		s[k] = v
	}
	return nil
}

func unify(s Subst, pattern, concrete Formula) bool {
	if len(pattern) == 0 {
		return len(concrete) == 0
	}
	head := pattern[0]
	if !head.Var {
		if len(concrete) == 0 || concrete[0] != head {
			return false
		}
		return unify(s, pattern[1:], concrete[1:])
	}
	if bound, ok := s[head.Name]; ok {
		if len(concrete) < len(bound) || !concrete[:len(bound)].Equal(bound) {
			return false
		}
		return unify(s, pattern[1:], concrete[len(bound):])
	}
	// The rest of the pattern needs at least one symbol per remaining
	// pattern position, which bounds the binding length.
	max := len(concrete) - minWidth(pattern[1:])
	for n := 1; n <= max; n++ {
		s[head.Name] = concrete[:n].Clone()
		if unify(s, pattern[1:], concrete[n:]) {
			return true
		}
		delete(s, head.Name)
	}
	return false
}

// minWidth is the minimum number of concrete symbols the pattern can match.
func minWidth(pattern Formula) int {
	return len(pattern)
}
