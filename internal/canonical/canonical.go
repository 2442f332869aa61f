// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package canonical computes alpha-equivalence keys for assertions: two
// assertions that differ only by a renaming of metavariables canonicalize to
// the same form. The dedup index maps canonical keys to the first assertion
// seen with that form, so re-derivations of existing statements are dropped
// instead of accepted twice.
package canonical

import (
	"fmt"
	"strings"

	"github.com/pdiddy/theorem-miner/internal/database"
	"github.com/pdiddy/theorem-miner/internal/formula"
)

// Form is the canonical rendering of an assertion: its statement and
// hypotheses with metavariables replaced by ?0, ?1, ... in first-occurrence
// order, statement first, then hypotheses in mandatory order.
type Form struct {
	Statement string
	Hyps      []string
}

// Key is the single-string dedup key of the form.
func (f Form) Key() string {
	if len(f.Hyps) == 0 {
		return f.Statement
	}
	return f.Statement + " <= " + strings.Join(f.Hyps, " & ")
}

// Canonicalize computes the assertion's canonical form. The proof does not
// participate: two derivations of the same statement schema from the same
// hypotheses are the same theorem.
func Canonicalize(a *database.Assertion) Form {
	names := make(map[string]string)
	rename := func(f formula.Formula) string {
		parts := make([]string, len(f))
		for i, s := range f {
			if !s.Var {
				parts[i] = s.Name
				continue
			}
			c, ok := names[s.Name]
			if !ok {
				c = fmt.Sprintf("?%d", len(names))
				names[s.Name] = c
			}
			parts[i] = c
		}
		return strings.Join(parts, " ")
	}

	form := Form{Statement: rename(a.Statement)}
	for _, h := range a.Hyps {
		form.Hyps = append(form.Hyps, rename(h.Expr))
	}
	return form
}

// Index is the first-seen-wins dedup index over canonical keys.
type Index struct {
	byKey map[string]string // canonical key -> label of first holder
}

// NewIndex builds an index seeded with every assertion already in the
// database, so candidates duplicating existing axioms or theorems are
// rejected too.
func NewIndex(db *database.Database) *Index {
	ix := &Index{byKey: make(map[string]string, db.Len())}
	for _, a := range db.Assertions() {
		key := Canonicalize(a).Key()
		if _, ok := ix.byKey[key]; !ok {
			ix.byKey[key] = a.Label
		}
	}
	return ix
}

// Insert records the assertion unless an alpha-equivalent one is already
// present. It returns the label that holds the canonical form and whether the
// assertion was inserted as new.
func (ix *Index) Insert(a *database.Assertion) (string, bool) {
	key := Canonicalize(a).Key()
	if holder, ok := ix.byKey[key]; ok {
		return holder, false
	}
	ix.byKey[key] = a.Label
	return a.Label, true
}

// Lookup returns the label holding the assertion's canonical form, if any.
func (ix *Index) Lookup(a *database.Assertion) (string, bool) {
	holder, ok := ix.byKey[Canonicalize(a).Key()]
	return holder, ok
}
