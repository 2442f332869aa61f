// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package database

import (
	"fmt"
	"io"
	"strings"
)

// Export writes the database back out in Metamath source format: constant
// and variable declarations, the outer-scope floating hypotheses, then every
// assertion in definition order. Assertions with essential hypotheses or
// disjoint constraints are wrapped in their own ${ $} scope so the output
// re-parses to an equivalent database.
func Export(db *Database, w io.Writer) error {
	if len(db.constOrder) > 0 {
		if _, err := fmt.Fprintf(w, "$c %s $.\n", strings.Join(db.constOrder, " ")); err != nil {
			return err
		}
	}
	if len(db.varOrder) > 0 {
		if _, err := fmt.Fprintf(w, "$v %s $.\n", strings.Join(db.varOrder, " ")); err != nil {
			return err
		}
	}
	for _, h := range db.floatOrder {
		if _, err := fmt.Fprintf(w, "%s $f %s $.\n", h.Label, h.Expr.String()); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}

	for _, a := range db.order {
		if err := exportAssertion(db, a, w); err != nil {
			return fmt.Errorf("exporting %s: %w", a.Label, err)
		}
	}
	return nil
}

func exportAssertion(db *Database, a *Assertion, w io.Writer) error {
	keyword := "$a"
	if a.Kind == KindTheorem {
		keyword = "$p"
	}

	var local []Hypothesis
	for _, h := range a.Hyps {
		if h.Kind == HypEssential || !db.outerFloat[h.Label] {
			local = append(local, h)
		}
	}

	stmt := a.Label + " " + keyword + " " + a.Statement.String()
	if a.Kind == KindTheorem {
		stmt += " $= " + strings.Join(a.Proof, " ")
	}
	stmt += " $."

	if len(local) == 0 && len(a.Disjoint) == 0 {
		_, err := fmt.Fprintln(w, stmt)
		return err
	}

	if _, err := fmt.Fprintln(w, "${"); err != nil {
		return err
	}
	for _, pair := range a.Disjoint {
		if _, err := fmt.Fprintf(w, "  $d %s %s $.\n", pair[0], pair[1]); err != nil {
			return err
		}
	}
	for _, h := range local {
		kw := "$e"
		if h.Kind == HypFloating {
			kw = "$f"
		}
		if _, err := fmt.Fprintf(w, "  %s %s %s $.\n", h.Label, kw, h.Expr.String()); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "  %s\n", stmt); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, "$}")
	return err
}
