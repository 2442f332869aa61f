// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package canonical

import (
	"strings"
	"testing"

	"github.com/pdiddy/theorem-miner/internal/database"
	"github.com/pdiddy/theorem-miner/internal/formula"
)

const fixture = `
$c wff |- > & $.
$v p q r $.
wp $f wff p $.
wq $f wff q $.
wr $f wff r $.
wim $a wff > p q $.
wan $a wff & p q $.
${
  mp.1 $e |- p $.
  mp.2 $e |- > p q $.
  ax-mp $a |- q $.
$}
`

func parse(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.Parse(strings.NewReader(fixture))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return db
}

func hyp(label string, kind database.HypKind, syms ...formula.Symbol) database.Hypothesis {
	return database.Hypothesis{Label: label, Kind: kind, Expr: formula.Formula(syms)}
}

func TestCanonicalizeRenamesInOrder(t *testing.T) {
	db := parse(t)
	mp, _ := db.Get("ax-mp")

	form := Canonicalize(mp)
	if form.Statement != "|- ?0" {
		t.Errorf("statement = %q, want \"|- ?0\"", form.Statement)
	}
	want := []string{"wff ?1", "wff ?0", "|- ?1", "|- > ?1 ?0"}
	if len(form.Hyps) != len(want) {
		t.Fatalf("hyps = %v, want %v", form.Hyps, want)
	}
	for i := range want {
		if form.Hyps[i] != want[i] {
			t.Errorf("hyp %d = %q, want %q", i, form.Hyps[i], want[i])
		}
	}
}

func TestAlphaEquivalence(t *testing.T) {
	db := parse(t)
	mp, _ := db.Get("ax-mp")

	// Rename p -> r, q -> p throughout: the canonical key must not change.
	clone := &database.Assertion{
		Label:     "mp-clone",
		Kind:      database.KindTheorem,
		Statement: formula.Formula{formula.Const("|-"), formula.Metavar("p")},
		Hyps: []database.Hypothesis{
			hyp("wr", database.HypFloating, formula.Const("wff"), formula.Metavar("r")),
			hyp("wp", database.HypFloating, formula.Const("wff"), formula.Metavar("p")),
			hyp("c.1", database.HypEssential, formula.Const("|-"), formula.Metavar("r")),
			hyp("c.2", database.HypEssential, formula.Const("|-"), formula.Const(">"), formula.Metavar("r"), formula.Metavar("p")),
		},
	}

	if Canonicalize(mp).Key() != Canonicalize(clone).Key() {
		t.Errorf("keys differ:\n%s\n%s", Canonicalize(mp).Key(), Canonicalize(clone).Key())
	}

	// A genuinely different schema must not collide.
	other := &database.Assertion{
		Label:     "other",
		Kind:      database.KindTheorem,
		Statement: formula.Formula{formula.Const("|-"), formula.Const(">"), formula.Metavar("p"), formula.Metavar("p")},
	}
	if Canonicalize(mp).Key() == Canonicalize(other).Key() {
		t.Error("distinct schemas collided")
	}
}

func TestCanonicalizeIgnoresProof(t *testing.T) {
	db := parse(t)
	mp, _ := db.Get("ax-mp")

	with := mp.WithProof([]string{"wp", "wq"})
	if Canonicalize(mp).Key() != Canonicalize(with).Key() {
		t.Error("proof participated in the canonical key")
	}
}

func TestIndexFirstSeenWins(t *testing.T) {
	db := parse(t)
	ix := NewIndex(db)

	clone := &database.Assertion{
		Label:     "mp-clone",
		Kind:      database.KindTheorem,
		Statement: formula.Formula{formula.Const("|-"), formula.Metavar("q")},
		Hyps: []database.Hypothesis{
			hyp("wp", database.HypFloating, formula.Const("wff"), formula.Metavar("p")),
			hyp("wq", database.HypFloating, formula.Const("wff"), formula.Metavar("q")),
			hyp("c.1", database.HypEssential, formula.Const("|-"), formula.Metavar("p")),
			hyp("c.2", database.HypEssential, formula.Const("|-"), formula.Const(">"), formula.Metavar("p"), formula.Metavar("q")),
		},
	}

	holder, fresh := ix.Insert(clone)
	if fresh || holder != "ax-mp" {
		t.Errorf("Insert(clone) = %q, %v; want ax-mp, false", holder, fresh)
	}

	novel := &database.Assertion{
		Label:     "novel",
		Kind:      database.KindTheorem,
		Statement: formula.Formula{formula.Const("|-"), formula.Const("&"), formula.Metavar("p"), formula.Metavar("q")},
	}
	holder, fresh = ix.Insert(novel)
	if !fresh || holder != "novel" {
		t.Errorf("Insert(novel) = %q, %v; want novel, true", holder, fresh)
	}

	// Second insertion of an equivalent form defers to the first.
	holder, fresh = ix.Insert(novel)
	if fresh || holder != "novel" {
		t.Errorf("re-Insert = %q, %v; want novel, false", holder, fresh)
	}

	if holder, ok := ix.Lookup(clone); !ok || holder != "ax-mp" {
		t.Errorf("Lookup(clone) = %q, %v", holder, ok)
	}
}
