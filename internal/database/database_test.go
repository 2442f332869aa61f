// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package database

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/pdiddy/theorem-miner/internal/formula"
)

// fixture is a small propositional system with implication and conjunction.
// t2 derives "|- & r p" through a two-step modus ponens chain; t3 carries a
// compressed proof.
const fixture = `
$( propositional fragment $)
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
${
  aj.1 $e |- p $.
  aj.2 $e |- q $.
  ax-conj $a |- & p q $.
$}
${
  t1.1 $e |- p $.
  t1.2 $e |- > p q $.
  t1 $p |- & q p $= wq wp wp wq t1.1 t1.2 ax-mp t1.1 ax-conj $.
$}
${
  t2.1 $e |- p $.
  t2.2 $e |- > p q $.
  t2.3 $e |- > q r $.
  t2 $p |- & r p $= wr wp wq wr wp wq t2.1 t2.2 ax-mp t2.3 ax-mp t2.1 ax-conj $.
$}
t3 $p wff & p p $= ( wan ) AZCB $.
`

func parseFixture(t *testing.T) *Database {
	t.Helper()
	db, err := Parse(strings.NewReader(fixture))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return db
}

func TestParseFixture(t *testing.T) {
	db := parseFixture(t)

	if db.Len() != 7 {
		t.Fatalf("Len() = %d, want 7", db.Len())
	}
	if got := len(db.Theorems()); got != 3 {
		t.Errorf("theorems = %d, want 3", got)
	}

	t2, err := db.Get("t2")
	if err != nil {
		t.Fatalf("Get(t2): %v", err)
	}
	if t2.Kind != KindTheorem {
		t.Error("t2 should be a theorem")
	}
	if got := t2.Statement.String(); got != "|- & r p" {
		t.Errorf("t2 statement = %q", got)
	}

	// Mandatory order: floating hypotheses in declaration order, then
	// essential hypotheses in frame order.
	var labels []string
	for _, h := range t2.Hyps {
		labels = append(labels, h.Label)
	}
	want := []string{"wp", "wq", "wr", "t2.1", "t2.2", "t2.3"}
	if len(labels) != len(want) {
		t.Fatalf("t2 hyps = %v, want %v", labels, want)
	}
	for i := range want {
		if labels[i] != want[i] {
			t.Fatalf("t2 hyps = %v, want %v", labels, want)
		}
	}
}

func TestParseVariablesMarked(t *testing.T) {
	db := parseFixture(t)

	wim, err := db.Get("wim")
	if err != nil {
		t.Fatal(err)
	}
	// "wff > p q": > is a constant, p and q are metavariables.
	if wim.Statement[1].Var {
		t.Error("> should be a constant")
	}
	if !wim.Statement[2].Var || !wim.Statement[3].Var {
		t.Error("p and q should be metavariables")
	}
	if !db.IsVar("p") || db.IsVar(">") {
		t.Error("IsVar misreported")
	}
}

func TestDecompress(t *testing.T) {
	db := parseFixture(t)

	t3, err := db.Get("t3")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"wp", "wp", "wan"}
	if len(t3.Proof) != len(want) {
		t.Fatalf("t3 proof = %v, want %v", t3.Proof, want)
	}
	for i := range want {
		if t3.Proof[i] != want[i] {
			t.Fatalf("t3 proof = %v, want %v", t3.Proof, want)
		}
	}
}

func TestOuterFloats(t *testing.T) {
	db := parseFixture(t)

	outer := db.OuterFloats()
	if len(outer) != 3 {
		t.Fatalf("outer floats = %d, want 3", len(outer))
	}
	for i, want := range []string{"p", "q", "r"} {
		if outer[i].Variable() != want {
			t.Errorf("outer[%d] types %q, want %q", i, outer[i].Variable(), want)
		}
	}
	if !db.IsOuterFloat("wp") || db.IsOuterFloat("t2.1") {
		t.Error("IsOuterFloat misreported")
	}
}

func TestAppendErrors(t *testing.T) {
	db := parseFixture(t)

	dup := &Assertion{Label: "t1", Kind: KindAxiom, Statement: formula.Formula{formula.Const("|-")}}
	if err := db.Append(dup); !errors.Is(err, ErrDuplicateLabel) {
		t.Errorf("duplicate append: %v, want ErrDuplicateLabel", err)
	}

	forward := &Assertion{
		Label:     "bad",
		Kind:      KindTheorem,
		Statement: formula.Formula{formula.Const("|-")},
		Proof:     []string{"nonexistent"},
	}
	if err := db.Append(forward); !errors.Is(err, ErrForwardReference) {
		t.Errorf("forward append: %v, want ErrForwardReference", err)
	}
}

func TestInsertBefore(t *testing.T) {
	db := parseFixture(t)

	t2, _ := db.Get("t2")
	oldSeq := t2.Seq

	mid := &Assertion{
		Label:     "lemma",
		Kind:      KindTheorem,
		Statement: formula.Formula{formula.Const("wff"), formula.Const("&"), formula.Metavar("p"), formula.Metavar("p")},
		Hyps:      []Hypothesis{mustHyp(t, db, "wp")},
		Proof:     []string{"wp", "wp", "wan"},
	}
	if err := db.InsertBefore(mid, "t2"); err != nil {
		t.Fatalf("InsertBefore: %v", err)
	}

	lemma, err := db.Get("lemma")
	if err != nil {
		t.Fatal(err)
	}
	if lemma.Seq != oldSeq {
		t.Errorf("lemma.Seq = %d, want %d", lemma.Seq, oldSeq)
	}
	t2after, _ := db.Get("t2")
	if t2after.Seq != oldSeq+1 {
		t.Errorf("t2.Seq = %d, want %d", t2after.Seq, oldSeq+1)
	}

	// Order stays consistent with Seq.
	for i, a := range db.Assertions() {
		if a.Seq != i {
			t.Fatalf("assertion %s has Seq %d at position %d", a.Label, a.Seq, i)
		}
	}
}

func TestInsertBeforeForwardReference(t *testing.T) {
	db := parseFixture(t)

	bad := &Assertion{
		Label:     "bad",
		Kind:      KindTheorem,
		Statement: formula.Formula{formula.Const("|-")},
		Proof:     []string{"t2"},
	}
	if err := db.InsertBefore(bad, "t2"); !errors.Is(err, ErrForwardReference) {
		t.Errorf("InsertBefore: %v, want ErrForwardReference", err)
	}
}

func TestReplaceProof(t *testing.T) {
	db := parseFixture(t)

	t1, _ := db.Get("t1")
	oldProof := t1.Proof

	if err := db.ReplaceProof("t1", []string{"wp", "wp", "wan"}); err != nil {
		t.Fatalf("ReplaceProof: %v", err)
	}
	// The old assertion value is untouched.
	if len(t1.Proof) != len(oldProof) {
		t.Error("ReplaceProof mutated the original assertion")
	}

	if err := db.ReplaceProof("t1", []string{"t2"}); !errors.Is(err, ErrForwardReference) {
		t.Errorf("ReplaceProof citing later label: %v, want ErrForwardReference", err)
	}
	if err := db.ReplaceProof("nope", nil); !errors.Is(err, ErrUnknownLabel) {
		t.Errorf("ReplaceProof on unknown label: %v, want ErrUnknownLabel", err)
	}
}

func TestProofsCiting(t *testing.T) {
	db := parseFixture(t)

	var citing []string
	for a := range db.ProofsCiting("ax-conj") {
		citing = append(citing, a.Label)
	}
	if len(citing) != 2 || citing[0] != "t1" || citing[1] != "t2" {
		t.Errorf("ProofsCiting(ax-conj) = %v, want [t1 t2]", citing)
	}
}

func TestExportRoundTrip(t *testing.T) {
	db := parseFixture(t)

	var buf bytes.Buffer
	if err := Export(db, &buf); err != nil {
		t.Fatalf("Export: %v", err)
	}

	back, err := Parse(&buf)
	if err != nil {
		t.Fatalf("re-Parse: %v\n%s", err, buf.String())
	}
	if back.Len() != db.Len() {
		t.Fatalf("round trip lost assertions: %d != %d", back.Len(), db.Len())
	}
	for _, a := range db.Assertions() {
		b, err := back.Get(a.Label)
		if err != nil {
			t.Fatalf("round trip lost %s", a.Label)
		}
		if !b.Statement.Equal(a.Statement) {
			t.Errorf("%s statement changed: %q != %q", a.Label, b.Statement, a.Statement)
		}
		if len(b.Hyps) != len(a.Hyps) {
			t.Errorf("%s hypothesis count changed: %d != %d", a.Label, len(b.Hyps), len(a.Hyps))
		}
		if len(b.Proof) != len(a.Proof) {
			t.Errorf("%s proof length changed", a.Label)
		}
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
	}{
		{"unterminated comment", "$( no closing"},
		{"inclusion", "$[ other.mm $]"},
		{"unmatched close", "$}"},
		{"unlabeled axiom", "$c a $. $a a $."},
		{"float arity", "$c wff $. $v p q $. w $f wff p q $."},
		{"proofless theorem", "$c a $. t $p a $."},
		{"double label", "x y $c a $."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse(strings.NewReader(tc.src)); !errors.Is(err, ErrParse) {
				t.Errorf("Parse(%q) = %v, want ErrParse", tc.src, err)
			}
		})
	}
}

func mustHyp(t *testing.T, db *Database, label string) Hypothesis {
	t.Helper()
	h, ok := db.ResolveHyp(nil, label)
	if !ok {
		t.Fatalf("hypothesis %s not found", label)
	}
	return h
}
