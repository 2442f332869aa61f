// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package formula

import (
	"errors"
	"testing"
)

func wff(syms ...Symbol) Formula { return Formula(syms) }

func TestEqual(t *testing.T) {
	a := wff(Const("|-"), Metavar("p"))
	b := wff(Const("|-"), Metavar("p"))
	c := wff(Const("|-"), Metavar("q"))
	d := wff(Const("|-"), Const("p"))

	if !a.Equal(b) {
		t.Errorf("%q should equal %q", a, b)
	}
	if a.Equal(c) {
		t.Errorf("%q should not equal %q", a, c)
	}
	if a.Equal(d) {
		t.Error("metavariable and constant with the same name should differ")
	}
	if a.Equal(a[:1]) {
		t.Error("formulas of different lengths should differ")
	}
}

func TestStringAndVars(t *testing.T) {
	f := wff(Const("|-"), Const(">"), Metavar("p"), Metavar("q"), Metavar("p"))
	if got := f.String(); got != "|- > p q p" {
		t.Errorf("String() = %q", got)
	}
	vars := f.Vars()
	if len(vars) != 2 || vars[0] != "p" || vars[1] != "q" {
		t.Errorf("Vars() = %v, want [p q]", vars)
	}
	if !f.HasVar("q") || f.HasVar("r") {
		t.Error("HasVar misreported")
	}
}

func TestApply(t *testing.T) {
	pattern := wff(Const("|-"), Const(">"), Metavar("p"), Metavar("q"))
	s := Subst{
		"p": wff(Const("&"), Metavar("x"), Metavar("y")),
		"q": wff(Metavar("x")),
	}

	got, err := Apply(s, pattern)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	want := wff(Const("|-"), Const(">"), Const("&"), Metavar("x"), Metavar("y"), Metavar("x"))
	if !got.Equal(want) {
		t.Errorf("Apply = %q, want %q", got, want)
	}

	// Inputs must not be mutated.
	if !pattern.Equal(wff(Const("|-"), Const(">"), Metavar("p"), Metavar("q"))) {
		t.Error("Apply mutated its input")
	}
}

func TestApplyUnbound(t *testing.T) {
	pattern := wff(Const("|-"), Metavar("p"))
	_, err := Apply(Subst{}, pattern)
	if !errors.Is(err, ErrUnboundVariable) {
		t.Errorf("err = %v, want ErrUnboundVariable", err)
	}
}

func TestSharedVars(t *testing.T) {
	f := wff(Const(">"), Metavar("p"), Metavar("q"))
	g := wff(Const("&"), Metavar("q"), Metavar("r"))
	h := wff(Const("&"), Metavar("r"), Metavar("s"))

	if v, shared := SharedVars(f, g); !shared || v != "q" {
		t.Errorf("SharedVars(f, g) = %q, %v", v, shared)
	}
	if _, shared := SharedVars(f, h); shared {
		t.Error("f and h share no metavariable")
	}
}

func TestUnify(t *testing.T) {
	pattern := wff(Const("|-"), Const(">"), Metavar("p"), Metavar("q"))
	concrete := wff(Const("|-"), Const(">"), Const("&"), Metavar("x"), Metavar("y"), Metavar("x"))

	s, err := Unify(pattern, concrete)
	if err != nil {
		t.Fatalf("Unify: %v", err)
	}
	back, err := Apply(s, pattern)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !back.Equal(concrete) {
		t.Errorf("Apply(Unify(...)) = %q, want %q", back, concrete)
	}
}

func TestUnifyBacktracks(t *testing.T) {
	// p must absorb "a a" even though the shortest split is tried first.
	pattern := wff(Metavar("p"), Const("b"))
	concrete := wff(Const("a"), Const("a"), Const("b"))

	s, err := Unify(pattern, concrete)
	if err != nil {
		t.Fatalf("Unify: %v", err)
	}
	if got := s["p"].String(); got != "a a" {
		t.Errorf("p bound to %q, want \"a a\"", got)
	}
}

func TestUnifyFails(t *testing.T) {
	pattern := wff(Const("|-"), Metavar("p"))
	concrete := wff(Const("wff"), Metavar("x"))
	if _, err := Unify(pattern, concrete); !errors.Is(err, ErrNoUnifier) {
		t.Errorf("err = %v, want ErrNoUnifier", err)
	}
}

func TestUnifyInto(t *testing.T) {
	s := Subst{"p": wff(Const("a"))}
	pattern := wff(Metavar("p"), Metavar("q"))
	concrete := wff(Const("a"), Const("b"), Const("c"))

	if err := UnifyInto(s, pattern, concrete); err != nil {
		t.Fatalf("UnifyInto: %v", err)
	}
	if got := s["q"].String(); got != "b c" {
		t.Errorf("q bound to %q, want \"b c\"", got)
	}

	// Conflicting existing binding leaves s untouched.
	s2 := Subst{"p": wff(Const("z"))}
	if err := UnifyInto(s2, pattern, concrete); !errors.Is(err, ErrNoUnifier) {
		t.Errorf("err = %v, want ErrNoUnifier", err)
	}
	if len(s2) != 1 {
		t.Errorf("failed UnifyInto modified the substitution: %v", s2)
	}
}
