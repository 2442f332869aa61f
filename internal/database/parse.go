// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package database

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/pdiddy/theorem-miner/internal/formula"
)

// frame is one ${ ... $} scope during parsing.
type frame struct {
	vars     map[string]bool
	disjoint [][2]string
	floats   []Hypothesis
	floatFor map[string]string // metavariable -> hypothesis label
	ess      []Hypothesis
}

func newFrame() *frame {
	return &frame{vars: make(map[string]bool), floatFor: make(map[string]string)}
}

type parser struct {
	toks   *tokens
	db     *Database
	frames []*frame
}

// Parse reads a Metamath source database. The resulting assertions satisfy
// the definitional-order invariant; proofs are stored uncompressed. Parse
// does not verify proofs; run the verifier over db.Theorems() for that.
func Parse(r io.Reader) (*Database, error) {
	p := &parser{toks: newTokens(r), db: New()}
	p.push()
	if err := p.block(true); err != nil {
		return nil, err
	}
	return p.db, nil
}

func (p *parser) push() { p.frames = append(p.frames, newFrame()) }
func (p *parser) pop()  { p.frames = p.frames[:len(p.frames)-1] }

func (p *parser) lookupVar(name string) bool {
	for _, fr := range p.frames {
		if fr.vars[name] {
			return true
		}
	}
	return false
}

func (p *parser) formula(toks []string) formula.Formula {
	out := make(formula.Formula, len(toks))
	for i, tok := range toks {
		out[i] = formula.Symbol{Name: tok, Var: p.lookupVar(tok)}
	}
	return out
}

// block consumes statements until $} (or EOF for the outermost block).
func (p *parser) block(outer bool) error {
	label := ""
	for {
		tok, ok, err := p.toks.real()
		if err != nil {
			return err
		}
		if !ok {
			if !outer {
				return fmt.Errorf("%w: end of input inside ${ block", ErrParse)
			}
			return nil
		}
		switch tok {
		case "$}":
			if outer {
				return fmt.Errorf("%w: unmatched $}", ErrParse)
			}
			p.pop()
			return nil
		case "${":
			p.push()
			if err := p.block(false); err != nil {
				return err
			}
		case "$c":
			stat, err := p.toks.statement()
			if err != nil {
				return err
			}
			for _, c := range stat {
				if err := p.db.declareConst(c); err != nil {
					return err
				}
			}
		case "$v":
			stat, err := p.toks.statement()
			if err != nil {
				return err
			}
			fr := p.frames[len(p.frames)-1]
			for _, v := range stat {
				if err := p.db.declareVar(v); err != nil {
					return err
				}
				fr.vars[v] = true
			}
		case "$d":
			stat, err := p.toks.statement()
			if err != nil {
				return err
			}
			fr := p.frames[len(p.frames)-1]
			for i := 0; i < len(stat); i++ {
				for j := i + 1; j < len(stat); j++ {
					x, y := stat[i], stat[j]
					if x == y {
						return fmt.Errorf("%w: repeated variable in $d", ErrParse)
					}
					if x > y {
						x, y = y, x
					}
					pair := [2]string{x, y}
					if !slices.Contains(fr.disjoint, pair) {
						fr.disjoint = append(fr.disjoint, pair)
					}
				}
			}
		case "$f":
			if label == "" {
				return fmt.Errorf("%w: $f requires a label", ErrParse)
			}
			stat, err := p.toks.statement()
			if err != nil {
				return err
			}
			if len(stat) != 2 {
				return fmt.Errorf("%w: $f %s must have exactly typecode and variable", ErrParse, label)
			}
			if !p.lookupVar(stat[1]) {
				return fmt.Errorf("%w: $f %s types undeclared variable %s", ErrParse, label, stat[1])
			}
			h := Hypothesis{
				Label: label,
				Kind:  HypFloating,
				Expr:  formula.Formula{formula.Const(stat[0]), formula.Metavar(stat[1])},
			}
			fr := p.frames[len(p.frames)-1]
			if _, dup := fr.floatFor[stat[1]]; dup {
				return fmt.Errorf("%w: variable %s already typed in scope", ErrParse, stat[1])
			}
			fr.floats = append(fr.floats, h)
			fr.floatFor[stat[1]] = label
			if err := p.db.registerHyp(h, len(p.frames) == 1); err != nil {
				return err
			}
			label = ""
		case "$e":
			if label == "" {
				return fmt.Errorf("%w: $e requires a label", ErrParse)
			}
			stat, err := p.toks.statement()
			if err != nil {
				return err
			}
			h := Hypothesis{Label: label, Kind: HypEssential, Expr: p.formula(stat)}
			fr := p.frames[len(p.frames)-1]
			fr.ess = append(fr.ess, h)
			if err := p.db.registerHyp(h, false); err != nil {
				return err
			}
			label = ""
		case "$a":
			if label == "" {
				return fmt.Errorf("%w: $a requires a label", ErrParse)
			}
			stat, err := p.toks.statement()
			if err != nil {
				return err
			}
			a := p.makeAssertion(label, KindAxiom, stat, nil)
			if err := p.db.Append(a); err != nil {
				return err
			}
			label = ""
		case "$p":
			if label == "" {
				return fmt.Errorf("%w: $p requires a label", ErrParse)
			}
			stat, err := p.toks.statement()
			if err != nil {
				return err
			}
			eq := slices.Index(stat, "$=")
			if eq < 0 {
				return fmt.Errorf("%w: $p %s has no $= proof", ErrParse, label)
			}
			proof := stat[eq+1:]
			stat = stat[:eq]
			a := p.makeAssertion(label, KindTheorem, stat, nil)
			if len(proof) > 0 && proof[0] == "(" {
				proof, err = p.decompress(a, proof)
				if err != nil {
					return fmt.Errorf("decompressing proof of %s: %w", label, err)
				}
			}
			a.Proof = proof
			if err := p.db.Append(a); err != nil {
				return err
			}
			label = ""
		default:
			if strings.HasPrefix(tok, "$") {
				return fmt.Errorf("%w: unexpected keyword %s", ErrParse, tok)
			}
			if label != "" {
				return fmt.Errorf("%w: two labels in a row (%s %s)", ErrParse, label, tok)
			}
			label = tok
		}
	}
}

// makeAssertion assembles the frame-derived parts of an assertion: mandatory
// hypotheses (floating hypotheses of mandatory variables in declaration
// order, then all essential hypotheses) and the disjoint pairs restricted to
// mandatory variables.
func (p *parser) makeAssertion(label string, kind Kind, stat []string, proof []string) *Assertion {
	stmt := p.formula(stat)

	var essentials []Hypothesis
	for _, fr := range p.frames {
		essentials = append(essentials, fr.ess...)
	}

	mandatory := make(map[string]bool)
	for _, h := range essentials {
		for _, v := range h.Expr.Vars() {
			mandatory[v] = true
		}
	}
	for _, v := range stmt.Vars() {
		mandatory[v] = true
	}

	var hyps []Hypothesis
	for _, fr := range p.frames {
		for _, h := range fr.floats {
			if mandatory[h.Variable()] {
				hyps = append(hyps, h)
			}
		}
	}
	hyps = append(hyps, essentials...)

	var disjoint [][2]string
	for _, fr := range p.frames {
		for _, pair := range fr.disjoint {
			if mandatory[pair[0]] && mandatory[pair[1]] && !slices.Contains(disjoint, pair) {
				disjoint = append(disjoint, pair)
			}
		}
	}

	return &Assertion{
		Label:     label,
		Kind:      kind,
		Statement: stmt,
		Hyps:      hyps,
		Disjoint:  disjoint,
		Proof:     proof,
	}
}

// decompress expands a compressed proof ("( labels ) LETTERS") into the
// explicit label sequence.
func (p *parser) decompress(a *Assertion, proof []string) ([]string, error) {
	closing := slices.Index(proof, ")")
	if closing < 0 {
		return nil, fmt.Errorf("%w: compressed proof has no closing parenthesis", ErrParse)
	}

	labels := make([]string, 0, len(a.Hyps)+closing)
	for _, h := range a.Hyps {
		labels = append(labels, h.Label)
	}
	hypEnd := len(labels)
	labels = append(labels, proof[1:closing]...)
	labelEnd := len(labels)
	letters := strings.Join(proof[closing+1:], "")

	var ints []int
	cur := 0
	for _, ch := range letters {
		switch {
		case ch == 'Z':
			ints = append(ints, -1)
		case ch >= 'A' && ch <= 'T':
			cur = 20*cur + int(ch-'A') + 1
			ints = append(ints, cur-1)
			cur = 0
		case ch >= 'U' && ch <= 'Y':
			cur = 5*cur + int(ch-'U') + 1
		default:
			return nil, fmt.Errorf("%w: bad character %q in compressed proof", ErrParse, ch)
		}
	}

	// Replay the integer stream, tracking the label span of each pushed
	// subproof so Z back-references expand to full subsequences.
	var out []int
	var subproofs [][]int
	var prev [][]int
	for _, n := range ints {
		switch {
		case n == -1:
			if len(prev) == 0 {
				return nil, fmt.Errorf("%w: Z with no preceding step", ErrParse)
			}
			subproofs = append(subproofs, prev[len(prev)-1])
		case n < hypEnd:
			prev = append(prev, []int{n})
			out = append(out, n)
		case n < labelEnd:
			out = append(out, n)
			cited, err := p.db.Get(labels[n])
			if err != nil {
				// Hypothesis labels from enclosing frames take no
				// arguments.
				prev = append(prev, []int{n})
				continue
			}
			nargs := len(cited.Hyps)
			if nargs > len(prev) {
				return nil, fmt.Errorf("%w: compressed proof underflow", ErrParse)
			}
			span := []int{}
			for _, sub := range prev[len(prev)-nargs:] {
				span = append(span, sub...)
			}
			span = append(span, n)
			prev = append(prev[:len(prev)-nargs], span)
		default:
			idx := n - labelEnd
			if idx >= len(subproofs) {
				return nil, fmt.Errorf("%w: compressed proof references unknown subproof", ErrParse)
			}
			out = append(out, subproofs[idx]...)
			prev = append(prev, subproofs[idx])
		}
	}

	expanded := make([]string, len(out))
	for i, n := range out {
		expanded[i] = labels[n]
	}
	return expanded, nil
}
