// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package refactor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pdiddy/theorem-miner/internal/database"
	"github.com/pdiddy/theorem-miner/internal/extract"
	"github.com/pdiddy/theorem-miner/internal/verifier"
	"github.com/pdiddy/theorem-miner/pkg/types"
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
`

// dvFixture declares dj, whose frame constrains p and q disjoint, and tgt,
// whose modus ponens instantiates both with the same metavariable.
const dvFixture = `
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
  $d p q $.
  dj.1 $e |- p $.
  dj.2 $e |- > p q $.
  dj $p |- q $= wp wq dj.1 dj.2 ax-mp $.
$}
${
  tg.1 $e |- p $.
  tg.2 $e |- > p p $.
  tgt $p |- p $= wp wp tg.1 tg.2 ax-mp $.
$}
`

func testConfig() types.RefactorConfig {
	return types.RefactorConfig{MinHeight: 3, MaxSweeps: 16}
}

// setup parses the fixture and inserts the chained modus ponens theorem
// extracted from t2's proof.
func setup(t *testing.T) (*database.Database, *database.Assertion) {
	t.Helper()
	db, err := database.Parse(strings.NewReader(fixture))
	require.NoError(t, err)

	owner, err := db.Get("t2")
	require.NoError(t, err)
	steps, err := verifier.Replay(db, owner)
	require.NoError(t, err)

	c, err := extract.Materialize(db, owner, steps, []int{2, 3, 4, 5, 6, 7, 8, 9, 10}, 1,
		types.ExtractionConfig{MinSteps: 2, MaxSteps: 64, MaxPerProof: 8})
	require.NoError(t, err)
	require.NoError(t, verifier.Verify(db, c.Theorem))
	require.NoError(t, db.InsertBefore(c.Theorem, "t2"))

	thm, err := db.Get(c.Theorem.Label)
	require.NoError(t, err)
	return db, thm
}

func TestRewriteProof(t *testing.T) {
	db, thm := setup(t)

	before, _ := db.Get("t2")
	require.Len(t, before.Proof, 13)

	rw := New(db, testConfig())
	outcomes, err := rw.RewriteProof("t2", []*database.Assertion{thm})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	require.Equal(t, "t2", outcomes[0].Proof)
	require.Equal(t, thm.Label, outcomes[0].Theorem)
	require.Equal(t, 1, outcomes[0].Applied)
	require.Equal(t, 0, outcomes[0].Discarded)

	after, _ := db.Get("t2")
	require.Equal(t,
		[]string{"wr", "wp", "wq", "wr", "wp", "t2.1", "t2.2", "t2.3", thm.Label, "t2.1", "ax-conj"},
		after.Proof)
	require.NoError(t, verifier.Verify(db, after))

	// The rewrite reached a fixed point: a second pass changes nothing.
	outcomes, err = rw.RewriteProof("t2", []*database.Assertion{thm})
	require.NoError(t, err)
	require.Empty(t, outcomes)
}

func TestRewriteSkipsNonMatchingProof(t *testing.T) {
	db, thm := setup(t)

	// t1 contains a single modus ponens, not the two-step chain.
	outcomes, err := New(db, testConfig()).RewriteProof("t1", []*database.Assertion{thm})
	require.NoError(t, err)
	require.Empty(t, outcomes)

	t1, _ := db.Get("t1")
	require.Len(t, t1.Proof, 9)
}

func TestRewriteRespectsDefinitionOrder(t *testing.T) {
	db, thm := setup(t)

	// t1 precedes the inserted theorem, so citing it there would be a
	// forward reference; the rewriter must not touch t1.
	t1, _ := db.Get("t1")
	require.Less(t, t1.Seq, thm.Seq)

	outcomes, err := New(db, testConfig()).RewriteProof("t1", []*database.Assertion{thm})
	require.NoError(t, err)
	require.Empty(t, outcomes)
}

func TestRewriteDiscardsDisjointnessViolation(t *testing.T) {
	db, err := database.Parse(strings.NewReader(dvFixture))
	require.NoError(t, err)

	dj, err := db.Get("dj")
	require.NoError(t, err)
	before, err := db.Get("tgt")
	require.NoError(t, err)

	// The occurrence matches structurally, but citing dj binds both of its
	// disjoint variables to p, so the rewritten proof fails re-verification
	// and must be dropped.
	rw := New(db, testConfig())
	outcomes, err := rw.RewriteProof("tgt", []*database.Assertion{dj})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	require.Equal(t, "tgt", outcomes[0].Proof)
	require.Equal(t, "dj", outcomes[0].Theorem)
	require.Equal(t, 0, outcomes[0].Applied)
	require.Equal(t, 1, outcomes[0].Discarded)

	after, err := db.Get("tgt")
	require.NoError(t, err)
	require.Equal(t, before.Proof, after.Proof)
	require.NoError(t, verifier.Verify(db, after))

	// The discarded occurrence is not retried.
	outcomes, err = rw.RewriteProof("tgt", []*database.Assertion{dj})
	require.NoError(t, err)
	require.Empty(t, outcomes)
}

func TestRewriteUnknownProof(t *testing.T) {
	db, thm := setup(t)
	_, err := New(db, testConfig()).RewriteProof("missing", []*database.Assertion{thm})
	require.ErrorIs(t, err, database.ErrUnknownLabel)
}
