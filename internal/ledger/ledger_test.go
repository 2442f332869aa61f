// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pdiddy/theorem-miner/pkg/types"
)

func openTest(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "ledger"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func sampleReport() types.RunReport {
	return types.RunReport{
		ProofsScanned:          3,
		CandidatesProposed:     3,
		CandidatesVerified:     3,
		CandidatesDeduplicated: 2,
		TheoremsAccepted:       1,
		RewritesApplied:        1,
		ProofsRewritten:        1,
	}
}

func TestRecordAndListRuns(t *testing.T) {
	l := openTest(t)

	started := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	accepted := []types.AcceptedTheorem{{
		Label:       "nt_t2_r1",
		SourceProof: "t2",
		Rank:        1,
		Statement:   "|- q",
		Hypotheses:  6,
		ProofSteps:  9,
	}}
	rewrites := []types.RewriteOutcome{{Proof: "t2", Theorem: "nt_t2_r1", Applied: 1}}

	runID, err := l.RecordRun("set.mm", started, sampleReport(), accepted, rewrites)
	require.NoError(t, err)
	require.Greater(t, runID, int64(0))

	runs, err := l.Runs(0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, runID, runs[0].ID)
	require.Equal(t, "set.mm", runs[0].DatabaseFile)
	require.Equal(t, started, runs[0].StartedAt)
	require.Equal(t, sampleReport(), runs[0].Report)

	thms, err := l.Theorems(runID)
	require.NoError(t, err)
	require.Equal(t, accepted, thms)
}

func TestRunsNewestFirstWithLimit(t *testing.T) {
	l := openTest(t)

	base := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	var ids []int64
	for i := 0; i < 3; i++ {
		id, err := l.RecordRun("set.mm", base.Add(time.Duration(i)*time.Hour), sampleReport(), nil, nil)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	runs, err := l.Runs(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, ids[2], runs[0].ID)
	require.Equal(t, ids[1], runs[1].ID)
}

func TestTheoremsEmptyRun(t *testing.T) {
	l := openTest(t)

	id, err := l.RecordRun("set.mm", time.Now(), types.RunReport{}, nil, nil)
	require.NoError(t, err)

	thms, err := l.Theorems(id)
	require.NoError(t, err)
	require.Empty(t, thms)
}

func TestReopenPersists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ledger")

	l, err := Open(dir)
	require.NoError(t, err)
	_, err = l.RecordRun("set.mm", time.Now(), sampleReport(), nil, nil)
	require.NoError(t, err)
	require.NoError(t, l.Close())

	l2, err := Open(dir)
	require.NoError(t, err)
	defer l2.Close()

	runs, err := l2.Runs(0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
}
