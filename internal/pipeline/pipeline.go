// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline orchestrates a full mining run: verify the input database,
// extract candidate sub-proofs from every theorem, verify and deduplicate the
// candidates, insert the accepted theorems, and rewrite the original proofs
// to cite them. Extraction and rewriting fan out across workers; acceptance
// is a single serial merge in (proof, rank) order, so runs over the same
// input produce the same output.
package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/theorem-miner/internal/canonical"
	"github.com/pdiddy/theorem-miner/internal/database"
	"github.com/pdiddy/theorem-miner/internal/extract"
	"github.com/pdiddy/theorem-miner/internal/refactor"
	"github.com/pdiddy/theorem-miner/internal/verifier"
	"github.com/pdiddy/theorem-miner/pkg/types"
)

// Result is the full outcome of one run: counts, the accepted theorems, and
// the per-(proof, theorem) rewrite outcomes. The augmented database is the
// one the pipeline ran over; exporting it is the caller's concern.
type Result struct {
	Report   types.RunReport
	Accepted []types.AcceptedTheorem
	Rewrites []types.RewriteOutcome
}

// Pipeline runs the mining stages over one database.
type Pipeline struct {
	db     *database.Database
	cfg    types.PipelineConfig
	log    *logrus.Logger
	oracle extract.Oracle
}

// New assembles a pipeline. The oracle file, when configured, is loaded here
// so a bad path fails before any work starts.
func New(db *database.Database, cfg types.PipelineConfig, log *logrus.Logger) (*Pipeline, error) {
	cfg.Normalize()
	if log == nil {
		log = logrus.New()
	}
	p := &Pipeline{db: db, cfg: cfg, log: log}
	if cfg.Extraction.OracleFile != "" {
		oracle, err := extract.LoadFileOracle(cfg.Extraction.OracleFile)
		if err != nil {
			return nil, fmt.Errorf("loading oracle: %w", err)
		}
		p.oracle = oracle
	}
	return p, nil
}

func (p *Pipeline) workers() int {
	if p.cfg.Workers > 0 {
		return p.cfg.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// Run executes verify, extract, accept, and rewrite. It fails fast if any
// input proof does not verify; everything after that is best-effort per
// candidate and per rewrite.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	originals := p.db.Theorems()
	res := &Result{}
	res.Report.ProofsScanned = len(originals)

	extracted, err := p.extractAll(ctx, originals)
	if err != nil {
		return nil, err
	}

	accepted := p.accept(originals, extracted, res)
	p.log.WithFields(logrus.Fields{
		"proposed": res.Report.CandidatesProposed,
		"verified": res.Report.CandidatesVerified,
		"dropped":  res.Report.CandidatesDeduplicated,
		"accepted": res.Report.TheoremsAccepted,
	}).Info("extraction complete")

	if err := p.rewriteAll(ctx, originals, accepted, res); err != nil {
		return nil, err
	}
	p.log.WithFields(logrus.Fields{
		"applied":   res.Report.RewritesApplied,
		"discarded": res.Report.RewritesDiscarded,
		"proofs":    res.Report.ProofsRewritten,
	}).Info("refactoring complete")

	return res, nil
}

// proofCandidates pairs one proof's index in the scan order with its
// materialized candidates.
type proofCandidates struct {
	idx   int
	cands []extract.Candidate
	err   error
}

// extractAll verifies every proof and materializes its candidates, fanning
// the proofs out across workers. A proof that fails verification aborts the
// run: the input database is broken and nothing downstream can be trusted.
func (p *Pipeline) extractAll(ctx context.Context, originals []*database.Assertion) ([][]extract.Candidate, error) {
	jobs := make(chan int)
	results := make(chan proofCandidates)

	var wg sync.WaitGroup
	for w := 0; w < p.workers(); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				owner := originals[idx]
				steps, err := verifier.Replay(p.db, owner)
				if err != nil {
					results <- proofCandidates{idx: idx, err: fmt.Errorf("input proof %s: %w", owner.Label, err)}
					continue
				}
				cands := extract.Candidates(p.db, owner, steps, p.oracle, p.cfg.Extraction)
				var kept []extract.Candidate
				for _, c := range cands {
					if c.Theorem == nil {
						kept = append(kept, c) // rejected subset, still a proposal
						continue
					}
					if err := verifier.Verify(p.db, c.Theorem); err != nil {
						p.log.WithField("candidate", c.Theorem.Label).WithError(err).Debug("candidate failed verification")
						kept = append(kept, extract.Candidate{Rank: c.Rank}) // counted, not accepted
						continue
					}
					kept = append(kept, c)
				}
				results <- proofCandidates{idx: idx, cands: kept}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range originals {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	out := make([][]extract.Candidate, len(originals))
	var firstErr error
	for r := range results {
		if r.err != nil && firstErr == nil {
			firstErr = r.err
		}
		out[r.idx] = r.cands
	}
	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// accept merges candidates serially in (proof, rank) order: verified
// candidates are deduplicated against the database and each other, and the
// survivors are inserted immediately before their source proof so later
// proofs may cite them.
func (p *Pipeline) accept(originals []*database.Assertion, extracted [][]extract.Candidate, res *Result) []*database.Assertion {
	ix := canonical.NewIndex(p.db)
	var accepted []*database.Assertion

	for i, cands := range extracted {
		owner := originals[i]
		for _, c := range cands {
			res.Report.CandidatesProposed++
			if c.Theorem == nil {
				// Rejected at materialization or failed standalone
				// verification.
				continue
			}
			res.Report.CandidatesVerified++
			if holder, ok := ix.Lookup(c.Theorem); ok {
				p.log.WithFields(logrus.Fields{
					"candidate":    c.Theorem.Label,
					"duplicate_of": holder,
				}).Debug("candidate deduplicated")
				res.Report.CandidatesDeduplicated++
				continue
			}
			if err := p.db.InsertBefore(c.Theorem, owner.Label); err != nil {
				p.log.WithField("candidate", c.Theorem.Label).WithError(err).Warn("candidate rejected at insertion")
				continue
			}
			// The canonical key is claimed only once the theorem is in the
			// database, so a rejected insertion cannot shadow later
			// alpha-equivalent candidates.
			ix.Insert(c.Theorem)
			inserted, _ := p.db.Get(c.Theorem.Label)
			accepted = append(accepted, inserted)
			res.Report.TheoremsAccepted++
			res.Accepted = append(res.Accepted, types.AcceptedTheorem{
				Label:       inserted.Label,
				SourceProof: owner.Label,
				Rank:        c.Rank,
				Statement:   inserted.Statement.String(),
				Hypotheses:  len(inserted.Hyps),
				ProofSteps:  len(inserted.Proof),
			})
		}
	}
	return accepted
}

// rewriteAll rewrites the original proofs with the accepted theorems, fanning
// proofs out across workers. Accepted theorems' own proofs are left alone so
// their trees stay frozen while workers match against them. Theorems below
// the height threshold are not worth a citation and are filtered out.
func (p *Pipeline) rewriteAll(ctx context.Context, originals []*database.Assertion, accepted []*database.Assertion, res *Result) error {
	var thms []*database.Assertion
	for _, t := range accepted {
		steps, err := verifier.Replay(p.db, t)
		if err != nil {
			return fmt.Errorf("replaying accepted theorem %s: %w", t.Label, err)
		}
		if steps[len(steps)-1].Height >= p.cfg.Refactor.MinHeight {
			thms = append(thms, t)
		}
	}
	if len(thms) == 0 {
		return nil
	}
	sort.Slice(thms, func(i, j int) bool { return thms[i].Seq < thms[j].Seq })

	jobs := make(chan int)
	type rewriteResult struct {
		idx      int
		outcomes []types.RewriteOutcome
		err      error
	}
	results := make(chan rewriteResult)

	var wg sync.WaitGroup
	for w := 0; w < p.workers(); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rw := refactor.New(p.db, p.cfg.Refactor)
			for idx := range jobs {
				outcomes, err := rw.RewriteProof(originals[idx].Label, thms)
				results <- rewriteResult{idx: idx, outcomes: outcomes, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range originals {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	collected := make([][]types.RewriteOutcome, len(originals))
	var firstErr error
	for r := range results {
		if r.err != nil && firstErr == nil {
			firstErr = r.err
		}
		collected[r.idx] = r.outcomes
	}
	if firstErr != nil {
		return firstErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for i, outcomes := range collected {
		rewritten := false
		for _, o := range outcomes {
			res.Report.RewritesApplied += o.Applied
			res.Report.RewritesDiscarded += o.Discarded
			if o.Applied > 0 {
				rewritten = true
			}
			res.Rewrites = append(res.Rewrites, o)
		}
		if rewritten {
			res.Report.ProofsRewritten++
			p.log.WithField("proof", originals[i].Label).Debug("proof rewritten")
		}
	}
	return nil
}
