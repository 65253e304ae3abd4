package beam

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"situatedbeam/internal/grammar"
	"situatedbeam/internal/logging"
)

// Expander turns one beam into the next round's candidate pool.
type Expander struct {
	oracle  Oracle
	machine *grammar.Machine
	cfg     Config
}

// NewExpander creates an expander. cfg is assumed valid.
func NewExpander(oracle Oracle, machine *grammar.Machine, cfg Config) *Expander {
	return &Expander{oracle: oracle, machine: machine, cfg: cfg}
}

// Outcome is the result of expanding a whole beam.
type Outcome struct {
	// Pool holds successors of live items and admissible finished items, in
	// input order.
	Pool []Item
	// Dropped counts finished items too short to be admissible.
	Dropped int
	// Failures holds one error per item whose expansion failed.
	Failures []error
}

type candidate struct {
	token int
	prob  float64
}

// Expand produces the successors of a live item. Candidate-level refill
// errors drop that candidate and are returned joined alongside the surviving
// successors.
func (e *Expander) Expand(ctx context.Context, prompt []int, it Item) ([]Item, error) {
	logits, err := e.oracle.Score(ctx, prompt, it.Tokens)
	if err != nil {
		return nil, fmt.Errorf("oracle: %w", err)
	}
	probs := Softmax(logits, e.cfg.Temperature)

	cat, allowed, cursor := e.machine.Advance(it.Cursor)
	cands := topK(probs, allowed, e.cfg.Width)
	if len(cands) == 0 {
		logging.SearchDebug("no legal candidates for %s at length %d", cat, it.Len())
		return nil, nil
	}

	var errs []error
	out := make([]Item, 0, len(cands))
	for _, c := range cands {
		next := it.extend(c.token, it.Score-math.Log(c.prob), cursor.Clone(), e.cfg.EndToken)
		if err := e.machine.Complete(&next.Cursor, next.Tokens); err != nil {
			errs = append(errs, fmt.Errorf("token %d: %w", c.token, err))
			continue
		}
		out = append(out, next)
	}
	return out, errors.Join(errs...)
}

// ExpandAll expands every item of the beam concurrently. Finished items are
// carried unchanged when admissible and dropped otherwise. One item's failure
// never affects another's successors; only context cancellation is returned as
// an error.
func (e *Expander) ExpandAll(ctx context.Context, prompt []int, items []Item) (Outcome, error) {
	results := make([][]Item, len(items))
	failures := make([]error, len(items))
	dropped := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(len(items), 1))
	for i, it := range items {
		if it.Last() == e.cfg.EndToken {
			if it.Len() > e.cfg.MinFinishLength {
				it.Finished = true
				results[i] = []Item{it}
			} else {
				dropped++
			}
			continue
		}
		g.Go(func() error {
			succ, err := e.Expand(gctx, prompt, it)
			results[i] = succ
			if err != nil {
				failures[i] = fmt.Errorf("item %d: %w", i, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	out := Outcome{Dropped: dropped}
	for i := range items {
		out.Pool = append(out.Pool, results[i]...)
		if failures[i] != nil {
			out.Failures = append(out.Failures, failures[i])
		}
	}
	return out, nil
}

// Softmax applies temperature to logits and normalizes them, subtracting the
// maximum first. NaN logits get probability zero.
func Softmax(logits []float64, temperature float64) []float64 {
	probs := make([]float64, len(logits))
	maxLogit := math.Inf(-1)
	for _, l := range logits {
		if !math.IsNaN(l) && l/temperature > maxLogit {
			maxLogit = l / temperature
		}
	}
	if math.IsInf(maxLogit, -1) {
		return probs
	}
	var sum float64
	for i, l := range logits {
		if math.IsNaN(l) {
			continue
		}
		probs[i] = math.Exp(l/temperature - maxLogit)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

// topK picks the k most probable legal tokens, ties broken by lower id.
// Tokens outside the oracle's output or with zero probability are skipped.
func topK(probs []float64, allowed []int, k int) []candidate {
	cands := make([]candidate, 0, len(allowed))
	for _, tok := range allowed {
		if tok < 0 || tok >= len(probs) {
			continue
		}
		p := probs[tok]
		if math.IsNaN(p) || p <= 0 {
			continue
		}
		cands = append(cands, candidate{token: tok, prob: p})
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].prob != cands[j].prob {
			return cands[i].prob > cands[j].prob
		}
		return cands[i].token < cands[j].token
	})
	if len(cands) > k {
		cands = cands[:k]
	}
	return cands
}
