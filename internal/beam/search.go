package beam

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"situatedbeam/internal/grammar"
	"situatedbeam/internal/logging"
)

var tracer = otel.Tracer("situatedbeam/beam")

// Result is the outcome of one search.
type Result struct {
	RunID string
	// Finished holds every admissible finished item, in the order they first
	// survived selection.
	Finished []Item
	// Beam is the beam after the last round.
	Beam   []Item
	Rounds int
	// FellBack is true when nothing finished and Plans returns the last beam.
	FellBack bool
	// Failures holds the per-item expansion errors of every round.
	Failures error
	Duration time.Duration
}

// Plans returns the finished items, or the last beam when none finished.
func (r *Result) Plans() []Item {
	if r.FellBack {
		return r.Beam
	}
	return r.Finished
}

// Searcher runs grammar-constrained beam search. It keeps no state between
// calls and may be used concurrently.
type Searcher struct {
	cfg      Config
	expander *Expander
}

// NewSearcher validates cfg and builds a searcher.
func NewSearcher(oracle Oracle, machine *grammar.Machine, cfg Config) (*Searcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if oracle == nil {
		return nil, fmt.Errorf("%w: nil oracle", ErrInvalidConfig)
	}
	if machine == nil {
		return nil, fmt.Errorf("%w: nil grammar machine", ErrInvalidConfig)
	}
	return &Searcher{cfg: cfg, expander: NewExpander(oracle, machine, cfg)}, nil
}

// Config returns the searcher's parameters.
func (s *Searcher) Config() Config {
	return s.cfg
}

// Search runs up to MaxSteps rounds of expand and select from the start
// token. It stops early when the beam empties or every item in it has
// finished admissibly. Expansion failures are collected on the result; the returned error
// is non-nil only when ctx is done.
func (s *Searcher) Search(ctx context.Context, prompt []int) (*Result, error) {
	runID := uuid.New().String()
	ctx, span := tracer.Start(ctx, "beam.Search",
		trace.WithAttributes(
			attribute.String("run_id", runID),
			attribute.Int("width", s.cfg.Width),
			attribute.Int("max_steps", s.cfg.MaxSteps),
			attribute.Int("prompt_len", len(prompt)),
		),
	)
	defer span.End()

	timer := logging.StartTimer(logging.CategorySearch, "beam search "+runID)

	res := &Result{RunID: runID}
	beam := []Item{NewRoot(s.cfg.StartToken)}
	var failures []error

	for round := 1; round <= s.cfg.MaxSteps; round++ {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "cancelled")
			return nil, err
		}

		out, err := s.expander.ExpandAll(ctx, prompt, beam)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "cancelled")
			return nil, err
		}
		failures = append(failures, out.Failures...)
		for _, f := range out.Failures {
			logging.SearchWarn("round %d: %v", round, f)
		}

		beam = Select(out.Pool, s.cfg.Width)
		res.Rounds = round
		for i := range beam {
			it := &beam[i]
			if it.Finished && it.FinishedRound == 0 && it.Len() > s.cfg.MinFinishLength {
				it.FinishedRound = round
				res.Finished = append(res.Finished, *it)
			}
		}
		span.AddEvent("round", trace.WithAttributes(
			attribute.Int("round", round),
			attribute.Int("pool", len(out.Pool)),
			attribute.Int("beam", len(beam)),
			attribute.Int("dropped_short", out.Dropped),
			attribute.Int("finished_total", len(res.Finished)),
		))
		logging.SearchDebug("round %d: pool=%d beam=%d finished=%d dropped=%d",
			round, len(out.Pool), len(beam), len(res.Finished), out.Dropped)

		if len(beam) == 0 || s.settled(beam) {
			break
		}
	}

	res.Beam = beam
	res.FellBack = len(res.Finished) == 0
	res.Failures = errors.Join(failures...)
	res.Duration = timer.Stop()

	span.SetAttributes(
		attribute.Int("rounds", res.Rounds),
		attribute.Int("finished", len(res.Finished)),
		attribute.Bool("fell_back", res.FellBack),
	)
	if res.Failures != nil {
		span.RecordError(res.Failures)
	}
	logging.Search("run %s: %d rounds, %d finished, fallback=%v", runID, res.Rounds, len(res.Finished), res.FellBack)
	return res, nil
}

// settled reports whether every item is an admissible finished item, so
// another round would reproduce the same beam.
func (s *Searcher) settled(items []Item) bool {
	for _, it := range items {
		if !it.Finished || it.Len() <= s.cfg.MinFinishLength {
			return false
		}
	}
	return true
}
