package validator

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"situatedbeam/internal/idea"
	"situatedbeam/internal/logging"
	"situatedbeam/internal/topology"
)

var tracer = otel.Tracer("situatedbeam/validator")

// Action is the task the plans were searched for.
type Action string

const (
	ActionPick  Action = "PICK"
	ActionPlace Action = "PLACE"
	ActionMove  Action = "MOVE"
)

// ParseAction maps a name to an Action, case-insensitively.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToUpper(strings.TrimSpace(s))); a {
	case ActionPick, ActionPlace, ActionMove:
		return a, nil
	default:
		return "", fmt.Errorf("unknown action %q", s)
	}
}

// Status classifies a verdict.
type Status int

const (
	StatusValid Status = iota
	StatusDecodeError
	StatusStructural
	StatusGraph
)

func (s Status) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusDecodeError:
		return "decode"
	case StatusStructural:
		return "structural"
	case StatusGraph:
		return "graph"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Candidate is a finished beam offered for validation.
type Candidate struct {
	Tokens []int
	Score  float64
	// Length is the beam's reported length; zero means len(Tokens).
	Length int
}

// Plan is a candidate that passed every check.
type Plan struct {
	Tokens []int
	Score  float64
	Length int
	Steps  []idea.ActionStep
}

// Candidate converts the plan back into validator input.
func (p Plan) Candidate() Candidate {
	return Candidate{Tokens: p.Tokens, Score: p.Score, Length: p.Length}
}

// Verdict is the outcome for one candidate.
type Verdict struct {
	Index  int
	Status Status
	// Reason is nil for valid plans and wraps idea.ErrMalformed,
	// idea.ErrTruncated, ErrStructural or ErrGraph otherwise.
	Reason error
	Plan   Plan
}

// Decoder turns a token sequence into an idea tree.
type Decoder interface {
	DecodeSequence(tokens []int) (*idea.Idea, error)
}

// Request carries the situation a batch of plans is checked against.
type Request struct {
	Occupied    []float64
	InitialNode float64
	Action      Action
}

// Validator checks candidates against a decoder and a graph.
type Validator struct {
	decoder Decoder
	graph   *topology.Graph
	kernel  *topology.Kernel
}

// Option configures a Validator.
type Option func(*Validator)

// WithKernel toggles the Mangle feasibility kernel. Without it snapshots are
// computed directly in Go.
func WithKernel(enabled bool) Option {
	return func(v *Validator) {
		if enabled {
			v.kernel = topology.NewKernel(v.graph)
		} else {
			v.kernel = nil
		}
	}
}

// New creates a validator. A nil graph uses the warehouse graph. The kernel
// is enabled by default.
func New(decoder Decoder, graph *topology.Graph, opts ...Option) *Validator {
	if graph == nil {
		graph = topology.Warehouse()
	}
	v := &Validator{decoder: decoder, graph: graph}
	v.kernel = topology.NewKernel(graph)
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *Validator) snapshot(ctx context.Context, occupied []topology.Node, origin topology.Node) (*topology.Snapshot, error) {
	if v.kernel != nil {
		s, err := v.kernel.Derive(ctx, occupied, origin)
		if err == nil {
			return s, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logging.KernelWarn("kernel failed, using direct derivation: %v", err)
	}
	return topology.Direct(v.graph, occupied, origin), nil
}

// Evaluate returns one verdict per candidate, in input order. It fails only
// when ctx is done.
func (v *Validator) Evaluate(ctx context.Context, req Request, candidates []Candidate) ([]Verdict, error) {
	ctx, span := tracer.Start(ctx, "validator.Evaluate",
		trace.WithAttributes(
			attribute.String("action", string(req.Action)),
			attribute.Int("candidates", len(candidates)),
		),
	)
	defer span.End()

	if len(candidates) == 0 {
		return nil, nil
	}

	occupied := make([]topology.Node, 0, len(req.Occupied))
	for _, o := range req.Occupied {
		n, ok := asNode(o)
		if !ok {
			logging.ValidatorDebug("ignoring non-integral occupied node %g", o)
			continue
		}
		occupied = append(occupied, n)
	}
	origin, _ := asNode(req.InitialNode)

	snap, err := v.snapshot(ctx, occupied, origin)
	if err != nil {
		return nil, err
	}

	verdicts := make([]Verdict, len(candidates))
	valid := 0
	for i, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		verdicts[i] = v.evaluateOne(i, c, req, snap)
		if verdicts[i].Status == StatusValid {
			valid++
		} else {
			logging.ValidatorDebug("candidate %d rejected (%s): %v", i, verdicts[i].Status, verdicts[i].Reason)
		}
	}
	span.SetAttributes(attribute.Int("valid", valid))
	logging.Validator("%d of %d candidates valid for %s", valid, len(candidates), req.Action)
	return verdicts, nil
}

func (v *Validator) evaluateOne(i int, c Candidate, req Request, snap *topology.Snapshot) Verdict {
	length := c.Length
	if length == 0 {
		length = len(c.Tokens)
	}
	verdict := Verdict{
		Index: i,
		Plan:  Plan{Tokens: c.Tokens, Score: c.Score, Length: length},
	}

	root, err := v.decoder.DecodeSequence(c.Tokens)
	if err != nil {
		verdict.Status, verdict.Reason = StatusDecodeError, err
		return verdict
	}
	steps := root.Steps()
	verdict.Plan.Steps = steps

	for _, step := range steps {
		if err := CheckRange(step); err != nil {
			verdict.Status, verdict.Reason = StatusStructural, err
			return verdict
		}
	}
	if err := checkGraph(steps, req, snap); err != nil {
		verdict.Status, verdict.Reason = StatusGraph, err
		return verdict
	}
	return verdict
}

// checkGraph applies the physical constraints: for PICK, a leading
// moveToNode away from the initial node must go to a neighbor; every
// consecutive moveToNode pair must be an edge left from a free node.
func checkGraph(steps []idea.ActionStep, req Request, snap *topology.Snapshot) error {
	if req.Action == ActionPick && len(steps) > 0 && ParseStepKind(steps[0].Name) == StepMoveToNode {
		target := steps[0].Value.Number
		if target != req.InitialNode {
			from, okFrom := asNode(req.InitialNode)
			to, okTo := asNode(target)
			if !okFrom || !okTo || !snap.Known(from) || !snap.Known(to) {
				return fmt.Errorf("%w: unknown node in first move %g -> %g", ErrGraph, req.InitialNode, target)
			}
			if !snap.Adjacent(from, to) {
				return fmt.Errorf("%w: first move %d -> %d is not an edge", ErrGraph, from, to)
			}
		}
	}

	for i := 0; i+1 < len(steps); i++ {
		if ParseStepKind(steps[i].Name) != StepMoveToNode || ParseStepKind(steps[i+1].Name) != StepMoveToNode {
			continue
		}
		from, okFrom := asNode(steps[i].Value.Number)
		to, okTo := asNode(steps[i+1].Value.Number)
		if !okFrom || !okTo || !snap.Known(from) || !snap.Known(to) {
			return fmt.Errorf("%w: unknown node in step %d", ErrGraph, i)
		}
		if snap.Passable(from, to) {
			continue
		}
		if !snap.Adjacent(from, to) {
			return fmt.Errorf("%w: step %d moves %d -> %d, not an edge", ErrGraph, i, from, to)
		}
		return fmt.Errorf("%w: step %d leaves occupied node %d", ErrGraph, i, from)
	}
	return nil
}

func asNode(v float64) (topology.Node, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
		return 0, false
	}
	return topology.Node(v), true
}

// FilterValidPlans returns the candidates that pass every check, in input
// order. Rejected candidates are dropped, never repaired.
func (v *Validator) FilterValidPlans(ctx context.Context, req Request, candidates []Candidate) ([]Plan, error) {
	verdicts, err := v.Evaluate(ctx, req, candidates)
	if err != nil {
		return nil, err
	}
	plans := make([]Plan, 0, len(verdicts))
	for _, vd := range verdicts {
		if vd.Status == StatusValid {
			plans = append(plans, vd.Plan)
		}
	}
	return plans, nil
}

// FilterValidPlans validates finished beams with a one-off validator.
func FilterValidPlans(ctx context.Context, decoder Decoder, occupied []float64, initialNode float64, graph *topology.Graph, action Action, beams []Candidate) ([]Plan, error) {
	return New(decoder, graph).FilterValidPlans(ctx, Request{
		Occupied:    occupied,
		InitialNode: initialNode,
		Action:      action,
	}, beams)
}

// Reasons summarizes rejected verdicts by status.
func Reasons(verdicts []Verdict) map[Status][]error {
	out := make(map[Status][]error)
	for _, vd := range verdicts {
		if vd.Status != StatusValid {
			out[vd.Status] = append(out[vd.Status], vd.Reason)
		}
	}
	return out
}
