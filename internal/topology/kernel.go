package topology

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"situatedbeam/internal/logging"
	"situatedbeam/internal/mangle"
)

var tracer = otel.Tracer("situatedbeam/topology")

// feasibilitySchema derives which edges can be traversed and which nodes can
// be reached. An edge may be left only from a free node.
const feasibilitySchema = `
Decl node(N).
Decl edge(From, To).
Decl occupied(N).
Decl origin(N).
Decl passable(From, To).
Decl reachable(N).

passable(From, To) :- edge(From, To), !occupied(From).
reachable(N) :- origin(N).
reachable(To) :- reachable(From), passable(From, To).
`

// Snapshot is the feasibility view of a graph under one occupied set.
type Snapshot struct {
	graph     *Graph
	occupied  map[Node]struct{}
	passable  map[[2]Node]struct{}
	reachable map[Node]struct{}
}

// Known reports whether n is a node of the underlying graph.
func (s *Snapshot) Known(n Node) bool {
	return s.graph.Has(n)
}

// Adjacent reports whether a and b share an edge.
func (s *Snapshot) Adjacent(a, b Node) bool {
	return s.graph.Adjacent(a, b)
}

// Occupied reports whether n is blocked.
func (s *Snapshot) Occupied(n Node) bool {
	_, ok := s.occupied[n]
	return ok
}

// Passable reports whether the edge a->b may be traversed.
func (s *Snapshot) Passable(a, b Node) bool {
	_, ok := s.passable[[2]Node{a, b}]
	return ok
}

// Reachable reports whether n can be reached from an origin.
func (s *Snapshot) Reachable(n Node) bool {
	_, ok := s.reachable[n]
	return ok
}

// ReachableNodes returns the reachable set in ascending order.
func (s *Snapshot) ReachableNodes() []Node {
	nodes := make([]Node, 0, len(s.reachable))
	for n := range s.reachable {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })
	return nodes
}

func newSnapshot(g *Graph, occupied []Node) *Snapshot {
	s := &Snapshot{
		graph:     g,
		occupied:  make(map[Node]struct{}, len(occupied)),
		passable:  make(map[[2]Node]struct{}),
		reachable: make(map[Node]struct{}),
	}
	for _, n := range occupied {
		s.occupied[n] = struct{}{}
	}
	return s
}

// Direct computes the snapshot in Go with a breadth-first walk. It is the
// reference the kernel is checked against and the fallback when the kernel
// cannot run.
func Direct(g *Graph, occupied []Node, origins ...Node) *Snapshot {
	s := newSnapshot(g, occupied)
	for _, e := range g.Edges() {
		if !s.Occupied(e[0]) {
			s.passable[e] = struct{}{}
		}
	}
	queue := make([]Node, 0, len(origins))
	for _, o := range origins {
		if _, seen := s.reachable[o]; !seen {
			s.reachable[o] = struct{}{}
			queue = append(queue, o)
		}
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, m := range g.adj[n] {
			if !s.Passable(n, m) {
				continue
			}
			if _, seen := s.reachable[m]; !seen {
				s.reachable[m] = struct{}{}
				queue = append(queue, m)
			}
		}
	}
	return s
}

// Kernel derives snapshots with the Mangle engine.
type Kernel struct {
	graph *Graph
	cfg   mangle.Config
}

// NewKernel creates a kernel over g.
func NewKernel(g *Graph) *Kernel {
	return &Kernel{graph: g, cfg: mangle.DefaultConfig()}
}

// Graph returns the kernel's graph.
func (k *Kernel) Graph() *Graph {
	return k.graph
}

// Derive evaluates the feasibility program for one occupied set. Each call
// uses its own engine, so concurrent calls do not interact.
func (k *Kernel) Derive(ctx context.Context, occupied []Node, origins ...Node) (*Snapshot, error) {
	ctx, span := tracer.Start(ctx, "topology.Derive",
		trace.WithAttributes(
			attribute.Int("occupied", len(occupied)),
			attribute.Int("origins", len(origins)),
		),
	)
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	timer := logging.StartTimer(logging.CategoryKernel, "feasibility derive")
	defer timer.Stop()

	engine := mangle.NewEngine(k.cfg)
	if err := engine.LoadSchemaString(feasibilitySchema); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "schema")
		return nil, fmt.Errorf("load feasibility schema: %w", err)
	}

	var facts []mangle.Fact
	for _, n := range k.graph.Nodes() {
		facts = append(facts, mangle.Fact{Predicate: "node", Args: []interface{}{int64(n)}})
	}
	for _, e := range k.graph.Edges() {
		facts = append(facts, mangle.Fact{Predicate: "edge", Args: []interface{}{int64(e[0]), int64(e[1])}})
	}
	for _, n := range occupied {
		facts = append(facts, mangle.Fact{Predicate: "occupied", Args: []interface{}{int64(n)}})
	}
	for _, n := range origins {
		facts = append(facts, mangle.Fact{Predicate: "origin", Args: []interface{}{int64(n)}})
	}
	if err := engine.AddFacts(facts); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "evaluation")
		return nil, fmt.Errorf("evaluate feasibility: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := newSnapshot(k.graph, occupied)
	passable, err := engine.GetFacts("passable")
	if err != nil {
		return nil, err
	}
	for _, f := range passable {
		a, b, err := nodePair(f)
		if err != nil {
			return nil, err
		}
		s.passable[[2]Node{a, b}] = struct{}{}
	}
	reachable, err := engine.GetFacts("reachable")
	if err != nil {
		return nil, err
	}
	for _, f := range reachable {
		n, ok := f.Args[0].(int64)
		if !ok {
			return nil, fmt.Errorf("non-numeric node in %s", f)
		}
		s.reachable[Node(n)] = struct{}{}
	}

	span.SetAttributes(
		attribute.Int("passable", len(s.passable)),
		attribute.Int("reachable", len(s.reachable)),
	)
	stats := engine.GetStats()
	logging.Kernel("derived %d passable edges, %d reachable nodes from %d facts",
		len(s.passable), len(s.reachable), stats.TotalFacts)
	return s, nil
}

func nodePair(f mangle.Fact) (Node, Node, error) {
	a, okA := f.Args[0].(int64)
	b, okB := f.Args[1].(int64)
	if !okA || !okB {
		return 0, 0, fmt.Errorf("non-numeric nodes in %s", f)
	}
	return Node(a), Node(b), nil
}
