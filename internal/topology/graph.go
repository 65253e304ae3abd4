// Package topology holds the warehouse connectivity graph and the feasibility
// kernel that derives passable edges and reachable nodes for an occupied set.
package topology

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

var (
	// ErrAsymmetric is returned when an edge appears in only one direction.
	ErrAsymmetric = errors.New("asymmetric adjacency")
	// ErrUnknownNode is returned for a node id that is not in the graph.
	ErrUnknownNode = errors.New("unknown node")
)

// Node is a location id in the warehouse graph.
type Node int

// Graph is an immutable undirected graph. Build it with NewGraph; the zero
// value is an empty graph.
type Graph struct {
	adj map[Node][]Node
	set map[Node]map[Node]struct{}
}

// NewGraph validates and copies an adjacency map. Every edge must be listed
// from both ends and no node may list itself.
func NewGraph(adjacency map[Node][]Node) (*Graph, error) {
	g := &Graph{
		adj: make(map[Node][]Node, len(adjacency)),
		set: make(map[Node]map[Node]struct{}, len(adjacency)),
	}
	for n, neighbors := range adjacency {
		set := make(map[Node]struct{}, len(neighbors))
		for _, m := range neighbors {
			if m == n {
				return nil, fmt.Errorf("node %d lists itself as a neighbor", n)
			}
			set[m] = struct{}{}
		}
		sorted := make([]Node, 0, len(set))
		for m := range set {
			sorted = append(sorted, m)
		}
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		g.adj[n] = sorted
		g.set[n] = set
	}
	for n, neighbors := range g.adj {
		for _, m := range neighbors {
			if _, ok := g.set[m][n]; !ok {
				return nil, fmt.Errorf("%w: %d lists %d but %d does not list %d", ErrAsymmetric, n, m, m, n)
			}
		}
	}
	return g, nil
}

var warehouseAdjacency = map[Node][]Node{
	1:  {2, 16},
	2:  {1, 3, 15},
	3:  {2, 4, 14},
	4:  {3, 5},
	5:  {4, 6, 14},
	6:  {5, 7, 13},
	7:  {6, 8},
	8:  {7, 9, 12},
	9:  {8, 10},
	10: {9, 11, 16},
	11: {10, 12, 15},
	12: {11, 13, 8},
	13: {6, 12, 14},
	14: {3, 5, 13, 15},
	15: {2, 11, 14, 16},
	16: {1, 10, 15},
}

// Warehouse returns the default 16-node warehouse graph.
func Warehouse() *Graph {
	g, err := NewGraph(warehouseAdjacency)
	if err != nil {
		panic(fmt.Sprintf("warehouse graph: %v", err))
	}
	return g
}

type graphFile struct {
	Adjacency map[int][]int `yaml:"adjacency"`
}

// LoadGraph reads a YAML adjacency file:
//
//	adjacency:
//	  1: [2, 16]
//	  2: [1, 3, 15]
func LoadGraph(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read topology: %w", err)
	}
	var f graphFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse topology: %w", err)
	}
	if len(f.Adjacency) == 0 {
		return nil, fmt.Errorf("topology %s has no adjacency", path)
	}
	adj := make(map[Node][]Node, len(f.Adjacency))
	for n, neighbors := range f.Adjacency {
		for _, m := range neighbors {
			adj[Node(n)] = append(adj[Node(n)], Node(m))
		}
		if _, ok := adj[Node(n)]; !ok {
			adj[Node(n)] = nil
		}
	}
	return NewGraph(adj)
}

// Has reports whether n is a node of g.
func (g *Graph) Has(n Node) bool {
	_, ok := g.adj[n]
	return ok
}

// Neighbors returns n's neighbors in ascending order.
func (g *Graph) Neighbors(n Node) ([]Node, error) {
	neighbors, ok := g.adj[n]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownNode, n)
	}
	return append([]Node(nil), neighbors...), nil
}

// Adjacent reports whether a and b share an edge.
func (g *Graph) Adjacent(a, b Node) bool {
	_, ok := g.set[a][b]
	return ok
}

// Nodes returns all nodes in ascending order.
func (g *Graph) Nodes() []Node {
	nodes := make([]Node, 0, len(g.adj))
	for n := range g.adj {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })
	return nodes
}

// Edges returns every directed edge (both orientations), ordered by source
// then target.
func (g *Graph) Edges() [][2]Node {
	var edges [][2]Node
	for _, n := range g.Nodes() {
		for _, m := range g.adj[n] {
			edges = append(edges, [2]Node{n, m})
		}
	}
	return edges
}
