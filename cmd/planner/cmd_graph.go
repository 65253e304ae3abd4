package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"situatedbeam/internal/topology"
)

var (
	graphOccupied []int
	graphFrom     int
)

func registerGraphFlags(cmd *cobra.Command) {
	cmd.Flags().IntSliceVar(&graphOccupied, "occupied", nil, "Occupied nodes")
	cmd.Flags().IntVar(&graphFrom, "from", 1, "Node reachability is computed from")
}

// runGraph prints the adjacency list with occupied markers and the nodes
// reachable from --from.
func runGraph(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	g, err := buildGraph(cfg)
	if err != nil {
		return err
	}
	from := topology.Node(graphFrom)
	if !g.Has(from) {
		return fmt.Errorf("%w: %d", topology.ErrUnknownNode, graphFrom)
	}
	occupied := make([]topology.Node, len(graphOccupied))
	for i, n := range graphOccupied {
		occupied[i] = topology.Node(n)
	}

	snap, err := topology.NewKernel(g).Derive(ctx, occupied, from)
	if err != nil {
		return fmt.Errorf("feasibility derivation failed: %w", err)
	}

	out := cmd.OutOrStdout()
	for _, n := range g.Nodes() {
		neighbors, _ := g.Neighbors(n)
		marker := " "
		if snap.Occupied(n) {
			marker = "*"
		}
		fmt.Fprintf(out, "%s%3d -> %s\n", marker, n, joinNodes(neighbors))
	}
	fmt.Fprintf(out, "Reachable from %d: %s\n", from, joinNodes(snap.ReachableNodes()))
	return nil
}

func joinNodes(nodes []topology.Node) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = fmt.Sprint(int(n))
	}
	return strings.Join(parts, " ")
}
