package topology

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"situatedbeam/internal/mangle"
)

func TestWarehouseIsSymmetric(t *testing.T) {
	g := Warehouse()
	require.Len(t, g.Nodes(), 16)
	for _, e := range g.Edges() {
		assert.Truef(t, g.Adjacent(e[1], e[0]), "edge %d-%d missing reverse", e[0], e[1])
	}

	n, err := g.Neighbors(1)
	require.NoError(t, err)
	assert.Equal(t, []Node{2, 16}, n)
	assert.False(t, g.Adjacent(1, 5))
	assert.True(t, g.Adjacent(14, 15))
}

func TestNewGraphRejectsBadAdjacency(t *testing.T) {
	_, err := NewGraph(map[Node][]Node{1: {2}, 2: {}})
	assert.ErrorIs(t, err, ErrAsymmetric)

	_, err = NewGraph(map[Node][]Node{1: {2}})
	assert.ErrorIs(t, err, ErrAsymmetric, "neighbor missing from the map")

	_, err = NewGraph(map[Node][]Node{1: {1}})
	assert.Error(t, err)
}

func TestNewGraphCopiesInput(t *testing.T) {
	adj := map[Node][]Node{1: {2}, 2: {1}}
	g, err := NewGraph(adj)
	require.NoError(t, err)
	adj[1][0] = 9
	assert.True(t, g.Adjacent(1, 2))

	n, err := g.Neighbors(1)
	require.NoError(t, err)
	n[0] = 7
	assert.True(t, g.Adjacent(1, 2))

	_, err = g.Neighbors(3)
	assert.ErrorIs(t, err, ErrUnknownNode)
}

func TestLoadGraph(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ring.yaml")
	require.NoError(t, os.WriteFile(path, []byte("adjacency:\n  1: [2, 3]\n  2: [1, 3]\n  3: [1, 2]\n"), 0644))

	g, err := LoadGraph(path)
	require.NoError(t, err)
	assert.Equal(t, []Node{1, 2, 3}, g.Nodes())
	assert.True(t, g.Adjacent(3, 1))

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("adjacency:\n  1: [2]\n  2: []\n"), 0644))
	_, err = LoadGraph(bad)
	assert.ErrorIs(t, err, ErrAsymmetric)

	_, err = LoadGraph(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestDirectBlocksOccupiedSources(t *testing.T) {
	g := Warehouse()
	s := Direct(g, []Node{2, 16}, 1)

	assert.True(t, s.Occupied(2))
	assert.False(t, s.Passable(2, 3), "cannot leave an occupied node")
	assert.True(t, s.Passable(1, 2), "can enter an occupied node")
	assert.Equal(t, []Node{1, 2, 16}, s.ReachableNodes())
}

func TestKernelMatchesDirect(t *testing.T) {
	g := Warehouse()
	k := NewKernel(g)
	cases := []struct {
		name     string
		occupied []Node
		origins  []Node
	}{
		{"free floor", nil, []Node{1}},
		{"blocked corridor", []Node{2, 16}, []Node{1}},
		{"split", []Node{5, 13, 3, 15}, []Node{4}},
		{"no origin", []Node{7}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := k.Derive(context.Background(), tc.occupied, tc.origins...)
			require.NoError(t, err)
			want := Direct(g, tc.occupied, tc.origins...)

			if diff := cmp.Diff(want.ReachableNodes(), got.ReachableNodes()); diff != "" {
				t.Errorf("reachable mismatch (-direct +kernel):\n%s", diff)
			}
			for _, e := range g.Edges() {
				assert.Equalf(t, want.Passable(e[0], e[1]), got.Passable(e[0], e[1]), "edge %v", e)
			}
		})
	}
}

func TestKernelHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewKernel(Warehouse()).Derive(ctx, nil, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNodePairNamesTheBadFact(t *testing.T) {
	a, b, err := nodePair(mangle.Fact{Predicate: "passable", Args: []interface{}{int64(1), int64(2)}})
	require.NoError(t, err)
	assert.Equal(t, Node(1), a)
	assert.Equal(t, Node(2), b)

	_, _, err = nodePair(mangle.Fact{Predicate: "passable", Args: []interface{}{int64(1), "/dock"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "passable(1, /dock).")
}
