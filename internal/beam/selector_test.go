package beam

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectKeepsWidthLowestScores(t *testing.T) {
	pool := []Item{
		{Tokens: []int{1, 6}, Score: 3},
		{Tokens: []int{1, 7}, Score: 1},
		{Tokens: []int{1, 8}, Score: 2},
		{Tokens: []int{1, 9}, Score: 1},
		{Tokens: []int{1, 10}, Score: 0.5},
	}
	got := Select(pool, 3)

	assert.Len(t, got, 3)
	assert.Equal(t, 10, got[0].Last())
	assert.Equal(t, 7, got[1].Last(), "ties keep pool order")
	assert.Equal(t, 9, got[2].Last())
	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, got[i-1].Score, got[i].Score)
	}
	assert.Equal(t, float64(3), pool[0].Score, "pool is not reordered")
}

func TestSelectDropsNaNAndHandlesSmallPools(t *testing.T) {
	pool := []Item{
		{Tokens: []int{1, 6}, Score: math.NaN()},
		{Tokens: []int{1, 7}, Score: 4},
	}
	got := Select(pool, 5)
	assert.Len(t, got, 1)
	assert.Equal(t, 7, got[0].Last())

	assert.Empty(t, Select(nil, 5))
}

func TestExpandAllCarriesFinishedItems(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinFinishLength = 3
	e := NewExpander(fakeOracle{}, nil, cfg)

	long := Item{Tokens: []int{1, 6, 7, 8, cfg.EndToken}, Score: 1.5}
	short := Item{Tokens: []int{1, cfg.EndToken}, Score: 0.1}
	out, err := e.ExpandAll(t.Context(), nil, []Item{short, long})

	assert.NoError(t, err)
	assert.Equal(t, 1, out.Dropped)
	if assert.Len(t, out.Pool, 1) {
		assert.Equal(t, long.Tokens, out.Pool[0].Tokens)
		assert.Equal(t, 1.5, out.Pool[0].Score)
		assert.True(t, out.Pool[0].Finished)
	}
}
