// Package beam implements grammar-constrained beam search over a token
// oracle.
package beam

import (
	"context"

	"situatedbeam/internal/grammar"
)

// Oracle scores the next token given the conditioning context and the
// sequence so far. The returned slice is indexed by token id.
type Oracle interface {
	Score(ctx context.Context, prompt, sequence []int) ([]float64, error)
}

// Item is one partial hypothesis. Items are values: successors copy their
// tokens and clone their cursor, so no two items share mutable state.
type Item struct {
	Tokens []int
	Score  float64

	// Finished is set once the last token is the end token.
	Finished bool
	// FinishedRound is the round in which a finished item first survived
	// selection; zero until then.
	FinishedRound int

	Cursor grammar.Cursor
}

// NewRoot returns the initial item: the start token, score zero, a fresh
// cursor.
func NewRoot(start int) Item {
	return Item{
		Tokens: []int{start},
		Cursor: grammar.NewCursor(),
	}
}

// Len is the number of tokens in the item, start token included.
func (it Item) Len() int {
	return len(it.Tokens)
}

// Last returns the final token, or -1 for an empty item.
func (it Item) Last() int {
	if len(it.Tokens) == 0 {
		return -1
	}
	return it.Tokens[len(it.Tokens)-1]
}

func (it Item) extend(token int, score float64, cursor grammar.Cursor, end int) Item {
	tokens := make([]int, len(it.Tokens), len(it.Tokens)+1)
	copy(tokens, it.Tokens)
	return Item{
		Tokens:   append(tokens, token),
		Score:    score,
		Finished: token == end,
		Cursor:   cursor,
	}
}
