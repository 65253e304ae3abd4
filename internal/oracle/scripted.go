package oracle

import (
	"context"
	"fmt"
)

// Func adapts a plain function to beam.Oracle.
type Func func(ctx context.Context, prompt, sequence []int) ([]float64, error)

// Score calls f.
func (f Func) Score(ctx context.Context, prompt, sequence []int) ([]float64, error) {
	return f(ctx, prompt, sequence)
}

// Scripted is a deterministic oracle that puts a high logit on the next token
// of a fixed script and a flat floor everywhere else. Past the script's end
// every token gets the floor, except the end token which gets Penalty.
type Scripted struct {
	Script    []int
	VocabSize int
	EndToken  int
	Boost     float64
	Penalty   float64
}

// NewScripted creates a scripted oracle over a vocabulary of vocabSize
// tokens.
func NewScripted(script []int, vocabSize, endToken int) *Scripted {
	return &Scripted{
		Script:    append([]int(nil), script...),
		VocabSize: vocabSize,
		EndToken:  endToken,
		Boost:     8,
		Penalty:   -8,
	}
}

// Score implements beam.Oracle. The sequence position is its length, so the
// script is followed only by items that have matched it so far in length.
func (s *Scripted) Score(ctx context.Context, _, sequence []int) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.VocabSize <= 0 {
		return nil, fmt.Errorf("scripted oracle has no vocabulary")
	}
	logits := make([]float64, s.VocabSize)
	if s.EndToken >= 0 && s.EndToken < s.VocabSize {
		logits[s.EndToken] = s.Penalty
	}
	if pos := len(sequence); pos < len(s.Script) {
		tok := s.Script[pos]
		if tok < 0 || tok >= s.VocabSize {
			return nil, fmt.Errorf("script token %d at %d outside vocabulary of %d", tok, pos, s.VocabSize)
		}
		logits[tok] = s.Boost
	}
	return logits, nil
}
