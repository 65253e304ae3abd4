package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"situatedbeam/internal/idea"
)

func TestParseStepKind(t *testing.T) {
	assert.Equal(t, StepPick, ParseStepKind("pick"))
	assert.Equal(t, StepPlace, ParseStepKind("place"))
	assert.Equal(t, StepMoveTo, ParseStepKind("moveTo"))
	assert.Equal(t, StepMoveToNode, ParseStepKind("moveToNode"))
	assert.Equal(t, StepOther, ParseStepKind("MoveToNode"))
	assert.Equal(t, StepOther, ParseStepKind("shelf"))
	assert.Equal(t, "moveToNode", StepMoveToNode.String())
}

func TestCheckRange(t *testing.T) {
	tests := []struct {
		name  string
		step  idea.ActionStep
		valid bool
	}{
		{"pick in range", idea.ActionStep{Name: "pick", Value: idea.Numbers(187, 4)}, true},
		{"pick location too high", idea.ActionStep{Name: "pick", Value: idea.Numbers(200, 2)}, false},
		{"pick slot zero", idea.ActionStep{Name: "pick", Value: idea.Numbers(10, 0)}, false},
		{"pick scalar", idea.ActionStep{Name: "pick", Value: idea.Number(10)}, false},
		{"place three values", idea.ActionStep{Name: "place", Value: idea.Numbers(1, 2, 3)}, false},
		{"place lower bounds", idea.ActionStep{Name: "place", Value: idea.Numbers(0, 1)}, true},
		{"moveTo in range", idea.ActionStep{Name: "moveTo", Value: idea.Number(0)}, true},
		{"moveTo negative", idea.ActionStep{Name: "moveTo", Value: idea.Number(-1)}, false},
		{"moveTo list", idea.ActionStep{Name: "moveTo", Value: idea.Numbers(3)}, false},
		{"moveToNode upper bound", idea.ActionStep{Name: "moveToNode", Value: idea.Number(16)}, true},
		{"moveToNode zero", idea.ActionStep{Name: "moveToNode", Value: idea.Number(0)}, false},
		{"moveToNode string", idea.ActionStep{Name: "moveToNode", Value: idea.String("dock")}, false},
		{"other anything", idea.ActionStep{Name: "plan", Value: idea.Numbers(999, 999)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckRange(tt.step)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrStructural)
			}
		})
	}
}
