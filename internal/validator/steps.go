// Package validator filters decoded plans against per-step range contracts and
// the warehouse graph.
package validator

import (
	"errors"
	"fmt"

	"situatedbeam/internal/idea"
)

var (
	// ErrStructural marks a step whose value breaks its range contract.
	ErrStructural = errors.New("structural check failed")
	// ErrGraph marks a plan that is physically impossible on the graph.
	ErrGraph = errors.New("graph check failed")
)

// StepKind is the closed set of step names with a range contract.
type StepKind int

const (
	StepOther StepKind = iota
	StepPick
	StepPlace
	StepMoveTo
	StepMoveToNode
)

var stepNames = map[StepKind]string{
	StepOther:      "other",
	StepPick:       "pick",
	StepPlace:      "place",
	StepMoveTo:     "moveTo",
	StepMoveToNode: "moveToNode",
}

func (k StepKind) String() string {
	if name, ok := stepNames[k]; ok {
		return name
	}
	return fmt.Sprintf("StepKind(%d)", int(k))
}

// ParseStepKind maps a decoded step name to its kind. Names are matched
// exactly; anything unknown is StepOther.
func ParseStepKind(name string) StepKind {
	switch name {
	case "pick":
		return StepPick
	case "place":
		return StepPlace
	case "moveTo":
		return StepMoveTo
	case "moveToNode":
		return StepMoveToNode
	default:
		return StepOther
	}
}

// Location and node bounds of the warehouse.
const (
	MaxLocation = 187
	MinSlot     = 1
	MaxSlot     = 4
	MinNode     = 1
	MaxNode     = 16
)

// CheckRange applies the range contract of the step's kind. Every violation
// wraps ErrStructural.
func CheckRange(step idea.ActionStep) error {
	v := step.Value
	switch kind := ParseStepKind(step.Name); kind {
	case StepPick, StepPlace:
		if v.Kind != idea.ValueNumbers || len(v.Numbers) != 2 {
			return fmt.Errorf("%w: %s needs a 2-element value, got %s", ErrStructural, kind, v)
		}
		if !within(v.Numbers[0], 0, MaxLocation) {
			return fmt.Errorf("%w: %s location %g outside [0,%d]", ErrStructural, kind, v.Numbers[0], MaxLocation)
		}
		if !within(v.Numbers[1], MinSlot, MaxSlot) {
			return fmt.Errorf("%w: %s slot %g outside [%d,%d]", ErrStructural, kind, v.Numbers[1], MinSlot, MaxSlot)
		}
	case StepMoveTo:
		if v.Kind != idea.ValueNumber {
			return fmt.Errorf("%w: moveTo needs a single value, got %s", ErrStructural, v)
		}
		if !within(v.Number, 0, MaxLocation) {
			return fmt.Errorf("%w: moveTo location %g outside [0,%d]", ErrStructural, v.Number, MaxLocation)
		}
	case StepMoveToNode:
		if v.Kind != idea.ValueNumber {
			return fmt.Errorf("%w: moveToNode needs a single value, got %s", ErrStructural, v)
		}
		if !within(v.Number, MinNode, MaxNode) {
			return fmt.Errorf("%w: moveToNode node %g outside [%d,%d]", ErrStructural, v.Number, MinNode, MaxNode)
		}
	}
	return nil
}

func within(v float64, lo, hi int) bool {
	return v >= float64(lo) && v <= float64(hi)
}
