// Package idea decodes grammar-conformant token sequences into trees of typed
// action steps, and encodes them back for scripted runs and tests.
package idea

import (
	"fmt"
	"strings"
)

// MetadataType classifies how many and what kind of values follow a record's
// LENGTH field.
type MetadataType int

const (
	MetadataUnknown MetadataType = iota
	MetadataObject
	MetadataNumValue
	MetadataNumArray
	MetadataStringValue
	MetadataStringArray
)

var metadataNames = map[MetadataType]string{
	MetadataUnknown:     "UNKNOWN",
	MetadataObject:      "OBJECT",
	MetadataNumValue:    "NUM_VALUE",
	MetadataNumArray:    "NUM_ARRAY",
	MetadataStringValue: "STRING_VALUE",
	MetadataStringArray: "STRING_ARRAY",
}

func (m MetadataType) String() string {
	if name, ok := metadataNames[m]; ok {
		return name
	}
	return fmt.Sprintf("MetadataType(%d)", int(m))
}

// ParseMetadataType maps a metadata name to its type. Unrecognized names map to
// MetadataUnknown.
func ParseMetadataType(name string) MetadataType {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for m, n := range metadataNames {
		if n == upper {
			return m
		}
	}
	return MetadataUnknown
}

// IsNumeric reports whether the type carries numeric values.
func (m MetadataType) IsNumeric() bool {
	return m == MetadataNumValue || m == MetadataNumArray
}

// IsString reports whether the type carries string values.
func (m MetadataType) IsString() bool {
	return m == MetadataStringValue || m == MetadataStringArray
}

// IsArray reports whether decoded values always form a list.
func (m MetadataType) IsArray() bool {
	return m == MetadataNumArray || m == MetadataStringArray
}

// ValueKind tags the populated member of a Value.
type ValueKind int

const (
	ValueNone ValueKind = iota
	ValueNumber
	ValueNumbers
	ValueString
	ValueStrings
)

func (k ValueKind) String() string {
	switch k {
	case ValueNumber:
		return "number"
	case ValueNumbers:
		return "numbers"
	case ValueString:
		return "string"
	case ValueStrings:
		return "strings"
	default:
		return "none"
	}
}

// Value is the typed payload of an action step: a scalar or a list.
type Value struct {
	Kind    ValueKind `json:"kind" yaml:"kind"`
	Number  float64   `json:"number,omitempty" yaml:"number,omitempty"`
	Numbers []float64 `json:"numbers,omitempty" yaml:"numbers,omitempty"`
	Str     string    `json:"str,omitempty" yaml:"str,omitempty"`
	Strings []string  `json:"strings,omitempty" yaml:"strings,omitempty"`
}

// Number returns a scalar numeric value.
func Number(v float64) Value { return Value{Kind: ValueNumber, Number: v} }

// Numbers returns a numeric list value.
func Numbers(vs ...float64) Value { return Value{Kind: ValueNumbers, Numbers: vs} }

// String returns a scalar string value.
func String(s string) Value { return Value{Kind: ValueString, Str: s} }

// Strings returns a string list value.
func Strings(ss ...string) Value { return Value{Kind: ValueStrings, Strings: ss} }

func (v Value) String() string {
	switch v.Kind {
	case ValueNumber:
		return fmt.Sprintf("%g", v.Number)
	case ValueNumbers:
		return fmt.Sprintf("%v", v.Numbers)
	case ValueString:
		return v.Str
	case ValueStrings:
		return fmt.Sprintf("%v", v.Strings)
	default:
		return "<none>"
	}
}

// Idea is one decoded record and its children.
type Idea struct {
	ID       float64
	ParentID float64
	Name     string
	Type     string
	Metadata MetadataType
	Value    Value
	Children []*Idea
}

// ActionStep is a decoded symbolic instruction.
type ActionStep struct {
	Name  string `json:"name" yaml:"name"`
	Value Value  `json:"value" yaml:"value"`
}

// Steps flattens the root and its direct children into plan order.
func (i *Idea) Steps() []ActionStep {
	if i == nil {
		return nil
	}
	steps := make([]ActionStep, 0, 1+len(i.Children))
	steps = append(steps, ActionStep{Name: i.Name, Value: i.Value})
	for _, child := range i.Children {
		steps = append(steps, ActionStep{Name: child.Name, Value: child.Value})
	}
	return steps
}
