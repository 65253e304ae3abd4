// Package grammar is the token-category state machine that constrains beam
// expansion to well-formed idea records.
package grammar

import "sort"

// Category names a class of tokens legal at a sequence position.
type Category string

const (
	CategoryNumber   Category = "NUMBER"
	CategorySignal   Category = "SIGNAL"
	CategoryString   Category = "STRING"
	CategoryType     Category = "TYPE"
	CategoryMetadata Category = "METADATA"
	CategorySpecial  Category = "SPECIAL"
	CategoryEnd      Category = "END"
)

// Table maps each category to its member token ids. It is immutable after
// construction and safe for concurrent reads.
type Table struct {
	members map[Category][]int
	sets    map[Category]map[int]struct{}
}

// NewTable builds a table from category memberships. Member lists are copied
// and sorted.
func NewTable(members map[Category][]int) *Table {
	t := &Table{
		members: make(map[Category][]int, len(members)),
		sets:    make(map[Category]map[int]struct{}, len(members)),
	}
	for cat, ids := range members {
		sorted := append([]int(nil), ids...)
		sort.Ints(sorted)
		set := make(map[int]struct{}, len(sorted))
		for _, id := range sorted {
			set[id] = struct{}{}
		}
		t.members[cat] = sorted
		t.sets[cat] = set
	}
	return t
}

// DefaultTable is the warehouse token category table. END overlaps NUMBER: the
// first position of a PARENT_ID may either close the sequence or start a digit.
func DefaultTable() *Table {
	return NewTable(map[Category][]int{
		CategoryNumber:   {6, 7, 8, 9, 10, 11, 12, 13, 14, 15},
		CategorySignal:   {4, 5},
		CategoryString:   {16, 19, 20, 22, 23, 24, 25, 27, 28, 29, 30, 31, 32},
		CategoryType:     {17},
		CategoryMetadata: {17, 18, 21, 26},
		CategorySpecial:  {2},
		CategoryEnd:      {2, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15},
	})
}

// Allowed returns the sorted token ids of a category. The slice is shared;
// callers must not modify it.
func (t *Table) Allowed(c Category) []int {
	return t.members[c]
}

// Contains reports whether token belongs to category c.
func (t *Table) Contains(c Category, token int) bool {
	_, ok := t.sets[c][token]
	return ok
}
