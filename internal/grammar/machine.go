package grammar

import (
	"errors"
	"fmt"
	"strconv"

	"situatedbeam/internal/idea"
	"situatedbeam/internal/logging"
)

var (
	// ErrUnknownMetadata is returned in strict mode when a LENGTH field follows
	// a metadata token whose type is not string or numeric.
	ErrUnknownMetadata = errors.New("unrecognized metadata type")
	// ErrShortSequence is returned when a LENGTH field completes before the
	// metadata token it depends on was emitted.
	ErrShortSequence = errors.New("sequence too short for LENGTH refill")
)

// Lexicon is the slice of the symbolic decoder the grammar needs to size a
// record's value run.
type Lexicon interface {
	LocalNumber(tokens []int) (float64, error)
	LocalString(token int) (string, error)
	MetadataTypeOf(code int) idea.MetadataType
}

// Machine couples the static category table with the lexicon. It holds no
// per-beam state and is shared by all expansion workers.
type Machine struct {
	table   *Table
	lexicon Lexicon
	strict  bool
}

// Option configures a Machine.
type Option func(*Machine)

// WithStrictMetadata makes a LENGTH refill fail on metadata types that are
// neither string nor numeric instead of queueing no values.
func WithStrictMetadata(strict bool) Option {
	return func(m *Machine) { m.strict = strict }
}

// NewMachine creates a grammar machine. A nil table uses DefaultTable.
func NewMachine(table *Table, lexicon Lexicon, opts ...Option) *Machine {
	if table == nil {
		table = DefaultTable()
	}
	m := &Machine{table: table, lexicon: lexicon}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Table returns the machine's category table.
func (m *Machine) Table() *Table {
	return m.table
}

// Advance clones cursor, pops the next category and returns the category, its
// legal token ids and the advanced cursor. The input cursor is not modified.
func (m *Machine) Advance(cursor Cursor) (Category, []int, Cursor) {
	next := cursor.Clone()
	cat := next.Next()
	return cat, m.table.Allowed(cat), next
}

// Complete runs the refill step after a token was appended to seq. It only acts
// when the head field just finished and that field is LENGTH: the decoded
// length times the metadata type's value field is queued and LENGTH is
// replaced by the VALUE marker. A non-positive length counts as 1; a positive
// one is truncated, so 0.1 queues nothing.
func (m *Machine) Complete(cursor *Cursor, seq []int) error {
	if len(cursor.Pending) != 0 || cursor.Current() != FieldLength {
		return nil
	}
	if len(seq) < idea.NumberWidth+1 {
		return fmt.Errorf("%w: have %d tokens", ErrShortSequence, len(seq))
	}

	length, err := m.lexicon.LocalNumber(seq[len(seq)-idea.NumberWidth:])
	if err != nil {
		return fmt.Errorf("decode length: %w", err)
	}
	count, err := idea.ValueCount(length)
	if err != nil {
		return fmt.Errorf("decode length: %w", err)
	}

	metaTok := seq[len(seq)-idea.NumberWidth-1]
	word, err := m.lexicon.LocalString(metaTok)
	if err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}
	meta := idea.MetadataUnknown
	if code, convErr := strconv.Atoi(word); convErr == nil {
		meta = m.lexicon.MetadataTypeOf(code)
	}

	var valueField Field
	switch {
	case meta.IsString():
		valueField = FieldStringValue
	case meta.IsNumeric():
		valueField = FieldNumValue
	default:
		if m.strict && meta != idea.MetadataObject {
			return fmt.Errorf("%w: token %d spells %q", ErrUnknownMetadata, metaTok, word)
		}
	}

	if valueField != "" {
		run := fieldCategories[valueField]
		pending := make([]Category, 0, count*len(run))
		for i := 0; i < count; i++ {
			pending = append(pending, run...)
		}
		cursor.Pending = append(cursor.Pending, pending...)
	}
	cursor.Fields[0] = FieldValue

	logging.GrammarDebug("LENGTH complete: metadata=%s count=%d queued=%d", meta, count, len(cursor.Pending))
	return nil
}
