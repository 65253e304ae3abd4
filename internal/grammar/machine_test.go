package grammar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"situatedbeam/internal/idea"
)

// walk feeds tokens (after the start token) through the machine, asserting
// each one is legal at its position.
func walk(t *testing.T, m *Machine, tokens []int) Cursor {
	t.Helper()
	cursor := NewCursor()
	seq := []int{idea.TokenStart}
	for i, tok := range tokens {
		cat, allowed, next := m.Advance(cursor)
		require.Truef(t, m.Table().Contains(cat, tok), "token %d at %d not in %s (field %s)", tok, i, cat, next.Current())
		require.Contains(t, allowed, tok)
		seq = append(seq, tok)
		require.NoError(t, m.Complete(&next, seq))
		cursor = next
	}
	return cursor
}

func TestEncodedPlanIsGrammatical(t *testing.T) {
	codec := idea.NewCodec(nil)
	m := NewMachine(nil, codec)

	plan := &idea.Idea{
		ID:    1,
		Name:  "plan",
		Value: idea.String("PICK"),
		Children: []*idea.Idea{
			{ID: 2, Name: "moveToNode", Value: idea.Number(2)},
			{ID: 3, Name: "pick", Value: idea.Numbers(42, 2)},
			{ID: 4, Name: "goal", Metadata: idea.MetadataObject},
		},
	}
	tokens, err := codec.Encode(plan)
	require.NoError(t, err)

	walk(t, m, tokens[1:])
}

func TestLengthZeroQueuesOneValue(t *testing.T) {
	m := NewMachine(nil, idea.NewCodec(nil))
	tokens := []int{
		6, 6, 7, idea.TokenPlus, 6, idea.TokenPlus, // id 1
		16, 17, 18, // pick, type 0, NUM_VALUE
		6, 6, 6, idea.TokenPlus, 6, idea.TokenPlus, // length 0
	}
	cursor := walk(t, m, tokens)

	assert.Equal(t, FieldValue, cursor.Current())
	assert.Equal(t, numberField, cursor.Pending)
}

func TestFractionalLengthQueuesNoValues(t *testing.T) {
	m := NewMachine(nil, idea.NewCodec(nil))
	tokens := []int{
		6, 6, 7, idea.TokenPlus, 6, idea.TokenPlus, // id 1
		16, 17, 18, // pick, type 0, NUM_VALUE
		6, 6, 7, idea.TokenPlus, 7, idea.TokenMinus, // length 0.1
	}
	cursor := walk(t, m, tokens)

	assert.Equal(t, FieldValue, cursor.Current())
	assert.Empty(t, cursor.Pending)

	cat, _, next := m.Advance(cursor)
	assert.Equal(t, CategoryEnd, cat)
	assert.Equal(t, FieldParentID, next.Current())
}

func TestStringMetadataQueuesWords(t *testing.T) {
	m := NewMachine(nil, idea.NewCodec(nil))
	tokens := []int{
		6, 6, 7, idea.TokenPlus, 6, idea.TokenPlus,
		27, 17, 26, // plan, type 0, STRING_VALUE
		6, 6, 9, idea.TokenPlus, 6, idea.TokenPlus, // length 3
	}
	cursor := walk(t, m, tokens)

	assert.Equal(t, []Category{CategoryString, CategoryString, CategoryString}, cursor.Pending)
}

func TestObjectMetadataOpensChildRecord(t *testing.T) {
	m := NewMachine(nil, idea.NewCodec(nil))
	tokens := []int{
		6, 6, 7, idea.TokenPlus, 6, idea.TokenPlus,
		29, 17, 17, // goal, type 0, OBJECT
		6, 6, 7, idea.TokenPlus, 6, idea.TokenPlus,
	}
	cursor := walk(t, m, tokens)
	assert.Empty(t, cursor.Pending)

	cat, allowed, next := m.Advance(cursor)
	assert.Equal(t, CategoryEnd, cat)
	assert.Contains(t, allowed, idea.TokenEnd)
	assert.Equal(t, FieldParentID, next.Current())
	assert.Equal(t, []Field{FieldParentID, FieldID, FieldName, FieldType, FieldMetadata, FieldLength}, next.Fields)
}

func TestAdvanceLeavesInputCursorUntouched(t *testing.T) {
	m := NewMachine(nil, idea.NewCodec(nil))
	cursor := NewCursor()
	before := cursor.Clone()

	_, _, next := m.Advance(cursor)
	next.Pending[0] = CategorySpecial

	assert.Equal(t, before, cursor)
}

type fakeLexicon struct {
	words map[int]string
	meta  map[int]idea.MetadataType
}

func (f fakeLexicon) LocalNumber(tokens []int) (float64, error) {
	return idea.NewCodec(nil).LocalNumber(tokens)
}

func (f fakeLexicon) LocalString(token int) (string, error) {
	w, ok := f.words[token]
	if !ok {
		return "", idea.ErrMalformed
	}
	return w, nil
}

func (f fakeLexicon) MetadataTypeOf(code int) idea.MetadataType {
	return f.meta[code]
}

func TestUnknownMetadata(t *testing.T) {
	lex := fakeLexicon{
		words: map[int]string{18: "7"},
		meta:  map[int]idea.MetadataType{},
	}
	seq := []int{
		idea.TokenStart,
		6, 6, 7, idea.TokenPlus, 6, idea.TokenPlus,
		16, 17, 18,
		6, 6, 8, idea.TokenPlus, 6, idea.TokenPlus,
	}
	lengthCursor := func() Cursor {
		return Cursor{Fields: []Field{FieldLength}}
	}

	t.Run("permissive queues nothing", func(t *testing.T) {
		m := NewMachine(nil, lex)
		c := lengthCursor()
		require.NoError(t, m.Complete(&c, seq))
		assert.Empty(t, c.Pending)
		assert.Equal(t, FieldValue, c.Current())
	})
	t.Run("strict rejects", func(t *testing.T) {
		m := NewMachine(nil, lex, WithStrictMetadata(true))
		c := lengthCursor()
		assert.ErrorIs(t, m.Complete(&c, seq), ErrUnknownMetadata)
	})
}

func TestCompleteIgnoresOtherFields(t *testing.T) {
	m := NewMachine(nil, idea.NewCodec(nil))
	c := Cursor{Fields: []Field{FieldID, FieldName}}
	require.NoError(t, m.Complete(&c, []int{1, 6, 6, 7, 4, 6, 4}))
	assert.Equal(t, FieldID, c.Current())

	c = Cursor{Fields: []Field{FieldLength}}
	assert.ErrorIs(t, m.Complete(&c, []int{6, 6}), ErrShortSequence)
}

func TestDefaultTableOverlap(t *testing.T) {
	table := DefaultTable()
	for tok := idea.TokenZero; tok <= idea.TokenNine; tok++ {
		assert.True(t, table.Contains(CategoryNumber, tok))
		assert.True(t, table.Contains(CategoryEnd, tok))
	}
	assert.True(t, table.Contains(CategoryEnd, idea.TokenEnd))
	assert.False(t, table.Contains(CategoryNumber, idea.TokenEnd))
	assert.True(t, table.Contains(CategoryType, 17))
	assert.True(t, table.Contains(CategoryMetadata, 17))
}
