package grammar

// Field names a structural field of an idea record.
type Field string

const (
	FieldParentID    Field = "PARENT_ID"
	FieldID          Field = "ID"
	FieldName        Field = "NAME"
	FieldType        Field = "TYPE"
	FieldMetadata    Field = "METADATA"
	FieldLength      Field = "LENGTH"
	FieldNumValue    Field = "NUM_VALUE"
	FieldStringValue Field = "STRING_VALUE"
	FieldEnd         Field = "END"

	// FieldValue replaces LENGTH once its value run has been queued. It has no
	// categories of its own.
	FieldValue Field = "VALUE"
)

var numberField = []Category{
	CategoryNumber, CategoryNumber, CategoryNumber,
	CategorySignal, CategoryNumber, CategorySignal,
}

var fieldCategories = map[Field][]Category{
	FieldParentID: {
		CategoryEnd, CategoryNumber, CategoryNumber,
		CategorySignal, CategoryNumber, CategorySignal,
	},
	FieldID:          numberField,
	FieldName:        {CategoryString},
	FieldType:        {CategoryType},
	FieldMetadata:    {CategoryMetadata},
	FieldLength:      numberField,
	FieldNumValue:    numberField,
	FieldStringValue: {CategoryString},
	FieldEnd:         {CategoryEnd},
}

// Categories returns a fresh copy of the category run that completes f.
func (f Field) Categories() []Category {
	return append([]Category(nil), fieldCategories[f]...)
}

func recordFields(child bool) []Field {
	fields := []Field{FieldID, FieldName, FieldType, FieldMetadata, FieldLength}
	if child {
		fields = append([]Field{FieldParentID}, fields...)
	}
	return fields
}

// Cursor is the per-beam grammar position: the fields still to visit and the
// categories still required by the head field. Cursors have value semantics
// only after Clone; the zero value is not usable, use NewCursor.
type Cursor struct {
	Fields  []Field
	Pending []Category
}

// NewCursor positions a cursor at the start of a root record.
func NewCursor() Cursor {
	return Cursor{
		Fields:  recordFields(false),
		Pending: FieldID.Categories(),
	}
}

// Clone returns a cursor that shares no backing arrays with c.
func (c Cursor) Clone() Cursor {
	return Cursor{
		Fields:  append([]Field(nil), c.Fields...),
		Pending: append([]Category(nil), c.Pending...),
	}
}

// Current returns the field the next category belongs to.
func (c Cursor) Current() Field {
	if len(c.Fields) == 0 {
		return ""
	}
	return c.Fields[0]
}

// Next pops the next required category. When the head field is exhausted the
// cursor moves to the following field, and after the last field it opens a
// child record led by PARENT_ID.
func (c *Cursor) Next() Category {
	for len(c.Pending) == 0 {
		if len(c.Fields) > 0 {
			c.Fields = c.Fields[1:]
		}
		if len(c.Fields) == 0 {
			c.Fields = recordFields(true)
		}
		c.Pending = c.Fields[0].Categories()
	}
	cat := c.Pending[0]
	c.Pending = c.Pending[1:]
	return cat
}
