package idea

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePlan() *Idea {
	return &Idea{
		ID:    1,
		Name:  "plan",
		Value: String("PICK"),
		Children: []*Idea{
			{ID: 2, Name: "moveToNode", Value: Number(2)},
			{ID: 3, Name: "moveToNode", Value: Number(3)},
			{ID: 4, Name: "pick", Value: Numbers(42, 2)},
		},
	}
}

func TestLocalNumber(t *testing.T) {
	c := NewCodec(nil)
	tests := []struct {
		name   string
		tokens []int
		want   float64
	}{
		{"five", []int{6, 6, 11, TokenPlus, 6, TokenPlus}, 5},
		{"one-eighty-seven", []int{7, 14, 13, TokenPlus, 6, TokenPlus}, 187},
		{"negative", []int{6, 7, 8, TokenMinus, 6, TokenPlus}, -12},
		{"scaled down", []int{6, 7, 11, TokenPlus, 7, TokenMinus}, 1.5},
		{"scaled up", []int{6, 6, 8, TokenPlus, 8, TokenPlus}, 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.LocalNumber(tt.tokens)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestLocalNumberRejectsNonDigits(t *testing.T) {
	c := NewCodec(nil)

	_, err := c.LocalNumber([]int{16, 6, 6, TokenPlus, 6, TokenPlus})
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = c.LocalNumber([]int{6, 6, 6, 6, 6, TokenPlus})
	assert.ErrorIs(t, err, ErrMalformed, "position 3 must be a sign")

	_, err = c.LocalNumber([]int{6, 6, 6})
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestEncodeNumberInvertsLocalNumber(t *testing.T) {
	c := NewCodec(nil)
	for _, v := range []float64{0, 1, 5, 16, 187, 200, 1000, -3, 1.5, 0.25, 0.5, 0.1, 0.999, -0.75, 12.5} {
		toks, err := c.EncodeNumber(v)
		require.NoError(t, err, "%g", v)
		require.Len(t, toks, NumberWidth)
		got, err := c.LocalNumber(toks)
		require.NoError(t, err)
		assert.InDelta(t, v, got, 1e-9, "%g", v)
	}

	_, err := c.EncodeNumber(1234.5)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestMetadataTypeOf(t *testing.T) {
	c := NewCodec(nil)
	assert.Equal(t, MetadataObject, c.MetadataTypeOf(0))
	assert.Equal(t, MetadataNumValue, c.MetadataTypeOf(1))
	assert.Equal(t, MetadataNumArray, c.MetadataTypeOf(2))
	assert.Equal(t, MetadataStringValue, c.MetadataTypeOf(3))
	assert.Equal(t, MetadataUnknown, c.MetadataTypeOf(99))
}

func TestEncodeDecodeTree(t *testing.T) {
	c := NewCodec(nil)
	tokens, err := c.Encode(samplePlan())
	require.NoError(t, err)
	assert.Equal(t, TokenStart, tokens[0])
	assert.Equal(t, TokenEnd, tokens[len(tokens)-1])

	root, err := c.DecodeSequence(tokens)
	require.NoError(t, err)

	want := []ActionStep{
		{Name: "plan", Value: String("PICK")},
		{Name: "moveToNode", Value: Number(2)},
		{Name: "moveToNode", Value: Number(3)},
		{Name: "pick", Value: Numbers(42, 2)},
	}
	if diff := cmp.Diff(want, root.Steps()); diff != "" {
		t.Errorf("Steps() mismatch (-want +got):\n%s", diff)
	}
	for _, child := range root.Children {
		assert.Equal(t, float64(1), child.ParentID)
	}
}

func TestDecodeNestedChildrenStayOffThePlan(t *testing.T) {
	c := NewCodec(nil)
	plan := samplePlan()
	plan.Children[2].Children = []*Idea{{ID: 9, Name: "shelf", Value: Number(4)}}

	tokens, err := c.Encode(plan)
	require.NoError(t, err)
	root, err := c.DecodeSequence(tokens)
	require.NoError(t, err)

	assert.Len(t, root.Steps(), 4)
	require.Len(t, root.Children[2].Children, 1)
	assert.Equal(t, "shelf", root.Children[2].Children[0].Name)
}

func TestDecodeFailures(t *testing.T) {
	c := NewCodec(nil)
	valid, err := c.Encode(samplePlan())
	require.NoError(t, err)

	t.Run("empty", func(t *testing.T) {
		_, err := c.DecodeSequence([]int{TokenStart})
		assert.ErrorIs(t, err, ErrTruncated)
	})
	t.Run("truncated mid record", func(t *testing.T) {
		_, err := c.DecodeSequence(valid[:len(valid)-4])
		assert.ErrorIs(t, err, ErrTruncated)
	})
	t.Run("tokens after end", func(t *testing.T) {
		bad := append(append([]int{}, valid...), 6)
		_, err := c.DecodeSequence(bad)
		assert.ErrorIs(t, err, ErrMalformed)
	})
	t.Run("unknown parent", func(t *testing.T) {
		bad := append([]int{}, valid...)
		// first child's parent id sits right after the root record
		rootLen := 1 + NumberWidth + 3 + NumberWidth + 1
		bad[rootLen+2] = TokenZero + 7
		_, err := c.DecodeSequence(bad)
		assert.ErrorIs(t, err, ErrMalformed)
	})
	t.Run("word where digit expected", func(t *testing.T) {
		bad := append([]int{}, valid...)
		bad[1] = 16
		_, err := c.DecodeSequence(bad)
		assert.True(t, errors.Is(err, ErrMalformed))
	})
}

func TestDecodeUnterminatedAtRecordBoundary(t *testing.T) {
	c := NewCodec(nil)
	valid, err := c.Encode(samplePlan())
	require.NoError(t, err)

	root, err := c.DecodeSequence(valid[:len(valid)-1])
	require.NoError(t, err)
	assert.Len(t, root.Steps(), 4)
}

func TestValueCountClamps(t *testing.T) {
	for in, want := range map[float64]int{0: 1, -3: 1, 0.5: 0, 0.1: 0, 1: 1, 2: 2, 2.9: 2} {
		got, err := ValueCount(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, "%g", in)
	}
	_, err := ValueCount(5000)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeFractionalLengthHasNoValues(t *testing.T) {
	c := NewCodec(nil)
	tokens := []int{
		TokenStart,
		6, 6, 7, TokenPlus, 6, TokenPlus, // id 1
		16, 17, 18, // pick, type 0, NUM_VALUE
		6, 6, 7, TokenPlus, 7, TokenMinus, // length 0.1
		TokenEnd,
	}
	root, err := c.DecodeSequence(tokens)
	require.NoError(t, err)
	assert.Equal(t, "pick", root.Name)
	assert.Equal(t, ValueNumbers, root.Value.Kind)
	assert.Empty(t, root.Value.Numbers)
}

func TestLoadVocabulary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.yaml")
	content := `
words:
  16: go
  17: "0"
  18: "1"
metadata_types:
  0: OBJECT
  1: NUM_VALUE
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	v, err := LoadVocabulary(path)
	require.NoError(t, err)
	tok, ok := v.Token("go")
	assert.True(t, ok)
	assert.Equal(t, 16, tok)
	mt, ok := v.MetadataToken(MetadataNumValue)
	assert.True(t, ok)
	assert.Equal(t, 18, mt)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("words:\n  3: nope\n"), 0644))
	_, err = LoadVocabulary(bad)
	assert.Error(t, err)
}
