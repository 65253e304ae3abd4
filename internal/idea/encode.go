package idea

import (
	"fmt"
	"math"
)

// EncodeNumber is the inverse of LocalNumber. It fails for values that need
// more than three significant digits or an exponent beyond ±9.
func (c *Codec) EncodeNumber(v float64) ([]int, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("%w: cannot encode %g", ErrMalformed, v)
	}
	sign := TokenPlus
	if v < 0 {
		sign = TokenMinus
		v = -v
	}

	mantissa, exp, ok := split(v)
	if !ok {
		return nil, fmt.Errorf("%w: %g has no 3-digit representation", ErrMalformed, v)
	}
	expSign := TokenPlus
	if exp < 0 {
		expSign = TokenMinus
		exp = -exp
	}
	return []int{
		TokenZero + mantissa/100,
		TokenZero + (mantissa/10)%10,
		TokenZero + mantissa%10,
		sign,
		TokenZero + exp,
		expSign,
	}, nil
}

func split(v float64) (mantissa, exp int, ok bool) {
	const eps = 1e-9
	for e := 0; e <= 9; e++ {
		m := v / math.Pow10(e)
		if m <= 999 && (v == 0 || math.Round(m) >= 1) && math.Abs(m-math.Round(m)) < eps {
			return int(math.Round(m)), e, true
		}
	}
	for e := 1; e <= 9; e++ {
		m := v * math.Pow10(e)
		if math.Round(m) > 999 {
			break
		}
		if math.Abs(m-math.Round(m)) < eps*math.Pow10(e) {
			return int(math.Round(m)), -e, true
		}
	}
	return 0, 0, false
}

// Encode serializes an idea tree, children depth first, framed by the start and
// end tokens.
func (c *Codec) Encode(root *Idea) ([]int, error) {
	if root == nil {
		return nil, fmt.Errorf("%w: nil idea", ErrMalformed)
	}
	out := []int{c.start}
	rec, err := c.encodeRecord(root)
	if err != nil {
		return nil, err
	}
	out = append(out, rec...)
	if err := c.encodeChildren(root, &out); err != nil {
		return nil, err
	}
	return append(out, c.end), nil
}

func (c *Codec) encodeChildren(parent *Idea, out *[]int) error {
	for _, child := range parent.Children {
		pid, err := c.EncodeNumber(parent.ID)
		if err != nil {
			return fmt.Errorf("parent id of %q: %w", child.Name, err)
		}
		rec, err := c.encodeRecord(child)
		if err != nil {
			return err
		}
		*out = append(*out, pid...)
		*out = append(*out, rec...)
		if err := c.encodeChildren(child, out); err != nil {
			return err
		}
	}
	return nil
}

func (c *Codec) encodeRecord(rec *Idea) ([]int, error) {
	var out []int
	id, err := c.EncodeNumber(rec.ID)
	if err != nil {
		return nil, fmt.Errorf("id of %q: %w", rec.Name, err)
	}
	out = append(out, id...)

	name, ok := c.vocab.Token(rec.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not in the vocabulary", ErrMalformed, rec.Name)
	}
	typ := rec.Type
	if typ == "" {
		typ = "0"
	}
	typTok, ok := c.vocab.Token(typ)
	if !ok {
		return nil, fmt.Errorf("%w: type %q is not in the vocabulary", ErrMalformed, typ)
	}
	out = append(out, name, typTok)

	meta := rec.Metadata
	if meta == MetadataUnknown {
		meta = inferMetadata(rec.Value)
	}
	metaTok, ok := c.vocab.MetadataToken(meta)
	if !ok {
		return nil, fmt.Errorf("%w: no token for metadata %s", ErrMalformed, meta)
	}
	out = append(out, metaTok)

	var values []int
	count := 0
	switch rec.Value.Kind {
	case ValueNumber:
		count = 1
		values, err = c.EncodeNumber(rec.Value.Number)
	case ValueNumbers:
		count = len(rec.Value.Numbers)
		for _, n := range rec.Value.Numbers {
			var toks []int
			if toks, err = c.EncodeNumber(n); err != nil {
				break
			}
			values = append(values, toks...)
		}
	case ValueString:
		count = 1
		values, err = c.encodeWords(rec.Value.Str)
	case ValueStrings:
		count = len(rec.Value.Strings)
		values, err = c.encodeWords(rec.Value.Strings...)
	}
	if err != nil {
		return nil, fmt.Errorf("value of %q: %w", rec.Name, err)
	}
	if count == 0 && (rec.Value.Kind == ValueNumbers || rec.Value.Kind == ValueStrings) {
		return nil, fmt.Errorf("%w: empty list value on %q", ErrMalformed, rec.Name)
	}

	length, err := c.EncodeNumber(float64(count))
	if err != nil {
		return nil, err
	}
	out = append(out, length...)
	return append(out, values...), nil
}

func (c *Codec) encodeWords(words ...string) ([]int, error) {
	out := make([]int, 0, len(words))
	for _, w := range words {
		tok, ok := c.vocab.Token(w)
		if !ok {
			return nil, fmt.Errorf("%w: %q is not in the vocabulary", ErrMalformed, w)
		}
		out = append(out, tok)
	}
	return out, nil
}

func inferMetadata(v Value) MetadataType {
	switch v.Kind {
	case ValueNumber:
		return MetadataNumValue
	case ValueNumbers:
		return MetadataNumArray
	case ValueString:
		return MetadataStringValue
	case ValueStrings:
		return MetadataStringArray
	default:
		return MetadataObject
	}
}
