package idea

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

var (
	// ErrMalformed marks a token sequence that does not form a valid idea tree.
	ErrMalformed = errors.New("malformed idea sequence")
	// ErrTruncated marks a sequence that stops in the middle of a record.
	ErrTruncated = errors.New("truncated idea sequence")
)

// NumberWidth is the token count of one local number: three mantissa digits,
// a sign, one exponent digit and the exponent sign.
const NumberWidth = 6

// maxValues bounds how many values a single record may declare.
const maxValues = 4096

// Codec is the reference decoder for the planner's token language.
type Codec struct {
	vocab *Vocabulary
	start int
	end   int
}

// NewCodec creates a codec over vocab. A nil vocab uses DefaultVocabulary.
func NewCodec(vocab *Vocabulary) *Codec {
	if vocab == nil {
		vocab = DefaultVocabulary()
	}
	return &Codec{vocab: vocab, start: TokenStart, end: TokenEnd}
}

// Vocabulary returns the codec's vocabulary.
func (c *Codec) Vocabulary() *Vocabulary {
	return c.vocab
}

// LocalNumber decodes six tokens `d d d s e s'` as s * ddd * 10^(s' * e).
func (c *Codec) LocalNumber(tokens []int) (float64, error) {
	if len(tokens) != NumberWidth {
		return 0, fmt.Errorf("%w: number needs %d tokens, got %d", ErrMalformed, NumberWidth, len(tokens))
	}
	mantissa := 0
	for _, tok := range tokens[:3] {
		d, err := digit(tok)
		if err != nil {
			return 0, err
		}
		mantissa = mantissa*10 + d
	}
	sign, err := signOf(tokens[3])
	if err != nil {
		return 0, err
	}
	exp, err := digit(tokens[4])
	if err != nil {
		return 0, err
	}
	expSign, err := signOf(tokens[5])
	if err != nil {
		return 0, err
	}
	return float64(sign) * float64(mantissa) * math.Pow10(expSign*exp), nil
}

// LocalString returns the word spelled by a single token.
func (c *Codec) LocalString(token int) (string, error) {
	w, ok := c.vocab.Word(token)
	if !ok {
		return "", fmt.Errorf("%w: token %d is not a word", ErrMalformed, token)
	}
	return w, nil
}

// MetadataTypeOf maps a numeric metadata code to its type.
func (c *Codec) MetadataTypeOf(code int) MetadataType {
	name, ok := c.vocab.MetadataTypes[code]
	if !ok {
		return MetadataUnknown
	}
	return ParseMetadataType(name)
}

// metadataOf decodes a metadata token: its word is a numeric code.
func (c *Codec) metadataOf(token int) (MetadataType, error) {
	w, err := c.LocalString(token)
	if err != nil {
		return MetadataUnknown, err
	}
	code, err := strconv.Atoi(w)
	if err != nil {
		return MetadataUnknown, fmt.Errorf("%w: metadata token %d spells %q", ErrMalformed, token, w)
	}
	return c.MetadataTypeOf(code), nil
}

func digit(tok int) (int, error) {
	if tok < TokenZero || tok > TokenNine {
		return 0, fmt.Errorf("%w: token %d is not a digit", ErrMalformed, tok)
	}
	return tok - TokenZero, nil
}

func signOf(tok int) (int, error) {
	switch tok {
	case TokenPlus:
		return 1, nil
	case TokenMinus:
		return -1, nil
	default:
		return 0, fmt.Errorf("%w: token %d is not a sign", ErrMalformed, tok)
	}
}

// ValueCount turns a decoded LENGTH into a value count. Non-positive lengths
// count as 1; positive ones are truncated toward zero, so a fraction below 1
// yields no values.
func ValueCount(length float64) (int, error) {
	if math.IsNaN(length) || length > maxValues {
		return 0, fmt.Errorf("%w: length %g out of range", ErrMalformed, length)
	}
	if length <= 0 {
		return 1, nil
	}
	return int(math.Trunc(length)), nil
}

// reader walks a token sequence record by record.
type reader struct {
	c      *Codec
	tokens []int
	pos    int
}

func (r *reader) take(n int) ([]int, error) {
	if r.pos+n > len(r.tokens) {
		return nil, fmt.Errorf("%w: need %d tokens at %d, have %d", ErrTruncated, n, r.pos, len(r.tokens)-r.pos)
	}
	out := r.tokens[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *reader) number() (float64, error) {
	toks, err := r.take(NumberWidth)
	if err != nil {
		return 0, err
	}
	return r.c.LocalNumber(toks)
}

func (r *reader) word() (string, error) {
	toks, err := r.take(1)
	if err != nil {
		return "", err
	}
	return r.c.LocalString(toks[0])
}

func (r *reader) record() (*Idea, error) {
	id, err := r.number()
	if err != nil {
		return nil, fmt.Errorf("id: %w", err)
	}
	name, err := r.word()
	if err != nil {
		return nil, fmt.Errorf("name: %w", err)
	}
	typ, err := r.word()
	if err != nil {
		return nil, fmt.Errorf("type: %w", err)
	}
	metaTok, err := r.take(1)
	if err != nil {
		return nil, fmt.Errorf("metadata: %w", err)
	}
	meta, err := r.c.metadataOf(metaTok[0])
	if err != nil {
		return nil, fmt.Errorf("metadata: %w", err)
	}
	length, err := r.number()
	if err != nil {
		return nil, fmt.Errorf("length: %w", err)
	}
	count, err := ValueCount(length)
	if err != nil {
		return nil, err
	}

	rec := &Idea{ID: id, Name: name, Type: typ, Metadata: meta}
	switch {
	case meta.IsNumeric():
		nums := make([]float64, 0, count)
		for i := 0; i < count; i++ {
			v, err := r.number()
			if err != nil {
				return nil, fmt.Errorf("value %d: %w", i, err)
			}
			nums = append(nums, v)
		}
		if len(nums) == 1 && !meta.IsArray() {
			rec.Value = Number(nums[0])
		} else {
			rec.Value = Numbers(nums...)
		}
	case meta.IsString():
		strs := make([]string, 0, count)
		for i := 0; i < count; i++ {
			s, err := r.word()
			if err != nil {
				return nil, fmt.Errorf("value %d: %w", i, err)
			}
			strs = append(strs, s)
		}
		if len(strs) == 1 && !meta.IsArray() {
			rec.Value = String(strs[0])
		} else {
			rec.Value = Strings(strs...)
		}
	}
	return rec, nil
}

// DecodeSequence converts a token sequence into its idea tree. A leading start
// token is skipped; decoding stops at the end token or at a record boundary
// when tokens run out.
func (c *Codec) DecodeSequence(tokens []int) (*Idea, error) {
	r := &reader{c: c, tokens: tokens}
	if len(tokens) > 0 && tokens[0] == c.start {
		r.pos++
	}
	if r.pos >= len(tokens) {
		return nil, fmt.Errorf("%w: empty sequence", ErrTruncated)
	}

	root, err := r.record()
	if err != nil {
		return nil, fmt.Errorf("root record: %w", err)
	}
	byID := map[float64]*Idea{root.ID: root}

	for r.pos < len(tokens) {
		if tokens[r.pos] == c.end {
			if r.pos != len(tokens)-1 {
				return nil, fmt.Errorf("%w: %d tokens after end", ErrMalformed, len(tokens)-1-r.pos)
			}
			break
		}
		parentID, err := r.number()
		if err != nil {
			return nil, fmt.Errorf("parent id: %w", err)
		}
		child, err := r.record()
		if err != nil {
			return nil, fmt.Errorf("child record: %w", err)
		}
		parent, ok := byID[parentID]
		if !ok {
			return nil, fmt.Errorf("%w: unknown parent id %g", ErrMalformed, parentID)
		}
		child.ParentID = parentID
		parent.Children = append(parent.Children, child)
		byID[child.ID] = child
	}
	return root, nil
}
