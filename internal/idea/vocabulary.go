package idea

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Reserved token ids shared by every vocabulary.
const (
	TokenPad   = 0
	TokenStart = 1
	TokenEnd   = 2
	TokenPlus  = 4
	TokenMinus = 5
	TokenZero  = 6 // digits 0..9 occupy 6..15
	TokenNine  = 15
)

// Vocabulary maps word tokens to their strings and metadata codes to types.
type Vocabulary struct {
	Words         map[int]string `yaml:"words"`
	MetadataTypes map[int]string `yaml:"metadata_types"`

	reverse map[string]int
}

// DefaultVocabulary is the warehouse robot vocabulary. Metadata tokens 17, 18,
// 21 and 26 carry numeric codes; token 17 doubles as the TYPE token.
func DefaultVocabulary() *Vocabulary {
	v := &Vocabulary{
		Words: map[int]string{
			16: "pick",
			17: "0",
			18: "1",
			19: "place",
			20: "moveTo",
			21: "2",
			22: "moveToNode",
			23: "PICK",
			24: "PLACE",
			25: "MOVE",
			26: "3",
			27: "plan",
			28: "step",
			29: "goal",
			30: "shelf",
			31: "dock",
			32: "charger",
		},
		MetadataTypes: map[int]string{
			0: "OBJECT",
			1: "NUM_VALUE",
			2: "NUM_ARRAY",
			3: "STRING_VALUE",
			4: "STRING_ARRAY",
		},
	}
	v.index()
	return v
}

// LoadVocabulary reads a YAML vocabulary file.
func LoadVocabulary(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vocabulary: %w", err)
	}
	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to parse vocabulary: %w", err)
	}
	if err := v.validate(); err != nil {
		return nil, err
	}
	v.index()
	return &v, nil
}

func (v *Vocabulary) validate() error {
	if len(v.Words) == 0 {
		return fmt.Errorf("vocabulary has no words")
	}
	for tok := range v.Words {
		if tok <= TokenNine {
			return fmt.Errorf("word token %d collides with reserved ids 0..%d", tok, TokenNine)
		}
	}
	return nil
}

func (v *Vocabulary) index() {
	v.reverse = make(map[string]int, len(v.Words))
	toks := make([]int, 0, len(v.Words))
	for tok := range v.Words {
		toks = append(toks, tok)
	}
	// lowest id wins when a word is listed twice
	sort.Sort(sort.Reverse(sort.IntSlice(toks)))
	for _, tok := range toks {
		v.reverse[v.Words[tok]] = tok
	}
}

// Word returns the string for a word token.
func (v *Vocabulary) Word(token int) (string, bool) {
	w, ok := v.Words[token]
	return w, ok
}

// Token returns the lowest token id spelling word.
func (v *Vocabulary) Token(word string) (int, bool) {
	tok, ok := v.reverse[word]
	return tok, ok
}

// MetadataToken returns the word token whose string is the code of m.
func (v *Vocabulary) MetadataToken(m MetadataType) (int, bool) {
	codes := make([]int, 0, len(v.MetadataTypes))
	for code := range v.MetadataTypes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		if ParseMetadataType(v.MetadataTypes[code]) == m {
			if tok, ok := v.Token(strconv.Itoa(code)); ok {
				return tok, true
			}
		}
	}
	return 0, false
}
