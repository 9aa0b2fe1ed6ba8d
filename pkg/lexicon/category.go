package lexicon

import (
	"fmt"
	"sort"
	"strings"
)

// Category is the lexical category of a vocabulary item. The set is closed.
type Category int

const (
	Word Category = iota
	Idiom
	PhrasalVerb
)

// Categories lists every category in deck order.
var Categories = []Category{Word, Idiom, PhrasalVerb}

func (c Category) String() string {
	switch c {
	case Word:
		return "word"
	case Idiom:
		return "idiom"
	case PhrasalVerb:
		return "phrasal_verb"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// ParseCategory is the inverse of Category.String. It also accepts the
// hyphenated and spaced spellings used in phrasebook files.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "word":
		return Word, nil
	case "idiom":
		return Idiom, nil
	case "phrasal_verb", "phrasal-verb", "phrasal verb", "pv":
		return PhrasalVerb, nil
	}
	return Word, fmt.Errorf("unknown category %q", s)
}

// LexicalItem is a single normalized vocabulary candidate.
type LexicalItem struct {
	Surface  string // first surface form seen in the text (lower-cased)
	Lemma    string
	Category Category
}

// Key identifies the item across stages.
func (it LexicalItem) Key() string {
	return it.Category.String() + ":" + it.Lemma
}

// MorphFamily is the set of inflected forms sharing one lemma.
// The lemma itself is always a member.
type MorphFamily struct {
	Lemma string
	Forms map[string]struct{}
}

// NewMorphFamily returns a family holding lemma and the given forms.
func NewMorphFamily(lemma string, forms ...string) MorphFamily {
	f := MorphFamily{Lemma: lemma, Forms: make(map[string]struct{}, len(forms)+1)}
	f.Forms[lemma] = struct{}{}
	for _, form := range forms {
		if form != "" {
			f.Forms[form] = struct{}{}
		}
	}
	return f
}

// Add inserts a form into the family.
func (f MorphFamily) Add(form string) {
	if form != "" {
		f.Forms[form] = struct{}{}
	}
}

// Contains reports whether form belongs to the family.
func (f MorphFamily) Contains(form string) bool {
	_, ok := f.Forms[form]
	return ok
}

// Sorted returns the forms in lexical order.
func (f MorphFamily) Sorted() []string {
	out := make([]string, 0, len(f.Forms))
	for form := range f.Forms {
		out = append(out, form)
	}
	sort.Strings(out)
	return out
}

// MarshalText encodes the category by name.
func (c Category) MarshalText() ([]byte, error) {
	switch c {
	case Word, Idiom, PhrasalVerb:
		return []byte(c.String()), nil
	}
	return nil, fmt.Errorf("invalid category %d", int(c))
}

// UnmarshalText decodes a category name.
func (c *Category) UnmarshalText(b []byte) error {
	parsed, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
