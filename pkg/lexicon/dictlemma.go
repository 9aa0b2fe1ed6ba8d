package lexicon

import (
	"fmt"
	"strings"
	"sync"

	"github.com/aaaton/golem/v4"
	"github.com/aaaton/golem/v4/dicts/en"
)

// loadEnglish decodes the embedded English lemma table once per process.
var loadEnglish = sync.OnceValues(func() (*golem.Lemmatizer, error) {
	return golem.New(en.New())
})

// DictLemmatizer resolves words through an English lemma dictionary and
// falls back to the suffix rules for words the dictionary does not list.
// Morphological families are still generated by the rules, but every
// generated form is checked against Lemma.
type DictLemmatizer struct {
	dict  *golem.Lemmatizer
	rules *RuleLemmatizer
}

// NewDictLemmatizer loads the dictionary. It is safe for concurrent use.
func NewDictLemmatizer() (*DictLemmatizer, error) {
	dict, err := loadEnglish()
	if err != nil {
		return nil, fmt.Errorf("load english lemma dictionary: %w", err)
	}
	return &DictLemmatizer{dict: dict, rules: NewRuleLemmatizer()}, nil
}

// Lemma returns the lemma of word. The built-in irregular and invariant
// tables win over the dictionary so their answers stay stable.
func (l *DictLemmatizer) Lemma(word string) string {
	w := strings.ToLower(strings.TrimSpace(word))
	if l.rules.known(w) {
		return l.rules.Lemma(w)
	}
	if l.dict.InDict(w) {
		if lemma := strings.ToLower(l.dict.Lemma(w)); isAlpha(lemma) {
			return lemma
		}
	}
	return l.rules.Lemma(w)
}

// Forms returns the forms of lemma that map back to it.
func (l *DictLemmatizer) Forms(lemma string) []string {
	return l.rules.forms(lemma, l.Lemma)
}
