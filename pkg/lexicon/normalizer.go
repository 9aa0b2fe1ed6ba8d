package lexicon

import "strings"

// Result is the output of one normalization pass.
type Result struct {
	// Items are unique by (lemma, category), in order of first appearance.
	Items []LexicalItem
	// Families maps each WORD lemma to its morphological family.
	Families map[string]MorphFamily
}

// Family returns the family of a WORD lemma.
func (r Result) Family(lemma string) (MorphFamily, bool) {
	f, ok := r.Families[lemma]
	return f, ok
}

// Normalizer turns raw tokens into lexical items. It performs no I/O.
type Normalizer struct {
	Lemmatizer Lemmatizer
	Phrasebook *Phrasebook
}

// NewNormalizer returns a Normalizer. A nil lemmatizer selects the rule
// lemmatizer; a nil phrasebook disables multi-word detection.
func NewNormalizer(lem Lemmatizer, pb *Phrasebook) *Normalizer {
	if lem == nil {
		lem = NewRuleLemmatizer()
	}
	return &Normalizer{Lemmatizer: lem, Phrasebook: pb}
}

// Normalize treats tokens as a single sentence.
func (n *Normalizer) Normalize(tokens []string) Result {
	return n.NormalizeSentences([][]string{tokens})
}

// NormalizeSentences normalizes tokenized sentences. Multi-word expressions
// are only matched inside a sentence.
func (n *Normalizer) NormalizeSentences(sentences [][]string) Result {
	res := Result{Families: make(map[string]MorphFamily)}
	seen := make(map[string]struct{})
	add := func(it LexicalItem) {
		k := it.Key()
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		res.Items = append(res.Items, it)
	}

	for _, sentence := range sentences {
		words := make([]string, len(sentence))
		for i, tok := range sentence {
			words[i] = normalizePhrase(tok)
		}

		for i, w := range words {
			if w == "" {
				continue
			}
			if strings.Contains(w, " ") {
				if it, ok := n.phraseItem(strings.Fields(w)); ok {
					add(it)
				}
				continue
			}
			if it, ok := n.matchPhrase(words[i:]); ok {
				add(it)
			}

			if !isAlpha(w) {
				continue
			}
			lemma := n.Lemmatizer.Lemma(w)
			if !isAlpha(lemma) {
				continue
			}
			add(LexicalItem{Surface: w, Lemma: lemma, Category: Word})

			fam, ok := res.Families[lemma]
			if !ok {
				fam = NewMorphFamily(lemma, n.Lemmatizer.Forms(lemma)...)
				res.Families[lemma] = fam
			}
			fam.Add(w)
		}
	}
	return res
}

// matchPhrase tries the longest phrase starting at words[0] first.
func (n *Normalizer) matchPhrase(words []string) (LexicalItem, bool) {
	longest := min(n.Phrasebook.MaxLen(), len(words))
	for size := longest; size >= 2; size-- {
		if it, ok := n.phraseItem(words[:size]); ok {
			return it, true
		}
	}
	return LexicalItem{}, false
}

func (n *Normalizer) phraseItem(words []string) (LexicalItem, bool) {
	if len(words) < 2 {
		return LexicalItem{}, false
	}
	for _, w := range words {
		if !isPhraseWord(w) {
			return LexicalItem{}, false
		}
	}
	surface := strings.Join(words, " ")
	if c, ok := Classify(surface, n.Phrasebook); ok {
		return LexicalItem{Surface: surface, Lemma: surface, Category: c}, true
	}
	// gave up -> give up
	head := n.Lemmatizer.Lemma(words[0])
	if head == words[0] {
		return LexicalItem{}, false
	}
	lemma := head + " " + strings.Join(words[1:], " ")
	if c, ok := n.Phrasebook.Lookup(lemma); ok {
		return LexicalItem{Surface: surface, Lemma: lemma, Category: c}, true
	}
	return LexicalItem{}, false
}
