package lexicon

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"
)

// MaxPhraseWords bounds the longest multi-word expression the scanner tries.
const MaxPhraseWords = 5

// Phrasebook is the set of known idioms and phrasal verbs.
type Phrasebook struct {
	entries map[string]Category
	maxLen  int
}

// NewPhrasebook returns an empty phrasebook.
func NewPhrasebook() *Phrasebook {
	return &Phrasebook{entries: make(map[string]Category)}
}

// Add registers phrase under category c. Word is not a valid phrase category.
func (p *Phrasebook) Add(phrase string, c Category) {
	key := normalizePhrase(phrase)
	if key == "" || c == Word {
		return
	}
	n := len(strings.Fields(key))
	if n < 2 || n > MaxPhraseWords {
		return
	}
	p.entries[key] = c
	if n > p.maxLen {
		p.maxLen = n
	}
}

// Lookup returns the category of a phrase already in normalized form.
func (p *Phrasebook) Lookup(phrase string) (Category, bool) {
	if p == nil {
		return Word, false
	}
	c, ok := p.entries[phrase]
	return c, ok
}

// Len returns the number of phrases.
func (p *Phrasebook) Len() int {
	if p == nil {
		return 0
	}
	return len(p.entries)
}

// MaxLen returns the word count of the longest registered phrase.
func (p *Phrasebook) MaxLen() int {
	if p == nil {
		return 0
	}
	return p.maxLen
}

// LoadPhrasebook reads a phrasebook file. A missing file yields an empty
// phrasebook.
func LoadPhrasebook(path string) (*Phrasebook, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewPhrasebook(), nil
		}
		return nil, fmt.Errorf("open phrasebook: %w", err)
	}
	defer f.Close()
	return ParsePhrasebook(f)
}

// ParsePhrasebook reads lines of the form "category<TAB>phrase".
// Blank lines and lines starting with '#' are skipped.
func ParsePhrasebook(r io.Reader) (*Phrasebook, error) {
	p := NewPhrasebook()
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		tag, phrase, ok := strings.Cut(line, "\t")
		if !ok {
			return nil, fmt.Errorf("phrasebook line %d: missing tab separator", lineNo)
		}
		c, err := ParseCategory(tag)
		if err != nil {
			return nil, fmt.Errorf("phrasebook line %d: %w", lineNo, err)
		}
		if c == Word {
			return nil, fmt.Errorf("phrasebook line %d: word is not a phrase category", lineNo)
		}
		p.Add(phrase, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read phrasebook: %w", err)
	}
	return p, nil
}

// Classify returns the category of a normalized candidate. A single
// alphabetic word is a Word; a multi-word candidate must be in the
// phrasebook. The boolean is false for anything that is extraction noise.
func Classify(candidate string, p *Phrasebook) (Category, bool) {
	key := normalizePhrase(candidate)
	if key == "" {
		return Word, false
	}
	if !strings.Contains(key, " ") {
		return Word, isAlpha(key)
	}
	return p.Lookup(key)
}

func normalizePhrase(s string) string {
	s = strings.ReplaceAll(s, "’", "'")
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// isAlpha reports whether s is non-empty and made only of letters.
func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// isPhraseWord allows letters plus apostrophes and hyphens inside the word.
func isPhraseWord(s string) bool {
	if s == "" {
		return false
	}
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsLetter(r) {
			continue
		}
		if (r == '\'' || r == '-') && i > 0 && i < len(runes)-1 {
			continue
		}
		return false
	}
	return true
}
