package lexicon

import (
	"strings"
	"unicode"
)

// Token represents a single analyzed unit of text.
type Token struct {
	Surface string // The text as it appears (e.g. "Running")
	Lower   string // Case-folded surface
	Offset  int    // Byte offset of the token inside its sentence
}

// Sentence represents a sentence containing tokens.
type Sentence struct {
	Text   string
	Tokens []Token
}

// Words returns the case-folded surfaces of the sentence's tokens.
func (s Sentence) Words() []string {
	out := make([]string, len(s.Tokens))
	for i, t := range s.Tokens {
		out[i] = t.Lower
	}
	return out
}

// Analyzer handles English text segmentation.
type Analyzer struct{}

// NewAnalyzer creates a new analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// clitics are split off the word they follow, so "cat's" yields "cat" and "'s".
var clitics = []string{"n't", "'s", "'re", "'ll", "'ve", "'d", "'m"}

// Analyze breaks text into word tokens. Punctuation is discarded; digits
// are kept as tokens so later stages can drop them as noise.
func (a *Analyzer) Analyze(text string) []Token {
	var result []Token
	runes := []rune(text)
	byteOffsets := make([]int, len(runes)+1)
	off := 0
	for i, r := range runes {
		byteOffsets[i] = off
		off += len(string(r))
	}
	byteOffsets[len(runes)] = off

	isWordRune := func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
	}

	for i := 0; i < len(runes); {
		if !isWordRune(runes[i]) {
			i++
			continue
		}
		start := i
		for i < len(runes) {
			r := runes[i]
			if isWordRune(r) {
				i++
				continue
			}
			// Apostrophes and hyphens only join when followed by a word rune.
			if (r == '\'' || r == '’' || r == '-') && i+1 < len(runes) && isWordRune(runes[i+1]) {
				i++
				continue
			}
			break
		}

		surface := strings.ReplaceAll(string(runes[start:i]), "’", "'")
		for _, part := range splitClitic(surface) {
			result = append(result, Token{
				Surface: part.text,
				Lower:   strings.ToLower(part.text),
				Offset:  byteOffsets[start] + part.offset,
			})
		}
	}
	return result
}

type tokenPart struct {
	text   string
	offset int
}

func splitClitic(word string) []tokenPart {
	lower := strings.ToLower(word)
	for _, c := range clitics {
		if len(lower) > len(c) && strings.HasSuffix(lower, c) {
			cut := len(word) - len(c)
			return []tokenPart{{word[:cut], 0}, {word[cut:], cut}}
		}
	}
	return []tokenPart{{word, 0}}
}

// AnalyzeDocument splits the text into sentences and tokenizes each sentence.
func (a *Analyzer) AnalyzeDocument(text string) []Sentence {
	rawSentences := splitSentences(text)
	var result []Sentence

	for _, s := range rawSentences {
		if strings.TrimSpace(s) == "" {
			continue
		}
		tokens := a.Analyze(s)
		if len(tokens) == 0 {
			continue
		}
		result = append(result, Sentence{
			Text:   s,
			Tokens: tokens,
		})
	}
	return result
}

// Tokens returns the case-folded words of every sentence in text.
func (a *Analyzer) Tokens(text string) [][]string {
	sentences := a.AnalyzeDocument(text)
	out := make([][]string, len(sentences))
	for i, s := range sentences {
		out[i] = s.Words()
	}
	return out
}

func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)
		// Split on terminal punctuation followed by whitespace or end of
		// text, and on newlines.
		end := false
		switch r {
		case '\n':
			end = true
		case '.', '!', '?', '…':
			end = i+1 == len(runes) || unicode.IsSpace(runes[i+1])
		}
		if end {
			sentences = append(sentences, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		sentences = append(sentences, current.String())
	}
	return sentences
}
