package filter

import (
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/japaniel/bookdeck/pkg/lexicon"
)

// DefaultMinLength is the minimum lemma length kept by default.
const DefaultMinLength = 3

// Reason names why an item was dropped.
type Reason string

const (
	ReasonTooShort Reason = "too_short"
	ReasonStopword Reason = "stopword"
	ReasonName     Reason = "proper_name"
	ReasonLevel    Reason = "cefr_level"
	ReasonExcluded Reason = "already_extracted"
)

// ExclusionSet is an immutable snapshot of lemmas extracted by earlier runs.
type ExclusionSet struct {
	words map[string]struct{}
}

// NewExclusionSet copies words into a new snapshot.
func NewExclusionSet(words ...string) ExclusionSet {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			set[w] = struct{}{}
		}
	}
	return ExclusionSet{words: set}
}

// Contains reports whether word is excluded.
func (e ExclusionSet) Contains(word string) bool {
	_, ok := e.words[word]
	return ok
}

// Len returns the size of the snapshot.
func (e ExclusionSet) Len() int {
	return len(e.words)
}

// Words returns the snapshot in lexical order.
func (e ExclusionSet) Words() []string {
	out := make([]string, 0, len(e.words))
	for w := range e.words {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// Stage decides which normalized items go on to enrichment.
type Stage struct {
	MinLength   int
	ExcludeUpTo Level
	Levels      LevelTable
	Exclusions  ExclusionSet
	Stopwords   map[string]struct{}
	Names       map[string]struct{}
	Logger      *slog.Logger
}

// Outcome is the result of applying the stage to a normalization result.
type Outcome struct {
	Kept    []lexicon.LexicalItem
	Dropped map[Reason]int
}

// DroppedTotal sums Dropped.
func (o Outcome) DroppedTotal() int {
	n := 0
	for _, c := range o.Dropped {
		n += c
	}
	return n
}

// Keep applies the policy to one item. Checks run in a fixed order and
// the first match decides.
func (s *Stage) Keep(item lexicon.LexicalItem, family lexicon.MorphFamily) (bool, Reason) {
	lemma := item.Lemma
	minLen := s.MinLength
	if minLen <= 0 {
		minLen = DefaultMinLength
	}
	if utf8.RuneCountInString(lemma) < minLen {
		return false, ReasonTooShort
	}
	if _, ok := s.Stopwords[lemma]; ok {
		return false, ReasonStopword
	}
	if _, ok := s.Names[lemma]; ok {
		return false, ReasonName
	}
	if s.ExcludeUpTo != LevelNone {
		if lvl, ok := s.Levels.Level(lemma); ok && lvl <= s.ExcludeUpTo {
			return false, ReasonLevel
		}
	}
	if s.Exclusions.Contains(lemma) {
		return false, ReasonExcluded
	}
	for _, form := range family.Sorted() {
		if s.Exclusions.Contains(form) {
			return false, ReasonExcluded
		}
	}
	return true, ""
}

// Apply filters every item of res, preserving order.
func (s *Stage) Apply(res lexicon.Result) Outcome {
	out := Outcome{Dropped: make(map[Reason]int)}
	for _, item := range res.Items {
		var family lexicon.MorphFamily
		if item.Category == lexicon.Word {
			family = res.Families[item.Lemma]
		}
		keep, reason := s.Keep(item, family)
		if !keep {
			out.Dropped[reason]++
			if s.Logger != nil {
				s.Logger.Debug("dropped item", "lemma", item.Lemma, "category", item.Category.String(), "reason", string(reason))
			}
			continue
		}
		out.Kept = append(out.Kept, item)
	}
	return out
}
