package lexicon

import (
	"sort"
	"strings"
)

// Lemmatizer maps surface forms to lemmas and lemmas back to their
// inflected forms.
type Lemmatizer interface {
	Lemma(word string) string
	Forms(lemma string) []string
}

// RuleLemmatizer is an English lemmatizer built from an irregular-forms
// table and suffix rules. It is deterministic and safe for concurrent use
// once constructed.
type RuleLemmatizer struct {
	irregular map[string]string   // form -> lemma
	reverse   map[string][]string // lemma -> irregular forms
	invariant map[string]struct{}
	silentE   map[string]struct{} // lemmas whose final e the suffix rules cannot recover
}

// NewRuleLemmatizer returns a lemmatizer loaded with the built-in tables.
func NewRuleLemmatizer() *RuleLemmatizer {
	l := &RuleLemmatizer{
		irregular: make(map[string]string, len(irregularForms)*3),
		reverse:   make(map[string][]string, len(irregularForms)),
		invariant: make(map[string]struct{}, len(invariantWords)),
		silentE:   make(map[string]struct{}, len(silentELemmas)),
	}
	for lemma, forms := range irregularForms {
		for _, f := range forms {
			l.irregular[f] = lemma
			l.reverse[lemma] = append(l.reverse[lemma], f)
		}
	}
	for lemma := range l.reverse {
		sort.Strings(l.reverse[lemma])
	}
	for _, w := range invariantWords {
		l.invariant[w] = struct{}{}
	}
	for _, w := range silentELemmas {
		l.silentE[w] = struct{}{}
	}
	return l
}

// Lemma returns the lemma of word. Unknown shapes are returned lower-cased
// and otherwise unchanged.
func (l *RuleLemmatizer) Lemma(word string) string {
	w := strings.ToLower(strings.TrimSpace(word))
	if lemma, ok := l.irregular[w]; ok {
		return lemma
	}
	if _, ok := l.invariant[w]; ok {
		return w
	}
	n := len(w)
	if n <= 3 {
		return w
	}

	switch {
	case strings.HasSuffix(w, "ies") && n > 4:
		return w[:n-3] + "y"
	case hasAnySuffix(w, "sses", "shes", "ches", "xes", "zzes"):
		return w[:n-2]
	case strings.HasSuffix(w, "oes") && n > 5:
		return w[:n-2]
	case strings.HasSuffix(w, "s") && !hasAnySuffix(w, "ss", "us", "is"):
		return w[:n-1]
	case strings.HasSuffix(w, "ied") && n > 4:
		return w[:n-3] + "y"
	case strings.HasSuffix(w, "ed") && !strings.HasSuffix(w, "eed"):
		stem := w[:n-2]
		if len(stem) < 3 {
			// died -> die, tied -> tie
			if hasVowel(stem) {
				return w[:n-1]
			}
			return w
		}
		return l.restoreStem(stem)
	case strings.HasSuffix(w, "ing"):
		stem := w[:n-3]
		if len(stem) < 3 || !hasVowel(stem) {
			return w
		}
		return l.restoreStem(stem)
	}
	return w
}

// known reports whether word is settled by the tables rather than the
// suffix rules.
func (l *RuleLemmatizer) known(word string) bool {
	if _, ok := l.irregular[word]; ok {
		return true
	}
	_, ok := l.invariant[word]
	return ok
}

// Forms returns every form of lemma this lemmatizer knows about: the lemma,
// its irregular forms and the regular inflections that map back to it.
func (l *RuleLemmatizer) Forms(lemma string) []string {
	return l.forms(lemma, l.Lemma)
}

// forms generates candidate inflections of lemma and keeps those that
// lemmaOf maps back to it.
func (l *RuleLemmatizer) forms(lemma string, lemmaOf func(string) string) []string {
	lemma = strings.ToLower(strings.TrimSpace(lemma))
	if lemma == "" {
		return nil
	}
	seen := map[string]struct{}{lemma: {}}
	out := []string{lemma}
	add := func(f string) {
		if f == "" {
			return
		}
		if _, ok := seen[f]; ok {
			return
		}
		if lemmaOf(f) != lemma {
			return
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}

	for _, f := range l.reverse[lemma] {
		add(f)
	}
	if _, ok := l.invariant[lemma]; ok {
		return out
	}
	add(pluralForm(lemma))
	add(ingForm(lemma))
	if len(l.reverse[lemma]) == 0 {
		add(edForm(lemma))
	}
	sort.Strings(out[1:])
	return out
}

// restoreStem undoes consonant doubling and restores a dropped final e.
func (l *RuleLemmatizer) restoreStem(stem string) string {
	n := len(stem)
	last := stem[n-1]
	if _, ok := l.silentE[stem+"e"]; ok {
		return stem + "e"
	}
	if last == stem[n-2] && isConsonant(last) && !strings.ContainsRune("lsfz", rune(last)) && syllables(stem[:n-1]) == 1 {
		return stem[:n-1]
	}
	if hasAnySuffix(stem, "bl", "iz", "yz", "az", "scap", "v", "c") {
		return stem + "e"
	}
	// rate, relate; not eat, heat, float
	if hasAnySuffix(stem, "at", "id") && n >= 3 && isConsonant(stem[n-3]) {
		return stem + "e"
	}
	// promise, surprise, advise
	if strings.HasSuffix(stem, "is") && n >= 5 && isConsonant(stem[n-3]) {
		return stem + "e"
	}
	if last == 'u' && isConsonant(stem[n-2]) {
		return stem + "e"
	}
	if cvc(stem) && syllables(stem) == 1 {
		return stem + "e"
	}
	return stem
}

func pluralForm(lemma string) string {
	n := len(lemma)
	switch {
	case hasAnySuffix(lemma, "s", "x", "z", "ch", "sh"):
		return lemma + "es"
	case n > 1 && lemma[n-1] == 'y' && isConsonant(lemma[n-2]):
		return lemma[:n-1] + "ies"
	}
	return lemma + "s"
}

func ingForm(lemma string) string {
	n := len(lemma)
	switch {
	case strings.HasSuffix(lemma, "ie"):
		return lemma[:n-2] + "ying"
	case strings.HasSuffix(lemma, "e") && !hasAnySuffix(lemma, "ee", "ye", "oe"):
		return lemma[:n-1] + "ing"
	case cvc(lemma) && syllables(lemma) == 1:
		return lemma + lemma[n-1:] + "ing"
	}
	return lemma + "ing"
}

func edForm(lemma string) string {
	n := len(lemma)
	switch {
	case strings.HasSuffix(lemma, "e"):
		return lemma + "d"
	case n > 1 && lemma[n-1] == 'y' && isConsonant(lemma[n-2]):
		return lemma[:n-1] + "ied"
	case cvc(lemma) && syllables(lemma) == 1:
		return lemma + lemma[n-1:] + "ed"
	}
	return lemma + "ed"
}

func isVowel(c byte) bool {
	switch c {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}

func isConsonant(c byte) bool {
	return c >= 'a' && c <= 'z' && !isVowel(c)
}

func hasVowel(s string) bool {
	return strings.ContainsAny(s, "aeiouy")
}

// cvc reports a consonant-vowel-consonant ending where the final consonant
// is not w, x or y.
func cvc(s string) bool {
	n := len(s)
	if n < 3 {
		return false
	}
	return isConsonant(s[n-3]) && isVowel(s[n-2]) && isConsonant(s[n-1]) && !strings.ContainsRune("wxy", rune(s[n-1]))
}

// syllables counts vowel groups; a leading y is a consonant.
func syllables(s string) int {
	count := 0
	prev := false
	for i := 0; i < len(s); i++ {
		v := isVowel(s[i]) || (s[i] == 'y' && i > 0)
		if v && !prev {
			count++
		}
		prev = v
	}
	return count
}

func hasAnySuffix(s string, suffixes ...string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}

var irregularForms = map[string][]string{
	"be":         {"am", "is", "are", "was", "were", "been", "being"},
	"have":       {"has", "had", "having"},
	"do":         {"does", "did", "done", "doing"},
	"go":         {"goes", "went", "gone", "going"},
	"say":        {"said", "says"},
	"make":       {"made"},
	"take":       {"took", "taken"},
	"get":        {"got", "gotten"},
	"see":        {"saw", "seen", "seeing"},
	"come":       {"came"},
	"know":       {"knew", "known"},
	"think":      {"thought"},
	"give":       {"gave", "given"},
	"find":       {"found"},
	"tell":       {"told"},
	"become":     {"became"},
	"leave":      {"left"},
	"feel":       {"felt"},
	"bring":      {"brought"},
	"begin":      {"began", "begun", "beginning"},
	"keep":       {"kept"},
	"hold":       {"held"},
	"write":      {"wrote", "written", "writing"},
	"stand":      {"stood"},
	"hear":       {"heard"},
	"mean":       {"meant"},
	"meet":       {"met"},
	"run":        {"ran"},
	"pay":        {"paid"},
	"sit":        {"sat"},
	"speak":      {"spoke", "spoken"},
	"lead":       {"led"},
	"grow":       {"grew", "grown"},
	"lose":       {"lost"},
	"fall":       {"fell", "fallen"},
	"send":       {"sent"},
	"build":      {"built"},
	"understand": {"understood"},
	"draw":       {"drew", "drawn"},
	"break":      {"broke", "broken"},
	"spend":      {"spent"},
	"drive":      {"drove", "driven"},
	"buy":        {"bought"},
	"wear":       {"wore", "worn"},
	"choose":     {"chose", "chosen"},
	"seek":       {"sought"},
	"throw":      {"threw", "thrown"},
	"catch":      {"caught"},
	"deal":       {"dealt"},
	"win":        {"won"},
	"forget":     {"forgot", "forgotten"},
	"sell":       {"sold"},
	"fight":      {"fought"},
	"teach":      {"taught"},
	"eat":        {"ate", "eaten"},
	"sing":       {"sang", "sung"},
	"sleep":      {"slept"},
	"fly":        {"flew", "flown"},
	"swim":       {"swam", "swum"},
	"drink":      {"drank", "drunk"},
	"ring":       {"rang", "rung"},
	"shake":      {"shook", "shaken"},
	"hide":       {"hid", "hidden"},
	"bite":       {"bitten"},
	"ride":       {"rode", "ridden"},
	"steal":      {"stole", "stolen"},
	"freeze":     {"froze", "frozen"},
	"wake":       {"woke", "woken"},
	"hang":       {"hung"},
	"shoot":      {"shot"},
	"feed":       {"fed"},
	"flee":       {"fled"},
	"dig":        {"dug"},
	"stick":      {"stuck"},
	"strike":     {"struck"},
	"swear":      {"swore", "sworn"},
	"tear":       {"tore", "torn"},
	"beat":       {"beaten"},
	"forgive":    {"forgave", "forgiven"},
	"lend":       {"lent"},
	"bend":       {"bent"},
	"bleed":      {"bled"},
	"die":        {"dying"},
	"lie":        {"lying"},
	"tie":        {"tying"},
	"use":        {"used", "using", "uses"},
	"child":      {"children"},
	"man":        {"men"},
	"woman":      {"women"},
	"person":     {"people"},
	"foot":       {"feet"},
	"tooth":      {"teeth"},
	"mouse":      {"mice"},
	"goose":      {"geese"},
	"knife":      {"knives"},
	"wife":       {"wives"},
	"leaf":       {"leaves"},
	"wolf":       {"wolves"},
	"half":       {"halves"},
	"shelf":      {"shelves"},
	"thief":      {"thieves"},
	"movie":      {"movies"},
	"cookie":     {"cookies"},
	"good":       {"better", "best"},
	"bad":        {"worse", "worst"},
	"big":        {"bigger", "biggest"},
	"small":      {"smaller", "smallest"},
	"large":      {"larger", "largest"},
	"old":        {"older", "oldest"},
	"young":      {"younger", "youngest"},
	"long":       {"longer", "longest"},
	"strong":     {"stronger", "strongest"},
	"hot":        {"hotter", "hottest"},
}

var silentELemmas = []string{
	"create", "excite", "invite", "unite", "recite", "ignite", "delete",
	"complete", "compete", "combine", "determine", "imagine", "examine",
}

var invariantWords = []string{
	"news", "series", "species", "always", "perhaps", "sometimes", "besides",
	"towards", "afterwards", "whereas", "yes", "its", "his", "hers", "ours",
	"yours", "theirs", "physics", "mathematics", "economics", "politics",
	"clothes", "trousers", "scissors", "christmas", "atlas", "canvas", "lens",
	"morning", "evening", "during", "nothing", "something", "anything",
	"everything", "ceiling", "wedding", "pudding", "darling", "sibling",
	"hundred", "naked", "wicked", "sacred", "kindred",
}
