// Package cards turns enrichment records into flashcards.
package cards

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"
	"strings"

	"github.com/japaniel/bookdeck/pkg/dictionary"
	"github.com/japaniel/bookdeck/pkg/enrich"
	"github.com/japaniel/bookdeck/pkg/lexicon"
)

// Card is one flashcard. Front and Back are HTML.
type Card struct {
	Category lexicon.Category `json:"category"`
	Lemma    string           `json:"lemma"`
	Front    string           `json:"front"`
	Back     string           `json:"back"`
	Audio    string           `json:"audio,omitempty"` // Anki sound reference, e.g. "[sound:abc.mp3]"
}

// Deck holds the cards of one run grouped by category.
type Deck struct {
	cards map[lexicon.Category][]Card
}

// Cards returns the cards of one category, sorted by lemma.
func (d Deck) Cards(c lexicon.Category) []Card { return d.cards[c] }

// Categories returns the non-empty categories in deck order.
func (d Deck) Categories() []lexicon.Category {
	var out []lexicon.Category
	for _, c := range lexicon.Categories {
		if len(d.cards[c]) > 0 {
			out = append(out, c)
		}
	}
	return out
}

// Len returns the total number of cards.
func (d Deck) Len() int {
	n := 0
	for _, cs := range d.cards {
		n += len(cs)
	}
	return n
}

// All returns every card in deck order.
func (d Deck) All() []Card {
	out := make([]Card, 0, d.Len())
	for _, c := range d.Categories() {
		out = append(out, d.cards[c]...)
	}
	return out
}

// cardView is what the templates see.
type cardView struct {
	Lemma  string
	IPA    string
	Senses []dictionary.Sense
}

const sensesTmpl = `{{define "examples"}}{{if .}}<ul class="examples-list">{{range .}}<li class="example">{{.}}</li>{{end}}</ul>{{end}}{{end}}`

var (
	wordFront = template.Must(template.New("word-front").Parse(
		`<div class="headword">{{.Lemma}}</div>{{with .IPA}}<div class="ipa">{{.}}</div>{{end}}`))

	wordBack = template.Must(template.Must(template.New("word-back").Parse(sensesTmpl)).Parse(
		`<ol class="meanings">{{range .Senses}}<li class="meaning-container">` +
			`<div class="meaning-header">{{with .PartOfSpeech}}<span class="pos">{{.}}</span> {{end}}` +
			`{{with .Level}}<span class="cefr">{{.}}</span> {{end}}` +
			`<span class="definition-text">{{.Definition}}</span></div>` +
			`{{template "examples" .Examples}}</li>{{end}}</ol>`))

	phraseFront = template.Must(template.New("phrase-front").Parse(
		`<div class="headword">{{.Lemma}}</div>`))

	idiomBack = template.Must(template.Must(template.New("idiom-back").Parse(sensesTmpl)).Parse(
		`{{range .Senses}}<div class="meaning-container"><span class="definition-text">{{.Definition}}</span>` +
			`{{template "examples" .Examples}}</div>{{end}}`))

	phrasalBack = template.Must(template.Must(template.New("phrasal-back").Parse(sensesTmpl)).Parse(
		`<ol class="senses">{{range .Senses}}<li class="meaning-container">` +
			`<div class="sense-header"><span class="definition-text">{{.Definition}}</span>` +
			`{{with .Level}} <span class="cefr">{{.}}</span>{{end}}</div>` +
			`{{template "examples" .Examples}}</li>{{end}}</ol>`))
)

type layout struct {
	front, back *template.Template
}

var layouts = map[lexicon.Category]layout{
	lexicon.Word:        {wordFront, wordBack},
	lexicon.Idiom:       {phraseFront, idiomBack},
	lexicon.PhrasalVerb: {phraseFront, phrasalBack},
}

// Assembler renders records into a Deck.
type Assembler struct{}

func NewAssembler() *Assembler { return &Assembler{} }

// Assemble builds the deck. Items listed in failures never get a card,
// and a (lemma, category) pair yields at most one card.
func (a *Assembler) Assemble(records []enrich.Tagged, failures []enrich.Failure) (Deck, error) {
	failed := make(map[string]struct{}, len(failures))
	for _, f := range failures {
		failed[f.Item.Key()] = struct{}{}
	}

	deck := Deck{cards: make(map[lexicon.Category][]Card)}
	seen := make(map[string]struct{}, len(records))
	for _, t := range records {
		key := t.Item.Key()
		if _, ok := failed[key]; ok {
			continue
		}
		if _, ok := seen[key]; ok || t.Record == nil {
			continue
		}
		seen[key] = struct{}{}

		card, err := render(t.Item, t.Record)
		if err != nil {
			return Deck{}, err
		}
		deck.cards[card.Category] = append(deck.cards[card.Category], card)
	}

	for _, cs := range deck.cards {
		sort.SliceStable(cs, func(i, j int) bool {
			if cs[i].Lemma != cs[j].Lemma {
				return cs[i].Lemma < cs[j].Lemma
			}
			return cs[i].Front < cs[j].Front
		})
	}
	return deck, nil
}

func render(item lexicon.LexicalItem, rec *dictionary.Record) (Card, error) {
	l, ok := layouts[item.Category]
	if !ok {
		return Card{}, fmt.Errorf("no card layout for %s", item.Category)
	}
	view := cardView{Lemma: item.Lemma, Senses: rec.Senses}
	if p, ok := rec.PrimaryPronunciation(); ok {
		view.IPA = p.IPA
	}

	var front, back bytes.Buffer
	if err := l.front.Execute(&front, view); err != nil {
		return Card{}, fmt.Errorf("render %s front: %w", item.Key(), err)
	}
	if err := l.back.Execute(&back, view); err != nil {
		return Card{}, fmt.Errorf("render %s back: %w", item.Key(), err)
	}

	card := Card{
		Category: item.Category,
		Lemma:    item.Lemma,
		Front:    front.String(),
		Back:     back.String(),
	}
	if ref := strings.TrimSpace(rec.AudioRef); ref != "" {
		card.Audio = "[sound:" + ref + "]"
	}
	return card, nil
}
