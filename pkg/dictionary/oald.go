package dictionary

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-shiori/dom"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/japaniel/bookdeck/pkg/lexicon"
)

// OALDBaseURL is the Oxford Learner's Dictionaries entry prefix.
const OALDBaseURL = "https://www.oxfordlearnersdictionaries.com/definition/english/"

// OALDMaxEntries is how many numbered homograph pages are tried per word.
const OALDMaxEntries = 5

// OALD scrapes Oxford Learner's Dictionaries entry pages.
type OALD struct {
	baseURL    string
	maxEntries int
	http       httpFetcher
}

// NewOALD creates an OALD scraper. An empty baseURL selects the public site.
func NewOALD(baseURL string, client *http.Client, limiter *rate.Limiter, logger *slog.Logger) *OALD {
	if baseURL == "" {
		baseURL = OALDBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &OALD{
		baseURL:    baseURL,
		maxEntries: OALDMaxEntries,
		http:       newHTTPFetcher("oald", client, limiter, logger),
	}
}

// Name implements Source.
func (o *OALD) Name() string { return "oald" }

// Slug turns a lemma into the path segment OALD uses.
func Slug(lemma string) string {
	return strings.Join(strings.Fields(strings.ToLower(lemma)), "-")
}

// Lookup implements Source.
func (o *OALD) Lookup(ctx context.Context, item lexicon.LexicalItem) (*Record, error) {
	var (
		rec *Record
		err error
	)
	switch item.Category {
	case lexicon.Idiom:
		rec, err = o.lookupIdiom(ctx, item.Lemma)
	case lexicon.PhrasalVerb:
		rec, err = o.lookupPhrasalVerb(ctx, item.Lemma)
	default:
		rec, err = o.lookupWord(ctx, item.Lemma)
	}
	if err != nil {
		return nil, err
	}
	rec.Lemma = item.Lemma
	rec.Category = item.Category
	rec.Source = o.Name()
	return rec, nil
}

// pages fetches <slug>_1 ... <slug>_N and stops at the first missing page.
func (o *OALD) pages(ctx context.Context, slug string) ([]*html.Node, error) {
	var docs []*html.Node
	for i := 1; i <= o.maxEntries; i++ {
		doc, err := o.page(ctx, fmt.Sprintf("%s_%d", slug, i))
		if errors.Is(err, ErrNotFound) {
			break
		}
		if err != nil {
			return nil, err
		}
		if !isValidEntry(doc) {
			continue
		}
		docs = append(docs, doc)
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	return docs, nil
}

func (o *OALD) page(ctx context.Context, path string) (*html.Node, error) {
	body, err := o.http.get(ctx, o.baseURL+path, "")
	if err != nil {
		return nil, err
	}
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: oald: parse html: %v", ErrMalformed, err)
	}
	return doc, nil
}

func (o *OALD) lookupWord(ctx context.Context, lemma string) (*Record, error) {
	docs, err := o.pages(ctx, Slug(lemma))
	if err != nil {
		return nil, err
	}
	rec := &Record{Senses: []Sense{}}
	for _, doc := range docs {
		pos := text(dom.QuerySelector(doc, "span.pos"))
		for _, sense := range mainSenses(doc) {
			sense.PartOfSpeech = pos
			rec.Senses = append(rec.Senses, sense)
		}
		rec.Pronunciations = mergePronunciations(rec.Pronunciations, pronunciations(doc))
	}
	if len(rec.Senses) == 0 {
		return nil, ErrNotFound
	}
	return rec, nil
}

func (o *OALD) lookupPhrasalVerb(ctx context.Context, lemma string) (*Record, error) {
	slug := Slug(lemma)
	doc, err := o.page(ctx, slug)
	if errors.Is(err, ErrNotFound) {
		doc, err = o.page(ctx, slug+"_1")
	}
	if err != nil {
		return nil, err
	}
	if !isValidEntry(doc) {
		return nil, ErrNotFound
	}
	rec := &Record{Senses: mainSenses(doc)}
	pos := text(dom.QuerySelector(doc, "span.pos"))
	for i := range rec.Senses {
		rec.Senses[i].PartOfSpeech = pos
	}
	if len(rec.Senses) == 0 {
		return nil, ErrNotFound
	}
	rec.Pronunciations = pronunciations(doc)
	return rec, nil
}

// lookupIdiom searches the idiom sections of the phrase's content words.
func (o *OALD) lookupIdiom(ctx context.Context, phrase string) (*Record, error) {
	want := strings.Join(strings.Fields(strings.ToLower(phrase)), " ")
	for _, w := range idiomKeywords(want) {
		docs, err := o.pages(ctx, Slug(w))
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, doc := range docs {
			for _, group := range dom.QuerySelectorAll(doc, ".idioms .idm-g") {
				got := strings.Join(strings.Fields(strings.ToLower(text(dom.QuerySelector(group, ".idm")))), " ")
				if got != want {
					continue
				}
				rec := &Record{Senses: senses(group, "li.sense")}
				if len(rec.Senses) > 0 {
					return rec, nil
				}
			}
		}
	}
	return nil, ErrNotFound
}

// idiomKeywords orders the phrase's words longest first, skipping short
// function words that never carry an idiom section.
func idiomKeywords(phrase string) []string {
	var out []string
	for _, w := range strings.Fields(phrase) {
		if len(w) > 3 && !strings.ContainsAny(w, "'-") {
			out = append(out, w)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && len(out[j]) > len(out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func isValidEntry(doc *html.Node) bool {
	return dom.QuerySelector(doc, "h1.headword") != nil && dom.QuerySelector(doc, "span.pos") != nil
}

// mainSenses reads the first sense list of the page; idiom and phrasal
// verb sections come after it.
func mainSenses(doc *html.Node) []Sense {
	list := dom.QuerySelector(doc, "ol")
	if list == nil {
		return nil
	}
	return senses(list, "li.sense")
}

func senses(root *html.Node, selector string) []Sense {
	var out []Sense
	for _, node := range dom.QuerySelectorAll(root, selector) {
		def := text(dom.QuerySelector(node, "span.def"))
		if def == "" {
			continue
		}
		s := Sense{Definition: def, Level: cefrLevel(node)}
		for _, ex := range dom.QuerySelectorAll(node, "span.x") {
			if t := text(ex); t != "" {
				s.Examples = append(s.Examples, t)
			}
		}
		out = append(out, s)
	}
	return out
}

// cefrLevel reads the Oxford 3000/5000 symbol, e.g. class "ox3ksym_a1".
func cefrLevel(sense *html.Node) string {
	symbols := dom.QuerySelector(sense, "div.symbols")
	if symbols == nil {
		return ""
	}
	for _, span := range dom.QuerySelectorAll(symbols, "span") {
		for _, class := range strings.Fields(dom.ClassName(span)) {
			if strings.HasPrefix(class, "ox3ksym_") || strings.HasPrefix(class, "ox5ksym_") {
				return strings.ToUpper(class[strings.LastIndex(class, "_")+1:])
			}
		}
	}
	return ""
}

func pronunciations(doc *html.Node) []Pronunciation {
	var out []Pronunciation
	for _, r := range []struct{ class, region string }{{"phons_n_am", "US"}, {"phons_br", "UK"}} {
		block := dom.QuerySelector(doc, "div."+r.class)
		if block == nil {
			continue
		}
		p := Pronunciation{
			Region: r.region,
			IPA:    text(dom.QuerySelector(block, "span.phon")),
		}
		if sound := dom.QuerySelector(block, "div.sound"); sound != nil {
			p.AudioURL = dom.GetAttribute(sound, "data-src-mp3")
		}
		if p.IPA != "" || p.AudioURL != "" {
			out = append(out, p)
		}
	}
	return out
}

func mergePronunciations(have, more []Pronunciation) []Pronunciation {
	for _, p := range more {
		dup := false
		for _, h := range have {
			if h.Region == p.Region && h.IPA == p.IPA {
				dup = true
				break
			}
		}
		if !dup {
			have = append(have, p)
		}
	}
	return have
}

func text(n *html.Node) string {
	if n == nil {
		return ""
	}
	return strings.Join(strings.Fields(dom.TextContent(n)), " ")
}
