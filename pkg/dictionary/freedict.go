package dictionary

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"github.com/japaniel/bookdeck/pkg/lexicon"
)

// FreeDictBaseURL is the public FreeDictionary API endpoint.
const FreeDictBaseURL = "https://api.dictionaryapi.dev/api/v2/entries/en"

// FreeDict fetches entries from the FreeDictionary JSON API.
type FreeDict struct {
	baseURL string
	http    httpFetcher
}

// NewFreeDict creates a FreeDict client. An empty baseURL selects the public API.
func NewFreeDict(baseURL string, client *http.Client, limiter *rate.Limiter, logger *slog.Logger) *FreeDict {
	if baseURL == "" {
		baseURL = FreeDictBaseURL
	}
	return &FreeDict{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    newHTTPFetcher("freedict", client, limiter, logger),
	}
}

// Name implements Source.
func (p *FreeDict) Name() string { return "freedict" }

// Lookup implements Source. Phrases are looked up by their full text.
func (p *FreeDict) Lookup(ctx context.Context, item lexicon.LexicalItem) (*Record, error) {
	reqURL := p.baseURL + "/" + url.PathEscape(item.Lemma)

	p.http.log.DebugContext(ctx, "freedict request", slog.String("lemma", item.Lemma))

	body, err := p.http.get(ctx, reqURL, "application/json")
	if err != nil {
		return nil, err
	}

	var entries []apiEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("%w: freedict: decode json: %v", ErrMalformed, err)
	}

	rec := mapAPIResponse(entries)
	if len(rec.Senses) == 0 {
		return nil, ErrNotFound
	}
	rec.Lemma = item.Lemma
	rec.Category = item.Category
	rec.Source = p.Name()

	p.http.log.DebugContext(ctx, "freedict response",
		slog.String("lemma", item.Lemma),
		slog.Int("senses", len(rec.Senses)),
		slog.Int("pronunciations", len(rec.Pronunciations)),
	)
	return rec, nil
}

// apiEntry is one entry of the API response; the API returns one per etymology.
type apiEntry struct {
	Word      string        `json:"word"`
	Phonetics []apiPhonetic `json:"phonetics"`
	Meanings  []apiMeaning  `json:"meanings"`
}

type apiPhonetic struct {
	Text  string `json:"text"`
	Audio string `json:"audio"`
}

type apiMeaning struct {
	PartOfSpeech string          `json:"partOfSpeech"`
	Definitions  []apiDefinition `json:"definitions"`
}

type apiDefinition struct {
	Definition string `json:"definition"`
	Example    string `json:"example"`
}

// mapAPIResponse merges entries: senses are concatenated and pronunciations
// deduplicated by transcription.
func mapAPIResponse(entries []apiEntry) *Record {
	rec := &Record{Senses: []Sense{}}
	seen := make(map[string]int)

	for _, entry := range entries {
		for _, meaning := range entry.Meanings {
			for _, def := range meaning.Definitions {
				if strings.TrimSpace(def.Definition) == "" {
					continue
				}
				sense := Sense{PartOfSpeech: meaning.PartOfSpeech, Definition: def.Definition}
				if def.Example != "" {
					sense.Examples = []string{def.Example}
				}
				rec.Senses = append(rec.Senses, sense)
			}
		}

		for _, ph := range entry.Phonetics {
			if ph.Text == "" && ph.Audio == "" {
				continue
			}
			pron := Pronunciation{IPA: ph.Text, AudioURL: ph.Audio}
			if ph.Audio != "" {
				pron.Region = inferRegion(ph.Audio)
			}
			if pron.IPA != "" {
				if idx, ok := seen[pron.IPA]; ok {
					// Prefer the variant that carries audio.
					if rec.Pronunciations[idx].AudioURL == "" && pron.AudioURL != "" {
						rec.Pronunciations[idx].AudioURL = pron.AudioURL
						rec.Pronunciations[idx].Region = pron.Region
					}
					continue
				}
				seen[pron.IPA] = len(rec.Pronunciations)
			}
			rec.Pronunciations = append(rec.Pronunciations, pron)
		}
	}
	return rec
}

// inferRegion guesses the accent from the audio file name.
func inferRegion(audioURL string) string {
	lower := strings.ToLower(audioURL)
	if strings.Contains(lower, "-us.") || strings.Contains(lower, "-us-") {
		return "US"
	}
	if strings.Contains(lower, "-uk.") || strings.Contains(lower, "-uk-") {
		return "UK"
	}
	return ""
}
