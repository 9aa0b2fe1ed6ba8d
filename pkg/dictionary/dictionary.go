package dictionary

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/japaniel/bookdeck/pkg/lexicon"
)

// Source resolves lexical items against an external dictionary.
type Source interface {
	Name() string
	// Lookup returns ErrNotFound, ErrMalformed or ErrRejected for permanent
	// failures; anything else may be retried.
	Lookup(ctx context.Context, item lexicon.LexicalItem) (*Record, error)
}

// Pronunciation is one transcription with its optional audio.
type Pronunciation struct {
	IPA      string `json:"ipa,omitempty"`
	Region   string `json:"region,omitempty"` // "US", "UK" or empty
	AudioURL string `json:"audio_url,omitempty"`
}

// Sense is one meaning of the entry.
type Sense struct {
	PartOfSpeech string   `json:"part_of_speech,omitempty"`
	Definition   string   `json:"definition"`
	Examples     []string `json:"examples,omitempty"`
	Level        string   `json:"level,omitempty"` // CEFR level when the source provides it
}

// Record is the enrichment data for one lexical item.
type Record struct {
	Lemma          string           `json:"lemma"`
	Category       lexicon.Category `json:"category"`
	Source         string           `json:"source,omitempty"`
	Pronunciations []Pronunciation  `json:"pronunciations,omitempty"`
	Senses         []Sense          `json:"senses"`
	AudioRef       string           `json:"audio_ref,omitempty"`
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.Pronunciations = append([]Pronunciation(nil), r.Pronunciations...)
	out.Senses = make([]Sense, len(r.Senses))
	for i, s := range r.Senses {
		s.Examples = append([]string(nil), s.Examples...)
		out.Senses[i] = s
	}
	return &out
}

// PrimaryPronunciation prefers a US transcription, then UK, then any.
func (r *Record) PrimaryPronunciation() (Pronunciation, bool) {
	for _, region := range []string{"US", "UK", ""} {
		for _, p := range r.Pronunciations {
			if p.Region == region && (p.IPA != "" || p.AudioURL != "") {
				return p, true
			}
		}
	}
	if len(r.Pronunciations) > 0 {
		return r.Pronunciations[0], true
	}
	return Pronunciation{}, false
}

// AudioURL returns the first audio URL, US first.
func (r *Record) AudioURL() string {
	for _, region := range []string{"US", "UK", ""} {
		for _, p := range r.Pronunciations {
			if p.Region == region && p.AudioURL != "" {
				return p.AudioURL
			}
		}
	}
	return ""
}

// Encode returns the JSON form stored in caches.
func (r *Record) Encode() ([]byte, error) {
	return json.Marshal(r)
}

// DecodeRecord parses the JSON form produced by Encode.
func DecodeRecord(b []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &r, nil
}

// LoadRecords reads an offline dictionary file: either a JSON array of
// records or an object {"entries": [...]}.
func LoadRecords(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var wrapped struct {
		Entries []Record `json:"entries"`
	}
	// Try parsing as full object wrapper first { "entries": [...] }
	dec := json.NewDecoder(f)
	if err := dec.Decode(&wrapped); err == nil && len(wrapped.Entries) > 0 {
		return wrapped.Entries, nil
	}

	// Reset and try as array [...]
	if _, err := f.Seek(0, 0); err != nil {
		return nil, err
	}
	var entries []Record
	dec = json.NewDecoder(f)
	if err := dec.Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to parse dictionary as object or array: %w", err)
	}
	return entries, nil
}
