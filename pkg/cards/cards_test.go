package cards

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/bookdeck/pkg/dictionary"
	"github.com/japaniel/bookdeck/pkg/enrich"
	"github.com/japaniel/bookdeck/pkg/lexicon"
)

func tagged(lemma string, cat lexicon.Category, senses ...dictionary.Sense) enrich.Tagged {
	if len(senses) == 0 {
		senses = []dictionary.Sense{{Definition: "meaning of " + lemma}}
	}
	return enrich.Tagged{
		Item:   lexicon.LexicalItem{Surface: lemma, Lemma: lemma, Category: cat},
		Record: &dictionary.Record{Lemma: lemma, Category: cat, Senses: senses},
	}
}

func TestAssemble_GroupsAndSorts(t *testing.T) {
	t.Parallel()

	records := []enrich.Tagged{
		tagged("kitten", lexicon.Word),
		tagged("give up", lexicon.PhrasalVerb),
		tagged("cat", lexicon.Word),
		tagged("break the ice", lexicon.Idiom),
		tagged("run", lexicon.Word),
		tagged("cat", lexicon.Word),
	}
	deck, err := NewAssembler().Assemble(records, nil)
	require.NoError(t, err)

	assert.Equal(t, 5, deck.Len())
	assert.Equal(t, []lexicon.Category{lexicon.Word, lexicon.Idiom, lexicon.PhrasalVerb}, deck.Categories())

	var lemmas []string
	for _, c := range deck.All() {
		lemmas = append(lemmas, c.Lemma)
	}
	assert.Equal(t, []string{"cat", "kitten", "run", "break the ice", "give up"}, lemmas)
}

func TestAssemble_IndependentOfInputOrder(t *testing.T) {
	t.Parallel()

	a := []enrich.Tagged{tagged("run", lexicon.Word), tagged("cat", lexicon.Word), tagged("give up", lexicon.PhrasalVerb)}
	b := []enrich.Tagged{a[2], a[1], a[0]}

	da, err := NewAssembler().Assemble(a, nil)
	require.NoError(t, err)
	db, err := NewAssembler().Assemble(b, nil)
	require.NoError(t, err)
	assert.Equal(t, da.All(), db.All())
}

func TestAssemble_FailedItemsGetNoCard(t *testing.T) {
	t.Parallel()

	records := []enrich.Tagged{tagged("cat", lexicon.Word), tagged("zzyzx", lexicon.Word)}
	failures := []enrich.Failure{{Item: lexicon.LexicalItem{Lemma: "zzyzx", Category: lexicon.Word}, Err: dictionary.ErrNotFound}}

	deck, err := NewAssembler().Assemble(records, failures)
	require.NoError(t, err)
	require.Equal(t, 1, deck.Len())
	assert.Equal(t, "cat", deck.All()[0].Lemma)
}

func TestAssemble_EmptyDeck(t *testing.T) {
	t.Parallel()

	deck, err := NewAssembler().Assemble(nil, nil)
	require.NoError(t, err)
	assert.Zero(t, deck.Len())
	assert.Empty(t, deck.Categories())
	assert.Empty(t, deck.All())
}

func TestRender_WordCard(t *testing.T) {
	t.Parallel()

	rec := tagged("run", lexicon.Word,
		dictionary.Sense{PartOfSpeech: "verb", Definition: "to move fast", Examples: []string{"She ran home."}, Level: "A1"},
		dictionary.Sense{PartOfSpeech: "noun", Definition: "an act of running"},
	)
	rec.Record.Pronunciations = []dictionary.Pronunciation{{IPA: "/rʌn/", Region: "UK"}, {IPA: "/rən/", Region: "US"}}
	rec.Record.AudioRef = "0a1b2c.mp3"

	deck, err := NewAssembler().Assemble([]enrich.Tagged{rec}, nil)
	require.NoError(t, err)
	card := deck.Cards(lexicon.Word)[0]

	assert.Equal(t, `<div class="headword">run</div><div class="ipa">/rən/</div>`, card.Front)
	assert.Contains(t, card.Back, `<span class="pos">verb</span> <span class="cefr">A1</span> <span class="definition-text">to move fast</span>`)
	assert.Contains(t, card.Back, `<li class="example">She ran home.</li>`)
	assert.Equal(t, 2, strings.Count(card.Back, `<li class="meaning-container">`))
	assert.Equal(t, "[sound:0a1b2c.mp3]", card.Audio)
}

func TestRender_PhraseCardsAndEscaping(t *testing.T) {
	t.Parallel()

	idiom := tagged("break the ice", lexicon.Idiom, dictionary.Sense{Definition: "make people <relax>", Examples: []string{"A game broke the ice."}})
	pv := tagged("give up", lexicon.PhrasalVerb, dictionary.Sense{Definition: "to stop trying", Level: "B1"})

	deck, err := NewAssembler().Assemble([]enrich.Tagged{idiom, pv}, nil)
	require.NoError(t, err)

	ic := deck.Cards(lexicon.Idiom)[0]
	assert.Equal(t, `<div class="headword">break the ice</div>`, ic.Front)
	assert.Contains(t, ic.Back, "make people &lt;relax&gt;")
	assert.Contains(t, ic.Back, `<li class="example">A game broke the ice.</li>`)
	assert.Empty(t, ic.Audio)

	pc := deck.Cards(lexicon.PhrasalVerb)[0]
	assert.Equal(t, `<div class="headword">give up</div>`, pc.Front)
	assert.Contains(t, pc.Back, `<span class="definition-text">to stop trying</span> <span class="cefr">B1</span>`)
	assert.NotContains(t, pc.Back, "examples-list")
}

func TestWriteTSV(t *testing.T) {
	t.Parallel()

	rec := tagged("cat", lexicon.Word, dictionary.Sense{Definition: "a small\tanimal\nwith fur"})
	rec.Record.AudioRef = "cat.mp3"
	deck, err := NewAssembler().Assemble([]enrich.Tagged{rec, tagged("give up", lexicon.PhrasalVerb)}, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteTSV(&buf, deck))
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")

	require.Len(t, lines, 5)
	assert.Equal(t, []string{"#separator:tab", "#html:true", "#tags column:3"}, lines[:3])

	fields := strings.Split(lines[3], "\t")
	require.Len(t, fields, 3)
	assert.True(t, strings.HasSuffix(fields[0], "[sound:cat.mp3]"))
	assert.Contains(t, fields[1], "a small animal<br>with fur")
	assert.Equal(t, "bookdeck word", fields[2])
	assert.True(t, strings.HasSuffix(lines[4], "\tbookdeck phrasal_verb"))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteTSV_PropagatesWriteError(t *testing.T) {
	t.Parallel()

	deck, err := NewAssembler().Assemble([]enrich.Tagged{tagged("cat", lexicon.Word)}, nil)
	require.NoError(t, err)
	assert.Error(t, WriteTSV(failingWriter{}, deck))
}

func TestWriteJSON(t *testing.T) {
	t.Parallel()

	deck, err := NewAssembler().Assemble([]enrich.Tagged{tagged("cat", lexicon.Word), tagged("give up", lexicon.PhrasalVerb)}, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, deck))

	var got struct {
		Categories map[string][]Card `json:"categories"`
		Total      int               `json:"total"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, 2, got.Total)
	require.Len(t, got.Categories["word"], 1)
	assert.Equal(t, lexicon.Word, got.Categories["word"][0].Category)
	assert.Equal(t, "give up", got.Categories["phrasal_verb"][0].Lemma)
	assert.NotContains(t, got.Categories, "idiom")
}
