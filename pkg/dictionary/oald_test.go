package dictionary

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/bookdeck/pkg/lexicon"
)

const runVerbPage = `<!DOCTYPE html><html><body>
<div class="entry">
  <div class="top-container">
    <h1 class="headword">run</h1> <span class="pos">verb</span>
    <div class="phonetics">
      <div class="phons_br"><div class="sound audio_play_button pron-uk" data-src-mp3="https://audio.example/run__gb_1.mp3"></div><span class="phon">/rʌn/</span></div>
      <div class="phons_n_am"><div class="sound audio_play_button pron-us" data-src-mp3="https://audio.example/run__us_1.mp3"></div><span class="phon">/rʌn/</span></div>
    </div>
  </div>
  <ol class="senses_multiple">
    <li class="sense">
      <div class="symbols"><a href="#"><span class="ox3ksym_a1">&nbsp;</span></a></div>
      <span class="def">to move using your legs, going faster than when you walk</span>
      <ul class="examples"><li><span class="x">Can you run as fast as Mike?</span></li><li><span class="x">The children came running into the room.</span></li></ul>
    </li>
    <li class="sense">
      <span class="def">to be in charge of a business</span>
    </li>
  </ol>
  <div class="idioms">
    <div class="idm-g">
      <div class="top-container"><span class="idm">run the show</span></div>
      <ol><li class="sense"><span class="def">to be in charge of an organization</span></li></ol>
    </div>
  </div>
</div>
</body></html>`

const runNounPage = `<!DOCTYPE html><html><body>
<div class="entry">
  <h1 class="headword">run</h1> <span class="pos">noun</span>
  <div class="phons_n_am"><span class="phon">/rʌn/</span></div>
  <ol><li class="sense">
    <div class="symbols"><span class="ox5ksym_b2">&nbsp;</span></div>
    <span class="def">an act of running</span>
    <span class="x">I go for a run every morning.</span>
  </li></ol>
</div>
</body></html>`

const breakPage = `<!DOCTYPE html><html><body>
<h1 class="headword">break</h1> <span class="pos">verb</span>
<ol><li class="sense"><span class="def">to be damaged and separated into two or more parts</span></li></ol>
<div class="idioms">
  <div class="idm-g">
    <div class="top-container"><span class="idm">break a leg</span></div>
    <ol><li class="sense"><span class="def">used to wish somebody good luck</span></li></ol>
  </div>
  <div class="idm-g">
    <div class="top-container"><span class="idm">break the  ice</span></div>
    <ol><li class="sense"><span class="def">to say or do something that makes people feel more relaxed</span>
      <span class="x">Someone suggested a game to break the ice.</span></li></ol>
  </div>
</div>
</body></html>`

const giveUpPage = `<!DOCTYPE html><html><body>
<h1 class="headword">give up</h1> <span class="pos">phrasal verb</span>
<ol><li class="sense"><span class="def">to stop trying to do something</span>
  <span class="x">They gave up without a fight.</span></li></ol>
</body></html>`

// oaldServer serves pages by path; anything else is a 404.
func oaldServer(t *testing.T, pages map[string]string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		body, ok := pages[strings.TrimPrefix(r.URL.Path, "/definition/english/")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestOALD(srv *httptest.Server) *OALD {
	return NewOALD(srv.URL+"/definition/english", nil, nil, newTestLogger())
}

func TestOALD_LookupWord_MergesHomographPages(t *testing.T) {
	t.Parallel()

	srv, calls := oaldServer(t, map[string]string{"run_1": runVerbPage, "run_2": runNounPage})
	rec, err := newTestOALD(srv).Lookup(context.Background(), wordItem("run"))
	require.NoError(t, err)

	assert.Equal(t, int32(3), calls.Load(), "stops at the first missing page")
	assert.Equal(t, "oald", rec.Source)
	assert.Equal(t, lexicon.Word, rec.Category)

	require.Len(t, rec.Senses, 3, "idiom senses stay out of the word entry")
	assert.Equal(t, Sense{
		PartOfSpeech: "verb",
		Definition:   "to move using your legs, going faster than when you walk",
		Examples:     []string{"Can you run as fast as Mike?", "The children came running into the room."},
		Level:        "A1",
	}, rec.Senses[0])
	assert.Equal(t, "", rec.Senses[1].Level)
	assert.Equal(t, "noun", rec.Senses[2].PartOfSpeech)
	assert.Equal(t, "B2", rec.Senses[2].Level)

	require.Len(t, rec.Pronunciations, 2, "the noun page repeats the US transcription")
	assert.Equal(t, Pronunciation{IPA: "/rʌn/", Region: "US", AudioURL: "https://audio.example/run__us_1.mp3"}, rec.Pronunciations[0])
	assert.Equal(t, "UK", rec.Pronunciations[1].Region)
	assert.Equal(t, "https://audio.example/run__us_1.mp3", rec.AudioURL())
}

func TestOALD_LookupWord_SkipsInvalidPages(t *testing.T) {
	t.Parallel()

	srv, _ := oaldServer(t, map[string]string{
		"run_1": `<html><body><p>Did you mean?</p></body></html>`,
		"run_2": runNounPage,
	})
	rec, err := newTestOALD(srv).Lookup(context.Background(), wordItem("run"))
	require.NoError(t, err)
	require.Len(t, rec.Senses, 1)
	assert.Equal(t, "an act of running", rec.Senses[0].Definition)
}

func TestOALD_LookupWord_NotFound(t *testing.T) {
	t.Parallel()

	srv, calls := oaldServer(t, nil)
	_, err := newTestOALD(srv).Lookup(context.Background(), wordItem("zzyzx"))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(1), calls.Load())
}

func TestOALD_LookupPhrasalVerb_FallsBackToNumberedPage(t *testing.T) {
	t.Parallel()

	srv, calls := oaldServer(t, map[string]string{"give-up_1": giveUpPage})
	item := lexicon.LexicalItem{Surface: "gave up", Lemma: "give up", Category: lexicon.PhrasalVerb}
	rec, err := newTestOALD(srv).Lookup(context.Background(), item)
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, lexicon.PhrasalVerb, rec.Category)
	require.Len(t, rec.Senses, 1)
	assert.Equal(t, "phrasal verb", rec.Senses[0].PartOfSpeech)
	assert.Equal(t, []string{"They gave up without a fight."}, rec.Senses[0].Examples)
	assert.Empty(t, rec.Pronunciations)
}

func TestOALD_LookupIdiom_SearchesKeywordIdiomSection(t *testing.T) {
	t.Parallel()

	srv, _ := oaldServer(t, map[string]string{"break_1": breakPage})
	item := lexicon.LexicalItem{Surface: "broke the ice", Lemma: "break the ice", Category: lexicon.Idiom}
	rec, err := newTestOALD(srv).Lookup(context.Background(), item)
	require.NoError(t, err)

	assert.Equal(t, lexicon.Idiom, rec.Category)
	require.Len(t, rec.Senses, 1)
	assert.Equal(t, "to say or do something that makes people feel more relaxed", rec.Senses[0].Definition)
	assert.Equal(t, []string{"Someone suggested a game to break the ice."}, rec.Senses[0].Examples)

	_, err = newTestOALD(srv).Lookup(context.Background(), lexicon.LexicalItem{Lemma: "break the bank", Category: lexicon.Idiom})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOALD_ServerErrorIsTransient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestOALD(srv).Lookup(context.Background(), wordItem("run"))
	var te *TransientError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusBadGateway, te.Status)
}

func TestSlugAndIdiomKeywords(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "give-up", Slug("Give  Up"))
	assert.Equal(t, "run", Slug("run"))
	assert.Equal(t, []string{"break"}, idiomKeywords("break the ice"))
	assert.Equal(t, []string{"weather", "under"}, idiomKeywords("under the weather"))
}
