package dictionary

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/bookdeck/pkg/lexicon"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func wordItem(lemma string) lexicon.LexicalItem {
	return lexicon.LexicalItem{Surface: lemma, Lemma: lemma, Category: lexicon.Word}
}

func jsonServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestFreeDict_Lookup_Success(t *testing.T) {
	t.Parallel()

	body := `[{
		"word": "hello",
		"phonetics": [
			{"text": "/həˈloʊ/", "audio": "https://example.com/hello-us.mp3"},
			{"text": "/hɛˈləʊ/", "audio": "https://example.com/hello-uk.mp3"}
		],
		"meanings": [
			{"partOfSpeech": "noun", "definitions": [{"definition": "A greeting.", "example": "She gave a cheerful hello."}]},
			{"partOfSpeech": "interjection", "definitions": [
				{"definition": "Used as a greeting.", "example": "Hello, how are you?"},
				{"definition": "Used to attract attention.", "example": ""}
			]}
		]
	}]`

	var gotPath, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte(body))
	}))
	defer srv.Close()

	p := NewFreeDict(srv.URL, nil, nil, newTestLogger())
	rec, err := p.Lookup(context.Background(), wordItem("hello"))
	require.NoError(t, err)

	assert.Equal(t, "/hello", gotPath)
	assert.Contains(t, gotUA, "Mozilla/5.0")
	assert.Equal(t, "hello", rec.Lemma)
	assert.Equal(t, lexicon.Word, rec.Category)
	assert.Equal(t, "freedict", rec.Source)

	require.Len(t, rec.Senses, 3)
	assert.Equal(t, Sense{PartOfSpeech: "noun", Definition: "A greeting.", Examples: []string{"She gave a cheerful hello."}}, rec.Senses[0])
	assert.Equal(t, "interjection", rec.Senses[2].PartOfSpeech)
	assert.Empty(t, rec.Senses[2].Examples)

	require.Len(t, rec.Pronunciations, 2)
	assert.Equal(t, Pronunciation{IPA: "/həˈloʊ/", Region: "US", AudioURL: "https://example.com/hello-us.mp3"}, rec.Pronunciations[0])
	assert.Equal(t, "UK", rec.Pronunciations[1].Region)
}

func TestFreeDict_Lookup_PhraseIsPathEscaped(t *testing.T) {
	t.Parallel()

	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		w.Write([]byte(`[{"word":"give up","meanings":[{"partOfSpeech":"verb","definitions":[{"definition":"To stop trying."}]}]}]`))
	}))
	defer srv.Close()

	p := NewFreeDict(srv.URL+"/", nil, nil, newTestLogger())
	rec, err := p.Lookup(context.Background(), lexicon.LexicalItem{Lemma: "give up", Category: lexicon.PhrasalVerb})
	require.NoError(t, err)
	assert.Equal(t, "/give%20up", gotPath)
	assert.Equal(t, lexicon.PhrasalVerb, rec.Category)
}

func TestFreeDict_Lookup_ErrorTaxonomy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		body      string
		permanent bool
		want      error
	}{
		{"not found", http.StatusNotFound, `{"title":"No Definitions Found"}`, true, ErrNotFound},
		{"no senses", http.StatusOK, `[{"word":"rare","phonetics":[],"meanings":[]}]`, true, ErrNotFound},
		{"invalid json", http.StatusOK, `not valid json`, true, ErrMalformed},
		{"forbidden", http.StatusForbidden, ``, true, ErrRejected},
		{"server error", http.StatusInternalServerError, ``, false, nil},
		{"throttled", http.StatusTooManyRequests, ``, false, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv, calls := jsonServer(t, tt.status, tt.body)
			p := NewFreeDict(srv.URL, nil, nil, newTestLogger())

			rec, err := p.Lookup(context.Background(), wordItem("word"))
			require.Error(t, err)
			assert.Nil(t, rec)
			assert.Equal(t, tt.permanent, IsPermanent(err))
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			} else {
				var te *TransientError
				require.True(t, errors.As(err, &te))
				assert.Equal(t, tt.status, te.Status)
			}
			assert.Equal(t, int32(1), calls.Load(), "sources never retry on their own")
		})
	}
}

func TestFreeDict_Lookup_NetworkErrorIsTransient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	p := NewFreeDict(url, &http.Client{Timeout: time.Second}, nil, newTestLogger())
	_, err := p.Lookup(context.Background(), wordItem("offline"))
	var te *TransientError
	require.ErrorAs(t, err, &te)
	assert.Zero(t, te.Status)
	assert.False(t, IsPermanent(err))
}

func TestFreeDict_Lookup_ContextCancelled(t *testing.T) {
	t.Parallel()

	srv, _ := jsonServer(t, http.StatusOK, `[]`)
	p := NewFreeDict(srv.URL, nil, nil, newTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Lookup(ctx, wordItem("late"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFreeDict_MultipleEntriesMerged(t *testing.T) {
	t.Parallel()

	body := `[
		{"word": "run", "phonetics": [{"text": "/rʌn/", "audio": ""}],
		 "meanings": [{"partOfSpeech": "verb", "definitions": [{"definition": "To move fast.", "example": "She runs every day."}]}]},
		{"word": "run", "phonetics": [{"text": "/rʌn/", "audio": "https://example.com/run-us.mp3"}, {"text": "", "audio": "https://example.com/other.mp3"}],
		 "meanings": [{"partOfSpeech": "noun", "definitions": [{"definition": "An act of running."}, {"definition": "  "}]}]}
	]`
	srv, _ := jsonServer(t, http.StatusOK, body)
	p := NewFreeDict(srv.URL, nil, nil, newTestLogger())

	rec, err := p.Lookup(context.Background(), wordItem("run"))
	require.NoError(t, err)

	require.Len(t, rec.Senses, 2)
	assert.Equal(t, "verb", rec.Senses[0].PartOfSpeech)
	assert.Equal(t, "noun", rec.Senses[1].PartOfSpeech)

	require.Len(t, rec.Pronunciations, 2)
	assert.Equal(t, "https://example.com/run-us.mp3", rec.Pronunciations[0].AudioURL, "audio upgraded onto the deduplicated IPA")
	assert.Equal(t, "US", rec.Pronunciations[0].Region)
	assert.Equal(t, "", rec.Pronunciations[1].IPA)
}

func TestInferRegion(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "US", inferRegion("https://x/en/hello-us.mp3"))
	assert.Equal(t, "UK", inferRegion("https://x/en/hello-UK-1.mp3"))
	assert.Equal(t, "", inferRegion("https://x/en/hello-au.mp3"))
}

func TestRateLimiterBlocksBeyondBurst(t *testing.T) {
	t.Parallel()

	lim := NewRateLimiter(2)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.NoError(t, lim.Wait(ctx))
	require.NoError(t, lim.Wait(ctx))
	assert.Error(t, lim.Wait(ctx), "third call within the window must wait past the deadline")

	unlimited := NewRateLimiter(0)
	for i := 0; i < 1000; i++ {
		require.NoError(t, unlimited.Wait(context.Background()))
	}
}
