package cards

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// WriteTSV writes the deck in Anki's plain-text import format: a header
// block followed by one front/back/tags row per card.
func WriteTSV(w io.Writer, d Deck) error {
	bw := bufio.NewWriter(w)
	for _, h := range []string{"#separator:tab", "#html:true", "#tags column:3"} {
		if _, err := fmt.Fprintln(bw, h); err != nil {
			return err
		}
	}
	for _, c := range d.All() {
		front := c.Front + c.Audio
		tags := "bookdeck " + c.Category.String()
		if _, err := fmt.Fprintf(bw, "%s\t%s\t%s\n", tsvField(front), tsvField(c.Back), tags); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// tsvField keeps a field on one line without tabs; the HTML is unaffected.
func tsvField(s string) string {
	return strings.NewReplacer("\t", " ", "\r\n", "<br>", "\n", "<br>", "\r", "<br>").Replace(s)
}

type jsonDeck struct {
	Categories map[string][]Card `json:"categories"`
	Total      int               `json:"total"`
}

// WriteJSON dumps the deck grouped by category name.
func WriteJSON(w io.Writer, d Deck) error {
	out := jsonDeck{Categories: make(map[string][]Card), Total: d.Len()}
	for _, c := range d.Categories() {
		out.Categories[c.String()] = d.Cards(c)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
