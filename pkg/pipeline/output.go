package pipeline

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/japaniel/bookdeck/pkg/cards"
	"github.com/japaniel/bookdeck/pkg/source"
)

// DefaultOutputsDir receives decks given by bare file name.
const DefaultOutputsDir = "outputs"

// DeckExt is the extension of the Anki import file.
const DeckExt = ".tsv"

// ResolveOutputPath decides where the deck goes. A bare file name is placed
// under outputsDir, any extension is replaced by DeckExt, and an empty
// output defaults to outputsDir/<input stem>. Parent directories are created.
func ResolveOutputPath(output, input, outputsDir string) (string, error) {
	if outputsDir == "" {
		outputsDir = DefaultOutputsDir
	}

	var p string
	switch {
	case output == "":
		p = filepath.Join(outputsDir, inputStem(input))
	case filepath.Dir(output) == ".":
		p = filepath.Join(outputsDir, output)
	default:
		p = output
	}
	p = strings.TrimSuffix(p, filepath.Ext(p)) + DeckExt

	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	return p, nil
}

// inputStem is the base name of input without its extension.
func inputStem(input string) string {
	name := input
	if source.IsURL(input) {
		if u, err := url.Parse(input); err == nil {
			name = path.Base(strings.TrimRight(u.Path, "/"))
			if name == "." || name == "/" || name == "" {
				name = u.Hostname()
			}
		}
	}
	name = filepath.Base(name)
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if stem == "" || stem == "." {
		return "deck"
	}
	return stem
}

// writeDeck writes the TSV deck at deckPath, the JSON dump beside it, and
// the style sheet when one is configured. It returns the JSON path.
func writeDeck(deck cards.Deck, deckPath, stylePath string) (string, error) {
	if err := writeFile(deckPath, func(w io.Writer) error { return cards.WriteTSV(w, deck) }); err != nil {
		return "", fmt.Errorf("write deck: %w", err)
	}
	jsonPath := strings.TrimSuffix(deckPath, DeckExt) + ".json"
	if err := writeFile(jsonPath, func(w io.Writer) error { return cards.WriteJSON(w, deck) }); err != nil {
		return "", fmt.Errorf("write card records: %w", err)
	}
	if stylePath != "" {
		cssPath := strings.TrimSuffix(deckPath, DeckExt) + filepath.Ext(stylePath)
		if err := copyFile(stylePath, cssPath); err != nil {
			return "", fmt.Errorf("copy style: %w", err)
		}
	}
	return jsonPath, nil
}

// writeFile writes through a temp file in the target directory so a
// failed write never leaves a truncated file behind.
func writeFile(dst string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".bookdeck-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return err
	}
	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	return writeFile(dst, func(w io.Writer) error {
		_, err := io.Copy(w, in)
		return err
	})
}
