package filter

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Level is a CEFR proficiency level. The zero value means no level.
type Level int

const (
	LevelNone Level = iota
	A1
	A2
	B1
	B2
	C1
)

// Levels lists the real levels in ascending order.
var Levels = []Level{A1, A2, B1, B2, C1}

func (l Level) String() string {
	switch l {
	case A1:
		return "A1"
	case A2:
		return "A2"
	case B1:
		return "B1"
	case B2:
		return "B2"
	case C1:
		return "C1"
	default:
		return "None"
	}
}

// ParseLevel parses a case-insensitive level name. "" and "none" map to
// LevelNone.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "NONE":
		return LevelNone, nil
	case "A1":
		return A1, nil
	case "A2":
		return A2, nil
	case "B1":
		return B1, nil
	case "B2":
		return B2, nil
	case "C1":
		return C1, nil
	}
	return LevelNone, fmt.Errorf("invalid CEFR level %q: use one of A1, A2, B1, B2, C1 or None", s)
}

// LevelTable maps words to their CEFR level. It is read-only once loaded.
type LevelTable struct {
	levels map[string]Level
}

// NewLevelTable builds a table from a level -> words mapping. A word listed
// under several levels keeps the lowest.
func NewLevelTable(words map[Level][]string) LevelTable {
	t := LevelTable{levels: make(map[string]Level)}
	for _, lvl := range Levels {
		for _, w := range words[lvl] {
			t.set(w, lvl)
		}
	}
	return t
}

func (t LevelTable) set(word string, lvl Level) {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return
	}
	if cur, ok := t.levels[word]; ok && cur <= lvl {
		return
	}
	t.levels[word] = lvl
}

// Level returns the level of word.
func (t LevelTable) Level(word string) (Level, bool) {
	l, ok := t.levels[word]
	return l, ok
}

// Len returns the number of words in the table.
func (t LevelTable) Len() int {
	return len(t.levels)
}

// LoadLevelTable reads A1.txt ... C1.txt from dir, one word per line.
// Missing files contribute nothing.
func LoadLevelTable(dir string) (LevelTable, error) {
	t := LevelTable{levels: make(map[string]Level)}
	if dir == "" {
		return t, nil
	}
	for _, lvl := range Levels {
		path := filepath.Join(dir, lvl.String()+".txt")
		words, err := LoadWordList(path)
		if err != nil {
			return LevelTable{}, fmt.Errorf("load %s word list: %w", lvl, err)
		}
		for _, w := range words {
			t.set(w, lvl)
		}
	}
	return t, nil
}

// LoadWordList reads one lower-cased word per line. A missing file yields
// an empty list.
func LoadWordList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()
	return readWordList(f)
}

// LoadWordSet is LoadWordList as a set.
func LoadWordSet(path string) (map[string]struct{}, error) {
	words, err := LoadWordList(path)
	if err != nil {
		return nil, err
	}
	return toSet(words), nil
}

func readWordList(r io.Reader) ([]string, error) {
	var words []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		w := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if w == "" || strings.HasPrefix(w, "#") {
			continue
		}
		words = append(words, w)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return words, nil
}

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
