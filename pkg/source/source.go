// Package source extracts plain text from input documents.
package source

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrEmptyInput is returned for an input file of zero bytes.
	ErrEmptyInput = errors.New("input file is empty")
	// ErrUnsupported is returned for file extensions no reader handles.
	ErrUnsupported = errors.New("unsupported input format")
)

// Document type names, stored as the source type of a run.
const (
	TypeText = "text"
	TypeHTML = "html"
	TypeEPUB = "epub"
	TypeURL  = "website_article"
)

// Document is the extracted text of one input.
type Document struct {
	Type     string
	Title    string
	Location string // file path or URL
	Checksum string // md5 of the raw input bytes
	Text     string
}

// Extractor turns an input location into a Document.
type Extractor struct {
	Client *http.Client
}

// NewExtractor returns an Extractor with the default HTTP client settings.
func NewExtractor() *Extractor {
	return &Extractor{Client: &http.Client{Timeout: fetchTimeout}}
}

// IsURL reports whether input names a web page rather than a file.
func IsURL(input string) bool {
	lower := strings.ToLower(input)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// Validate checks that path is a regular, non-empty file.
func Validate(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("input file %s not found", path)
		}
		return err
	}
	if fi.IsDir() {
		return fmt.Errorf("input %s is a directory", path)
	}
	if fi.Size() == 0 {
		return fmt.Errorf("%s: %w", path, ErrEmptyInput)
	}
	return nil
}

// Extract reads input, a file path or an http(s) URL.
func (e *Extractor) Extract(ctx context.Context, input string) (Document, error) {
	if IsURL(input) {
		return e.fetch(ctx, input)
	}
	if err := Validate(input); err != nil {
		return Document{}, err
	}
	raw, err := os.ReadFile(input)
	if err != nil {
		return Document{}, err
	}

	doc := Document{
		Location: input,
		Checksum: checksum(raw),
		Title:    strings.TrimSuffix(filepath.Base(input), filepath.Ext(input)),
	}
	switch strings.ToLower(filepath.Ext(input)) {
	case ".txt", ".text", ".md":
		doc.Type = TypeText
		doc.Text = string(raw)
	case ".html", ".htm", ".xhtml":
		doc.Type = TypeHTML
		title, text, err := fromHTML(raw, fileURL(input))
		if err != nil {
			return Document{}, err
		}
		if title != "" {
			doc.Title = title
		}
		doc.Text = text
	case ".epub":
		doc.Type = TypeEPUB
		title, text, err := fromEPUB(raw)
		if err != nil {
			return Document{}, err
		}
		if title != "" {
			doc.Title = title
		}
		doc.Text = text
	default:
		return Document{}, fmt.Errorf("%w: %q", ErrUnsupported, filepath.Ext(input))
	}
	return doc, nil
}

func checksum(b []byte) string {
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}
