package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-shiori/dom"
	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"

	"github.com/japaniel/bookdeck/pkg/dictionary"
)

const (
	fetchTimeout = 30 * time.Second
	// maxBodySize limits HTML content fetched from untrusted URLs.
	maxBodySize = 10 * 1024 * 1024
)

// fetch downloads a web page and extracts its article text.
func (e *Extractor) fetch(ctx context.Context, rawURL string) (Document, error) {
	pageURL, err := url.Parse(rawURL)
	if err != nil {
		return Document{}, fmt.Errorf("parse url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Document{}, fmt.Errorf("create request: %w", err)
	}
	// Mimic a real browser to avoid being blocked.
	dictionary.SetBrowserHeaders(req, "")

	client := e.Client
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return Document{}, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Document{}, fmt.Errorf("fetch %s: status code %d", rawURL, resp.StatusCode)
	}
	if resp.ContentLength > maxBodySize {
		return Document{}, fmt.Errorf("content-length %d exceeds limit of %d bytes", resp.ContentLength, maxBodySize)
	}
	// Read one byte past the limit to tell a truncated body from one of exactly the limit.
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return Document{}, fmt.Errorf("read response body: %w", err)
	}
	if len(body) > maxBodySize {
		return Document{}, fmt.Errorf("response body exceeded maximum size limit of %d bytes", maxBodySize)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return Document{}, fmt.Errorf("%s: %w", rawURL, ErrEmptyInput)
	}

	title, text, err := fromHTML(body, pageURL)
	if err != nil {
		return Document{}, err
	}
	return Document{
		Type:     TypeURL,
		Title:    title,
		Location: rawURL,
		Checksum: checksum(body),
		Text:     text,
	}, nil
}

// fromHTML extracts the main article text, falling back to the whole body
// when readability finds no article.
func fromHTML(raw []byte, pageURL *url.URL) (string, string, error) {
	article, err := readability.FromReader(bytes.NewReader(raw), pageURL)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		return strings.TrimSpace(article.Title), article.TextContent, nil
	}

	doc, perr := html.Parse(bytes.NewReader(raw))
	if perr != nil {
		if err != nil {
			return "", "", fmt.Errorf("extract article: %w", err)
		}
		return "", "", fmt.Errorf("parse html: %w", perr)
	}
	title := ""
	if t := dom.QuerySelector(doc, "title"); t != nil {
		title = strings.TrimSpace(dom.TextContent(t))
	}
	return title, blockText(doc), nil
}

func fileURL(path string) *url.URL {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return &url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
}

// blockElements end a line of text.
var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true, "td": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "pre": true, "section": true, "article": true, "hr": true,
}

// blockText returns the visible text under the body, one block per line.
func blockText(doc *html.Node) string {
	root := dom.QuerySelector(doc, "body")
	if root == nil {
		root = doc
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(strings.ReplaceAll(n.Data, "\n", " "))
			return
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript", "head", "rt":
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockElements[n.Data] {
			b.WriteByte('\n')
		}
	}
	walk(root)

	lines := strings.Split(b.String(), "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.Join(strings.Fields(l), " "); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
