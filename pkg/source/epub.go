package source

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"

	"golang.org/x/net/html"
)

type epubContainer struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

type epubPackage struct {
	Title    string `xml:"metadata>title"`
	Manifest []struct {
		ID        string `xml:"id,attr"`
		Href      string `xml:"href,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"manifest>item"`
	Spine []struct {
		IDRef string `xml:"idref,attr"`
	} `xml:"spine>itemref"`
}

// fromEPUB returns the book title and the text of its documents in spine order.
func fromEPUB(raw []byte) (string, string, error) {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", "", fmt.Errorf("open epub: %w", err)
	}
	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	var container epubContainer
	if err := readXML(files, "META-INF/container.xml", &container); err != nil {
		return "", "", err
	}
	if len(container.Rootfiles) == 0 {
		return "", "", fmt.Errorf("epub: container lists no rootfile")
	}
	opfPath := container.Rootfiles[0].FullPath

	var pkg epubPackage
	if err := readXML(files, opfPath, &pkg); err != nil {
		return "", "", err
	}

	hrefs := make(map[string]string, len(pkg.Manifest))
	for _, it := range pkg.Manifest {
		if strings.Contains(it.MediaType, "html") {
			hrefs[it.ID] = it.Href
		}
	}

	base := path.Dir(opfPath)
	var parts []string
	for _, ref := range pkg.Spine {
		href, ok := hrefs[ref.IDRef]
		if !ok {
			continue
		}
		body, err := readFile(files, path.Join(base, href))
		if err != nil {
			return "", "", err
		}
		doc, err := html.Parse(bytes.NewReader(body))
		if err != nil {
			return "", "", fmt.Errorf("epub %s: %w", href, err)
		}
		if text := blockText(doc); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.TrimSpace(pkg.Title), strings.Join(parts, "\n"), nil
}

func readFile(files map[string]*zip.File, name string) ([]byte, error) {
	f, ok := files[name]
	if !ok {
		return nil, fmt.Errorf("epub: missing %s", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("epub %s: %w", name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func readXML(files map[string]*zip.File, name string, v any) error {
	b, err := readFile(files, name)
	if err != nil {
		return err
	}
	if err := xml.Unmarshal(b, v); err != nil {
		return fmt.Errorf("epub %s: %w", name, err)
	}
	return nil
}
