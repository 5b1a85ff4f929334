package ingest

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Page is one PDF page's extracted text.
type Page struct {
	Number int
	Text   string
}

// PDFExtractor pulls plain text from PDF bytes page by page.
type PDFExtractor struct{}

// Extract returns the readable pages of the document. Pages that cannot
// be decoded or carry no text are skipped; a fully unreadable document
// yields an empty slice, not an error.
func (PDFExtractor) Extract(content []byte) ([]Page, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("empty pdf content")
	}

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}

	var pages []Page
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		pages = append(pages, Page{Number: i, Text: text})
	}
	return pages, nil
}
