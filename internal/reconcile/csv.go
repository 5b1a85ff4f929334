package reconcile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrMissingColumns indicates the CSV header lacks a required column.
var ErrMissingColumns = errors.New("csv missing required columns")

// Row is one record of the store export.
type Row struct {
	URL    string
	Title  string
	Author string
}

// nonProductMarkers flag store URLs that are not real products. Rows
// matching one are skipped before reconciliation.
var nonProductMarkers = []string{"gift-card", "template"}

// ReadCSV parses a store export. The header must contain URL, Title and
// Author columns (case-insensitive, any order); extra columns are
// ignored. Short records are tolerated because store exports frequently
// drop trailing empty fields.
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}

	idx := map[string]int{}
	for i, col := range header {
		idx[strings.ToLower(strings.TrimSpace(col))] = i
	}
	urlCol, urlOK := idx["url"]
	titleCol, titleOK := idx["title"]
	authorCol, authorOK := idx["author"]
	if !urlOK || !titleOK || !authorOK {
		return nil, fmt.Errorf("%w: need url, title, author, got %v", ErrMissingColumns, header)
	}

	var rows []Row
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv record: %w", err)
		}
		rows = append(rows, Row{
			URL:    strings.TrimSpace(field(record, urlCol)),
			Title:  strings.TrimSpace(field(record, titleCol)),
			Author: strings.TrimSpace(field(record, authorCol)),
		})
	}
	return rows, nil
}

func field(record []string, i int) string {
	if i >= len(record) {
		return ""
	}
	return record[i]
}

// skippable reports whether a row should be excluded from reconciliation:
// no URL to match on, or a known non-product page.
func skippable(r Row) bool {
	if r.URL == "" {
		return true
	}
	lower := strings.ToLower(r.URL)
	for _, marker := range nonProductMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
