// Package ingest turns uploaded PDF files into catalog documents with
// author associations and searchable chunks.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/mcpress/chatbot/internal/catalog"
	"github.com/mcpress/chatbot/internal/reconcile"
	"github.com/mcpress/chatbot/internal/search"
)

// Catalog is the document storage the pipeline writes to.
type Catalog interface {
	UpsertDocument(ctx context.Context, doc catalog.Document) (int64, error)
	ReplaceAuthors(ctx context.Context, documentID int64, refs []catalog.AuthorRef) error
}

// Registry resolves author names to ids, creating records as needed.
type Registry interface {
	GetOrCreate(ctx context.Context, name, siteURL string) (int64, error)
}

// ChunkStore persists embedded chunks.
type ChunkStore interface {
	AddChunks(ctx context.Context, chunks []search.Chunk) error
}

// Extractor pulls text pages out of a file format.
type Extractor interface {
	Extract(content []byte) ([]Page, error)
}

// Metadata accompanies an uploaded file.
type Metadata struct {
	Title      string
	Type       catalog.DocumentType
	Authors    string // raw author string, store-export format
	MCPressURL string
	ArticleURL string
	Category   string
}

// Result summarizes one ingested file.
type Result struct {
	DocumentID int64    `json:"document_id"`
	Filename   string   `json:"filename"`
	Pages      int      `json:"pages"`
	Chunks     int      `json:"chunks"`
	Authors    []string `json:"authors"`
}

// Pipeline ingests files end to end: extract, upsert document, link
// authors, chunk and embed.
type Pipeline struct {
	catalog   Catalog
	registry  Registry
	chunks    ChunkStore
	extractor Extractor
	chunkSize int
	overlap   int
	logger    *slog.Logger
}

// New creates an ingest pipeline. chunkSize and overlap are in runes.
func New(c Catalog, r Registry, cs ChunkStore, e Extractor, chunkSize, overlap int, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		catalog:   c,
		registry:  r,
		chunks:    cs,
		extractor: e,
		chunkSize: chunkSize,
		overlap:   overlap,
		logger:    logger,
	}
}

// Ingest processes one uploaded file. The document row is created (or
// refreshed, matched by filename) before chunking so a failed embedding
// pass can be retried without losing the catalog entry.
func (p *Pipeline) Ingest(ctx context.Context, filename string, content []byte, meta Metadata) (*Result, error) {
	docType := meta.Type
	if docType == "" {
		docType = catalog.TypeBook
	}
	if !docType.Valid() {
		return nil, fmt.Errorf("%w: %q", catalog.ErrInvalidDocumentType, docType)
	}

	pages, err := p.extractor.Extract(content)
	if err != nil {
		return nil, fmt.Errorf("extracting %s: %w", filename, err)
	}

	title := meta.Title
	if title == "" {
		title = titleFromFilename(filename)
	}

	docID, err := p.catalog.UpsertDocument(ctx, catalog.Document{
		Filename:     filename,
		Title:        title,
		Type:         docType,
		LegacyAuthor: meta.Authors,
		MCPressURL:   meta.MCPressURL,
		ArticleURL:   meta.ArticleURL,
		Category:     meta.Category,
		TotalPages:   len(pages),
	})
	if err != nil {
		return nil, fmt.Errorf("upserting document %s: %w", filename, err)
	}

	names := reconcile.ParseAuthors(meta.Authors)
	if len(names) > 0 {
		refs := make([]catalog.AuthorRef, 0, len(names))
		for i, name := range names {
			id, err := p.registry.GetOrCreate(ctx, name, "")
			if err != nil {
				return nil, fmt.Errorf("resolving author %q: %w", name, err)
			}
			refs = append(refs, catalog.AuthorRef{AuthorID: id, Position: i})
		}
		if err := p.catalog.ReplaceAuthors(ctx, docID, refs); err != nil {
			return nil, fmt.Errorf("linking authors of %s: %w", filename, err)
		}
	}

	var chunks []search.Chunk
	for _, page := range pages {
		for _, text := range chunkText(page.Text, p.chunkSize, p.overlap) {
			chunks = append(chunks, search.Chunk{
				DocumentID: docID,
				Index:      len(chunks),
				Content:    text,
				PageNumber: page.Number,
			})
		}
	}
	if err := p.chunks.AddChunks(ctx, chunks); err != nil {
		return nil, fmt.Errorf("storing chunks of %s: %w", filename, err)
	}

	p.logger.Info("document ingested",
		"document_id", docID,
		"filename", filename,
		"pages", len(pages),
		"chunks", len(chunks),
		"authors", len(names))

	return &Result{
		DocumentID: docID,
		Filename:   filename,
		Pages:      len(pages),
		Chunks:     len(chunks),
		Authors:    names,
	}, nil
}

// titleFromFilename derives a display title from an uploaded filename:
// extension dropped, separators spaced.
func titleFromFilename(filename string) string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	base = strings.NewReplacer("_", " ", "-", " ").Replace(base)
	return strings.Join(strings.Fields(base), " ")
}
