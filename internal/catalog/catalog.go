// Package catalog manages documents and their ordered author associations.
//
// A document is an ingested unit — a book or an article. Associations are
// (document, author, position) rows: position is a sort key, not a dense
// index, and legacy data may carry gaps or the -1 "unordered" sentinel.
// Every document is expected to keep at least one association; RemoveAuthor
// enforces that, and ReplaceAuthors rewrites the whole set atomically with
// dense 0..N-1 positions.
package catalog

import (
	"errors"
	"time"
)

// DocumentType distinguishes books from articles.
type DocumentType string

const (
	TypeBook    DocumentType = "book"
	TypeArticle DocumentType = "article"
)

// Valid reports whether t is a known document type.
func (t DocumentType) Valid() bool {
	return t == TypeBook || t == TypeArticle
}

// UnorderedPosition is the legacy sentinel meaning "position unknown".
// Entries carrying it sort after all ordered entries.
const UnorderedPosition = -1

// Sentinel errors for catalog operations. Checked with errors.Is.
var (
	// ErrDocumentNotFound indicates the document id does not exist.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrAssociationNotFound indicates no association exists for the
	// given (document, author) pair.
	ErrAssociationNotFound = errors.New("association not found")

	// ErrDuplicateAssociation indicates the (document, author) pair is
	// already linked.
	ErrDuplicateAssociation = errors.New("association already exists")

	// ErrLastAuthor indicates a removal would leave the document with no
	// authors.
	ErrLastAuthor = errors.New("cannot remove the only author of a document")

	// ErrNoAuthors indicates ReplaceAuthors was called with an empty list.
	ErrNoAuthors = errors.New("author list must not be empty")

	// ErrInvalidDocumentType indicates an unknown document type value.
	ErrInvalidDocumentType = errors.New("invalid document type")
)

// Document is an ingested unit of content.
type Document struct {
	ID           int64        `json:"id"`
	Filename     string       `json:"filename"`
	Title        string       `json:"title"`
	Type         DocumentType `json:"document_type"`
	LegacyAuthor string       `json:"author,omitempty"` // fallback display only
	MCPressURL   string       `json:"mc_press_url,omitempty"`
	ArticleURL   string       `json:"article_url,omitempty"`
	Category     string       `json:"category,omitempty"`
	TotalPages   int          `json:"total_pages,omitempty"`
	ProcessedAt  time.Time    `json:"processed_at"`
}

// URL returns the external identity URL for the document: mc_press_url for
// books, article_url for articles, whichever is set.
func (d *Document) URL() string {
	if d.MCPressURL != "" {
		return d.MCPressURL
	}
	return d.ArticleURL
}

// DocumentAuthor is one entry of a document's ordered author list.
type DocumentAuthor struct {
	AuthorID int64  `json:"author_id"`
	Name     string `json:"name"`
	SiteURL  string `json:"site_url,omitempty"`
	Position int    `json:"position"`
}

// AuthorRef is the input form for ReplaceAuthors: an author id with its
// intended position.
type AuthorRef struct {
	AuthorID int64 `json:"author_id"`
	Position int   `json:"position"`
}
