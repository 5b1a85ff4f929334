package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// documentCols is the standard SELECT column list for scanDocument.
const documentCols = `id, filename, title, document_type,
	COALESCE(author, ''), COALESCE(mc_press_url, ''), COALESCE(article_url, ''),
	COALESCE(category, ''), COALESCE(total_pages, 0), processed_at`

// listAuthorsSQL orders by position with the -1 sentinel last, ties broken
// by author id for determinism.
const listAuthorsSQL = `SELECT da.author_id, a.name, COALESCE(a.site_url, ''), da.position
	FROM document_authors da
	JOIN authors a ON a.id = da.author_id
	WHERE da.document_id = $1
	ORDER BY (da.position < 0), da.position, da.author_id`

// Store manages documents and document-author associations in PostgreSQL.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a catalog Store.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// UpsertDocument inserts a document or, when the filename already exists,
// updates its metadata. Returns the document id. The filename is the join
// key from the upload pipeline, so re-ingesting a file updates in place.
func (s *Store) UpsertDocument(ctx context.Context, doc Document) (int64, error) {
	if doc.Filename == "" {
		return 0, fmt.Errorf("filename is required")
	}
	if doc.Type == "" {
		doc.Type = TypeBook
	}
	if !doc.Type.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDocumentType, doc.Type)
	}

	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO documents (filename, title, document_type, author, mc_press_url, article_url, category, total_pages)
		 VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, 0))
		 ON CONFLICT (filename) DO UPDATE SET
		     title = EXCLUDED.title,
		     document_type = EXCLUDED.document_type,
		     author = COALESCE(EXCLUDED.author, documents.author),
		     mc_press_url = COALESCE(EXCLUDED.mc_press_url, documents.mc_press_url),
		     article_url = COALESCE(EXCLUDED.article_url, documents.article_url),
		     category = COALESCE(EXCLUDED.category, documents.category),
		     total_pages = COALESCE(EXCLUDED.total_pages, documents.total_pages)
		 RETURNING id`,
		doc.Filename, doc.Title, string(doc.Type), doc.LegacyAuthor,
		doc.MCPressURL, doc.ArticleURL, doc.Category, doc.TotalPages,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upserting document %q: %w", doc.Filename, err)
	}

	s.logger.Debug("upserted document", "id", id, "filename", doc.Filename)
	return id, nil
}

// GetDocument retrieves a document by id.
func (s *Store) GetDocument(ctx context.Context, id int64) (*Document, error) {
	doc, err := scanDocument(s.pool.QueryRow(ctx,
		`SELECT `+documentCols+` FROM documents WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("document %d: %w", id, ErrDocumentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting document %d: %w", id, err)
	}
	return doc, nil
}

// ListDocuments returns documents ordered by id with pagination.
func (s *Store) ListDocuments(ctx context.Context, limit, offset int) ([]*Document, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+documentCols+` FROM documents ORDER BY id LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()
	return collectDocuments(rows)
}

// AllDocuments returns every document. Used by reconciliation sweeps that
// need the full URL-to-document mapping.
func (s *Store) AllDocuments(ctx context.Context) ([]*Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+documentCols+` FROM documents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing all documents: %w", err)
	}
	defer rows.Close()
	return collectDocuments(rows)
}

// UpdateDocument patches document metadata. Empty string fields are left
// untouched; Type must be valid when non-empty.
func (s *Store) UpdateDocument(ctx context.Context, id int64, patch Document) error {
	if patch.Type != "" && !patch.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidDocumentType, patch.Type)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET
		     title = COALESCE(NULLIF($2, ''), title),
		     document_type = COALESCE(NULLIF($3, ''), document_type),
		     author = COALESCE(NULLIF($4, ''), author),
		     mc_press_url = COALESCE(NULLIF($5, ''), mc_press_url),
		     article_url = COALESCE(NULLIF($6, ''), article_url),
		     category = COALESCE(NULLIF($7, ''), category),
		     total_pages = COALESCE(NULLIF($8, 0), total_pages)
		 WHERE id = $1`,
		id, patch.Title, string(patch.Type), patch.LegacyAuthor,
		patch.MCPressURL, patch.ArticleURL, patch.Category, patch.TotalPages,
	)
	if err != nil {
		return fmt.Errorf("updating document %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %d: %w", id, ErrDocumentNotFound)
	}
	return nil
}

// DeleteDocument removes a document. Associations and chunks cascade.
func (s *Store) DeleteDocument(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting document %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %d: %w", id, ErrDocumentNotFound)
	}
	s.logger.Debug("deleted document", "id", id)
	return nil
}

// AddAuthor links an author to a document at the given position.
// Returns ErrDuplicateAssociation if the pair is already linked: the
// insert uses ON CONFLICT DO NOTHING, so a duplicate can never produce a
// second row even under concurrency.
func (s *Store) AddAuthor(ctx context.Context, documentID, authorID int64, position int) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO document_authors (document_id, author_id, position)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (document_id, author_id) DO NOTHING`,
		documentID, authorID, position,
	)
	if err != nil {
		return fmt.Errorf("adding author %d to document %d: %w", authorID, documentID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %d author %d: %w", documentID, authorID, ErrDuplicateAssociation)
	}

	s.logger.Debug("added author", "document_id", documentID, "author_id", authorID, "position", position)
	return nil
}

// RemoveAuthor unlinks an author from a document.
//
// The check and the delete run in one transaction with the document's
// association rows locked, so two concurrent removals cannot race past the
// last-author guard. Returns ErrLastAuthor when the association is the
// document's only one, ErrAssociationNotFound when the pair is not linked.
func (s *Store) RemoveAuthor(ctx context.Context, documentID, authorID int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Debug("transaction rollback", "error", rbErr)
		}
	}()

	rows, err := tx.Query(ctx,
		`SELECT author_id FROM document_authors WHERE document_id = $1 FOR UPDATE`,
		documentID)
	if err != nil {
		return fmt.Errorf("locking associations for document %d: %w", documentID, err)
	}
	linked := false
	count := 0
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scanning association row: %w", err)
		}
		count++
		if id == authorID {
			linked = true
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating association rows: %w", err)
	}

	if !linked {
		return fmt.Errorf("document %d author %d: %w", documentID, authorID, ErrAssociationNotFound)
	}
	if count == 1 {
		return fmt.Errorf("document %d: %w", documentID, ErrLastAuthor)
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM document_authors WHERE document_id = $1 AND author_id = $2`,
		documentID, authorID); err != nil {
		return fmt.Errorf("removing author %d from document %d: %w", authorID, documentID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing removal: %w", err)
	}

	s.logger.Debug("removed author", "document_id", documentID, "author_id", authorID)
	return nil
}

// ListAuthors returns the document's author list in display order:
// ascending position, -1 sentinel entries last, ties broken by author id.
func (s *Store) ListAuthors(ctx context.Context, documentID int64) ([]DocumentAuthor, error) {
	rows, err := s.pool.Query(ctx, listAuthorsSQL, documentID)
	if err != nil {
		return nil, fmt.Errorf("listing authors for document %d: %w", documentID, err)
	}
	defer rows.Close()

	var authors []DocumentAuthor
	for rows.Next() {
		var da DocumentAuthor
		if err := rows.Scan(&da.AuthorID, &da.Name, &da.SiteURL, &da.Position); err != nil {
			return nil, fmt.Errorf("scanning author row: %w", err)
		}
		authors = append(authors, da)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating author rows: %w", err)
	}
	return authors, nil
}

// ReplaceAuthors atomically replaces a document's entire author list:
// all existing associations are deleted and the new set inserted, in one
// transaction. Positions are renumbered densely 0..N-1 (sentinels sort
// last, see densify), so legacy -1 values never propagate.
//
// Clear-then-insert is deliberate: incremental diffing of association
// rows proved error-prone, and reconciliation favors auditability over
// minimal writes.
func (s *Store) ReplaceAuthors(ctx context.Context, documentID int64, refs []AuthorRef) error {
	if len(refs) == 0 {
		return fmt.Errorf("document %d: %w", documentID, ErrNoAuthors)
	}
	ordered := densify(refs)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Debug("transaction rollback", "error", rbErr)
		}
	}()

	var exists bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM documents WHERE id = $1)`, documentID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("checking document %d: %w", documentID, err)
	}
	if !exists {
		return fmt.Errorf("document %d: %w", documentID, ErrDocumentNotFound)
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM document_authors WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("clearing associations for document %d: %w", documentID, err)
	}

	for _, ref := range ordered {
		if _, err := tx.Exec(ctx,
			`INSERT INTO document_authors (document_id, author_id, position) VALUES ($1, $2, $3)`,
			documentID, ref.AuthorID, ref.Position); err != nil {
			return fmt.Errorf("inserting association (%d, %d): %w", documentID, ref.AuthorID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing author replacement: %w", err)
	}

	s.logger.Debug("replaced authors", "document_id", documentID, "count", len(ordered))
	return nil
}

// AuthorsByDocument returns the author name lists for every document that
// has at least one association, keyed by document id. Names are in display
// order. Used by duplicate scans and reconciliation reporting.
func (s *Store) AuthorsByDocument(ctx context.Context) (map[int64][]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT da.document_id, a.name
		 FROM document_authors da
		 JOIN authors a ON a.id = da.author_id
		 ORDER BY da.document_id, (da.position < 0), da.position, da.author_id`)
	if err != nil {
		return nil, fmt.Errorf("listing associations: %w", err)
	}
	defer rows.Close()

	byDoc := make(map[int64][]string)
	for rows.Next() {
		var docID int64
		var name string
		if err := rows.Scan(&docID, &name); err != nil {
			return nil, fmt.Errorf("scanning association row: %w", err)
		}
		byDoc[docID] = append(byDoc[docID], name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating association rows: %w", err)
	}
	return byDoc, nil
}

func collectDocuments(rows pgx.Rows) ([]*Document, error) {
	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating document rows: %w", err)
	}
	return docs, nil
}

// rowScanner is the subset of pgx.Row/pgx.Rows needed by scanDocument.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var d Document
	var docType string
	if err := row.Scan(&d.ID, &d.Filename, &d.Title, &docType, &d.LegacyAuthor,
		&d.MCPressURL, &d.ArticleURL, &d.Category, &d.TotalPages, &d.ProcessedAt); err != nil {
		return nil, err
	}
	d.Type = DocumentType(docType)
	return &d, nil
}
