// Package search stores document chunks with vector embeddings and serves
// semantic queries over them.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"google.golang.org/genai"
)

// VectorDimension is the embedding width. Gemini embeddings are truncated
// to 768 via OutputDimensionality to match the vector(768) column.
var VectorDimension int32 = 768

// EmbedTimeout bounds a single embedding call.
const EmbedTimeout = 10 * time.Second

const (
	defaultTopK = 5
	maxTopK     = 50
)

// ErrEmptyQuery indicates a blank search query.
var ErrEmptyQuery = errors.New("query must not be empty")

// Chunk is one piece of an ingested document.
type Chunk struct {
	DocumentID int64
	Index      int
	Content    string
	PageNumber int
}

// Result is one search hit with its cosine similarity score.
type Result struct {
	DocumentID int64   `json:"document_id"`
	Filename   string  `json:"filename"`
	Title      string  `json:"title"`
	ChunkIndex int     `json:"chunk_index"`
	Content    string  `json:"content"`
	PageNumber int     `json:"page_number,omitempty"`
	Similarity float64 `json:"similarity"`
}

// Option configures a Search call.
type Option func(*searchOpts)

type searchOpts struct {
	topK       int
	documentID int64
}

// WithTopK caps the number of results. Values outside [1, 50] fall back
// to the default.
func WithTopK(k int) Option {
	return func(o *searchOpts) {
		if k >= 1 && k <= maxTopK {
			o.topK = k
		}
	}
}

// WithDocument restricts the search to one document.
func WithDocument(documentID int64) Option {
	return func(o *searchOpts) { o.documentID = documentID }
}

// Store persists chunks and runs similarity queries.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool     *pgxpool.Pool
	embedder ai.Embedder
	logger   *slog.Logger
}

// NewStore creates a search store.
func NewStore(pool *pgxpool.Pool, embedder ai.Embedder, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, embedder: embedder, logger: logger}, nil
}

// embed generates a vector embedding for the given text.
func (s *Store) embed(ctx context.Context, text string) (pgvector.Vector, error) {
	dim := VectorDimension
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("embedding text: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, fmt.Errorf("empty embedding response")
	}
	return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
}

// AddChunks embeds and stores a document's chunks in one transaction.
// Re-ingesting a document overwrites chunks at the same index.
func (s *Store) AddChunks(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	// Embed outside the transaction so no connection is held across the
	// network calls.
	vectors := make([]pgvector.Vector, len(chunks))
	for i, c := range chunks {
		embedCtx, cancel := context.WithTimeout(ctx, EmbedTimeout)
		vec, err := s.embed(embedCtx, c.Content)
		cancel()
		if err != nil {
			return fmt.Errorf("embedding chunk %d of document %d: %w", c.Index, c.DocumentID, err)
		}
		vectors[i] = vec
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Debug("transaction rollback", "error", rbErr)
		}
	}()

	const insert = `
		INSERT INTO document_chunks (document_id, chunk_index, content, page_number, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (document_id, chunk_index)
		DO UPDATE SET content = EXCLUDED.content,
		              page_number = EXCLUDED.page_number,
		              embedding = EXCLUDED.embedding`

	for i, c := range chunks {
		if _, err := tx.Exec(ctx, insert,
			c.DocumentID, c.Index, c.Content, c.PageNumber, vectors[i]); err != nil {
			return fmt.Errorf("inserting chunk %d of document %d: %w", c.Index, c.DocumentID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing chunks: %w", err)
	}

	s.logger.Debug("chunks stored", "document_id", chunks[0].DocumentID, "count", len(chunks))
	return nil
}

// DeleteChunks removes all chunks of a document.
func (s *Store) DeleteChunks(ctx context.Context, documentID int64) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM document_chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	return nil
}

// Search embeds the query and returns the nearest chunks by cosine
// similarity, best first.
func (s *Store) Search(ctx context.Context, query string, opts ...Option) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	o := searchOpts{topK: defaultTopK}
	for _, opt := range opts {
		opt(&o)
	}

	embedCtx, cancel := context.WithTimeout(ctx, EmbedTimeout)
	defer cancel()
	vec, err := s.embed(embedCtx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	sql := `
		SELECT c.document_id, d.filename, d.title, c.chunk_index, c.content,
		       COALESCE(c.page_number, 0),
		       1 - (c.embedding <=> $1) AS similarity
		FROM document_chunks c
		JOIN documents d ON d.id = c.document_id`
	args := []any{vec}
	if o.documentID != 0 {
		sql += ` WHERE c.document_id = $2`
		args = append(args, o.documentID)
	}
	sql += fmt.Sprintf(` ORDER BY c.embedding <=> $1 LIMIT %d`, o.topK)

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.DocumentID, &r.Filename, &r.Title,
			&r.ChunkIndex, &r.Content, &r.PageNumber, &r.Similarity); err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating results: %w", err)
	}

	s.logger.Debug("search complete", "results", len(results), "top_k", o.topK)
	return results, nil
}
