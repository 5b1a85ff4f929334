// Package api exposes the catalog, author registry, duplicate merge
// engine and reconciliation flows over a JSON HTTP API.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcpress/chatbot/internal/author"
	"github.com/mcpress/chatbot/internal/catalog"
	"github.com/mcpress/chatbot/internal/dedup"
	"github.com/mcpress/chatbot/internal/reconcile"
	"github.com/mcpress/chatbot/internal/search"
)

// AuthorStore is the author registry surface the API needs.
type AuthorStore interface {
	GetOrCreate(ctx context.Context, name, siteURL string) (int64, error)
	Get(ctx context.Context, id int64) (*author.Author, error)
	List(ctx context.Context) ([]*author.Author, error)
	Update(ctx context.Context, id int64, name, siteURL string) error
}

// CatalogStore is the document and association surface the API needs.
type CatalogStore interface {
	GetDocument(ctx context.Context, id int64) (*catalog.Document, error)
	ListDocuments(ctx context.Context, limit, offset int) ([]*catalog.Document, error)
	UpdateDocument(ctx context.Context, id int64, patch catalog.Document) error
	DeleteDocument(ctx context.Context, id int64) error
	AddAuthor(ctx context.Context, documentID, authorID int64, position int) error
	RemoveAuthor(ctx context.Context, documentID, authorID int64) error
	ListAuthors(ctx context.Context, documentID int64) ([]catalog.DocumentAuthor, error)
	ReplaceAuthors(ctx context.Context, documentID int64, refs []catalog.AuthorRef) error
}

// DuplicateEngine finds and merges duplicate authors.
type DuplicateEngine interface {
	FindDuplicateGroups(ctx context.Context) ([]dedup.Group, error)
	MergeAuthors(ctx context.Context, keepID int64, mergeIDs []int64, dryRun bool) (*dedup.MergeResult, error)
}

// ReconcileRunner runs CSV reconciliation against the catalog.
type ReconcileRunner interface {
	Run(ctx context.Context, rows []reconcile.Row, opts reconcile.Options) (*reconcile.Report, error)
}

// Searcher serves semantic queries over document chunks.
type Searcher interface {
	Search(ctx context.Context, query string, opts ...search.Option) ([]search.Result, error)
}

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger     *slog.Logger
	Authors    AuthorStore     // Required
	Catalog    CatalogStore    // Required
	Dedup      DuplicateEngine // Required
	Reconciler ReconcileRunner // Required
	Searcher   Searcher        // Optional: nil disables /api/search
	Pool       *pgxpool.Pool   // Optional: nil disables pool stats in /api/ready

	CORSOrigins []string // Allowed origins for CORS
	TrustProxy  bool     // Trust X-Real-IP/X-Forwarded-For headers
	RateBurst   int      // Rate limiter burst size per IP (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Authors == nil || cfg.Catalog == nil {
		return nil, errors.New("author and catalog stores are required")
	}
	if cfg.Dedup == nil || cfg.Reconciler == nil {
		return nil, errors.New("dedup engine and reconciler are required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ah := &authorHandler{store: cfg.Authors, logger: logger}
	dh := &documentHandler{store: cfg.Catalog, logger: logger}
	mh := &mergeHandler{engine: cfg.Dedup, logger: logger}
	rh := &reconcileHandler{runner: cfg.Reconciler, logger: logger}

	mux := http.NewServeMux()

	// Documents
	mux.HandleFunc("GET /api/documents", dh.list)
	mux.HandleFunc("GET /api/documents/{id}", dh.get)
	mux.HandleFunc("PATCH /api/documents/{id}", dh.update)
	mux.HandleFunc("DELETE /api/documents/{id}", dh.delete)

	// Document-author associations
	mux.HandleFunc("GET /api/documents/{id}/authors", dh.listAuthors)
	mux.HandleFunc("POST /api/documents/{id}/authors", dh.addAuthor)
	mux.HandleFunc("PUT /api/documents/{id}/authors", dh.replaceAuthors)
	mux.HandleFunc("DELETE /api/documents/{id}/authors/{authorID}", dh.removeAuthor)

	// Author registry
	mux.HandleFunc("GET /api/authors", ah.list)
	mux.HandleFunc("POST /api/authors", ah.create)
	mux.HandleFunc("GET /api/authors/{id}", ah.get)
	mux.HandleFunc("PATCH /api/authors/{id}", ah.update)

	// Duplicate detection and merge
	mux.HandleFunc("GET /api/authors/duplicates", mh.duplicates)
	mux.HandleFunc("POST /api/authors/merge", mh.merge)

	// CSV reconciliation
	mux.HandleFunc("GET /api/compare-csv-database", rh.compare)
	mux.HandleFunc("POST /api/fix-book-authors-from-csv", rh.fix)

	// Semantic search (optional — only registered if a searcher is provided)
	if cfg.Searcher != nil {
		sh := &searchHandler{searcher: cfg.Searcher, logger: logger}
		mux.HandleFunc("POST /api/search", sh.search)
	}

	// Rate limiter: per-IP token bucket (1 token/sec refill)
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Build middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → RateLimit → Routes
	// RequestID must be before Logging so request_id is available in log
	// attributes. CORS must be before RateLimit so preflight OPTIONS gets
	// proper CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probes stay outside the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /api/health", health)
	topMux.Handle("GET /api/ready", readiness(cfg.Pool))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
