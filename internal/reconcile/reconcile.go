package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mcpress/chatbot/internal/author"
	"github.com/mcpress/chatbot/internal/catalog"
)

// Catalog is the document-side storage the reconciler needs.
type Catalog interface {
	AllDocuments(ctx context.Context) ([]*catalog.Document, error)
	AuthorsByDocument(ctx context.Context) (map[int64][]string, error)
	ReplaceAuthors(ctx context.Context, documentID int64, refs []catalog.AuthorRef) error
}

// Registry resolves author names to ids, creating records as needed.
type Registry interface {
	GetOrCreate(ctx context.Context, name, siteURL string) (int64, error)
}

// Options controls a reconciliation run.
type Options struct {
	// DryRun computes the full action log without mutating anything.
	DryRun bool

	// Limit caps the number of corrective actions. Zero means unlimited.
	// Rows beyond the limit are still compared but not acted on, and do
	// not appear in the action log, so a limited live run and a limited
	// dry run stay comparable.
	Limit int
}

// Action records one corrective change: the document whose author list
// was (or would be) rewritten, with before and after for operator review.
type Action struct {
	DocumentID int64    `json:"document_id"`
	Title      string   `json:"title"`
	OldAuthors []string `json:"old_authors"`
	NewAuthors []string `json:"new_authors"`
}

// RowError records a CSV row whose corrective action failed. The run
// continues past it.
type RowError struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// Report is the outcome of a reconciliation run. Actions is the primary
// deliverable; for a given CSV and database state it is identical
// whether or not DryRun is set.
type Report struct {
	DryRun    bool       `json:"dry_run"`
	Actions   []Action   `json:"actions"`
	Unchanged int        `json:"unchanged"`
	Skipped   int        `json:"skipped"`
	CSVOnly   []Row      `json:"csv_only,omitempty"`
	DBOnly    []int64    `json:"db_only,omitempty"`
	Errors    []RowError `json:"errors,omitempty"`
}

// Reconciler compares CSV rows against the catalog and repairs author
// associations to match the CSV.
type Reconciler struct {
	catalog  Catalog
	registry Registry
	logger   *slog.Logger
}

// New creates a reconciler.
func New(c Catalog, r Registry, logger *slog.Logger) *Reconciler {
	return &Reconciler{catalog: c, registry: r, logger: logger}
}

// Run reconciles rows against the catalog. Documents are matched by
// exact URL equality; titles are display-only. A row that matches no
// document is reported CSV-only, a document no row matches is reported
// database-only, and neither stops the run.
func (r *Reconciler) Run(ctx context.Context, rows []Row, opts Options) (*Report, error) {
	docs, err := r.catalog.AllDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading documents: %w", err)
	}
	current, err := r.catalog.AuthorsByDocument(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading author associations: %w", err)
	}

	byURL := make(map[string]*catalog.Document, len(docs))
	for _, d := range docs {
		if u := d.URL(); u != "" {
			byURL[u] = d
		}
	}

	report := &Report{DryRun: opts.DryRun, Actions: []Action{}}
	matched := make(map[int64]struct{}, len(rows))

	for _, row := range rows {
		if skippable(row) {
			report.Skipped++
			continue
		}

		doc, ok := byURL[row.URL]
		if !ok {
			report.CSVOnly = append(report.CSVOnly, row)
			continue
		}
		matched[doc.ID] = struct{}{}

		want := ParseAuthors(row.Author)
		if len(want) == 0 {
			report.Skipped++
			continue
		}

		have := current[doc.ID]
		if sameAuthors(have, want) {
			report.Unchanged++
			continue
		}

		if opts.Limit > 0 && len(report.Actions) >= opts.Limit {
			continue
		}
		report.Actions = append(report.Actions, Action{
			DocumentID: doc.ID,
			Title:      doc.Title,
			OldAuthors: have,
			NewAuthors: want,
		})

		if opts.DryRun {
			continue
		}
		if err := r.apply(ctx, doc.ID, want); err != nil {
			r.logger.Warn("corrective action failed",
				"document_id", doc.ID, "url", row.URL, "error", err)
			report.Errors = append(report.Errors, RowError{URL: row.URL, Error: err.Error()})
		}
	}

	for _, d := range docs {
		if _, ok := matched[d.ID]; !ok {
			report.DBOnly = append(report.DBOnly, d.ID)
		}
	}

	r.logger.Info("reconciliation run complete",
		"dry_run", opts.DryRun,
		"actions", len(report.Actions),
		"unchanged", report.Unchanged,
		"skipped", report.Skipped,
		"csv_only", len(report.CSVOnly),
		"db_only", len(report.DBOnly),
		"errors", len(report.Errors))
	return report, nil
}

// apply resolves names to author ids and rewrites the document's author
// list in CSV order.
func (r *Reconciler) apply(ctx context.Context, documentID int64, names []string) error {
	refs := make([]catalog.AuthorRef, 0, len(names))
	for i, name := range names {
		id, err := r.registry.GetOrCreate(ctx, name, "")
		if err != nil {
			return fmt.Errorf("resolving author %q: %w", name, err)
		}
		refs = append(refs, catalog.AuthorRef{AuthorID: id, Position: i})
	}
	if err := r.catalog.ReplaceAuthors(ctx, documentID, refs); err != nil {
		return fmt.Errorf("replacing authors: %w", err)
	}
	return nil
}

// sameAuthors compares two author name lists by canonical key, in order.
// Case and whitespace variants of the same sequence compare equal so
// cosmetic differences do not trigger rewrites.
func sameAuthors(have, want []string) bool {
	if len(have) != len(want) {
		return false
	}
	for i := range have {
		if author.CanonicalKey(have[i]) != author.CanonicalKey(want[i]) {
			return false
		}
	}
	return true
}
