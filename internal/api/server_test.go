package api

import (
	"context"
	"fmt"
	"testing"

	"go.uber.org/goleak"

	"github.com/mcpress/chatbot/internal/author"
	"github.com/mcpress/chatbot/internal/catalog"
	"github.com/mcpress/chatbot/internal/dedup"
	"github.com/mcpress/chatbot/internal/log"
	"github.com/mcpress/chatbot/internal/reconcile"
	"github.com/mcpress/chatbot/internal/search"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeAuthors is an in-memory AuthorStore.
type fakeAuthors struct {
	byID map[int64]*author.Author
	next int64
}

func newFakeAuthors() *fakeAuthors {
	return &fakeAuthors{byID: make(map[int64]*author.Author)}
}

func (f *fakeAuthors) GetOrCreate(_ context.Context, name, siteURL string) (int64, error) {
	normalized := author.Normalize(name)
	if normalized == "" {
		return 0, author.ErrInvalidName
	}
	key := author.CanonicalKey(name)
	for id, a := range f.byID {
		if author.CanonicalKey(a.Name) == key {
			if a.SiteURL == "" && siteURL != "" {
				a.SiteURL = siteURL
			}
			return id, nil
		}
	}
	f.next++
	f.byID[f.next] = &author.Author{ID: f.next, Name: normalized, SiteURL: siteURL}
	return f.next, nil
}

func (f *fakeAuthors) Get(_ context.Context, id int64) (*author.Author, error) {
	a, ok := f.byID[id]
	if !ok {
		return nil, author.ErrNotFound
	}
	return a, nil
}

func (f *fakeAuthors) List(context.Context) ([]*author.Author, error) {
	out := make([]*author.Author, 0, len(f.byID))
	for _, a := range f.byID {
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeAuthors) Update(_ context.Context, id int64, name, siteURL string) error {
	a, ok := f.byID[id]
	if !ok {
		return author.ErrNotFound
	}
	if name != "" {
		key := author.CanonicalKey(name)
		for otherID, other := range f.byID {
			if otherID != id && author.CanonicalKey(other.Name) == key {
				return author.ErrNameTaken
			}
		}
		a.Name = author.Normalize(name)
	}
	if siteURL != "" {
		a.SiteURL = siteURL
	}
	return nil
}

// fakeCatalog is an in-memory CatalogStore.
type fakeCatalog struct {
	docs   map[int64]*catalog.Document
	assocs map[int64][]catalog.DocumentAuthor
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		docs:   make(map[int64]*catalog.Document),
		assocs: make(map[int64][]catalog.DocumentAuthor),
	}
}

func (f *fakeCatalog) GetDocument(_ context.Context, id int64) (*catalog.Document, error) {
	d, ok := f.docs[id]
	if !ok {
		return nil, catalog.ErrDocumentNotFound
	}
	return d, nil
}

func (f *fakeCatalog) ListDocuments(_ context.Context, limit, offset int) ([]*catalog.Document, error) {
	out := make([]*catalog.Document, 0, len(f.docs))
	for _, d := range f.docs {
		out = append(out, d)
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeCatalog) UpdateDocument(_ context.Context, id int64, patch catalog.Document) error {
	d, ok := f.docs[id]
	if !ok {
		return catalog.ErrDocumentNotFound
	}
	if patch.Title != "" {
		d.Title = patch.Title
	}
	if patch.Type != "" {
		d.Type = patch.Type
	}
	return nil
}

func (f *fakeCatalog) DeleteDocument(_ context.Context, id int64) error {
	if _, ok := f.docs[id]; !ok {
		return catalog.ErrDocumentNotFound
	}
	delete(f.docs, id)
	delete(f.assocs, id)
	return nil
}

func (f *fakeCatalog) AddAuthor(_ context.Context, documentID, authorID int64, position int) error {
	if _, ok := f.docs[documentID]; !ok {
		return catalog.ErrDocumentNotFound
	}
	for _, a := range f.assocs[documentID] {
		if a.AuthorID == authorID {
			return catalog.ErrDuplicateAssociation
		}
	}
	f.assocs[documentID] = append(f.assocs[documentID], catalog.DocumentAuthor{
		AuthorID: authorID,
		Name:     fmt.Sprintf("author-%d", authorID),
		Position: position,
	})
	return nil
}

func (f *fakeCatalog) RemoveAuthor(_ context.Context, documentID, authorID int64) error {
	assocs := f.assocs[documentID]
	idx := -1
	for i, a := range assocs {
		if a.AuthorID == authorID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return catalog.ErrAssociationNotFound
	}
	if len(assocs) == 1 {
		return catalog.ErrLastAuthor
	}
	f.assocs[documentID] = append(assocs[:idx], assocs[idx+1:]...)
	return nil
}

func (f *fakeCatalog) ListAuthors(_ context.Context, documentID int64) ([]catalog.DocumentAuthor, error) {
	return f.assocs[documentID], nil
}

func (f *fakeCatalog) ReplaceAuthors(_ context.Context, documentID int64, refs []catalog.AuthorRef) error {
	if len(refs) == 0 {
		return catalog.ErrNoAuthors
	}
	if _, ok := f.docs[documentID]; !ok {
		return catalog.ErrDocumentNotFound
	}
	assocs := make([]catalog.DocumentAuthor, 0, len(refs))
	for i, ref := range refs {
		assocs = append(assocs, catalog.DocumentAuthor{
			AuthorID: ref.AuthorID,
			Name:     fmt.Sprintf("author-%d", ref.AuthorID),
			Position: i,
		})
	}
	f.assocs[documentID] = assocs
	return nil
}

// fakeDedup returns canned results.
type fakeDedup struct {
	groups []dedup.Group
	result *dedup.MergeResult
	err    error
}

func (f *fakeDedup) FindDuplicateGroups(context.Context) ([]dedup.Group, error) {
	return f.groups, f.err
}

func (f *fakeDedup) MergeAuthors(_ context.Context, keepID int64, _ []int64, dryRun bool) (*dedup.MergeResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	r := *f.result
	r.KeepID = keepID
	r.DryRun = dryRun
	return &r, nil
}

// fakeReconciler records the options it ran with.
type fakeReconciler struct {
	lastOpts reconcile.Options
	lastRows []reconcile.Row
	report   *reconcile.Report
}

func (f *fakeReconciler) Run(_ context.Context, rows []reconcile.Row, opts reconcile.Options) (*reconcile.Report, error) {
	f.lastRows = rows
	f.lastOpts = opts
	report := *f.report
	report.DryRun = opts.DryRun
	return &report, nil
}

// fakeSearcher returns canned results.
type fakeSearcher struct {
	results []search.Result
}

func (f *fakeSearcher) Search(_ context.Context, _ string, _ ...search.Option) ([]search.Result, error) {
	return f.results, nil
}

// newTestServer builds a server over fresh fakes.
func newTestServer(t *testing.T) (*Server, *fakeAuthors, *fakeCatalog, *fakeDedup, *fakeReconciler) {
	t.Helper()

	authors := newFakeAuthors()
	cat := newFakeCatalog()
	dd := &fakeDedup{result: &dedup.MergeResult{AuthorsDeleted: 1}}
	rec := &fakeReconciler{report: &reconcile.Report{Actions: []reconcile.Action{}}}

	srv, err := NewServer(ServerConfig{
		Logger:     log.NewNop(),
		Authors:    authors,
		Catalog:    cat,
		Dedup:      dd,
		Reconciler: rec,
		Searcher:   &fakeSearcher{},
		RateBurst:  1000,
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv, authors, cat, dd, rec
}

func TestNewServerValidation(t *testing.T) {
	_, err := NewServer(ServerConfig{Logger: log.NewNop()})
	if err == nil {
		t.Fatal("NewServer without stores expected error")
	}
}
