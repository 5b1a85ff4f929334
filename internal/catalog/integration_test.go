package catalog_test

import (
	"context"
	"errors"
	"testing"

	"github.com/mcpress/chatbot/internal/author"
	"github.com/mcpress/chatbot/internal/catalog"
	"github.com/mcpress/chatbot/internal/log"
	"github.com/mcpress/chatbot/internal/testutil"
)

type fixture struct {
	catalog *catalog.Store
	authors *author.Store
	docID   int64
	johnID  int64
	janeID  int64
	bobID   int64
}

func setup(t *testing.T) (*fixture, context.Context) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	authors, err := author.NewStore(db.Pool, log.NewNop())
	if err != nil {
		t.Fatalf("author.NewStore: %v", err)
	}
	cat, err := catalog.NewStore(db.Pool, log.NewNop())
	if err != nil {
		t.Fatalf("catalog.NewStore: %v", err)
	}

	f := &fixture{catalog: cat, authors: authors}
	if f.johnID, err = authors.GetOrCreate(ctx, "John Doe", ""); err != nil {
		t.Fatalf("creating john: %v", err)
	}
	if f.janeID, err = authors.GetOrCreate(ctx, "Jane Smith", ""); err != nil {
		t.Fatalf("creating jane: %v", err)
	}
	if f.bobID, err = authors.GetOrCreate(ctx, "Bob Wilson", ""); err != nil {
		t.Fatalf("creating bob: %v", err)
	}

	f.docID, err = cat.UpsertDocument(ctx, catalog.Document{
		Filename:   "rpg-guide.pdf",
		Title:      "RPG Guide",
		Type:       catalog.TypeBook,
		MCPressURL: "https://store.example.com/rpg-guide",
	})
	if err != nil {
		t.Fatalf("UpsertDocument: %v", err)
	}
	return f, ctx
}

func TestAssociationLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	f, ctx := setup(t)

	if err := f.catalog.AddAuthor(ctx, f.docID, f.johnID, 0); err != nil {
		t.Fatalf("AddAuthor: %v", err)
	}
	if err := f.catalog.AddAuthor(ctx, f.docID, f.janeID, 1); err != nil {
		t.Fatalf("AddAuthor: %v", err)
	}

	// the same pair again is a conflict
	if err := f.catalog.AddAuthor(ctx, f.docID, f.johnID, 5); !errors.Is(err, catalog.ErrDuplicateAssociation) {
		t.Errorf("duplicate AddAuthor error = %v, want ErrDuplicateAssociation", err)
	}

	authors, err := f.catalog.ListAuthors(ctx, f.docID)
	if err != nil {
		t.Fatalf("ListAuthors: %v", err)
	}
	if len(authors) != 2 || authors[0].AuthorID != f.johnID || authors[1].AuthorID != f.janeID {
		t.Fatalf("ListAuthors = %+v, want john then jane", authors)
	}

	if err := f.catalog.RemoveAuthor(ctx, f.docID, f.janeID); err != nil {
		t.Fatalf("RemoveAuthor: %v", err)
	}
	// removing the only remaining author must fail and leave it in place
	if err := f.catalog.RemoveAuthor(ctx, f.docID, f.johnID); !errors.Is(err, catalog.ErrLastAuthor) {
		t.Errorf("last RemoveAuthor error = %v, want ErrLastAuthor", err)
	}
	authors, err = f.catalog.ListAuthors(ctx, f.docID)
	if err != nil {
		t.Fatalf("ListAuthors: %v", err)
	}
	if len(authors) != 1 || authors[0].AuthorID != f.johnID {
		t.Errorf("ListAuthors after failed removal = %+v, want john only", authors)
	}

	if err := f.catalog.RemoveAuthor(ctx, f.docID, f.bobID); !errors.Is(err, catalog.ErrAssociationNotFound) {
		t.Errorf("RemoveAuthor(unlinked) error = %v, want ErrAssociationNotFound", err)
	}
}

func TestReplaceAuthorsOrdering(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	f, ctx := setup(t)

	// sentinel and gapped positions come back dense, sentinel last
	refs := []catalog.AuthorRef{
		{AuthorID: f.bobID, Position: catalog.UnorderedPosition},
		{AuthorID: f.janeID, Position: 10},
		{AuthorID: f.johnID, Position: 3},
	}
	if err := f.catalog.ReplaceAuthors(ctx, f.docID, refs); err != nil {
		t.Fatalf("ReplaceAuthors: %v", err)
	}

	authors, err := f.catalog.ListAuthors(ctx, f.docID)
	if err != nil {
		t.Fatalf("ListAuthors: %v", err)
	}
	wantOrder := []int64{f.johnID, f.janeID, f.bobID}
	if len(authors) != 3 {
		t.Fatalf("got %d authors, want 3", len(authors))
	}
	for i, a := range authors {
		if a.AuthorID != wantOrder[i] {
			t.Errorf("authors[%d] = %d, want %d", i, a.AuthorID, wantOrder[i])
		}
		if a.Position != i {
			t.Errorf("authors[%d].Position = %d, want %d", i, a.Position, i)
		}
	}

	// replace is clear-then-insert: the old set is gone entirely
	if err := f.catalog.ReplaceAuthors(ctx, f.docID, []catalog.AuthorRef{{AuthorID: f.janeID, Position: 0}}); err != nil {
		t.Fatalf("second ReplaceAuthors: %v", err)
	}
	authors, err = f.catalog.ListAuthors(ctx, f.docID)
	if err != nil {
		t.Fatalf("ListAuthors: %v", err)
	}
	if len(authors) != 1 || authors[0].AuthorID != f.janeID {
		t.Errorf("after replace = %+v, want jane only", authors)
	}

	if err := f.catalog.ReplaceAuthors(ctx, f.docID, nil); !errors.Is(err, catalog.ErrNoAuthors) {
		t.Errorf("ReplaceAuthors(empty) error = %v, want ErrNoAuthors", err)
	}
	if err := f.catalog.ReplaceAuthors(ctx, 99999, []catalog.AuthorRef{{AuthorID: f.janeID}}); !errors.Is(err, catalog.ErrDocumentNotFound) {
		t.Errorf("ReplaceAuthors(missing doc) error = %v, want ErrDocumentNotFound", err)
	}
}

func TestUpsertDocumentByFilename(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	f, ctx := setup(t)

	// same filename updates in place instead of creating a second row
	id, err := f.catalog.UpsertDocument(ctx, catalog.Document{
		Filename: "rpg-guide.pdf",
		Title:    "RPG Guide, Second Edition",
		Type:     catalog.TypeBook,
	})
	if err != nil {
		t.Fatalf("UpsertDocument: %v", err)
	}
	if id != f.docID {
		t.Errorf("upsert returned id %d, want %d", id, f.docID)
	}

	doc, err := f.catalog.GetDocument(ctx, f.docID)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if doc.Title != "RPG Guide, Second Edition" {
		t.Errorf("Title = %q, not updated", doc.Title)
	}
	if doc.MCPressURL != "https://store.example.com/rpg-guide" {
		t.Errorf("MCPressURL = %q, should survive upsert", doc.MCPressURL)
	}
}
