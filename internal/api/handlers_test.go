package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpress/chatbot/internal/catalog"
	"github.com/mcpress/chatbot/internal/dedup"
	"github.com/mcpress/chatbot/internal/log"
	"github.com/mcpress/chatbot/internal/reconcile"
)

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewBuffer(data)
	} else {
		reader = &bytes.Buffer{}
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	srv, _, _, _, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodGet, "/api/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestReadyWithoutPool(t *testing.T) {
	srv, _, _, _, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodGet, "/api/ready", nil)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestIDHeader(t *testing.T) {
	srv, _, _, _, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodGet, "/api/authors", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestCreateAuthorGetOrCreate(t *testing.T) {
	srv, _, _, _, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/api/authors", authorRequest{Name: "John Doe"})
	require.Equal(t, http.StatusCreated, w.Code)

	var first struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))

	// a case variant resolves to the same record
	w = doJSON(t, srv, http.MethodPost, "/api/authors", authorRequest{Name: "john  doe"})
	require.Equal(t, http.StatusCreated, w.Code)

	var second struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	assert.Equal(t, first.ID, second.ID)
}

func TestCreateAuthorEmptyName(t *testing.T) {
	srv, _, _, _, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/api/authors", authorRequest{Name: "   "})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateAuthorNameCollision(t *testing.T) {
	srv, authors, _, _, _ := newTestServer(t)
	_, err := authors.GetOrCreate(context.Background(), "John Doe", "")
	require.NoError(t, err)
	id, err := authors.GetOrCreate(context.Background(), "Jane Smith", "")
	require.NoError(t, err)

	// renaming jane onto a case variant of john must conflict, not 500
	w := doJSON(t, srv, http.MethodPatch, fmt.Sprintf("/api/authors/%d", id),
		authorRequest{Name: "JOHN  DOE"})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), `"error":"name_taken"`)
}

func TestGetAuthorNotFound(t *testing.T) {
	srv, _, _, _, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodGet, "/api/authors/999", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "not_found")
}

func TestAddDuplicateAssociation(t *testing.T) {
	srv, _, cat, _, _ := newTestServer(t)
	cat.docs[1] = &catalog.Document{ID: 1, Title: "Book"}

	body := addAuthorRequest{AuthorID: 7}
	w := doJSON(t, srv, http.MethodPost, "/api/documents/1/authors", body)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, srv, http.MethodPost, "/api/documents/1/authors", body)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "duplicate_association")
}

func TestRemoveLastAuthor(t *testing.T) {
	srv, _, cat, _, _ := newTestServer(t)
	cat.docs[1] = &catalog.Document{ID: 1, Title: "Book"}
	require.NoError(t, cat.AddAuthor(context.Background(), 1, 7, 0))

	w := doJSON(t, srv, http.MethodDelete, "/api/documents/1/authors/7", nil)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "last_author")
}

func TestReplaceAuthorsEmptyList(t *testing.T) {
	srv, _, cat, _, _ := newTestServer(t)
	cat.docs[1] = &catalog.Document{ID: 1, Title: "Book"}

	w := doJSON(t, srv, http.MethodPut, "/api/documents/1/authors",
		replaceAuthorsRequest{Authors: []catalog.AuthorRef{}})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReplaceAuthorsReorders(t *testing.T) {
	srv, _, cat, _, _ := newTestServer(t)
	cat.docs[1] = &catalog.Document{ID: 1, Title: "Book"}

	w := doJSON(t, srv, http.MethodPut, "/api/documents/1/authors", replaceAuthorsRequest{
		Authors: []catalog.AuthorRef{{AuthorID: 5, Position: 0}, {AuthorID: 3, Position: 1}},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Authors []catalog.DocumentAuthor `json:"authors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Authors, 2)
	assert.Equal(t, int64(5), resp.Authors[0].AuthorID)
	assert.Equal(t, int64(3), resp.Authors[1].AuthorID)
}

func TestDocumentNotFound(t *testing.T) {
	srv, _, _, _, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodGet, "/api/documents/42", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDuplicateGroups(t *testing.T) {
	srv, _, _, dd, _ := newTestServer(t)
	dd.groups = []dedup.Group{{
		CanonicalName:     "john doe",
		TotalDocuments:    4,
		RecommendedKeepID: 1,
		Members: []dedup.Member{
			{ID: 1, Name: "John Doe", DocumentCount: 3},
			{ID: 2, Name: "john doe", DocumentCount: 1},
		},
	}}

	w := doJSON(t, srv, http.MethodGet, "/api/authors/duplicates", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"canonical_name":"john doe"`)
	assert.Contains(t, w.Body.String(), `"recommended_keep_id":1`)
}

func TestMergeValidation(t *testing.T) {
	srv, _, _, _, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/api/authors/merge",
		mergeRequest{KeepID: 0, MergeIDs: []int64{2}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, srv, http.MethodPost, "/api/authors/merge",
		mergeRequest{KeepID: 1, MergeIDs: nil})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMergeNotFound(t *testing.T) {
	srv, _, _, dd, _ := newTestServer(t)
	dd.err = dedup.ErrAuthorNotFound

	w := doJSON(t, srv, http.MethodPost, "/api/authors/merge",
		mergeRequest{KeepID: 1, MergeIDs: []int64{99}})

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMergeDryRunEchoed(t *testing.T) {
	srv, _, _, _, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/api/authors/merge",
		mergeRequest{KeepID: 1, MergeIDs: []int64{2}, DryRun: true})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"dry_run":true`)
}

func TestMergeRequestFieldNames(t *testing.T) {
	srv, _, _, _, _ := newTestServer(t)

	// the body field names are part of the API contract; decodeJSON
	// rejects unknown fields, so a drift here breaks real clients
	body := strings.NewReader(`{"keep_author_id":1,"merge_author_ids":[2],"dry_run":true}`)
	req := httptest.NewRequest(http.MethodPost, "/api/authors/merge", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"keep_author_id":1`)
	assert.Contains(t, w.Body.String(), `"dry_run":true`)
}

func multipartCSV(t *testing.T, csv string) (*bytes.Buffer, string) {
	t.Helper()

	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	part, err := mw.CreateFormFile("file", "export.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(csv))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return buf, mw.FormDataContentType()
}

func TestCompareCSV(t *testing.T) {
	srv, _, _, _, rec := newTestServer(t)

	body, contentType := multipartCSV(t,
		"URL,Title,Author\nhttps://store.example.com/1,Book,John Doe\n")
	req := httptest.NewRequest(http.MethodGet, "/api/compare-csv-database", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, rec.lastOpts.DryRun, "compare must run dry")
	require.Len(t, rec.lastRows, 1)
	assert.Equal(t, "John Doe", rec.lastRows[0].Author)
}

func TestFixFromCSVOptions(t *testing.T) {
	srv, _, _, _, rec := newTestServer(t)

	body, contentType := multipartCSV(t,
		"URL,Title,Author\nhttps://store.example.com/1,Book,John Doe\n")
	req := httptest.NewRequest(http.MethodPost,
		"/api/fix-book-authors-from-csv?dry_run=true&limit=10", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, rec.lastOpts.DryRun)
	assert.Equal(t, 10, rec.lastOpts.Limit)
}

func TestFixMissingCSV(t *testing.T) {
	srv, _, _, _, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/api/fix-book-authors-from-csv", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "missing_csv")
}

func TestSearchRequiresQuery(t *testing.T) {
	srv, _, _, _, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/api/search", searchRequest{Query: "  "})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRateLimit(t *testing.T) {
	authors := newFakeAuthors()
	cat := newFakeCatalog()
	srv, err := NewServer(ServerConfig{
		Logger:     log.NewNop(),
		Authors:    authors,
		Catalog:    cat,
		Dedup:      &fakeDedup{result: &dedup.MergeResult{}},
		Reconciler: &fakeReconciler{report: &reconcile.Report{}},
		RateBurst:  2,
	})
	require.NoError(t, err)

	var last int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/authors", nil)
		req.RemoteAddr = "203.0.113.9:1234"
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
		last = w.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestParseAuthorsRoundTripThroughCompare(t *testing.T) {
	srv, _, _, _, rec := newTestServer(t)

	body, contentType := multipartCSV(t, strings.Join([]string{
		"URL,Title,Author",
		`https://store.example.com/1,Book,"John Doe, Jane Smith, and Bob Wilson"`,
	}, "\n")+"\n")
	req := httptest.NewRequest(http.MethodGet, "/api/compare-csv-database", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, rec.lastRows, 1)
	assert.Equal(t, []string{"John Doe", "Jane Smith", "Bob Wilson"},
		reconcile.ParseAuthors(rec.lastRows[0].Author))
}
