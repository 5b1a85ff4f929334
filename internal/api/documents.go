package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/mcpress/chatbot/internal/catalog"
)

type documentHandler struct {
	store  CatalogStore
	logger *slog.Logger
}

func (h *documentHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	if limit < 1 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	docs, err := h.store.ListDocuments(r.Context(), limit, offset)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"documents": docs,
		"count":     len(docs),
		"limit":     limit,
		"offset":    offset,
	})
}

func (h *documentHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		WriteError(w, http.StatusBadRequest, "invalid_id", "invalid document ID", h.logger)
		return
	}

	doc, err := h.store.GetDocument(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	authors, err := h.store.ListAuthors(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"document": doc, "authors": authors})
}

type documentPatch struct {
	Title      string `json:"title"`
	Type       string `json:"document_type"`
	MCPressURL string `json:"mc_press_url"`
	ArticleURL string `json:"article_url"`
	Category   string `json:"category"`
}

func (h *documentHandler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		WriteError(w, http.StatusBadRequest, "invalid_id", "invalid document ID", h.logger)
		return
	}

	var req documentPatch
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}
	if req.Type != "" && !catalog.DocumentType(req.Type).Valid() {
		WriteError(w, http.StatusBadRequest, "invalid_type", "document_type must be book or article", h.logger)
		return
	}

	patch := catalog.Document{
		Title:      req.Title,
		Type:       catalog.DocumentType(req.Type),
		MCPressURL: req.MCPressURL,
		ArticleURL: req.ArticleURL,
		Category:   req.Category,
	}
	if err := h.store.UpdateDocument(r.Context(), id, patch); err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	doc, err := h.store.GetDocument(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, doc)
}

func (h *documentHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		WriteError(w, http.StatusBadRequest, "invalid_id", "invalid document ID", h.logger)
		return
	}

	if err := h.store.DeleteDocument(r.Context(), id); err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *documentHandler) listAuthors(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		WriteError(w, http.StatusBadRequest, "invalid_id", "invalid document ID", h.logger)
		return
	}

	// Verify the document exists so an empty list is distinguishable
	// from a bad id.
	if _, err := h.store.GetDocument(r.Context(), id); err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	authors, err := h.store.ListAuthors(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"authors": authors, "count": len(authors)})
}

type addAuthorRequest struct {
	AuthorID int64 `json:"author_id"`
	Position *int  `json:"position"`
}

func (h *documentHandler) addAuthor(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		WriteError(w, http.StatusBadRequest, "invalid_id", "invalid document ID", h.logger)
		return
	}

	var req addAuthorRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}
	if req.AuthorID <= 0 {
		WriteError(w, http.StatusBadRequest, "invalid_author_id", "author_id is required", h.logger)
		return
	}

	// Absent position appends: one past the current list.
	position := catalog.UnorderedPosition
	if req.Position != nil {
		position = *req.Position
	} else if current, err := h.store.ListAuthors(r.Context(), id); err == nil {
		position = len(current)
	}

	if err := h.store.AddAuthor(r.Context(), id, req.AuthorID, position); err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	authors, err := h.store.ListAuthors(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]any{"authors": authors})
}

func (h *documentHandler) removeAuthor(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		WriteError(w, http.StatusBadRequest, "invalid_id", "invalid document ID", h.logger)
		return
	}
	authorID, ok := pathID(r, "authorID")
	if !ok {
		WriteError(w, http.StatusBadRequest, "invalid_id", "invalid author ID", h.logger)
		return
	}

	if err := h.store.RemoveAuthor(r.Context(), id, authorID); err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type replaceAuthorsRequest struct {
	Authors []catalog.AuthorRef `json:"authors"`
}

func (h *documentHandler) replaceAuthors(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		WriteError(w, http.StatusBadRequest, "invalid_id", "invalid document ID", h.logger)
		return
	}

	var req replaceAuthorsRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	if err := h.store.ReplaceAuthors(r.Context(), id, req.Authors); err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	authors, err := h.store.ListAuthors(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"authors": authors})
}

// queryInt parses an integer query parameter, returning def when absent
// or malformed.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
