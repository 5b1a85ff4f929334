package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/mcpress/chatbot/internal/search"
)

type searchHandler struct {
	searcher Searcher
	logger   *slog.Logger
}

type searchRequest struct {
	Query      string `json:"query"`
	TopK       int    `json:"top_k"`
	DocumentID int64  `json:"document_id"`
}

func (h *searchHandler) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		WriteError(w, http.StatusBadRequest, "invalid_query", "query is required", h.logger)
		return
	}

	opts := []search.Option{}
	if req.TopK > 0 {
		opts = append(opts, search.WithTopK(req.TopK))
	}
	if req.DocumentID > 0 {
		opts = append(opts, search.WithDocument(req.DocumentID))
	}

	results, err := h.searcher.Search(r.Context(), req.Query, opts...)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"results": results, "count": len(results)})
}
