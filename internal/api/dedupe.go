package api

import (
	"log/slog"
	"net/http"
)

type mergeHandler struct {
	engine DuplicateEngine
	logger *slog.Logger
}

func (h *mergeHandler) duplicates(w http.ResponseWriter, r *http.Request) {
	groups, err := h.engine.FindDuplicateGroups(r.Context())
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"groups": groups, "count": len(groups)})
}

type mergeRequest struct {
	KeepID   int64   `json:"keep_author_id"`
	MergeIDs []int64 `json:"merge_author_ids"`
	DryRun   bool    `json:"dry_run"`
}

func (h *mergeHandler) merge(w http.ResponseWriter, r *http.Request) {
	var req mergeRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}
	if req.KeepID <= 0 {
		WriteError(w, http.StatusBadRequest, "invalid_keep_author_id", "keep_author_id is required", h.logger)
		return
	}
	if len(req.MergeIDs) == 0 {
		WriteError(w, http.StatusBadRequest, "invalid_merge_author_ids", "merge_author_ids must not be empty", h.logger)
		return
	}

	result, err := h.engine.MergeAuthors(r.Context(), req.KeepID, req.MergeIDs, req.DryRun)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}
