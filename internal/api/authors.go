package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// maxBodySize caps JSON request bodies at 1 MiB.
const maxBodySize = 1 << 20

type authorHandler struct {
	store  AuthorStore
	logger *slog.Logger
}

type authorRequest struct {
	Name    string `json:"name"`
	SiteURL string `json:"site_url"`
}

func (h *authorHandler) list(w http.ResponseWriter, r *http.Request) {
	authors, err := h.store.List(r.Context())
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"authors": authors, "count": len(authors)})
}

func (h *authorHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		WriteError(w, http.StatusBadRequest, "invalid_id", "invalid author ID", h.logger)
		return
	}

	a, err := h.store.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, a)
}

// create is get-or-create: posting an existing name (in any case or
// spacing variant) returns the existing record rather than a conflict.
func (h *authorHandler) create(w http.ResponseWriter, r *http.Request) {
	var req authorRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		WriteError(w, http.StatusBadRequest, "invalid_name", "author name is required", h.logger)
		return
	}

	id, err := h.store.GetOrCreate(r.Context(), req.Name, req.SiteURL)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	a, err := h.store.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusCreated, a)
}

func (h *authorHandler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		WriteError(w, http.StatusBadRequest, "invalid_id", "invalid author ID", h.logger)
		return
	}

	var req authorRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}
	if req.Name == "" && req.SiteURL == "" {
		WriteError(w, http.StatusBadRequest, "empty_patch", "nothing to update", h.logger)
		return
	}

	if err := h.store.Update(r.Context(), id, req.Name, req.SiteURL); err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	a, err := h.store.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, a)
}

// decodeJSON reads a size-capped JSON body into dst, writing a 400 on
// failure. Returns false when the response has already been written.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, logger *slog.Logger) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			WriteError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large", logger)
			return false
		}
		WriteError(w, http.StatusBadRequest, "invalid_body", "invalid request body", logger)
		return false
	}
	return true
}
