package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/mcpress/chatbot/internal/author"
	"github.com/mcpress/chatbot/internal/catalog"
	"github.com/mcpress/chatbot/internal/dedup"
	"github.com/mcpress/chatbot/internal/search"
)

// WriteJSON writes a JSON response with the given status code.
// Uses buffer-first strategy so headers are only sent after successful
// encoding; an encoding failure still produces a clean 500.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		// client disconnects are common and expected
		slog.Debug("failed to write response body", "error", err)
	}
}

// errorBody is the uniform error envelope for all endpoints.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes a structured JSON error response.
func WriteError(w http.ResponseWriter, status int, code, message string, logger *slog.Logger) {
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "code", code, "message", message)
	}
	WriteJSON(w, status, errorBody{Error: code, Message: message})
}

// writeDomainError maps known domain errors onto HTTP statuses, falling
// back to 500 for anything unrecognized.
func writeDomainError(w http.ResponseWriter, err error, logger *slog.Logger) {
	switch {
	case errors.Is(err, author.ErrNotFound),
		errors.Is(err, catalog.ErrDocumentNotFound),
		errors.Is(err, catalog.ErrAssociationNotFound),
		errors.Is(err, dedup.ErrAuthorNotFound):
		WriteError(w, http.StatusNotFound, "not_found", err.Error(), logger)
	case errors.Is(err, catalog.ErrDuplicateAssociation):
		WriteError(w, http.StatusConflict, "duplicate_association", err.Error(), logger)
	case errors.Is(err, catalog.ErrLastAuthor):
		WriteError(w, http.StatusConflict, "last_author", err.Error(), logger)
	case errors.Is(err, author.ErrNameTaken):
		WriteError(w, http.StatusConflict, "name_taken", err.Error(), logger)
	case errors.Is(err, author.ErrInvalidName),
		errors.Is(err, catalog.ErrNoAuthors),
		errors.Is(err, catalog.ErrInvalidDocumentType),
		errors.Is(err, dedup.ErrInvalidMerge),
		errors.Is(err, search.ErrEmptyQuery):
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), logger)
	default:
		logger.Error("unhandled error", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal_error", "internal server error", logger)
	}
}

// pathID parses the {id}-style path value as an int64.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
