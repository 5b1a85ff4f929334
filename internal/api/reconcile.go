package api

import (
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/mcpress/chatbot/internal/reconcile"
)

// maxCSVSize caps uploaded CSV files at 32 MiB.
const maxCSVSize = 32 << 20

type reconcileHandler struct {
	runner ReconcileRunner
	logger *slog.Logger
}

// compare runs a dry reconciliation and returns the diff without
// touching the database.
func (h *reconcileHandler) compare(w http.ResponseWriter, r *http.Request) {
	rows, ok := h.readRows(w, r)
	if !ok {
		return
	}

	report, err := h.runner.Run(r.Context(), rows, reconcile.Options{DryRun: true})
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, report)
}

// fix applies the CSV's author lists to the catalog. dry_run=true
// previews, limit caps the number of corrections.
func (h *reconcileHandler) fix(w http.ResponseWriter, r *http.Request) {
	rows, ok := h.readRows(w, r)
	if !ok {
		return
	}

	opts := reconcile.Options{
		DryRun: r.URL.Query().Get("dry_run") == "true",
		Limit:  queryInt(r, "limit", 0),
	}
	if opts.Limit < 0 {
		opts.Limit = 0
	}

	report, err := h.runner.Run(r.Context(), rows, opts)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, report)
}

// readRows obtains CSV rows from either a multipart "file" upload or a
// server-local path named by the csv_path query parameter. Returns false
// when the response has already been written.
func (h *reconcileHandler) readRows(w http.ResponseWriter, r *http.Request) ([]reconcile.Row, bool) {
	var src io.Reader

	if err := r.ParseMultipartForm(maxCSVSize); err == nil {
		file, _, err := r.FormFile("file")
		if err == nil {
			defer file.Close()
			src = file
		}
	}

	if src == nil {
		path := r.URL.Query().Get("csv_path")
		if path == "" {
			WriteError(w, http.StatusBadRequest, "missing_csv",
				"provide a multipart \"file\" field or a csv_path parameter", h.logger)
			return nil, false
		}
		f, err := os.Open(path)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "csv_unreadable", "cannot open CSV file", h.logger)
			return nil, false
		}
		defer f.Close()
		src = io.LimitReader(f, maxCSVSize)
	}

	rows, err := reconcile.ReadCSV(src)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_csv", err.Error(), h.logger)
		return nil, false
	}
	return rows, true
}
