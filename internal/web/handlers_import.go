package web

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/portfolio-import/internal/core"
	"github.com/JonMunkholm/portfolio-import/internal/logging"
	"github.com/JonMunkholm/portfolio-import/internal/web/templates"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// multipartMemory is how much of a multipart form is kept in memory before
// spilling to temporary files.
const multipartMemory = 8 << 20

// handleImport runs one CSV import into an account.
//
// The ImportResult is returned with 200 even when rows failed, with 422 when
// the file itself was rejected and with 503 when the run timed out.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(chi.URLParam(r, "accountID"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "account not found: invalid account id")
		return
	}
	kind, err := core.ParseImportKind(chi.URLParam(r, "kind"))
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxFileSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			writeError(w, r, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeError(w, r, http.StatusBadRequest, "invalid csv upload form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()

	dryRun, _ := strconv.ParseBool(r.FormValue("dry_run"))
	req := core.ImportRequest{
		AccountID: accountID,
		Kind:      kind,
		Body:      file,
		FileName:  header.Filename,
		Source:    strings.TrimSpace(r.FormValue("source")),
		DryRun:    dryRun,
	}

	result, err := s.service.Import(withRequestMetadata(r.Context(), r), req)
	switch {
	case err == nil:
		s.writeResult(w, r, http.StatusOK, header.Filename, result)
	case errors.Is(err, core.ErrTooManyImports):
		w.Header().Set("Retry-After", "5")
		respondError(w, r, err, http.StatusServiceUnavailable)
	case errors.Is(err, core.ErrAccountNotFound):
		respondError(w, r, err, http.StatusNotFound)
	case errors.Is(err, core.ErrUnknownKind):
		respondError(w, r, err, http.StatusBadRequest)
	case errors.Is(err, core.ErrMalformedFile), errors.Is(err, core.ErrStructural):
		s.writeResult(w, r, http.StatusUnprocessableEntity, header.Filename, result)
	case result == nil:
		respondError(w, r, err, http.StatusInternalServerError)
	default:
		// Cancelled, timed out or failed to commit: nothing was saved, but the
		// result still carries the row diagnostics.
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			status = http.StatusServiceUnavailable
		}
		logging.FromContext(r.Context()).Error("import aborted",
			"import_id", result.ImportID, "status", status, "error", err)
		s.writeResult(w, r, status, header.Filename, result)
	}
}

// writeResult sends the truncated result as JSON, or as the HTML result page
// when the client asked for HTML.
func (s *Server) writeResult(w http.ResponseWriter, r *http.Request, status int, fileName string, result *core.ImportResult) {
	out := result.Truncated(s.cfg.Import.MaxWarnings, s.cfg.Import.MaxErrors)
	if !wantsHTML(r) {
		writeJSON(w, status, out)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	page := templates.ImportResultPage(templates.ResultPageData{FileName: fileName, Result: out})
	if err := page.Render(r.Context(), w); err != nil {
		respondRenderError(r, err)
	}
}

// handleImportHistory lists the recent imports of an account.
func (s *Server) handleImportHistory(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(chi.URLParam(r, "accountID"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "account not found: invalid account id")
		return
	}

	runs, err := s.service.History(r.Context(), accountID, parseIntParam(r, "limit", 20))
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []core.ImportRun{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"imports": runs})
}

// parseIntParam parses a positive integer query parameter with a default.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
