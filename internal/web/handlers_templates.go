package web

import (
	"fmt"
	"net/http"

	"github.com/JonMunkholm/portfolio-import/internal/core"
	"github.com/go-chi/chi/v5"
)

// handleDownloadTemplate returns the CSV template of an import kind.
func (s *Server) handleDownloadTemplate(w http.ResponseWriter, r *http.Request) {
	kind, err := core.ParseImportKind(chi.URLParam(r, "kind"))
	if err != nil {
		respondError(w, r, err, http.StatusNotFound)
		return
	}
	body, err := core.TemplateCSV(kind)
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, core.TemplateFileName(kind)))
	_, _ = w.Write(body)
}

// handleTemplateInfo describes the columns and rules of an import kind.
func (s *Server) handleTemplateInfo(w http.ResponseWriter, r *http.Request) {
	kind, err := core.ParseImportKind(chi.URLParam(r, "kind"))
	if err != nil {
		respondError(w, r, err, http.StatusNotFound)
		return
	}
	info, err := core.DescribeKind(kind)
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleFormats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, core.Formats())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.service.LimiterStatus()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"imports_active": status.Active,
		"imports_max":    status.MaxConcurrent,
	})
}
