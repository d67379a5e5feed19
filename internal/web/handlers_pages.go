package web

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/osfidash/internal/core"
	"github.com/JonMunkholm/osfidash/internal/logging"
	"github.com/JonMunkholm/osfidash/internal/web/templates"
)

// entityKind resolves the {kind} URL parameter. Plural tab names are accepted.
func entityKind(r *http.Request) (core.Kind, error) {
	raw := chi.URLParam(r, "kind")
	k := core.NormalizeKind(raw)
	if !k.IsEntity() {
		k = core.Kind(strings.TrimSuffix(string(k), "s"))
	}
	if !k.IsEntity() {
		return "", fmt.Errorf("%w: %q", core.ErrUnknownEntity, raw)
	}
	return k, nil
}

// renderPage writes body inside the layout. HTMX requests get the body alone.
func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, p templates.LayoutParams, body templ.Component) {
	if ds, err := s.service.Dataset(); err == nil {
		p.HasDataset = true
		p.Branding = ds.Branding()
	}
	p.UploadEnabled = s.cfg.Upload.Enabled

	if body == nil {
		body = templates.EmptyState(p.UploadEnabled)
	}
	c := body
	if !isHTMX(r) {
		c = templates.Layout(p, body)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := c.Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render failed", "error", err)
	}
}

// handleSummaryPage renders the summary cards.
func (s *Server) handleSummaryPage(w http.ResponseWriter, r *http.Request) {
	ds, err := s.service.Dataset()
	if err != nil {
		// The layout shows the empty state.
		s.renderPage(w, r, templates.LayoutParams{Active: "summary"}, nil)
		return
	}

	s.renderPage(w, r, templates.LayoutParams{Title: "Summary", Active: "summary"},
		templates.SummaryPage(templates.SummaryPageParams{
			Metrics:    ds.Summary().Ordered(),
			HasSummary: ds.HasSummary(),
			Source:     ds.Source,
			RowCount:   ds.RowCount(),
			Orphans:    len(ds.Orphans),
		}))
}

// handleEntityPage renders one entity tab after applying the query to the session.
func (s *Server) handleEntityPage(w http.ResponseWriter, r *http.Request) {
	kind, err := entityKind(r)
	if err != nil {
		respondError(w, r, err, http.StatusNotFound)
		return
	}

	st := s.entityState(w, r, kind)
	view, err := s.service.View(kind, st)
	if errors.Is(err, core.ErrNoDataset) {
		s.renderPage(w, r, templates.LayoutParams{Active: string(kind)}, nil)
		return
	}
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	s.renderPage(w, r, templates.LayoutParams{Title: view.Title, Active: string(kind)},
		templates.EntityPage(templates.EntityPageParams{View: view, PageSize: st.PageSize}))
}

// handleHistoryPage lists recent dataset loads.
func (s *Server) handleHistoryPage(w http.ResponseWriter, r *http.Request) {
	records, err := s.service.History(r.Context(), s.cfg.History.Limit)
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	s.renderPage(w, r, templates.LayoutParams{Title: "Loads", Active: "history"},
		templates.HistoryPage(templates.HistoryPageParams{
			Records:       records,
			UploadEnabled: s.cfg.Upload.Enabled,
		}))
}

// handleUploadForm replaces the dataset from the browser upload form.
func (s *Server) handleUploadForm(w http.ResponseWriter, r *http.Request) {
	file, header, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	defer file.Close()

	ds, err := s.service.LoadUpload(r.Context(), header.Filename, file, header.Size)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	s.renderPage(w, r, templates.LayoutParams{Title: "Loads", Active: "history"},
		templates.LoadResult(header.Filename, ds.RowCount()))
}

// handlePreviewForm dry-runs the uploaded file and shows what it contains.
func (s *Server) handlePreviewForm(w http.ResponseWriter, r *http.Request) {
	file, header, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	defer file.Close()

	preview, err := s.service.PreviewUpload(r.Context(), header.Filename, file, header.Size)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	s.renderPage(w, r, templates.LayoutParams{Title: "Preview", Active: "history"},
		templates.PreviewPanel(preview))
}
