package web

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/osfidash/internal/admin"
	"github.com/JonMunkholm/osfidash/internal/core"
	"github.com/JonMunkholm/osfidash/internal/logging"
	"github.com/JonMunkholm/osfidash/internal/web/templates"
)

// multipartMemory is how much of a multipart body is buffered in memory
// before spilling to temp files.
const multipartMemory = 32 << 20

// DatasetInfo describes the current dataset.
type DatasetInfo struct {
	Loaded        bool      `json:"loaded"`
	Source        string    `json:"source,omitempty"`
	Rows          int       `json:"rows"`
	Users         int       `json:"users"`
	Projects      int       `json:"projects"`
	Registrations int       `json:"registrations"`
	Preprints     int       `json:"preprints"`
	Orphans       int       `json:"orphans"`
	HasSummary    bool      `json:"hasSummary"`
	LoadedAt      time.Time `json:"loadedAt,omitzero"`
}

func datasetInfo(ds *core.Dataset) DatasetInfo {
	return DatasetInfo{
		Loaded:        true,
		Source:        ds.Source,
		Rows:          ds.RowCount(),
		Users:         ds.Users.Len(),
		Projects:      ds.Projects.Len(),
		Registrations: ds.Registrations.Len(),
		Preprints:     ds.Preprints.Len(),
		Orphans:       len(ds.Orphans),
		HasSummary:    ds.HasSummary(),
		LoadedAt:      ds.LoadedAt,
	}
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Dataset  DatasetInfo              `json:"dataset"`
	Uploads  core.UploadLimiterStatus `json:"uploads"`
	Sessions int                      `json:"sessions"`
}

// SummaryResponse is the body of GET /api/summary.
type SummaryResponse struct {
	Metrics    []core.MetricValue `json:"metrics"`
	Values     map[string]float64 `json:"values"`
	Branding   core.Branding      `json:"branding"`
	HasSummary bool               `json:"hasSummary"`
}

// EntityResponse is the body of GET /api/entities/{kind}.
type EntityResponse struct {
	core.EntityView
	Filtered   int        `json:"filtered"`
	Page       int        `json:"page"`
	PageSize   int        `json:"pageSize"`
	TotalPages int        `json:"totalPages"`
	Rows       []core.Row `json:"rows"`
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// handleStatus reports the dataset, upload slots and live sessions.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		Uploads:  s.service.UploadStatus(),
		Sessions: s.service.Sessions().Len(),
	}
	if ds, err := s.service.Dataset(); err == nil {
		resp.Dataset = datasetInfo(ds)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSummary returns the headline metrics and branding.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	ds, err := s.service.Dataset()
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	m := ds.Summary()
	writeJSON(w, http.StatusOK, SummaryResponse{
		Metrics:    m.Ordered(),
		Values:     m.Map(),
		Branding:   ds.Branding(),
		HasSummary: ds.HasSummary(),
	})
}

// handleEntity returns one page of an entity tab. Query parameters update
// the caller's session exactly as on the HTML page.
func (s *Server) handleEntity(w http.ResponseWriter, r *http.Request) {
	kind, err := entityKind(r)
	if err != nil {
		respondError(w, r, err, http.StatusNotFound)
		return
	}

	view, err := s.service.View(kind, s.entityState(w, r, kind))
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	rows := view.Page.Rows
	if rows == nil {
		rows = []core.Row{}
	}
	writeJSON(w, http.StatusOK, EntityResponse{
		EntityView: view,
		Filtered:   view.Page.TotalRows,
		Page:       view.Page.Number,
		PageSize:   view.Page.PageSize,
		TotalPages: view.Page.TotalPages,
		Rows:       rows,
	})
}

// handleExport downloads the filtered rows (or the current page with
// scope=page) as CSV with the selected columns.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	kind, err := entityKind(r)
	if err != nil {
		respondError(w, r, err, http.StatusNotFound)
		return
	}

	scope := core.ParseExportScope(r.URL.Query().Get(templates.ParamScope))
	res, err := s.service.Export(kind, s.entityState(w, r, kind), scope)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	logging.WithFields(r.Context(), "entity", kind, "rows", res.Rows).Info("export served")

	w.Header().Set("Content-Type", res.ContentType+"; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.FileName))
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(res.Data)
}

// handleHistory returns recent loads, newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.History.Limit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:   "invalid limit",
				Message: "limit must be a positive integer",
				Code:    "REQ001",
			})
			return
		}
		limit = n
	}

	records, err := s.service.History(r.Context(), limit)
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// handleReload re-reads the configured data file.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	ds, err := s.service.Reload(r.Context())
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, datasetInfo(ds))
}

// ResetResponse lists what an admin reset cleared.
type ResetResponse struct {
	Reset []string `json:"reset"`
}

// handleAdminReset clears load history and every browser session.
// The loaded dataset stays in place.
func (s *Server) handleAdminReset(w http.ResponseWriter, r *http.Request) {
	targets := []admin.Target{
		{Name: "history", Reset: s.service.ResetHistory},
		{Name: "sessions", Reset: s.service.Sessions().Reset},
	}
	if err := admin.ResetAll(r.Context(), targets...); err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	resp := ResetResponse{}
	for _, t := range targets {
		resp.Reset = append(resp.Reset, t.Name)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleUpload replaces the dataset with an uploaded export.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
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
	writeJSON(w, http.StatusOK, datasetInfo(ds))
}

// handlePreview analyzes an uploaded export without loading it.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
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
	writeJSON(w, http.StatusOK, preview)
}

// readUpload extracts the "file" part of a multipart request, bounded by the
// configured maximum size.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	maxSize := s.service.MaxFileSize()
	// Allow for multipart framing on top of the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+1<<20)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return nil, nil, fmt.Errorf("%w: %v", core.ErrFileTooLarge, err)
		}
		return nil, nil, fmt.Errorf("%w: %v", core.ErrNoFile, err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", core.ErrNoFile, err)
	}
	return file, header, nil
}
