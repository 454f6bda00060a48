package web

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/dayroster/internal/core"
	"github.com/JonMunkholm/dayroster/internal/web/views"
)

// multipartOverhead is allowed on top of the file size for form fields and
// part headers.
const multipartOverhead = 1 << 20

// syncResponse is the run result plus the mapped error code on failure.
type syncResponse struct {
	*core.SyncResult
	Code   string `json:"code,omitempty"`
	Action string `json:"action,omitempty"`
}

// handleSync runs a manual-upload sync from a multipart form with fields
// file, dryRun and triggeredBy.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Sync.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.respondError(w, r, fmt.Errorf("%w: limit is %d bytes", core.ErrFileTooLarge, maxSize))
			return
		}
		s.respondError(w, r, fmt.Errorf("%w: %v", errBadParameter, err))
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, core.ErrNoFile)
		return
	}
	defer file.Close()

	dryRun := false
	if v := strings.TrimSpace(r.FormValue("dryRun")); v != "" {
		dryRun, err = strconv.ParseBool(v)
		if err != nil {
			s.respondError(w, r, fmt.Errorf("%w: dryRun=%q", errBadParameter, v))
			return
		}
	}

	ctx := WithRequestMetadata(r.Context(), r)
	result, err := s.service.RunSync(ctx, file, core.SyncOptions{
		DryRun:      dryRun,
		Source:      core.SourceManual,
		TriggeredBy: strings.TrimSpace(r.FormValue("triggeredBy")),
	})
	if err != nil {
		msg := core.MapError(err)
		s.logRequestError(r, err, statusFor(err), msg.Code)
		writeJSONStatus(w, statusFor(err), syncResponse{SyncResult: result, Code: msg.Code, Action: msg.Action})
		return
	}

	writeJSON(w, syncResponse{SyncResult: result})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	page, err := s.service.ListRuns(r.Context(),
		parseIntParam(r, "page", 1),
		parseIntParam(r, "limit", core.DefaultRunPageSize),
	)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, page)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.service.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, run)
}

// handleSyncPage renders the run history page.
func (s *Server) handleSyncPage(w http.ResponseWriter, r *http.Request) {
	page, err := s.service.ListRuns(r.Context(), parseIntParam(r, "page", 1), core.DefaultRunPageSize)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if isHTMX(r) {
		views.RunsTable(page.Runs).Render(r.Context(), w)
		return
	}
	views.SyncPage(page).Render(r.Context(), w)
}

// parseIntParam parses a positive integer query parameter with a default value.
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
