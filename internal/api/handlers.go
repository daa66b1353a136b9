package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/loadcycle.report/internal/count"
	"github.com/banshee-data/loadcycle.report/internal/db"
	"github.com/banshee-data/loadcycle.report/internal/httputil"
	"github.com/banshee-data/loadcycle.report/internal/media"
	"github.com/banshee-data/loadcycle.report/internal/monitoring"
	"github.com/banshee-data/loadcycle.report/internal/report"
	"github.com/banshee-data/loadcycle.report/internal/security"
	"github.com/banshee-data/loadcycle.report/internal/version"
)

// maxUploadBytes caps multipart uploads at 4 GiB; haul videos run long but
// anything past that is a mistake, not a recording.
const maxUploadBytes = 4 << 30

func (s *Server) requireDB(w http.ResponseWriter) bool {
	if s.db == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "database not configured")
		return false
	}
	return true
}

// handleJobs lists jobs on GET and starts a new analysis on POST. A POST may
// either upload a video (multipart field "video") or name an existing input
// file (JSON body {"video": "name.mp4"}).
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		httputil.WriteJSONOK(w, s.jobs.List())
		return
	case http.MethodPost:
		s.startJob(w, r)
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) startJob(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	videoName, err := s.resolveJobVideo(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	job, err := s.jobs.Enqueue(videoName)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusTooManyRequests, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, job)
}

func (s *Server) resolveJobVideo(r *http.Request) (string, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		file, header, err := r.FormFile("video")
		if err != nil {
			return "", fmt.Errorf("missing 'video' upload field: %w", err)
		}
		defer file.Close()

		name := security.SanitizeFilename(filepath.Base(header.Filename))
		path, err := s.files.SaveUpload(name, file)
		if err != nil {
			return "", err
		}
		return filepath.Base(path), nil
	}

	var body struct {
		Video string `json:"video"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("invalid request body: %w", err)
	}
	if body.Video == "" {
		return "", errors.New("missing 'video' field")
	}
	inputPath, err := s.files.InputPath(body.Video)
	if err != nil {
		return "", err
	}
	if !s.fs.Exists(inputPath) {
		return "", fmt.Errorf("input video %q not found", body.Video)
	}
	return body.Video, nil
}

func (s *Server) showJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	if id == "" || strings.Contains(id, "/") {
		httputil.NotFound(w, "no such job")
		return
	}
	job, ok := s.jobs.Get(id)
	if !ok {
		httputil.NotFound(w, fmt.Sprintf("no such job: %s", id))
		return
	}
	httputil.WriteJSONOK(w, job)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if !s.requireDB(w) {
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			httputil.BadRequest(w, "invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	runs, err := s.db.ListRuns(r.Context(), limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("list runs: %v", err))
		return
	}
	httputil.WriteJSONOK(w, runs)
}

// handleRun serves /api/runs/{id} and /api/runs/{id}/events.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if !s.requireDB(w) {
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	runID, sub, _ := strings.Cut(rest, "/")
	if runID == "" {
		httputil.NotFound(w, "no such run")
		return
	}

	switch sub {
	case "":
		run, err := s.db.GetRun(r.Context(), runID)
		if errors.Is(err, db.ErrRunNotFound) {
			httputil.NotFound(w, fmt.Sprintf("no such run: %s", runID))
			return
		}
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("get run: %v", err))
			return
		}
		httputil.WriteJSONOK(w, run)
	case "events":
		if _, err := s.db.GetRun(r.Context(), runID); errors.Is(err, db.ErrRunNotFound) {
			httputil.NotFound(w, fmt.Sprintf("no such run: %s", runID))
			return
		} else if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("get run: %v", err))
			return
		}
		events, err := s.db.RunEvents(r.Context(), runID)
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("list run events: %v", err))
			return
		}
		httputil.WriteJSONOK(w, events)
	case "charts":
		s.runCharts(w, r, runID)
	default:
		httputil.NotFound(w, "no such resource")
	}
}

// runCharts renders the charts page for a run from its stored rows, so the
// dashboard works even when the HTML artifact was cleaned off disk.
func (s *Server) runCharts(w http.ResponseWriter, r *http.Request, runID string) {
	run, err := s.db.GetRun(r.Context(), runID)
	if errors.Is(err, db.ErrRunNotFound) {
		httputil.NotFound(w, fmt.Sprintf("no such run: %s", runID))
		return
	}
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("get run: %v", err))
		return
	}

	events, err := s.db.RunEvents(r.Context(), runID)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("list run events: %v", err))
		return
	}
	rows, err := s.db.RunObservations(r.Context(), runID)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("list run observations: %v", err))
		return
	}

	tracking := report.NewTrackingSummary()
	for _, row := range rows {
		if err := tracking.WriteRow(row); err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("rebuild tracking summary: %v", err))
			return
		}
	}

	summary := report.RunSummary{
		VideoName:   run.VideoName,
		GeneratedAt: time.Now(),
		Tracking:    tracking,
		Info: media.VideoInfo{
			Path:       run.VideoName,
			Width:      run.Width,
			Height:     run.Height,
			FPS:        run.FPS,
			FrameCount: run.FrameCount,
		},
	}
	if run.FPS > 0 {
		summary.Info.Duration = float64(run.FrameCount) / run.FPS
	}
	for _, ev := range events {
		switch ev.Type {
		case count.EventRitase:
			summary.RitaseEvents = append(summary.RitaseEvents, ev)
		case count.EventPassing:
			summary.PassingEvents = append(summary.PassingEvents, ev)
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.RenderCharts(w, summary); err != nil {
		monitoring.Logf("render charts for run %s: %v", runID, err)
	}
}

// triggerRollup recomputes the recent hourly rollups on demand, without
// waiting for the periodic worker's next tick.
func (s *Server) triggerRollup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	if !s.requireDB(w) {
		return
	}
	if err := db.NewRollupWorker(s.db, 0).RunOnce(r.Context()); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("run rollup: %v", err))
		return
	}
	httputil.WriteJSONOK(w, map[string]string{"status": "ok"})
}

func (s *Server) listInputFiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	names, err := s.files.ListInputs()
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("list inputs: %v", err))
		return
	}
	if names == nil {
		names = []string{}
	}
	httputil.WriteJSONOK(w, names)
}

func (s *Server) listOutputFiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	listings, err := s.files.ListOutputs()
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("list outputs: %v", err))
		return
	}
	if listings == nil {
		listings = []media.OutputListing{}
	}
	httputil.WriteJSONOK(w, listings)
}

func (s *Server) downloadFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	name := r.URL.Query().Get("file")
	if name == "" {
		httputil.BadRequest(w, "missing 'file' parameter")
		return
	}

	path, err := s.files.ResolveDownload(name)
	if err != nil {
		httputil.NotFound(w, err.Error())
		return
	}

	f, err := s.fs.Open(path)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("open %s: %v", name, err))
		return
	}
	defer f.Close()

	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if info, err := s.fs.Stat(path); err == nil {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	}
	if _, err := io.Copy(w, f); err != nil {
		// Headers are gone; all we can do is log the broken transfer.
		monitoring.Logf("download %s interrupted: %v", name, err)
	}
}

func (s *Server) resetMasterWorkbook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	if err := report.ResetMasterWorkbook(s.fs, s.files.MasterWorkbookPath()); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("reset master workbook: %v", err))
		return
	}
	httputil.WriteJSONOK(w, map[string]string{"status": "reset"})
}

func (s *Server) showStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	limit := 48
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			httputil.BadRequest(w, "invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	stats := map[string]interface{}{
		"version":     version.Version,
		"persistence": s.db != nil,
	}
	if s.db != nil {
		rollups, err := s.db.HourlyRollups(r.Context(), limit)
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("load hourly rollups: %v", err))
			return
		}
		if rollups == nil {
			rollups = []db.HourlyRollup{}
		}
		stats["hourly"] = rollups
	}
	httputil.WriteJSONOK(w, stats)
}
