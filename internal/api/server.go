package api

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/loadcycle.report/internal/db"
	"github.com/banshee-data/loadcycle.report/internal/fsutil"
	"github.com/banshee-data/loadcycle.report/internal/media"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	files *media.FileManager
	fs    fsutil.FileSystem
	db    *db.DB
	jobs  *JobRunner
}

// NewServer wires the HTTP API. The database may be nil, in which case the
// run history, stats, and debug endpoints report that persistence is off.
func NewServer(files *media.FileManager, fs fsutil.FileSystem, database *db.DB, jobs *JobRunner) *Server {
	return &Server{
		files: files,
		fs:    fs,
		db:    database,
		jobs:  jobs,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400 && statusCode < 500:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 500:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/jobs", s.handleJobs)
	mux.HandleFunc("/api/jobs/", s.showJob)
	mux.HandleFunc("/api/runs", s.listRuns)
	mux.HandleFunc("/api/runs/", s.handleRun)
	mux.HandleFunc("/api/files/input", s.listInputFiles)
	mux.HandleFunc("/api/files/output", s.listOutputFiles)
	mux.HandleFunc("/api/download", s.downloadFile)
	mux.HandleFunc("/api/reports/master/reset", s.resetMasterWorkbook)
	mux.HandleFunc("/api/rollups/run", s.triggerRollup)
	mux.HandleFunc("/api/stats", s.showStats)
	if s.db != nil {
		s.db.AttachAdminRoutes(mux)
	}
	return mux
}
