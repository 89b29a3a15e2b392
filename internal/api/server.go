// Package api serves deltaT queries and table inspection over HTTP and gRPC.
package api

import (
	"log"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/banshee-data/energyshield/internal/lut"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// served pairs a resolver with the description of its table so both are
// swapped together.
type served struct {
	resolver *lut.Resolver
	source   string
}

// Server answers queries against the currently installed resolver. The
// resolver can be replaced while requests are in flight.
type Server struct {
	active atomic.Pointer[served]

	// LongDeltaTLimit is used when a request has no limit parameter.
	LongDeltaTLimit float64
}

// NewServer returns a server over r. source describes where the table came
// from and is reported by /api/lut.
func NewServer(r *lut.Resolver, source string, longDeltaTLimit float64) *Server {
	s := &Server{LongDeltaTLimit: longDeltaTLimit}
	s.Swap(r, source)
	return s
}

// Swap installs a new resolver. Requests already running keep the old one.
func (s *Server) Swap(r *lut.Resolver, source string) {
	s.active.Store(&served{resolver: r, source: source})
	log.Printf("[api] serving table %q (%d bands)", source, r.Table().Len())
}

func (s *Server) current() (*lut.Resolver, string) {
	cur := s.active.Load()
	return cur.resolver, cur.source
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
	case statusCode >= 400:
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

// ServeMux returns the query and inspection routes.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/deltat", s.handleDeltaT)
	mux.HandleFunc("/api/lut", s.handleLUT)
	mux.HandleFunc("/api/lut/heatmap", s.handleHeatmap)
	return mux
}

// Handler is ServeMux wrapped in LoggingMiddleware.
func (s *Server) Handler() http.Handler {
	return LoggingMiddleware(s.ServeMux())
}
