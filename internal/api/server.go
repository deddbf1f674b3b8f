package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/swing.report/internal/db"
	"github.com/banshee-data/swing.report/internal/ingest"
	"github.com/banshee-data/swing.report/internal/oscillation"
	"github.com/banshee-data/swing.report/internal/report"
	"github.com/banshee-data/swing.report/internal/serialmux"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

const (
	defaultSampleLimit = 200
	maxSampleLimit     = 20000
)

type Server struct {
	m        serialmux.SerialMuxInterface
	pipeline *ingest.Pipeline
	db       *db.DB
}

// NewServer wires the HTTP API to the live pipeline. database may be nil,
// in which case the history endpoints report 503.
func NewServer(m serialmux.SerialMuxInterface, pipeline *ingest.Pipeline, database *db.DB) *Server {
	return &Server{
		m:        m,
		pipeline: pipeline,
		db:       database,
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

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/command", s.sendCommandHandler)
	mux.HandleFunc("/api/estimate", s.showEstimate)
	mux.HandleFunc("/api/predict", s.showPrediction)
	mux.HandleFunc("/api/reset", s.resetTracker)
	mux.HandleFunc("/api/samples", s.listSamples)
	mux.HandleFunc("/api/extrema", s.listExtrema)
	mux.HandleFunc("/api/sessions", s.listSessions)
	mux.HandleFunc("/chart", s.showChart)
	mux.HandleFunc("/chart.png", s.showChartPNG)
	return mux
}

func (s *Server) sendCommandHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	command := r.FormValue("command")
	if command == "" {
		http.Error(w, "Missing command", http.StatusBadRequest)
		return
	}

	if err := s.m.SendCommand(command); err != nil {
		http.Error(w, "Failed to send command", http.StatusInternalServerError)
		return
	}
	io.WriteString(w, "Command sent successfully")
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// writeJSON encodes v before writing anything so an unencodable value
// becomes a 500 rather than an empty 200.
func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to encode response")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(buf.Bytes())
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// EstimateResponse is the body of /api/estimate.
type EstimateResponse struct {
	ingest.Snapshot
	// NextPeak is the forecast time of the next peak after the latest
	// sample, omitted until a phase anchor exists.
	NextPeak *float64 `json:"next_peak,omitempty"`
}

func (s *Server) showEstimate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	snap := s.pipeline.Snapshot()
	resp := EstimateResponse{Snapshot: snap}
	if snap.HasLast {
		if next, err := oscillation.NextPeakAfter(snap.State, snap.Last.T); err == nil {
			resp.NextPeak = &next
		}
	}
	s.writeJSON(w, resp)
}

// PredictionResponse is the body of /api/predict.
type PredictionResponse struct {
	T           float64 `json:"t"`
	Value       float64 `json:"value"`
	Phase       float64 `json:"phase"`
	Trustworthy bool    `json:"trustworthy"`
}

func (s *Server) showPrediction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	snap := s.pipeline.Snapshot()

	var t float64
	if q := r.URL.Query().Get("t"); q != "" {
		parsed, err := strconv.ParseFloat(q, 64)
		if err != nil || !finite(parsed) {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 't' parameter")
			return
		}
		t = parsed
	} else if snap.HasLast {
		t = snap.Last.T
	} else {
		s.writeJSONError(w, http.StatusBadRequest, "Missing 't' parameter")
		return
	}

	value, err := oscillation.Predict(snap.State, t)
	if errors.Is(err, oscillation.ErrUninitializedEstimate) {
		s.writeJSONError(w, http.StatusConflict, "No peak observed yet")
		return
	}
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	phase, _ := oscillation.PhaseAt(snap.State, t)
	if !finite(value, phase) {
		s.writeJSONError(w, http.StatusBadRequest, "'t' is too far from the last peak to predict")
		return
	}
	s.writeJSON(w, PredictionResponse{T: t, Value: value, Phase: phase, Trustworthy: snap.Trustworthy})
}

func (s *Server) resetTracker(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if err := s.pipeline.Reset(); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to reset: %v", err))
		return
	}
	s.writeJSON(w, s.pipeline.Snapshot())
}

// sessionID returns the requested session, defaulting to the live one.
func (s *Server) sessionID(r *http.Request) string {
	if id := r.URL.Query().Get("session"); id != "" {
		return id
	}
	return s.pipeline.Snapshot().SessionID
}

func parseLimit(r *http.Request) (int, error) {
	q := r.URL.Query().Get("limit")
	if q == "" {
		return defaultSampleLimit, nil
	}
	limit, err := strconv.Atoi(q)
	if err != nil || limit < 1 || limit > maxSampleLimit {
		return 0, fmt.Errorf("'limit' must be between 1 and %d", maxSampleLimit)
	}
	return limit, nil
}

// historyRequest validates a GET against the store and returns the session
// and limit to read. It writes the error response itself.
func (s *Server) historyRequest(w http.ResponseWriter, r *http.Request) (string, int, bool) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return "", 0, false
	}
	if s.db == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "No database configured")
		return "", 0, false
	}
	limit, err := parseLimit(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return "", 0, false
	}
	return s.sessionID(r), limit, true
}

func (s *Server) listSamples(w http.ResponseWriter, r *http.Request) {
	session, limit, ok := s.historyRequest(w, r)
	if !ok {
		return
	}
	samples, err := s.db.Samples(session, limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to read samples: %v", err))
		return
	}
	if samples == nil {
		samples = []oscillation.Result{}
	}
	s.writeJSON(w, samples)
}

func (s *Server) listExtrema(w http.ResponseWriter, r *http.Request) {
	session, _, ok := s.historyRequest(w, r)
	if !ok {
		return
	}
	extrema, err := s.db.Extrema(session)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to read extrema: %v", err))
		return
	}
	if extrema == nil {
		extrema = []db.Extremum{}
	}
	s.writeJSON(w, extrema)
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	_, limit, ok := s.historyRequest(w, r)
	if !ok {
		return
	}
	sessions, err := s.db.Sessions(limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to read sessions: %v", err))
		return
	}
	if sessions == nil {
		sessions = []db.Session{}
	}
	s.writeJSON(w, sessions)
}

func (s *Server) chartData(w http.ResponseWriter, r *http.Request) (string, []oscillation.Result, bool) {
	session, limit, ok := s.historyRequest(w, r)
	if !ok {
		return "", nil, false
	}
	results, err := s.db.Samples(session, limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to read samples: %v", err))
		return "", nil, false
	}
	if len(results) == 0 {
		s.writeJSONError(w, http.StatusNotFound, "No samples recorded")
		return "", nil, false
	}
	return session, withEventSamples(results, s.extremaByTime(session)), true
}

// extremaByTime indexes a session's extrema so chart markers can be placed
// at the located centre sample rather than the detecting sample.
func (s *Server) extremaByTime(session string) []db.Extremum {
	extrema, err := s.db.Extrema(session)
	if err != nil {
		log.Printf("failed to read extrema for chart: %v", err)
		return nil
	}
	return extrema
}

// withEventSamples restores EventSample on stored results by pairing the
// n-th event with the n-th stored extremum of the session.
func withEventSamples(results []oscillation.Result, extrema []db.Extremum) []oscillation.Result {
	if len(extrema) == 0 {
		return results
	}
	// results may be a suffix of the session; align on the tail.
	events := 0
	for _, r := range results {
		if r.Event != oscillation.Neither {
			events++
		}
	}
	j := len(extrema) - events
	for i := range results {
		if results[i].Event == oscillation.Neither {
			continue
		}
		if j >= 0 && j < len(extrema) && extrema[j].Kind == results[i].Event {
			results[i].EventSample = oscillation.Sample{T: extrema[j].T, Value: extrema[j].Value}
		} else {
			results[i].EventSample = oscillation.Sample{T: results[i].T, Value: results[i].Filtered}
		}
		j++
	}
	return results
}

// sessionState returns the live estimates for the live session and the
// last stored estimate for any other. A session without estimates yields
// the zero State.
func (s *Server) sessionState(session string) oscillation.State {
	if snap := s.pipeline.Snapshot(); snap.SessionID == session {
		return snap.State
	}
	est, err := s.db.LatestEstimate(session)
	if err != nil {
		if !errors.Is(err, db.ErrNoEstimate) {
			log.Printf("failed to read estimate for %s: %v", session, err)
		}
		return oscillation.State{}
	}
	return est.State
}

func (s *Server) showChart(w http.ResponseWriter, r *http.Request) {
	session, results, ok := s.chartData(w, r)
	if !ok {
		return
	}
	summary := report.Summarise(results, s.sessionState(session))
	subtitle := fmt.Sprintf("session=%s samples=%d peaks=%d rmse=%.3f", session, summary.Samples, summary.Peaks, summary.RMSE)
	if summary.Final.PeakCount > 0 {
		subtitle += fmt.Sprintf(" period=%.3fs", summary.Final.Period)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.RenderHTML(w, "Swing", subtitle, results); err != nil {
		log.Printf("failed to render chart: %v", err)
	}
}

func (s *Server) showChartPNG(w http.ResponseWriter, r *http.Request) {
	session, results, ok := s.chartData(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := report.WritePNG(w, "Swing "+session, results); err != nil {
		log.Printf("failed to render png: %v", err)
	}
}
