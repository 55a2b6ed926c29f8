// Package web provides the HTTP status and control server for the blinker daemon.
package web

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"

	"github.com/sweeney/blinker/internal/command"
	"github.com/sweeney/blinker/internal/status"
)

// maxRequestBytes bounds a POST /sequence body.
const maxRequestBytes = 64 << 10

// SubmitFunc hands a parsed request to the run loop. It returns false when
// the loop cannot take it right now.
type SubmitFunc func(command.Submission) bool

// Server serves the status page, metrics and the sequence endpoint over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	submit     SubmitFunc
}

// New creates a Server that reads state from the given tracker.
// A nil metrics handler leaves /metrics unrouted; a nil submit makes
// POST /sequence answer 503.
func New(addr string, tracker *status.Tracker, metrics http.Handler, submit SubmitFunc) *Server {
	s := &Server{tracker: tracker, submit: submit}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/sequence", s.handleSequence)
	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// Handler returns the server's request router.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

// SequenceResponse is the body returned by POST /sequence.
type SequenceResponse struct {
	Accepted bool   `json:"accepted"`
	Mode     string `json:"mode,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (s *Server) handleSequence(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		writeSequence(w, http.StatusRequestEntityTooLarge, SequenceResponse{Reason: "decode", Error: err.Error()})
		return
	}

	sub := command.Parse("http", body)
	if s.submit == nil {
		writeSequence(w, http.StatusServiceUnavailable, SequenceResponse{Mode: string(sub.Request.Mode), Error: "control loop not running"})
		return
	}

	// Rejections still go to the loop so they are counted and published.
	queued := s.submit(sub)
	if sub.Err != nil {
		writeSequence(w, http.StatusBadRequest, SequenceResponse{
			Mode:   string(sub.Request.Mode),
			Reason: command.Reason(sub.Err),
			Error:  sub.Err.Error(),
		})
		return
	}
	if !queued {
		writeSequence(w, http.StatusServiceUnavailable, SequenceResponse{Mode: string(sub.Request.Mode), Error: "control loop busy"})
		return
	}
	writeSequence(w, http.StatusAccepted, SequenceResponse{Accepted: true, Mode: string(sub.Request.Mode)})
}

func writeSequence(w http.ResponseWriter, code int, resp SequenceResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(resp)
}
