// Package web provides an HTTP status server for the switch-sensor daemon.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/switch-sensor/internal/logic"
	"github.com/sweeney/switch-sensor/internal/status"
)

// maxBodyBytes caps the size of a threshold update request.
const maxBodyBytes = 4096

// Server serves the status page and accepts threshold updates over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	updates    chan<- logic.ThresholdUpdate
}

// New creates a Server that reads state from the given tracker.
// Accepted threshold updates are sent on updates; a nil channel
// disables POST /thresholds.
func New(addr string, tracker *status.Tracker, updates chan<- logic.ThresholdUpdate) *Server {
	s := &Server{tracker: tracker, updates: updates}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/thresholds", s.handleThresholds)

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

// Serve accepts connections on the given listener.
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
	if err := renderHTML(w, snap); err != nil {
		log.WithError(err).Warn("web: render status page")
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

// thresholdsRequest is the POST /thresholds body. Omitted fields are left
// unchanged by the run loop.
type thresholdsRequest struct {
	LongPressMs   *uint32 `json:"long_press_ms,omitempty"`
	DoublePressMs *uint32 `json:"double_press_ms,omitempty"`
	ChatterMs     *uint32 `json:"chatter_ms,omitempty"`
}

// handleThresholds accepts some or all of the timing windows as JSON and
// hands them to the run loop, which merges them over its current values.
func (s *Server) handleThresholds(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.updates == nil {
		http.Error(w, "threshold updates disabled", http.StatusServiceUnavailable)
		return
	}

	var body thresholdsRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		http.Error(w, fmt.Sprintf("invalid body: %v", err), http.StatusBadRequest)
		return
	}
	if body.ChatterMs != nil && *body.ChatterMs > logic.MaxChatterMs {
		http.Error(w, fmt.Sprintf("chatter_ms must be at most %d", logic.MaxChatterMs), http.StatusBadRequest)
		return
	}

	u := logic.ThresholdUpdate{
		LongPress:   body.LongPressMs,
		DoublePress: body.DoublePressMs,
		Chatter:     body.ChatterMs,
	}
	if u.Empty() {
		http.Error(w, "no thresholds given", http.StatusBadRequest)
		return
	}

	select {
	case s.updates <- u:
	default:
		http.Error(w, "update queue full", http.StatusServiceUnavailable)
		return
	}

	fields := log.Fields{"remote": r.RemoteAddr}
	if u.LongPress != nil {
		fields["long_press_ms"] = *u.LongPress
	}
	if u.DoublePress != nil {
		fields["double_press_ms"] = *u.DoublePress
	}
	if u.Chatter != nil {
		fields["chatter_ms"] = *u.Chatter
	}
	log.WithFields(fields).Info("web: threshold update accepted")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(body)
}
