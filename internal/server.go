// server.go
package internal

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

// HTTPServer is the read-mostly operator surface: health, status and
// event display, runtime target adjustment and config reload. It never
// touches actuators directly; all control flows through the engine.
type HTTPServer struct {
	cfg *AppConfig
	lg  *slog.Logger
	eng *Engine
	tgt *Targets
	log *FileLog
	met *Metrics

	http *http.Server
}

func NewHTTPServer(cfg *AppConfig, lg *slog.Logger, eng *Engine, tgt *Targets, fileLog *FileLog, met *Metrics) *HTTPServer {
	s := &HTTPServer{cfg: cfg, lg: lg, eng: eng, tgt: tgt, log: fileLog, met: met}
	r := mux.NewRouter()
	r.HandleFunc("/health", s.getHealth).Methods(http.MethodGet)
	r.HandleFunc("/status", s.getStatus).Methods(http.MethodGet)
	r.HandleFunc("/events", s.getEvents).Methods(http.MethodGet)
	r.HandleFunc("/plan", s.getPlan).Methods(http.MethodGet)
	r.HandleFunc("/config/targets", s.getTargets).Methods(http.MethodGet)
	r.HandleFunc("/config/targets", s.putTargets).Methods(http.MethodPut)
	r.HandleFunc("/config/reload", s.postReload).Methods(http.MethodPost)
	if met != nil {
		r.Handle("/metrics", met.Handler()).Methods(http.MethodGet)
	}
	s.http = &http.Server{
		Addr:    cfg.HTTPBind,
		Handler: handlers.CombinedLoggingHandler(os.Stdout, r),
	}
	return s
}

func (s *HTTPServer) Start() error {
	s.lg.Info("http start", "bind", s.cfg.HTTPBind)
	return s.http.ListenAndServe()
}

func (s *HTTPServer) Stop(ctx context.Context) error {
	s.lg.Info("http stop")
	return s.http.Shutdown(ctx)
}

func (s *HTTPServer) getHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *HTTPServer) getStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.eng.View()); err != nil {
		s.lg.Error("status encode", "error", err)
	}
}

func (s *HTTPServer) getEvents(w http.ResponseWriter, r *http.Request) {
	n := 20
	if q := r.URL.Query().Get("limit"); q != "" {
		if i, err := strconv.Atoi(q); err == nil && i > 0 {
			n = i
		}
	}
	w.Header().Set("Content-Type", "application/json")
	var events []Event
	if s.log != nil {
		events = s.log.Tail(n)
	}
	if err := json.NewEncoder(w).Encode(map[string]any{"events": events}); err != nil {
		s.lg.Error("events encode", "error", err)
	}
}

// getPlan serves the most recent burn plan, or 404 before the first one.
func (s *HTTPServer) getPlan(w http.ResponseWriter, _ *http.Request) {
	v := s.eng.View()
	if v.LastPlan == nil {
		http.Error(w, "no burn planned yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v.LastPlan); err != nil {
		s.lg.Error("plan encode", "error", err)
	}
}

func (s *HTTPServer) getTargets(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"targets": s.tgt.All()}); err != nil {
		s.lg.Error("targets encode", "error", err)
	}
}

func (s *HTTPServer) putTargets(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TargetTemperature   *float64 `json:"targetTemperature"`
		TargetFieldFraction *float64 `json:"targetFieldFraction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}
	if body.TargetTemperature == nil && body.TargetFieldFraction == nil {
		http.Error(w, "nothing to update", http.StatusBadRequest)
		return
	}
	if body.TargetTemperature != nil {
		if _, err := s.tgt.SetTemperature(*body.TargetTemperature); err != nil {
			s.writeTargetError(w, err)
			return
		}
		s.lg.Info("target temperature updated", "value", *body.TargetTemperature)
	}
	if body.TargetFieldFraction != nil {
		if _, err := s.tgt.SetFieldFraction(*body.TargetFieldFraction); err != nil {
			s.writeTargetError(w, err)
			return
		}
		s.lg.Info("target field fraction updated", "value", *body.TargetFieldFraction)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"targets": s.tgt.All()})
}

func (s *HTTPServer) writeTargetError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrTargetRange) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func (s *HTTPServer) postReload(w http.ResponseWriter, _ *http.Request) {
	if err := s.cfg.ReloadProperties(); err != nil {
		s.lg.Error("reload", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("reloaded"))
}
