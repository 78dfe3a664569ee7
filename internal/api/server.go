// Package api is the admin/introspection HTTP surface of the controller.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"SentiNet/internal/controller"
)

// Server serves read-only snapshots of the core plus a manual block hook.
type Server struct {
	ctrl *controller.Controller
	srv  *http.Server
}

// NewServer builds the router over a running controller.
func NewServer(listenAddr string, ctrl *controller.Controller) *Server {
	s := &Server{ctrl: ctrl}

	r := mux.NewRouter()
	r.HandleFunc("/api/v1/switches", s.switchesHandler).Methods("GET")
	r.HandleFunc("/api/v1/links", s.linksHandler).Methods("GET")
	r.HandleFunc("/api/v1/alerts/active", s.alertsHandler).Methods("GET")
	r.HandleFunc("/api/v1/blocked", s.blockedHandler).Methods("GET")
	r.HandleFunc("/api/v1/navigator/status", s.navigatorStatusHandler).Methods("GET")
	r.HandleFunc("/api/v1/navigator/path", s.pathHandler).Methods("GET")
	r.HandleFunc("/api/v1/control/block", s.blockHandler).Methods("POST")
	r.Handle("/metrics", promhttp.Handler())

	s.srv = &http.Server{Addr: listenAddr, Handler: r}
	return s
}

// Start runs the server in the background.
func (s *Server) Start() {
	go func() {
		log.Printf("API server starting on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v", s.srv.Addr, err)
		}
	}()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func (s *Server) switchesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Registry.Snapshot())
}

type linkView struct {
	From           string  `json:"from"`
	To             string  `json:"to"`
	BandwidthMbps  float64 `json:"bw_mbps"`
	DelayMs        float64 `json:"delay_ms"`
	UsageBps       float64 `json:"usage_bps"`
	UtilizationPct float64 `json:"utilization_pct"`
}

func (s *Server) linksHandler(w http.ResponseWriter, r *http.Request) {
	usage := s.ctrl.LinkUtilization()
	var out []linkView
	for _, l := range s.ctrl.Topology().Links() {
		total := usage[[2]string{l.From, l.To}] + usage[[2]string{l.To, l.From}]
		view := linkView{
			From: l.From, To: l.To,
			BandwidthMbps: l.BandwidthMbps, DelayMs: l.DelayMs,
			UsageBps: total,
		}
		if capacity := l.BandwidthMbps * 1e6; capacity > 0 {
			view.UtilizationPct = total / capacity * 100
		}
		out = append(out, view)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) alertsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Detector.ActiveAlerts())
}

func (s *Server) blockedHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Mitigator.BlockedFlows())
}

func (s *Server) navigatorStatusHandler(w http.ResponseWriter, r *http.Request) {
	if s.ctrl.Navigator == nil {
		http.Error(w, "navigator disabled", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": s.ctrl.Navigator.GetStatus(),
		"links":  s.ctrl.Navigator.GetLinkInfo(),
	})
}

func (s *Server) pathHandler(w http.ResponseWriter, r *http.Request) {
	if s.ctrl.Navigator == nil {
		http.Error(w, "navigator disabled", http.StatusNotFound)
		return
	}
	src := r.URL.Query().Get("src")
	dst := r.URL.Query().Get("dst")
	if src == "" || dst == "" {
		http.Error(w, "src and dst query parameters are required", http.StatusBadRequest)
		return
	}
	path := s.ctrl.Navigator.GetOptimalPath(src, dst)
	writeJSON(w, http.StatusOK, map[string]interface{}{"src": src, "dst": dst, "path": path})
}

type blockRequest struct {
	Target      string `json:"target"`
	DurationSec int    `json:"duration_sec"`
}

// blockHandler applies a manual block, same path as a bridge command.
func (s *Server) blockHandler(w http.ResponseWriter, r *http.Request) {
	var req blockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("failed to decode request: %v", err), http.StatusBadRequest)
		return
	}
	if req.Target == "" {
		http.Error(w, "target is required", http.StatusBadRequest)
		return
	}
	if req.DurationSec <= 0 {
		req.DurationSec = 60
	}
	s.ctrl.Mitigator.Block(req.Target, "", time.Duration(req.DurationSec)*time.Second)
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "queued",
		"message": fmt.Sprintf("block for %s applied", req.Target),
	})
}
