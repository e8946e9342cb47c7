// Package web serves the controller status and prometheus metrics over HTTP.
package web

import (
	"context"
	"encoding/json"
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/nergy-se/roomcontroller/pkg/alarm"
	"github.com/nergy-se/roomcontroller/pkg/control"
	"github.com/nergy-se/roomcontroller/pkg/state"
	"github.com/nergy-se/roomcontroller/pkg/version"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

type Snapshotter interface {
	Snapshot() []state.RoomSnapshot
}

type ControlStatus interface {
	LastPass() control.Pass
	Missing() []alarm.Alarm
}

type Connection interface {
	IsConnected() bool
}

type Server struct {
	httpServer *http.Server
	store      Snapshotter
	control    ControlStatus
	connection Connection
}

func New(addr string, store Snapshotter, ctl ControlStatus, connection Connection, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		store:      store,
		control:    ctl,
		connection: connection,
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/api/rooms", s.handleRooms).Methods("GET")
	r.HandleFunc("/api/control", s.handleControl).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods("GET")

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: r,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type health struct {
	Status        string          `json:"status"`
	MQTTConnected bool            `json:"mqttConnected"`
	Version       json.RawMessage `json:"version"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := health{
		Status:        "ok",
		MQTTConnected: s.connection.IsConnected(),
		Version:       json.RawMessage(version.Version),
	}
	code := http.StatusOK
	if !h.MQTTConnected {
		h.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, h)
}

func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Snapshot())
}

type controlStatus struct {
	LastPass control.Pass  `json:"lastPass"`
	Missing  []alarm.Alarm `json:"missing"`
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, controlStatus{
		LastPass: s.control.LastPass(),
		Missing:  s.control.Missing(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		logrus.Errorf("error writing response: %s", err)
	}
}
