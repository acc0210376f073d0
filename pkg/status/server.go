// Package status exposes the room table over HTTP: a JSON snapshot, a
// websocket stream pushing the snapshot periodically, Prometheus metrics and a
// health probe.
package status

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/janael-pinheiro/hvac-bridge/pkg/entities"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const (
	writeTimeout    = 5 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Snapshotter yields a consistent copy of every room.
type Snapshotter interface {
	Snapshot() entities.Snapshot
}

type Health struct {
	MQTTConnected bool `json:"mqtt_connected"`
}

type Server struct {
	listen        string
	interval      time.Duration
	snapshots     Snapshotter
	gatherer      prometheus.Gatherer
	connected     func() bool
	log           *logrus.Entry
	upgrader      websocket.Upgrader
	clientsLock   sync.Mutex
	clientStreams []*websocket.Conn
}

func NewServer(conf entities.StatusConfig, snapshots Snapshotter, gatherer prometheus.Gatherer, connected func() bool, log *logrus.Entry) *Server {
	return &Server{
		listen:    conf.Listen,
		interval:  conf.BroadcastInterval.Duration,
		snapshots: snapshots,
		gatherer:  gatherer,
		connected: connected,
		log:       log,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.statusHandler)
	mux.HandleFunc("/stream", s.clientStreamHandler)
	mux.HandleFunc("/healthz", s.healthHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return mux
}

// Run serves HTTP and pushes snapshots to stream clients until ctx ends.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: writeTimeout,
	}
	go s.broadcastLoop(ctx)

	serveErr := make(chan error, 1)
	go func() {
		s.log.Infof("listening on %s", s.listen)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		return errors.Wrap(err, "status server")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.closeStreams()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "status server shutdown")
	}
	return nil
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.snapshots.Snapshot())
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, Health{MQTTConnected: s.connected()})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
